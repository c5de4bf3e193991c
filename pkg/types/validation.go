package types

// IsValidRoomID reports whether a caller-supplied room identifier is safe to
// use as a registry key. Room IDs are externally generated (random tokens or
// class record keys) so only shape is checked, never existence.
func IsValidRoomID(roomID string) bool {
	if len(roomID) < 1 || len(roomID) > 100 {
		return false
	}
	for _, c := range roomID {
		if !isIDChar(c) {
			return false
		}
	}
	return true
}

// IsValidRole reports whether role is one of the three known participant roles.
func IsValidRole(role string) bool {
	return role == RoleTeacher || role == RoleStudent || role == RoleUnknown
}

func isIDChar(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '-'
}
