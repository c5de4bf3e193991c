package interfaces

import "classlink/pkg/types"

// RoomRegistry owns room membership. All mutations go through Join/Leave;
// callers never touch the membership maps directly.
type RoomRegistry interface {
	// Join adds the connection to roomID, removing any prior membership
	// first and notifying that room of the departure. Returns the IDs of
	// members already present, in join order. Side effects: existing
	// members receive a user-connected event for the newcomer, the
	// newcomer receives users-in-room with the returned list (empty list
	// included).
	Join(conn Connection, roomID string) ([]string, error)

	// Leave removes the connection from whichever room it occupies (no-op
	// if none), notifies the remaining members and deletes the room when
	// it empties. Explicit leave and transport disconnect share this path.
	Leave(conn Connection)

	// Lookup returns the connection for an ID, if it is a member of any room.
	Lookup(connectionID string) (Connection, bool)

	// SameRoom reports whether both connection IDs currently share a room.
	SameRoom(a, b string) bool

	// Members returns a room's membership in join order.
	Members(roomID string) []types.Member

	// Stats returns registry counters for monitoring.
	Stats() map[string]int
}
