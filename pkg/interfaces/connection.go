package interfaces

import "classlink/pkg/types"

// Connection is the server-side view of one live signaling transport channel.
// Implementations must serialize writes internally (single-writer pattern) so
// the registry and relay can deliver to the same connection concurrently.
type Connection interface {
	// GetID returns the opaque, server-assigned connection ID.
	GetID() string

	// WriteJSON sends a JSON message to the client (thread-safe).
	WriteJSON(v interface{}) error

	// Close tears down the transport and releases connection resources.
	// Safe to call more than once.
	Close() error

	// GetIdentity returns the resolved identity. Before authentication (or
	// after a failed one) this is the deterministic anonymous identity.
	GetIdentity() types.Identity

	// SetIdentity installs the identity produced by the resolver.
	// Best-effort: failure to authenticate never blocks signaling.
	SetIdentity(identity types.Identity)

	// GetRoomID returns the room this connection currently occupies, or ""
	// when it is in no room. A connection belongs to at most one room.
	GetRoomID() string

	// SetRoomID records the current room. Called only by the room registry.
	SetRoomID(roomID string)
}
