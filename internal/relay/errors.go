package relay

import "errors"

// Relay-specific error types. These surface in server logs only; relay
// semantics toward the sender stay fire-and-forget.
var (
	ErrNilSignal         = errors.New("signal cannot be nil")
	ErrNotInSameRoom     = errors.New("sender and destination do not share a room")
	ErrRateLimitExceeded = errors.New("rate limit exceeded: 600 signals per minute")
)
