package peer

// State is the coordinator's negotiation state. Transitions are driven by
// ICE connection-state callbacks: idle → connecting → connected →
// {disconnected, failed}. Disconnected may self-heal if the transport
// recovers; failed is terminal for the coordinator instance.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// StatusText is the user-facing status line for a state. Every state maps to
// distinct text: a stuck call always shows the user why it is stuck.
func (s State) StatusText() string {
	switch s {
	case StateIdle:
		return "Waiting for a peer to join..."
	case StateConnecting:
		return "Connecting to peer..."
	case StateConnected:
		return "Connected."
	case StateDisconnected:
		return "Connection temporarily lost."
	case StateFailed:
		return "Connection failed."
	}
	return "Unknown state."
}
