package types

import (
	"encoding/json"
)

// Signaling event names shared by server and client. The client-to-server and
// server-to-client offer/answer/candidate events use the same names; direction
// decides whether the "to" or "from" field is meaningful.
const (
	EventAuthenticate = "authenticate"
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"

	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"

	EventUserConnected    = "user-connected"
	EventUsersInRoom      = "users-in-room"
	EventUserDisconnected = "user-disconnected"

	// EventSystem carries advisory status/error feedback to a client.
	// Delivery failures on the relay path are never reported this way;
	// unicast forwarding is fire-and-forget.
	EventSystem = "system"
)

// Participant roles. Identity resolution is best-effort, so RoleUnknown is a
// normal, fully functional state rather than an error.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleUnknown = "unknown"
)

// Envelope is the outer frame for every message on the signaling channel.
// Payload shape is owned by the event's payload struct below.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload and wraps it with the event name.
func NewEnvelope(event string, payload interface{}) (*Envelope, error) {
	if payload == nil {
		return &Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	return &Envelope{Event: event, Payload: data}, nil
}

// Decode unmarshals the envelope payload into v.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

// Authenticate carries the opaque credential presented by a client.
type Authenticate struct {
	Token string `json:"token"`
}

// JoinRoom names the room a client wants to occupy. Room IDs are opaque to the
// signaling core; whether they correspond to a scheduled class is the caller's
// concern.
type JoinRoom struct {
	RoomID string `json:"roomId"`
}

// Signal is the relay-boundary representation of an offer, answer or ICE
// candidate. Exactly one of Offer, Answer or Candidate is set, matching the
// envelope event. The nested SDP/candidate bodies are opaque to the relay and
// forwarded byte-for-byte.
type Signal struct {
	To        string          `json:"to"`
	From      string          `json:"from,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Body returns whichever opaque payload the signal carries.
func (s *Signal) Body() json.RawMessage {
	switch {
	case len(s.Offer) > 0:
		return s.Offer
	case len(s.Answer) > 0:
		return s.Answer
	case len(s.Candidate) > 0:
		return s.Candidate
	}
	return nil
}

// Validate checks the relay-level fields only; the nested body is opaque.
func (s *Signal) Validate() error {
	if s.To == "" {
		return ErrMissingTarget
	}
	body := s.Body()
	if len(body) == 0 {
		return ErrEmptySignalBody
	}
	if len(body) > MaxSignalBytes {
		return ErrSignalTooLarge
	}
	return nil
}

// PeerJoined notifies existing room members that a new peer arrived.
// ShouldInitiate is the server-decided glare tiebreak: the member that was
// already present initiates the offer toward the newcomer.
type PeerJoined struct {
	ID             string `json:"id"`
	Role           string `json:"role"`
	Username       string `json:"username"`
	ShouldInitiate bool   `json:"shouldInitiate"`
}

// PeersInRoom tells a joining client which peers were already present, in
// join order. Always delivered, with an empty list when the room was fresh.
// ShouldInitiate is always false for the joiner: it waits for the offer.
type PeersInRoom struct {
	IDs            []string `json:"ids"`
	ShouldInitiate bool     `json:"shouldInitiate"`
}

// PeerLeft notifies remaining members that a peer departed, whether by an
// explicit leave or a transport disconnect.
type PeerLeft struct {
	ID string `json:"id"`
}

// System is advisory feedback (status text, non-fatal errors) to one client.
type System struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// Member is a room's record of one connected participant.
type Member struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Username string `json:"username"`
}

// Identity is the resolved (or anonymous fallback) identity of a connection.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AnonymousIdentity is the deterministic fallback used whenever credential
// resolution fails. The connection ID doubles as the user ID so the identity
// stays unique per transport channel.
func AnonymousIdentity(connectionID string) Identity {
	return Identity{
		UserID:   connectionID,
		Username: "anonymous",
		Role:     RoleUnknown,
	}
}
