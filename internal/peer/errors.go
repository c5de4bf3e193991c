package peer

import "errors"

var (
	// ErrCoordinatorFailed is returned when an operation is attempted on a
	// coordinator whose connection has terminally failed.
	ErrCoordinatorFailed = errors.New("peer connection has failed")

	// ErrPeerAlreadyBound is returned when a signal names a different peer
	// than the one this coordinator is already negotiating with.
	ErrPeerAlreadyBound = errors.New("coordinator already bound to a peer")

	// ErrMalformedDescription is returned when an offer or answer payload
	// cannot be decoded as a session description.
	ErrMalformedDescription = errors.New("malformed session description")

	// ErrMalformedCandidate is returned when an ICE candidate payload cannot
	// be decoded.
	ErrMalformedCandidate = errors.New("malformed ICE candidate")
)
