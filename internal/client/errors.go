package client

import "errors"

var (
	// ErrSessionClosed is returned when sending on a session that has ended.
	ErrSessionClosed = errors.New("signaling session closed")

	// ErrWriteTimeout is returned when the outbound queue stays full past the
	// write deadline.
	ErrWriteTimeout = errors.New("signaling write timed out")
)
