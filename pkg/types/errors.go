package types

import "errors"

// Wire-protocol validation errors shared across server and client.
var (
	ErrInvalidPayload  = errors.New("invalid JSON payload")
	ErrInvalidRoomID   = errors.New("room ID must be 1-100 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRole     = errors.New("invalid role: must be 'teacher', 'student' or 'unknown'")
	ErrMissingTarget   = errors.New("signal missing destination connection ID")
	ErrEmptySignalBody = errors.New("signal carries no offer, answer or candidate")
	ErrSignalTooLarge  = errors.New("signal body exceeds 64KB limit")
)

// MaxSignalBytes bounds a single relayed SDP or candidate body.
const MaxSignalBytes = 64 * 1024
