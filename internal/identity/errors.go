package identity

import "errors"

var (
	ErrUnexpectedSigningMethod = errors.New("unexpected token signing method")
)
