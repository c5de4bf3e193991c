package media

import "errors"

// ErrMediaAccess wraps every capture-device failure (denied, missing,
// busy). It is terminal for the attempt: callers surface it to the user and
// never retry automatically.
var ErrMediaAccess = errors.New("media access failed")
