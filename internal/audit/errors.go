package audit

import "errors"

var (
	ErrStoreClosed = errors.New("audit store is closed")
)
