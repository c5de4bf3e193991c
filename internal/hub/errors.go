package hub

import "errors"

// Hub-specific error types
var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrJoinChannelFull   = errors.New("join channel is full")
	ErrLeaveChannelFull  = errors.New("leave channel is full")
	ErrSignalChannelFull = errors.New("signal channel is full")
)
