package server

import "errors"

var (
	ErrAlreadyStarted = errors.New("server is already started")
	ErrNotRunning     = errors.New("server is not running")
	ErrBind           = errors.New("failed to bind listener")
)
