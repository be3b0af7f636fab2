package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid request")
	ErrHandleTaken  = errors.New("handle already taken")
	ErrStreamClosed = errors.New("event stream closed")
)
