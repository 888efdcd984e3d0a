package types

import "errors"

var (
	ErrInvalidRoomID   = errors.New("room ID must be 1-64 characters")
	ErrInvalidUsername = errors.New("username must be 1-50 characters")
	ErrInvalidEvent    = errors.New("unknown event name")
	ErrInvalidPayload  = errors.New("payload is not valid JSON")
)
