package relay

import "errors"

var (
	ErrUnroutableEvent = errors.New("event has no routing-table entry")
)
