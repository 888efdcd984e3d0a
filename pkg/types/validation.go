package types

// IsValidRoomID accepts any non-empty identifier up to 64 characters.
// Server-generated IDs are 6 uppercase alphanumerics, but a teacher may
// create a room under any name.
func IsValidRoomID(roomID string) bool {
	return len(roomID) >= 1 && len(roomID) <= 64
}

// IsValidUsername checks the display name set via user_join.
func IsValidUsername(username string) bool {
	return len(username) >= 1 && len(username) <= 50
}

// IsInboundEvent reports whether the event name is one a client may send.
func IsInboundEvent(event string) bool {
	switch event {
	case EventValidateRoom,
		EventJoinRoom,
		EventUserJoin,
		EventDraw,
		EventDeleteStroke,
		EventClear,
		EventMoveElement,
		EventDeleteElement,
		EventAddImage:
		return true
	default:
		return false
	}
}

// IsDrawingEvent reports whether the event is relayed between peers rather
// than handled by the membership protocol.
func IsDrawingEvent(event string) bool {
	switch event {
	case EventDraw,
		EventDeleteStroke,
		EventClear,
		EventMoveElement,
		EventDeleteElement,
		EventAddImage:
		return true
	default:
		return false
	}
}
