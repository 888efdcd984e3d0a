package types

import (
	"encoding/json"
)

// Inbound event names (client -> server).
const (
	EventValidateRoom  = "validate_room"
	EventJoinRoom      = "join_room"
	EventUserJoin      = "user_join"
	EventDraw          = "draw"
	EventDeleteStroke  = "delete_stroke"
	EventClear         = "clear"
	EventMoveElement   = "move_element"
	EventDeleteElement = "delete_element"
	EventAddImage      = "add_image"
)

// Outbound event names (server -> client).
const (
	EventRoomValidation      = "room_validation"
	EventRoomJoined          = "room_joined"
	EventTeacherDisconnected = "teacher_disconnected"
	EventUserList            = "user_list"
)

// Envelope is the wire format in both directions: an event name plus a
// JSON-serializable payload. The relay never looks inside Data beyond the
// fields needed for routing.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals v into an Envelope. A nil payload produces an
// envelope with no data field.
func NewEnvelope(event string, v interface{}) (Envelope, error) {
	if v == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, ErrInvalidPayload
	}
	return Envelope{Event: event, Data: data}, nil
}

// JoinRoomRequest is the join_room payload.
type JoinRoomRequest struct {
	RoomID    string `json:"roomId"`
	IsTeacher bool   `json:"isTeacher"`
	Username  string `json:"username"`
}

// ValidateRoomRequest is the validate_room payload.
type ValidateRoomRequest struct {
	RoomID string `json:"roomId"`
}

// RoomJoined acknowledges a successful join.
type RoomJoined struct {
	RoomID    string `json:"roomId"`
	IsTeacher bool   `json:"isTeacher"`
}

// RoomValidation answers a validate_room probe or rejects a student join.
type RoomValidation struct {
	Valid bool `json:"valid"`
}

// UserInfo is one entry of the user_list broadcast.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// RoomSummary describes a live room for the ops API.
type RoomSummary struct {
	RoomID       string `json:"room_id"`
	TeacherID    string `json:"teacher_id"`
	StudentCount int    `json:"student_count"`
}
