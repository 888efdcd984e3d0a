package types

import (
	"strings"
	"testing"
)

func TestIsInboundEvent(t *testing.T) {
	testCases := []struct {
		event    string
		expected bool
	}{
		{EventValidateRoom, true},
		{EventJoinRoom, true},
		{EventUserJoin, true},
		{EventDraw, true},
		{EventDeleteStroke, true},
		{EventClear, true},
		{EventMoveElement, true},
		{EventDeleteElement, true},
		{EventAddImage, true},
		{EventRoomJoined, false},
		{EventUserList, false},
		{"", false},
		{"shout", false},
	}

	for _, tc := range testCases {
		t.Run(tc.event, func(t *testing.T) {
			if got := IsInboundEvent(tc.event); got != tc.expected {
				t.Errorf("IsInboundEvent(%q) = %v, want %v", tc.event, got, tc.expected)
			}
		})
	}
}

func TestIsDrawingEvent(t *testing.T) {
	drawing := []string{EventDraw, EventDeleteStroke, EventClear, EventMoveElement, EventDeleteElement, EventAddImage}
	for _, event := range drawing {
		if !IsDrawingEvent(event) {
			t.Errorf("expected %q to be a drawing event", event)
		}
	}

	membership := []string{EventValidateRoom, EventJoinRoom, EventUserJoin, EventTeacherDisconnected}
	for _, event := range membership {
		if IsDrawingEvent(event) {
			t.Errorf("did not expect %q to be a drawing event", event)
		}
	}
}

func TestIsValidRoomID(t *testing.T) {
	if IsValidRoomID("") {
		t.Error("empty room ID should be invalid")
	}
	if !IsValidRoomID("AB12CD") {
		t.Error("generated-style room ID should be valid")
	}
	if !IsValidRoomID("my classroom") {
		t.Error("teacher-chosen free-form room ID should be valid")
	}
	if IsValidRoomID(strings.Repeat("x", 65)) {
		t.Error("oversized room ID should be invalid")
	}
}

func TestIsValidUsername(t *testing.T) {
	if IsValidUsername("") {
		t.Error("empty username should be invalid")
	}
	if !IsValidUsername("alice") {
		t.Error("plain username should be valid")
	}
	if IsValidUsername(strings.Repeat("a", 51)) {
		t.Error("oversized username should be invalid")
	}
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(EventTeacherDisconnected, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Event != EventTeacherDisconnected {
		t.Errorf("expected event %q, got %q", EventTeacherDisconnected, env.Event)
	}
	if env.Data != nil {
		t.Errorf("expected no data for nil payload, got %s", env.Data)
	}

	env, err = NewEnvelope(EventRoomValidation, RoomValidation{Valid: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(env.Data) != `{"valid":false}` {
		t.Errorf("unexpected payload: %s", env.Data)
	}
}
