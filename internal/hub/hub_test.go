package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"chalkboard/pkg/types"
)

// fakeConn records every envelope written to it.
type fakeConn struct {
	id   string
	sent []types.Envelope
}

func (c *fakeConn) ID() string { return c.id }
func (c *fakeConn) WriteJSON(v interface{}) error {
	env, ok := v.(types.Envelope)
	if !ok {
		return nil
	}
	c.sent = append(c.sent, env)
	return nil
}
func (c *fakeConn) Close() error { return nil }

func newTestHub() *Hub {
	return NewHub(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// submit drives the hub's handlers synchronously, the same code path the
// run loop takes, without racing the test against the loop goroutine.
func submit(h *Hub, senderID, event string, payload string) {
	env := types.Envelope{Event: event}
	if payload != "" {
		env.Data = json.RawMessage(payload)
	}
	h.handleInbound(inbound{senderID: senderID, env: env})
}

func countEvents(conn *fakeConn, event string) int {
	n := 0
	for _, env := range conn.sent {
		if env.Event == event {
			n++
		}
	}
	return n
}

func TestHubLifecycle(t *testing.T) {
	h := newTestHub()

	if err := h.Stop(); err != ErrHubNotRunning {
		t.Errorf("expected ErrHubNotRunning before start, got %v", err)
	}
	if err := h.Submit("x", types.Envelope{Event: types.EventClear}); err != ErrHubNotRunning {
		t.Errorf("expected ErrHubNotRunning for submit before start, got %v", err)
	}

	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := h.Start(ctx); err != ErrHubAlreadyRunning {
		t.Errorf("expected ErrHubAlreadyRunning on second start, got %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Errorf("unexpected stop error: %v", err)
	}
}

func TestUserJoinBroadcastsUserList(t *testing.T) {
	h := newTestHub()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}
	h.handleRegister(c1)
	h.handleRegister(c2)

	submit(h, "c1", types.EventUserJoin, `"alice"`)

	for _, conn := range []*fakeConn{c1, c2} {
		if got := countEvents(conn, types.EventUserList); got != 1 {
			t.Fatalf("expected one user_list on %s, got %d", conn.id, got)
		}
	}

	var users []types.UserInfo
	if err := json.Unmarshal(c2.sent[len(c2.sent)-1].Data, &users); err != nil {
		t.Fatalf("failed to decode user_list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	byID := make(map[string]string)
	for _, u := range users {
		byID[u.ID] = u.Username
	}
	if byID["c1"] != "alice" {
		t.Errorf("expected alice for c1, got %q", byID["c1"])
	}
}

func TestUserJoinRejectsNonStringPayload(t *testing.T) {
	h := newTestHub()
	c1 := &fakeConn{id: "c1"}
	h.handleRegister(c1)

	// user_join carries a bare JSON string; an object payload is dropped.
	submit(h, "c1", types.EventUserJoin, `{"username":"alice"}`)

	if got := countEvents(c1, types.EventUserList); got != 0 {
		t.Errorf("expected no user_list for malformed user_join, got %d", got)
	}
}

func TestInboundFromUnknownSenderDropped(t *testing.T) {
	h := newTestHub()
	submit(h, "ghost", types.EventJoinRoom, `{"roomId":"AB12CD","isTeacher":true}`)

	if h.directory.Count() != 0 {
		t.Error("event from unregistered sender must not mutate the directory")
	}
}

// TestClassroomScenario walks the full worked example: a teacher creates a
// room, one student joins, another is rejected, a draw fans out to the
// member only, and the teacher's disconnect tears everything down.
func TestClassroomScenario(t *testing.T) {
	h := newTestHub()
	teacher := &fakeConn{id: "T"}
	s1 := &fakeConn{id: "S1"}
	s2 := &fakeConn{id: "S2"}
	for _, c := range []*fakeConn{teacher, s1, s2} {
		h.handleRegister(c)
	}

	// Teacher creates the room.
	submit(h, "T", types.EventJoinRoom, `{"roomId":"AB12CD","isTeacher":true,"username":"teach"}`)
	if got := countEvents(teacher, types.EventRoomJoined); got != 1 {
		t.Fatalf("expected room_joined for teacher, got %d", got)
	}

	// S1 joins; S2 tries a room that was never created.
	submit(h, "S1", types.EventJoinRoom, `{"roomId":"AB12CD","isTeacher":false,"username":"alice"}`)
	submit(h, "S2", types.EventJoinRoom, `{"roomId":"ZZ99ZZ","isTeacher":false,"username":"bob"}`)

	if got := countEvents(s1, types.EventRoomJoined); got != 1 {
		t.Fatalf("expected room_joined for S1, got %d", got)
	}
	if got := countEvents(s2, types.EventRoomValidation); got != 1 {
		t.Fatalf("expected room_validation rejection for S2, got %d", got)
	}

	// Teacher draws: S1 receives it with the sender appended, S2 nothing.
	submit(h, "T", types.EventDraw, `{"type":"stroke","points":[[0,0],[1,1]]}`)
	if got := countEvents(s1, types.EventDraw); got != 1 {
		t.Fatalf("expected one draw at S1, got %d", got)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(s1.sent[len(s1.sent)-1].Data, &fields); err != nil {
		t.Fatalf("failed to decode draw payload: %v", err)
	}
	if fields["userId"] != "T" {
		t.Errorf("expected userId T on relayed draw, got %v", fields["userId"])
	}
	if got := countEvents(s2, types.EventDraw); got != 0 {
		t.Errorf("expected no draw at S2, got %d", got)
	}
	if got := countEvents(teacher, types.EventDraw); got != 0 {
		t.Errorf("sender must not receive its own draw, got %d", got)
	}

	// Teacher drops: S1 is told, the room is gone, and a rejoin attempt
	// treats the room as never created.
	h.handleUnregister("T")
	if got := countEvents(s1, types.EventTeacherDisconnected); got != 1 {
		t.Fatalf("expected one teacher_disconnected at S1, got %d", got)
	}
	if h.directory.IsValidForStudent("AB12CD") {
		t.Error("room must be gone after teacher disconnect")
	}

	submit(h, "S1", types.EventJoinRoom, `{"roomId":"AB12CD","isTeacher":false}`)
	if got := countEvents(s1, types.EventRoomValidation); got != 1 {
		t.Errorf("expected rejection when rejoining the torn-down room, got %d", got)
	}
}

func TestStats(t *testing.T) {
	h := newTestHub()
	h.handleRegister(&fakeConn{id: "c1"})
	submit(h, "c1", types.EventJoinRoom, `{"roomId":"AB12CD","isTeacher":true}`)

	stats := h.Stats()
	if stats["connections"] != 1 {
		t.Errorf("expected 1 connection, got %d", stats["connections"])
	}
	if stats["rooms"] != 1 {
		t.Errorf("expected 1 room, got %d", stats["rooms"])
	}

	summaries := h.RoomSummaries()
	if len(summaries) != 1 || summaries[0].RoomID != "AB12CD" || summaries[0].TeacherID != "c1" {
		t.Errorf("unexpected summaries: %+v", summaries)
	}
}
