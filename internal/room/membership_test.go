package room

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"chalkboard/internal/registry"
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

func (c *fakeConn) lastEvent(t *testing.T) types.Envelope {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("expected a reply, got none")
	}
	return c.sent[len(c.sent)-1]
}

type recordedActivity struct {
	kind   string
	roomID string
	connID string
}

type fakeRecorder struct {
	entries []recordedActivity
}

func (r *fakeRecorder) RecordActivity(kind, roomID, connID string) {
	r.entries = append(r.entries, recordedActivity{kind, roomID, connID})
}

func newTestMembership() (*Membership, *Directory, *registry.Registry, *fakeRecorder) {
	directory := NewDirectory()
	reg := registry.NewRegistry()
	recorder := &fakeRecorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMembership(directory, reg, recorder, log), directory, reg, recorder
}

func join(m *Membership, conn *fakeConn, roomID string, isTeacher bool, username string) {
	m.HandleJoin(conn, types.JoinRoomRequest{RoomID: roomID, IsTeacher: isTeacher, Username: username})
}

func TestTeacherJoinCreatesRoom(t *testing.T) {
	m, directory, reg, _ := newTestMembership()
	teacher := &fakeConn{id: "t1"}
	_ = reg.Register(teacher)

	join(m, teacher, "AB12CD", true, "ms-frizzle")

	env := teacher.lastEvent(t)
	if env.Event != types.EventRoomJoined {
		t.Fatalf("expected room_joined, got %q", env.Event)
	}
	var reply types.RoomJoined
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if reply.RoomID != "AB12CD" || !reply.IsTeacher {
		t.Errorf("unexpected reply: %+v", reply)
	}

	if !directory.IsValidForStudent("AB12CD") {
		t.Error("room should be valid immediately after teacher join")
	}
	if roomID, ok := reg.RoomOf("t1"); !ok || roomID != "AB12CD" {
		t.Errorf("expected teacher's current room to be AB12CD, got %q %v", roomID, ok)
	}
	if reg.Username("t1") != "ms-frizzle" {
		t.Errorf("expected username from join payload, got %q", reg.Username("t1"))
	}
}

func TestTeacherJoinGeneratesRoomID(t *testing.T) {
	m, _, reg, _ := newTestMembership()
	teacher := &fakeConn{id: "t1"}
	_ = reg.Register(teacher)

	join(m, teacher, "", true, "")

	env := teacher.lastEvent(t)
	if env.Event != types.EventRoomJoined {
		t.Fatalf("expected room_joined, got %q", env.Event)
	}
	var reply types.RoomJoined
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if len(reply.RoomID) != 6 {
		t.Errorf("expected generated 6-character room ID, got %q", reply.RoomID)
	}
}

func TestStudentJoinInvalidRoom(t *testing.T) {
	m, directory, reg, _ := newTestMembership()
	student := &fakeConn{id: "s1"}
	_ = reg.Register(student)

	join(m, student, "ZZ99ZZ", false, "bob")

	env := student.lastEvent(t)
	if env.Event != types.EventRoomValidation {
		t.Fatalf("expected room_validation, got %q", env.Event)
	}
	var reply types.RoomValidation
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if reply.Valid {
		t.Error("expected valid=false for room with no teacher")
	}

	if directory.Count() != 0 {
		t.Error("failed student join must not create the room")
	}
	if _, ok := reg.RoomOf("s1"); ok {
		t.Error("student must remain unjoined after rejection")
	}
}

func TestStudentJoinValidRoom(t *testing.T) {
	m, directory, reg, recorder := newTestMembership()
	teacher := &fakeConn{id: "t1"}
	student := &fakeConn{id: "s1"}
	_ = reg.Register(teacher)
	_ = reg.Register(student)

	join(m, teacher, "AB12CD", true, "")
	join(m, student, "AB12CD", false, "alice")

	env := student.lastEvent(t)
	if env.Event != types.EventRoomJoined {
		t.Fatalf("expected room_joined, got %q", env.Event)
	}
	var reply types.RoomJoined
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if reply.RoomID != "AB12CD" || reply.IsTeacher {
		t.Errorf("unexpected reply: %+v", reply)
	}

	if roomID, ok := reg.RoomOf("s1"); !ok || roomID != "AB12CD" {
		t.Errorf("expected student's current room to be AB12CD, got %q %v", roomID, ok)
	}
	if got := len(directory.Members("AB12CD")); got != 2 {
		t.Errorf("expected teacher + student in room, got %d", got)
	}

	var kinds []string
	for _, e := range recorder.entries {
		kinds = append(kinds, e.kind)
	}
	if len(kinds) != 2 || kinds[0] != "room_created" || kinds[1] != "student_joined" {
		t.Errorf("unexpected activity sequence: %v", kinds)
	}
}

func TestRejoinReplacesMembership(t *testing.T) {
	m, directory, reg, _ := newTestMembership()
	t1 := &fakeConn{id: "t1"}
	t2 := &fakeConn{id: "t2"}
	student := &fakeConn{id: "s1"}
	_ = reg.Register(t1)
	_ = reg.Register(t2)
	_ = reg.Register(student)

	join(m, t1, "ROOM-A", true, "")
	join(m, t2, "ROOM-B", true, "")
	join(m, student, "ROOM-A", false, "")

	// Student moves rooms; the old room's student set must drop them.
	join(m, student, "ROOM-B", false, "")

	if got := len(directory.Members("ROOM-A")); got != 1 {
		t.Errorf("expected only the teacher left in ROOM-A, got %d members", got)
	}
	if roomID, _ := reg.RoomOf("s1"); roomID != "ROOM-B" {
		t.Errorf("expected student's current room to be ROOM-B, got %q", roomID)
	}
}

func TestRejectedRejoinLeavesStateUntouched(t *testing.T) {
	m, directory, reg, _ := newTestMembership()
	teacher := &fakeConn{id: "t1"}
	student := &fakeConn{id: "s1"}
	_ = reg.Register(teacher)
	_ = reg.Register(student)

	join(m, teacher, "ROOM-A", true, "")
	join(m, student, "ROOM-A", false, "")

	// A rejected move to a teacherless room must not evict the student
	// from the room they are still in.
	join(m, student, "NOPE", false, "")

	env := student.lastEvent(t)
	if env.Event != types.EventRoomValidation {
		t.Fatalf("expected room_validation, got %q", env.Event)
	}

	if roomID, ok := reg.RoomOf("s1"); !ok || roomID != "ROOM-A" {
		t.Errorf("expected student to still be in ROOM-A, got %q %v", roomID, ok)
	}
	if got := len(directory.Members("ROOM-A")); got != 2 {
		t.Errorf("expected teacher + student still in ROOM-A, got %d members", got)
	}
}

func TestTeacherRejoinTearsDownOldRoom(t *testing.T) {
	m, directory, reg, recorder := newTestMembership()
	teacher := &fakeConn{id: "t1"}
	student := &fakeConn{id: "s1"}
	_ = reg.Register(teacher)
	_ = reg.Register(student)

	join(m, teacher, "ROOM-A", true, "")
	join(m, student, "ROOM-A", false, "")

	// The teacher moves on; their old room cannot outlive them.
	join(m, teacher, "ROOM-B", true, "")

	if directory.IsValidForStudent("ROOM-A") {
		t.Error("expected ROOM-A to be torn down after its teacher moved")
	}
	if directory.Count() != 1 {
		t.Errorf("expected only ROOM-B to remain, got %d rooms", directory.Count())
	}
	if roomID, _ := reg.RoomOf("t1"); roomID != "ROOM-B" {
		t.Errorf("expected teacher's current room to be ROOM-B, got %q", roomID)
	}

	env := student.lastEvent(t)
	if env.Event != types.EventTeacherDisconnected {
		t.Fatalf("expected teacher_disconnected for the stranded student, got %q", env.Event)
	}
	if _, ok := reg.RoomOf("s1"); ok {
		t.Error("expected stranded student to be roomless after teardown")
	}

	last := recorder.entries[len(recorder.entries)-1]
	if last.kind != "room_closed" || last.roomID != "ROOM-A" {
		t.Errorf("expected room_closed for ROOM-A, got %+v", last)
	}

	// A later disconnect finds exactly the one room the teacher now runs.
	removal, ok := directory.RemoveConnection("t1")
	if !ok || removal.RoomID != "ROOM-B" || !removal.WasTeacher {
		t.Errorf("expected disconnect to remove ROOM-B, got %+v %v", removal, ok)
	}
	if directory.Count() != 0 {
		t.Errorf("expected no rooms after disconnect, got %d", directory.Count())
	}
}

func TestValidateProbe(t *testing.T) {
	m, _, reg, _ := newTestMembership()
	teacher := &fakeConn{id: "t1"}
	probe := &fakeConn{id: "p1"}
	_ = reg.Register(teacher)
	_ = reg.Register(probe)

	m.HandleValidate(probe, "AB12CD")
	var reply types.RoomValidation
	if err := json.Unmarshal(probe.lastEvent(t).Data, &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if reply.Valid {
		t.Error("expected valid=false before any teacher join")
	}

	join(m, teacher, "AB12CD", true, "")

	m.HandleValidate(probe, "AB12CD")
	if err := json.Unmarshal(probe.lastEvent(t).Data, &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if !reply.Valid {
		t.Error("expected valid=true after teacher join")
	}

	// The probe is advisory only and must not mutate membership.
	if _, ok := reg.RoomOf("p1"); ok {
		t.Error("validate_room must not join the prober to the room")
	}
}
