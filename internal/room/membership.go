package room

import (
	"log/slog"

	"chalkboard/internal/registry"
	"chalkboard/pkg/interfaces"
	"chalkboard/pkg/metrics"
	"chalkboard/pkg/types"
)

// Membership validates and executes join transitions against the directory
// and keeps the registry's connection→room lookup in step. Replies go back
// to the requesting connection only; there is nothing to escalate.
type Membership struct {
	directory *Directory
	registry  *registry.Registry
	history   interfaces.ActivityRecorder
	log       *slog.Logger
}

// NewMembership creates the membership protocol. history may be nil when
// activity logging is disabled.
func NewMembership(directory *Directory, reg *registry.Registry, history interfaces.ActivityRecorder, log *slog.Logger) *Membership {
	return &Membership{
		directory: directory,
		registry:  reg,
		history:   history,
		log:       log,
	}
}

// HandleJoin executes a join_room request for the given connection.
//
// A teacher join always succeeds: the room is created on first join and a
// later teacher join overwrites the teacher identity (last writer wins). A
// student join is gated on the room already having a teacher; rejection is
// reported to the requester as room_validation{valid:false} and the room is
// not created as a side effect.
func (m *Membership) HandleJoin(conn interfaces.Conn, req types.JoinRoomRequest) {
	connID := conn.ID()

	// A teacher joining without a room ID gets a generated one; a student
	// has nothing to join.
	if req.RoomID == "" && req.IsTeacher {
		req.RoomID = GenerateRoomID()
	}
	if !types.IsValidRoomID(req.RoomID) {
		m.reply(conn, types.EventRoomValidation, types.RoomValidation{Valid: false})
		return
	}

	// A second join from the same connection replaces its prior
	// membership, but only once the new join has committed: a rejected
	// join must leave every piece of state untouched.
	prevRoom, hadPrev := m.registry.RoomOf(connID)

	var joined bool
	if req.IsTeacher {
		m.joinAsTeacher(conn, req.RoomID)
		joined = true
	} else {
		joined = m.joinAsStudent(conn, req.RoomID)
	}
	if !joined {
		return
	}

	if req.Username != "" {
		m.registry.SetUsername(connID, req.Username)
	}

	if hadPrev && prevRoom != req.RoomID {
		m.leaveRoom(prevRoom, connID)
	}
}

// leaveRoom evicts the connection from the room it occupied before a
// replacing join. A departing student just shrinks the set; a departing
// teacher ends the room the same way a disconnect would, so no room is left
// behind with a teacher who moved on.
func (m *Membership) leaveRoom(roomID, connID string) {
	removal, ok := m.directory.RemoveFromRoom(roomID, connID)
	if !ok {
		return
	}

	if !removal.WasTeacher {
		if m.history != nil {
			m.history.RecordActivity(interfaces.ActivityStudentLeft, roomID, connID)
		}
		return
	}

	env, err := types.NewEnvelope(types.EventTeacherDisconnected, nil)
	if err != nil {
		return
	}
	for _, memberID := range removal.Remaining {
		m.registry.ClearRoom(memberID)
		member, ok := m.registry.Get(memberID)
		if !ok {
			continue
		}
		if err := member.WriteJSON(env); err != nil {
			m.log.Debug("failed to notify member of teardown", "room", roomID, "conn", memberID, "err", err)
		}
	}

	if m.history != nil {
		m.history.RecordActivity(interfaces.ActivityRoomClosed, roomID, connID)
	}
	metrics.RoomsActive.Dec()
	m.log.Info("room torn down after teacher moved", "room", roomID, "notified", len(removal.Remaining))
}

// HandleValidate answers a validate_room probe. Advisory only: a later
// join_room re-validates independently, so the room can vanish between the
// probe and the join.
func (m *Membership) HandleValidate(conn interfaces.Conn, roomID string) {
	valid := m.directory.IsValidForStudent(roomID)
	m.reply(conn, types.EventRoomValidation, types.RoomValidation{Valid: valid})
}

func (m *Membership) joinAsTeacher(conn interfaces.Conn, roomID string) {
	connID := conn.ID()

	existed := m.directory.IsValidForStudent(roomID)
	m.directory.CreateOrGetAsTeacher(roomID, connID)
	m.registry.SetRoom(connID, roomID)

	if m.history != nil {
		if existed {
			m.history.RecordActivity(interfaces.ActivityTeacherReplaced, roomID, connID)
		} else {
			m.history.RecordActivity(interfaces.ActivityRoomCreated, roomID, connID)
		}
	}
	if !existed {
		metrics.RoomsActive.Inc()
	}

	m.log.Info("teacher joined room", "room", roomID, "conn", connID, "existed", existed)
	m.reply(conn, types.EventRoomJoined, types.RoomJoined{RoomID: roomID, IsTeacher: true})
}

func (m *Membership) joinAsStudent(conn interfaces.Conn, roomID string) bool {
	connID := conn.ID()

	if !m.directory.IsValidForStudent(roomID) {
		metrics.JoinsRejected.Inc()
		m.log.Debug("student join rejected", "room", roomID, "conn", connID)
		m.reply(conn, types.EventRoomValidation, types.RoomValidation{Valid: false})
		return false
	}

	m.directory.AddStudent(roomID, connID)
	m.registry.SetRoom(connID, roomID)

	if m.history != nil {
		m.history.RecordActivity(interfaces.ActivityStudentJoined, roomID, connID)
	}

	m.log.Info("student joined room", "room", roomID, "conn", connID)
	m.reply(conn, types.EventRoomJoined, types.RoomJoined{RoomID: roomID, IsTeacher: false})
	return true
}

// reply sends an envelope to the requesting connection. Delivery is
// best-effort; a failed write is the disconnect path's problem.
func (m *Membership) reply(conn interfaces.Conn, event string, payload interface{}) {
	env, err := types.NewEnvelope(event, payload)
	if err != nil {
		m.log.Error("failed to build reply envelope", "event", event, "err", err)
		return
	}
	if err := conn.WriteJSON(env); err != nil {
		m.log.Debug("failed to deliver reply", "event", event, "conn", conn.ID(), "err", err)
	}
}
