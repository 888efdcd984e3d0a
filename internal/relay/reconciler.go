package relay

import (
	"log/slog"

	"chalkboard/internal/registry"
	"chalkboard/internal/room"
	"chalkboard/pkg/interfaces"
	"chalkboard/pkg/metrics"
	"chalkboard/pkg/types"
)

// Reconciler walks the directory when a transport closes: it evicts the
// departed identity and, for a teacher, tears the room down and notifies
// the members left behind. Fire-and-forget; no retries.
type Reconciler struct {
	directory *room.Directory
	registry  *registry.Registry
	history   interfaces.ActivityRecorder
	log       *slog.Logger
}

// NewReconciler creates a disconnect reconciler. history may be nil.
func NewReconciler(directory *room.Directory, reg *registry.Registry, history interfaces.ActivityRecorder, log *slog.Logger) *Reconciler {
	return &Reconciler{
		directory: directory,
		registry:  reg,
		history:   history,
		log:       log,
	}
}

// ConnectionClosed handles a transport close for connID. Idempotent:
// running it again for an already-removed connection does nothing and
// sends no duplicate notifications.
func (rc *Reconciler) ConnectionClosed(connID string) {
	removal, ok := rc.directory.RemoveConnection(connID)
	if ok {
		if removal.WasTeacher {
			rc.teardownRoom(connID, removal)
		} else {
			// Students leave silently; peers are not told.
			if rc.history != nil {
				rc.history.RecordActivity(interfaces.ActivityStudentLeft, removal.RoomID, connID)
			}
			rc.log.Debug("student disconnected", "room", removal.RoomID, "conn", connID)
		}
	}

	rc.registry.Unregister(connID)
}

// teardownRoom finishes a teacher removal: the room is already gone from
// the directory, so notify whoever was left and clear their room state.
func (rc *Reconciler) teardownRoom(teacherID string, removal room.Removal) {
	env, err := types.NewEnvelope(types.EventTeacherDisconnected, nil)
	if err != nil {
		return
	}

	for _, memberID := range removal.Remaining {
		rc.registry.ClearRoom(memberID)
		conn, ok := rc.registry.Get(memberID)
		if !ok {
			continue
		}
		if err := conn.WriteJSON(env); err != nil {
			rc.log.Debug("failed to notify member of teardown", "room", removal.RoomID, "conn", memberID, "err", err)
		}
	}

	if rc.history != nil {
		rc.history.RecordActivity(interfaces.ActivityRoomClosed, removal.RoomID, teacherID)
	}
	metrics.RoomsActive.Dec()
	metrics.TeacherTeardowns.Inc()
	rc.log.Info("room torn down after teacher disconnect", "room", removal.RoomID, "notified", len(removal.Remaining))
}
