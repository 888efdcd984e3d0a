package interfaces

// Activity log event kinds.
const (
	ActivityRoomCreated     = "room_created"
	ActivityRoomClosed      = "room_closed"
	ActivityStudentJoined   = "student_joined"
	ActivityStudentLeft     = "student_left"
	ActivityTeacherReplaced = "teacher_replaced"
)

// ActivityRecorder receives room lifecycle events for auditing. Recording
// is fire-and-forget: implementations must never block the caller.
type ActivityRecorder interface {
	RecordActivity(kind, roomID, connID string)
}
