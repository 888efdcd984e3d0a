// Package room implements the room directory and the join/leave membership
// protocol: one teacher per room, students gated on teacher presence, room
// lifetime bound to its teacher.
package room

import (
	"math/rand/v2"
	"sync"

	"chalkboard/pkg/types"
)

// Room is a named collaboration session. It exists in the directory only
// once a teacher has created it; rooms are never pre-created.
type Room struct {
	ID        string
	TeacherID string
	Students  map[string]struct{}
}

// Directory maps room IDs to room state. All mutation is funneled through
// the hub goroutine; the RWMutex covers reads from the ops API.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// Removal reports the outcome of evicting a connection from the directory.
type Removal struct {
	RoomID     string
	WasTeacher bool
	// Remaining lists the members left behind when a teacher removal
	// deletes the room; they are the audience for teacher_disconnected.
	Remaining []string
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		rooms: make(map[string]*Room),
	}
}

// CreateOrGetAsTeacher creates the room if absent, otherwise overwrites the
// teacher identity (last writer wins). Always succeeds.
func (d *Directory) CreateOrGetAsTeacher(roomID, connID string) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	rm, ok := d.rooms[roomID]
	if !ok {
		rm = &Room{
			ID:       roomID,
			Students: make(map[string]struct{}),
		}
		d.rooms[roomID] = rm
	}
	rm.TeacherID = connID
	return rm
}

// IsValidForStudent reports whether the room exists with a teacher present.
func (d *Directory) IsValidForStudent(roomID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rm, ok := d.rooms[roomID]
	return ok && rm.TeacherID != ""
}

// AddStudent inserts the connection into the room's student set. Silent
// no-op if the room is invalid; set semantics make the insert idempotent.
func (d *Directory) AddStudent(roomID, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rm, ok := d.rooms[roomID]
	if !ok || rm.TeacherID == "" {
		return
	}
	rm.Students[connID] = struct{}{}
}

// RemoveConnection scans all rooms for the connection. A teacher match
// deletes the room entirely and reports the members left behind; a student
// match shrinks that room's set. At most one room is affected.
//
// The scan is linear over rooms, which is fine at the expected scale of
// tens to hundreds of concurrent rooms.
func (d *Directory) RemoveConnection(connID string) (Removal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for roomID, rm := range d.rooms {
		if rm.TeacherID == connID {
			remaining := make([]string, 0, len(rm.Students))
			for studentID := range rm.Students {
				remaining = append(remaining, studentID)
			}
			delete(d.rooms, roomID)
			return Removal{RoomID: roomID, WasTeacher: true, Remaining: remaining}, true
		}
	}

	for roomID, rm := range d.rooms {
		if _, ok := rm.Students[connID]; ok {
			delete(rm.Students, connID)
			return Removal{RoomID: roomID, WasTeacher: false}, true
		}
	}

	return Removal{}, false
}

// RemoveFromRoom evicts the connection from one specific room. Like
// RemoveConnection, a teacher match deletes the room and reports the members
// left behind. Used when a join replaces the connection's prior membership,
// where a full scan could hit the room just joined instead of the old one.
func (d *Directory) RemoveFromRoom(roomID, connID string) (Removal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rm, ok := d.rooms[roomID]
	if !ok {
		return Removal{}, false
	}

	if rm.TeacherID == connID {
		remaining := make([]string, 0, len(rm.Students))
		for studentID := range rm.Students {
			remaining = append(remaining, studentID)
		}
		delete(d.rooms, roomID)
		return Removal{RoomID: roomID, WasTeacher: true, Remaining: remaining}, true
	}

	if _, ok := rm.Students[connID]; ok {
		delete(rm.Students, connID)
		return Removal{RoomID: roomID, WasTeacher: false}, true
	}

	return Removal{}, false
}

// Members returns every connection currently in the room, teacher included.
// An unknown room yields nil, which the relay treats as an empty audience.
func (d *Directory) Members(roomID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rm, ok := d.rooms[roomID]
	if !ok {
		return nil
	}

	members := make([]string, 0, len(rm.Students)+1)
	if rm.TeacherID != "" {
		members = append(members, rm.TeacherID)
	}
	for studentID := range rm.Students {
		members = append(members, studentID)
	}
	return members
}

// Summaries returns a snapshot of every room for the ops API.
func (d *Directory) Summaries() []types.RoomSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()

	summaries := make([]types.RoomSummary, 0, len(d.rooms))
	for _, rm := range d.rooms {
		summaries = append(summaries, types.RoomSummary{
			RoomID:       rm.ID,
			TeacherID:    rm.TeacherID,
			StudentCount: len(rm.Students),
		})
	}
	return summaries
}

// Count returns the number of live rooms.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.rooms)
}

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRoomID produces a 6-character uppercase-alphanumeric room ID.
// Uniqueness is not enforced here; a collision simply lands the teacher in
// the existing room under last-writer-wins.
func GenerateRoomID() string {
	id := make([]byte, 6)
	for i := range id {
		id[i] = roomIDAlphabet[rand.IntN(len(roomIDAlphabet))]
	}
	return string(id)
}
