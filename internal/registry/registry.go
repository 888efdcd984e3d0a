// Package registry tracks live connections and their ephemeral identity:
// connection ID, optional username, and current room. It is bookkeeping
// only; membership rules live in the room package.
package registry

import (
	"sync"

	"chalkboard/pkg/interfaces"
	"chalkboard/pkg/types"
)

// entry holds the per-connection state owned by the registry. It exists
// only while the transport is open; nothing carries over between sessions.
type entry struct {
	conn     interfaces.Conn
	username string
	roomID   string
}

// Registry is an instance-owned connection table. All mutation is funneled
// through the hub goroutine; the RWMutex covers concurrent reads from the
// ops API and metrics.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*entry),
	}
}

// Register adds a connection under its ID. A nil connection is rejected;
// everything else always succeeds.
func (r *Registry) Register(conn interfaces.Conn) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[conn.ID()] = &entry{conn: conn}
	return nil
}

// Unregister removes a connection. Idempotent: unknown or already removed
// IDs are silent no-ops.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, connID)
}

// Get returns the transport for a connection ID.
func (r *Registry) Get(connID string) (interfaces.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// SetUsername records the display name sent via user_join. Unknown IDs are
// silent no-ops.
func (r *Registry) SetUsername(connID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.conns[connID]; ok {
		e.username = username
	}
}

// Username returns the display name for a connection, empty if unset.
func (r *Registry) Username(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.conns[connID]; ok {
		return e.username
	}
	return ""
}

// SetRoom records the connection's current room after a successful join.
func (r *Registry) SetRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.conns[connID]; ok {
		e.roomID = roomID
	}
}

// ClearRoom marks a connection as roomless.
func (r *Registry) ClearRoom(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.conns[connID]; ok {
		e.roomID = ""
	}
}

// RoomOf returns the sender's current room, re-derived at call time so a
// connection that left between join and event is treated as roomless.
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok || e.roomID == "" {
		return "", false
	}
	return e.roomID, true
}

// All returns every live transport, for broadcast delivery.
func (r *Registry) All() []interfaces.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]interfaces.Conn, 0, len(r.conns))
	for _, e := range r.conns {
		conns = append(conns, e.conn)
	}
	return conns
}

// Users returns the id/username pairs for the user_list broadcast.
func (r *Registry) Users() []types.UserInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]types.UserInfo, 0, len(r.conns))
	for id, e := range r.conns {
		users = append(users, types.UserInfo{ID: id, Username: e.username})
	}
	return users
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
