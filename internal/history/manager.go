// Package history keeps a sqlite audit log of room lifecycle events:
// rooms created and closed, students joining and leaving. Drawing payloads
// are never stored. Writes go through a single goroutine, which is the
// safe way to drive sqlite under concurrency, and recording is
// fire-and-forget so the hub loop never blocks on disk.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ActivityEntry is one audit log row.
type ActivityEntry struct {
	Kind       string    `json:"kind"`
	RoomID     string    `json:"room_id"`
	ConnID     string    `json:"conn_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Manager owns the sqlite handle and the single-writer loop.
type Manager struct {
	db       *sql.DB
	writeCh  chan ActivityEntry
	shutdown chan struct{}
	wg       sync.WaitGroup
	closed   bool
	mu       sync.RWMutex
	log      *slog.Logger
}

// NewManager opens (or creates) the activity database and starts the
// writer loop.
func NewManager(path string, log *slog.Logger) (*Manager, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open activity database: %w", err)
	}

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	m := &Manager{
		db:       db,
		writeCh:  make(chan ActivityEntry, 256),
		shutdown: make(chan struct{}),
		log:      log,
	}

	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

// RecordActivity queues one audit row. Never blocks: if the queue is full
// the row is dropped, which is acceptable for an advisory log.
func (m *Manager) RecordActivity(kind, roomID, connID string) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return
	}
	m.mu.RUnlock()

	entry := ActivityEntry{
		Kind:       kind,
		RoomID:     roomID,
		ConnID:     connID,
		RecordedAt: time.Now(),
	}

	select {
	case m.writeCh <- entry:
	default:
		m.log.Warn("activity log queue full, dropping entry", "kind", kind, "room", roomID)
	}
}

// writeLoop persists queued rows one at a time.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case entry := <-m.writeCh:
			if err := m.insert(entry); err != nil {
				m.log.Error("failed to persist activity entry", "kind", entry.Kind, "room", entry.RoomID, "err", err)
			}
		case <-m.shutdown:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case entry := <-m.writeCh:
					if err := m.insert(entry); err != nil {
						m.log.Error("failed to persist activity entry", "kind", entry.Kind, "room", entry.RoomID, "err", err)
					}
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) insert(entry ActivityEntry) error {
	_, err := m.db.Exec(
		`INSERT INTO room_activity (kind, room_id, conn_id, recorded_at) VALUES (?, ?, ?, ?)`,
		entry.Kind, entry.RoomID, entry.ConnID, entry.RecordedAt,
	)
	return err
}

// GetRoomActivity returns the audit rows for one room in chronological
// order. Reads run concurrently with the writer loop.
func (m *Manager) GetRoomActivity(ctx context.Context, roomID string) ([]ActivityEntry, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT kind, room_id, conn_id, recorded_at
		 FROM room_activity
		 WHERE room_id = ?
		 ORDER BY recorded_at ASC, id ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query room activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.Kind, &e.RoomID, &e.ConnID, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return entries, nil
}

// HealthCheck validates database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("activity database ping failed: %w", err)
	}
	return nil
}

// Close stops the writer loop and closes the database. Queued rows are
// flushed first.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close activity database: %w", err)
	}
	return nil
}
