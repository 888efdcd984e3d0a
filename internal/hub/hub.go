// Package hub is the coordination point of the relay. Connection
// registration, membership transitions, event fan-out and disconnect
// reconciliation all run on one goroutine, so every directory mutation is
// atomic with respect to the others and events from a single connection
// are handled in arrival order.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"chalkboard/internal/registry"
	"chalkboard/internal/relay"
	"chalkboard/internal/room"
	"chalkboard/pkg/interfaces"
	"chalkboard/pkg/metrics"
	"chalkboard/pkg/types"
)

// inbound pairs an event envelope with its sender.
type inbound struct {
	senderID string
	env      types.Envelope
}

// Hub owns the relay's mutable state and processes all work on a single
// goroutine fed by buffered channels.
type Hub struct {
	inboundCh    chan inbound
	registerCh   chan interfaces.Conn
	unregisterCh chan string
	shutdownCh   chan struct{}

	registry   *registry.Registry
	directory  *room.Directory
	membership *room.Membership
	relay      *relay.Relay
	reconciler *relay.Reconciler
	log        *slog.Logger

	running bool
	mu      sync.RWMutex
}

// NewHub wires the hub with its components. history may be nil when the
// activity log is disabled.
func NewHub(history interfaces.ActivityRecorder, log *slog.Logger) *Hub {
	reg := registry.NewRegistry()
	directory := room.NewDirectory()

	return &Hub{
		// Buffer sizes follow classroom-burst sizing: drawing events
		// arrive in bursts, lifecycle events trickle.
		inboundCh:    make(chan inbound, 1000),
		registerCh:   make(chan interfaces.Conn, 100),
		unregisterCh: make(chan string, 100),
		shutdownCh:   make(chan struct{}),
		registry:     reg,
		directory:    directory,
		membership:   room.NewMembership(directory, reg, history, log),
		relay:        relay.NewRelay(reg, directory, log),
		reconciler:   relay.NewReconciler(directory, reg, history, log),
		log:          log,
	}
}

// Start begins hub processing.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	h.log.Info("starting hub")
	go h.run(ctx)
	return nil
}

// Stop shuts the hub down. Queued work that has not been processed yet is
// dropped, which matches the best-effort delivery contract.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdownCh:
	default:
		close(h.shutdownCh)
	}
	return nil
}

// Register queues a freshly opened connection.
func (h *Hub) Register(conn interfaces.Conn) error {
	if err := h.checkRunning(); err != nil {
		return err
	}
	select {
	case h.registerCh <- conn:
		return nil
	default:
		return ErrRegisterChannelFull
	}
}

// Unregister queues a transport close for reconciliation. Queuing the same
// ID twice is harmless; the reconciler is idempotent.
func (h *Hub) Unregister(connID string) error {
	if err := h.checkRunning(); err != nil {
		return err
	}
	select {
	case h.unregisterCh <- connID:
		return nil
	default:
		return ErrUnregisterChannelFull
	}
}

// Submit queues an inbound event from a connection. The per-connection
// read pump calls this sequentially, which preserves FIFO order per sender.
func (h *Hub) Submit(senderID string, env types.Envelope) error {
	if err := h.checkRunning(); err != nil {
		return err
	}
	select {
	case h.inboundCh <- inbound{senderID: senderID, env: env}:
		return nil
	default:
		return ErrInboundChannelFull
	}
}

// Stats reports live counts for the ops surface.
func (h *Hub) Stats() map[string]int {
	return map[string]int{
		"connections": h.registry.Count(),
		"rooms":       h.directory.Count(),
	}
}

// RoomSummaries snapshots the directory for the ops API.
func (h *Hub) RoomSummaries() []types.RoomSummary {
	return h.directory.Summaries()
}

func (h *Hub) checkRunning() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return ErrHubNotRunning
	}
	return nil
}

// run is the single processing loop. Handlers are short, synchronous
// computations over in-memory state; nothing here blocks on I/O beyond
// best-effort socket writes.
func (h *Hub) run(ctx context.Context) {
	defer h.log.Info("hub processing stopped")

	for {
		select {
		case msg := <-h.inboundCh:
			h.handleInbound(msg)
		case conn := <-h.registerCh:
			h.handleRegister(conn)
		case connID := <-h.unregisterCh:
			h.handleUnregister(connID)
		case <-h.shutdownCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleRegister(conn interfaces.Conn) {
	if conn == nil {
		return
	}
	if err := h.registry.Register(conn); err != nil {
		h.log.Error("connection registration failed", "err", err)
		return
	}
	metrics.ConnectionsActive.Inc()
	h.log.Debug("connection registered", "conn", conn.ID())
}

func (h *Hub) handleUnregister(connID string) {
	// Guard the gauge against duplicate close signals for the same ID.
	if _, ok := h.registry.Get(connID); ok {
		metrics.ConnectionsActive.Dec()
	}
	h.reconciler.ConnectionClosed(connID)
	h.log.Debug("connection reconciled", "conn", connID)
}

func (h *Hub) handleInbound(msg inbound) {
	conn, ok := h.registry.Get(msg.senderID)
	if !ok {
		// Sender vanished between read and dispatch.
		return
	}

	switch msg.env.Event {
	case types.EventValidateRoom:
		var req types.ValidateRoomRequest
		if err := json.Unmarshal(msg.env.Data, &req); err != nil {
			h.log.Debug("malformed validate_room payload", "conn", msg.senderID, "err", err)
			return
		}
		h.membership.HandleValidate(conn, req.RoomID)

	case types.EventJoinRoom:
		var req types.JoinRoomRequest
		if err := json.Unmarshal(msg.env.Data, &req); err != nil {
			h.log.Debug("malformed join_room payload", "conn", msg.senderID, "err", err)
			return
		}
		h.membership.HandleJoin(conn, req)

	case types.EventUserJoin:
		// user_join carries a bare JSON string, not an object.
		var username string
		if err := json.Unmarshal(msg.env.Data, &username); err != nil {
			h.log.Debug("malformed user_join payload", "conn", msg.senderID, "err", err)
			return
		}
		if !types.IsValidUsername(username) {
			return
		}
		h.registry.SetUsername(msg.senderID, username)
		h.broadcastUserList()

	default:
		if !types.IsDrawingEvent(msg.env.Event) {
			h.log.Debug("unknown event ignored", "event", msg.env.Event, "conn", msg.senderID)
			return
		}
		if err := h.relay.Dispatch(msg.senderID, msg.env); err != nil {
			h.log.Debug("event not relayed", "event", msg.env.Event, "conn", msg.senderID, "err", err)
		}
	}
}

// broadcastUserList pushes the full id/username roster to every live
// connection after any user_join.
func (h *Hub) broadcastUserList() {
	env, err := types.NewEnvelope(types.EventUserList, h.registry.Users())
	if err != nil {
		return
	}
	for _, conn := range h.registry.All() {
		if err := conn.WriteJSON(env); err != nil {
			h.log.Debug("failed to deliver user_list", "conn", conn.ID(), "err", err)
		}
	}
}
