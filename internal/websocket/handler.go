package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chalkboard/internal/hub"
	"chalkboard/pkg/types"
)

// Options carries the transport tuning knobs from the config layer.
type Options struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

// Handler upgrades HTTP requests and runs the per-connection read pump.
type Handler struct {
	hub      *hub.Hub
	opts     Options
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler creates the WebSocket endpoint handler.
func NewHandler(h *hub.Hub, opts Options, log *slog.Logger) *Handler {
	return &Handler{
		hub:  h,
		opts: opts,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				// The drawing clients are served from a separate static
				// host, so cross-origin upgrades are expected.
				return true
			},
		},
		log: log,
	}
}

// HandleWebSocket upgrades the request, registers the connection with the
// hub and pumps inbound envelopes until the transport closes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "err", err)
		return
	}

	wsConn := NewConnection(conn, h.opts.BufferSize, h.opts.WriteTimeout)
	if err := h.hub.Register(wsConn); err != nil {
		h.log.Error("failed to register connection", "conn", wsConn.ID(), "err", err)
		_ = wsConn.Close()
		return
	}

	go h.readPump(wsConn)
}

// readPump reads envelopes in arrival order and hands them to the hub,
// preserving FIFO per connection. Any transport error is treated uniformly
// as a disconnect.
func (h *Handler) readPump(wsConn *Connection) {
	defer func() {
		if err := h.hub.Unregister(wsConn.ID()); err != nil {
			h.log.Debug("unregister after close failed", "conn", wsConn.ID(), "err", err)
		}
		_ = wsConn.Close()
	}()

	raw := wsConn.conn
	if err := raw.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		return
	}
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := raw.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
					return
				}
			case <-wsConn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read error", "conn", wsConn.ID(), "err", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Debug("malformed envelope dropped", "conn", wsConn.ID(), "err", err)
			continue
		}
		if !types.IsInboundEvent(env.Event) {
			h.log.Debug("unknown inbound event dropped", "conn", wsConn.ID(), "event", env.Event)
			continue
		}

		if err := h.hub.Submit(wsConn.ID(), env); err != nil {
			h.log.Debug("event not accepted by hub", "conn", wsConn.ID(), "event", env.Event, "err", err)
		}
	}
}
