// Package relay forwards drawing events from a sender to the right
// audience and reconciles the directory when a connection drops. Payloads
// are opaque; only envelope fields are touched.
package relay

import (
	"encoding/json"
	"log/slog"

	"chalkboard/internal/registry"
	"chalkboard/internal/room"
	"chalkboard/pkg/metrics"
	"chalkboard/pkg/types"
)

type audience int

const (
	// audienceRoomPeers fans out to the sender's current room, excluding
	// the sender.
	audienceRoomPeers audience = iota
	// audienceAll broadcasts to every live connection, sender included.
	audienceAll
)

// policy is one routing-table entry: who receives the event, and whether
// the sender's ID is appended to the payload as userId.
type policy struct {
	audience     audience
	appendSender bool
}

// routes holds one entry per relayed event so a policy change is a
// one-line edit. delete_element broadcasting to all connections instead of
// the room is observed upstream behavior, kept as-is.
var routes = map[string]policy{
	types.EventDraw:          {audienceRoomPeers, true},
	types.EventDeleteStroke:  {audienceRoomPeers, false},
	types.EventClear:         {audienceRoomPeers, true},
	types.EventMoveElement:   {audienceRoomPeers, false},
	types.EventAddImage:      {audienceRoomPeers, false},
	types.EventDeleteElement: {audienceAll, false},
}

// Relay resolves the sender's room at dispatch time and fans the event out.
// It holds no event history and performs no payload validation.
type Relay struct {
	registry  *registry.Registry
	directory *room.Directory
	log       *slog.Logger
}

// NewRelay creates an event relay.
func NewRelay(reg *registry.Registry, directory *room.Directory, log *slog.Logger) *Relay {
	return &Relay{
		registry:  reg,
		directory: directory,
		log:       log,
	}
}

// Dispatch routes one inbound event. Events from roomless senders are
// silently dropped; individual delivery failures never abort the fan-out.
func (r *Relay) Dispatch(senderID string, env types.Envelope) error {
	p, ok := routes[env.Event]
	if !ok {
		return ErrUnroutableEvent
	}

	out := env
	if p.appendSender {
		out.Data = appendSenderID(env.Data, senderID)
	}

	switch p.audience {
	case audienceAll:
		for _, conn := range r.registry.All() {
			r.deliver(conn.ID(), env.Event, out)
		}
	case audienceRoomPeers:
		roomID, ok := r.registry.RoomOf(senderID)
		if !ok {
			metrics.EventsDropped.Inc()
			r.log.Debug("dropped event from roomless sender", "event", env.Event, "conn", senderID)
			return nil
		}
		for _, memberID := range r.directory.Members(roomID) {
			if memberID == senderID {
				continue
			}
			r.deliver(memberID, env.Event, out)
		}
	}

	metrics.EventsRelayed.WithLabelValues(env.Event).Inc()
	return nil
}

// deliver sends to one recipient, best-effort.
func (r *Relay) deliver(connID, event string, env types.Envelope) {
	conn, ok := r.registry.Get(connID)
	if !ok {
		return
	}
	if err := conn.WriteJSON(env); err != nil {
		r.log.Debug("failed to deliver event", "event", event, "conn", connID, "err", err)
	}
}

// appendSenderID sets userId on a JSON object payload. A missing payload
// becomes {"userId": id}; a payload that is not an object is passed through
// untouched rather than rejected.
func appendSenderID(data json.RawMessage, senderID string) json.RawMessage {
	fields := make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return data
		}
	}
	fields["userId"] = senderID

	out, err := json.Marshal(fields)
	if err != nil {
		return data
	}
	return out
}
