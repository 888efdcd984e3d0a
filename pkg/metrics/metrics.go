// Package metrics exposes Prometheus instrumentation for the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks live WebSocket connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chalkboard_connections_active",
		Help: "Number of live client connections.",
	})

	// RoomsActive tracks rooms currently present in the directory.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chalkboard_rooms_active",
		Help: "Number of rooms with a teacher present.",
	})

	// EventsRelayed counts drawing events fanned out, by event name.
	EventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_events_relayed_total",
		Help: "Drawing events relayed to at least one recipient.",
	}, []string{"event"})

	// EventsDropped counts events discarded because the sender had no room.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chalkboard_events_dropped_total",
		Help: "Drawing events dropped from roomless senders.",
	})

	// JoinsRejected counts student joins to invalid rooms.
	JoinsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chalkboard_joins_rejected_total",
		Help: "Student join attempts rejected by validation.",
	})

	// TeacherTeardowns counts rooms removed because the teacher left.
	TeacherTeardowns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chalkboard_teacher_teardowns_total",
		Help: "Rooms torn down after a teacher disconnect.",
	})
)

// Handler exposes Prometheus metrics at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
