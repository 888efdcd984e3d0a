// Package api is the read-only ops surface: health, live room summaries
// and the room activity log. The drawing transport never goes through it.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"chalkboard/internal/history"
	"chalkboard/internal/hub"
)

type Server struct {
	hub     *hub.Hub
	history *history.Manager
	router  *mux.Router
	handler http.Handler
	log     *slog.Logger
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	ActivityLog string         `json:"activity_log"`
	Stats       map[string]int `json:"stats"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewServer wires the ops routes. history may be nil when the activity log
// is disabled.
func NewServer(h *hub.Hub, hist *history.Manager, corsOrigins []string, log *slog.Logger) *Server {
	s := &Server{
		hub:     h,
		history: hist,
		router:  mux.NewRouter(),
		log:     log,
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/rooms", s.handleRooms).Methods(http.MethodGet)
	s.router.HandleFunc("/api/rooms/{id}/activity", s.handleRoomActivity).Methods(http.MethodGet)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}).Handler(s.router)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	activityStatus := "disabled"
	if s.history != nil {
		activityStatus = "healthy"
		if err := s.history.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			activityStatus = err.Error()
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		ActivityLog: activityStatus,
		Stats:       s.hub.Stats(),
	})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.hub.RoomSummaries())
}

func (s *Server) handleRoomActivity(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.sendError(w, "Activity log is disabled", http.StatusNotFound)
		return
	}

	roomID := mux.Vars(r)["id"]
	entries, err := s.history.GetRoomActivity(r.Context(), roomID)
	if err != nil {
		s.log.Error("failed to read room activity", "room", roomID, "err", err)
		s.sendError(w, "Failed to read room activity", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.ActivityEntry{}
	}

	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("failed to encode response", "err", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}
