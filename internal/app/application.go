// Package app wires the relay's components and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chalkboard/internal/api"
	"chalkboard/internal/config"
	"chalkboard/internal/history"
	"chalkboard/internal/hub"
	"chalkboard/internal/websocket"
	"chalkboard/pkg/interfaces"
	"chalkboard/pkg/metrics"
)

// Application coordinates all system components. Initialization order is
// history → hub → websocket handler → API → HTTP.
type Application struct {
	config     *config.Config
	log        *slog.Logger
	history    *history.Manager
	hub        *hub.Hub
	httpServer *http.Server
}

// NewApplication builds an application from validated configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := NewLogger(cfg.Env)

	// The activity log is optional; an empty path disables it and the hub
	// runs without auditing.
	var hist *history.Manager
	if cfg.Activity.Path != "" {
		var err error
		hist, err = history.NewManager(cfg.Activity.Path, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open activity log: %w", err)
		}
	}

	// Assign through the interface only when non-nil so the hub's nil
	// check is not defeated by a typed nil.
	var recorder interfaces.ActivityRecorder
	if hist != nil {
		recorder = hist
	}
	relayHub := hub.NewHub(recorder, log)

	wsHandler := websocket.NewHandler(relayHub, websocket.Options{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		BufferSize:   cfg.WebSocket.BufferSize,
	}, log)

	apiServer := api.NewServer(relayHub, hist, cfg.HTTP.CORSOrigins, log)

	router := http.NewServeMux()
	router.Handle("/api/", apiServer)
	router.Handle("/health", apiServer)
	router.Handle("/metrics", metrics.Handler())
	router.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		log:        log,
		history:    hist,
		hub:        relayHub,
		httpServer: httpServer,
	}, nil
}

// Start runs the hub and the HTTP server, returning once the server is
// accepting connections.
func (app *Application) Start(ctx context.Context) error {
	app.log.Info("starting chalkboard relay", "addr", app.httpServer.Addr)

	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.hub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		app.log.Info("chalkboard relay started")
		return nil
	case <-ctx.Done():
		_ = app.hub.Stop()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP → hub → activity log.
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info("shutting down chalkboard relay")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.log.Error("HTTP server shutdown error", "err", err)
	}
	if err := app.hub.Stop(); err != nil {
		app.log.Error("hub shutdown error", "err", err)
	}
	if app.history != nil {
		if err := app.history.Close(); err != nil {
			app.log.Error("activity log shutdown error", "err", err)
		}
	}

	app.log.Info("chalkboard relay shutdown complete")
	return nil
}

// Addr returns the HTTP listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
