// Package api provides the HTTP REST API and WebSocket server for the
// parameter bridge.
//
// It exposes the exported parameter namespace (list, read, write), sync
// session status, and a WebSocket event stream to local clients.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/parambridge-core/internal/export"
	"github.com/nerrad567/parambridge-core/internal/infrastructure/config"
	"github.com/nerrad567/parambridge-core/internal/infrastructure/database"
	"github.com/nerrad567/parambridge-core/internal/infrastructure/logging"
	"github.com/nerrad567/parambridge-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/parambridge-core/internal/param"
	"github.com/nerrad567/parambridge-core/internal/sync"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Exporter *export.Exporter
	Engine   *sync.Engine
	Registry *param.Registry

	// DB and MQTT are optional; when set they contribute to the health
	// endpoint.
	DB   *database.DB
	MQTT *mqtt.Client

	// ExternalHub, if set, is used instead of creating a new hub. This is
	// needed when the sync engine registers the hub as an event sink before
	// the server starts.
	ExternalHub *Hub

	Version string
}

// Server is the HTTP API server for the parameter bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	exporter *export.Exporter
	engine   *sync.Engine
	registry *param.Registry
	db       *database.DB
	mqtt     *mqtt.Client
	version  string

	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Exporter == nil {
		return nil, fmt.Errorf("exporter is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("parameter registry is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		exporter: deps.Exporter,
		engine:   deps.Engine,
		registry: deps.Registry,
		db:       deps.DB,
		mqtt:     deps.MQTT,
		version:  deps.Version,
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Hub returns the WebSocket hub, creating it if the server has not started
// yet. Used to register the hub as an engine event sink.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}
