// Package server wires the HTTP surface: middleware stack, versioned API,
// WebSocket event streams, and health checks.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/provenlabs/opsledger/internal/api/ws"
	"github.com/provenlabs/opsledger/internal/artifact"
	"github.com/provenlabs/opsledger/internal/audit"
	"github.com/provenlabs/opsledger/internal/auth"
	"github.com/provenlabs/opsledger/internal/config"
	"github.com/provenlabs/opsledger/internal/runner"
	"github.com/provenlabs/opsledger/internal/store/postgres"
	redisstore "github.com/provenlabs/opsledger/internal/store/redis"
	"github.com/provenlabs/opsledger/internal/ticket"
	"github.com/provenlabs/opsledger/internal/validate"
)

// Deps carries the application services the server exposes.
type Deps struct {
	Store     *postgres.Store
	PubSub    *redisstore.PubSub
	Auth      *auth.Service
	Tickets   *ticket.Service
	Artifacts *artifact.Service
	Executor  *runner.Executor
	Auditor   *audit.Logger
	Registry  *validate.Registry
}

// Server is the HTTP server that wires all application routes and
// middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	wsHub      *ws.Hub
	deps       Deps
	cfg        *config.Config
}

// New creates a Server with all routes wired.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		wsHub:  ws.NewHub(deps.PubSub),
		deps:   deps,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	s.routes(ctx)

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
