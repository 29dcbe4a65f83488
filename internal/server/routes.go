package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	v1 "github.com/provenlabs/opsledger/internal/api/v1"
	"github.com/provenlabs/opsledger/internal/server/middleware"
)

func (s *Server) routes(ctx context.Context) {
	// API routes on /api/v1 in two sub-groups: unauthenticated auth
	// endpoints, then everything else behind the Auth middleware.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, 5, 10))

			authConfig := huma.DefaultConfig("OpsLedger Auth API", "1.0.0")
			authConfig.Servers = []*huma.Server{{URL: "/api/v1"}}
			authAPI := humachi.New(r, authConfig)
			v1.RegisterAuthRoutes(authAPI, s.deps.Auth)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(s.deps.Auth))
			r.Use(middleware.RateLimit(ctx, 100, 200))

			apiConfig := huma.DefaultConfig("OpsLedger API", "1.0.0")
			apiConfig.Servers = []*huma.Server{{URL: "/api/v1"}}
			api := humachi.New(r, apiConfig)

			v1.RegisterAssetRoutes(api, s.deps.Store, s.deps.Auditor)
			v1.RegisterTicketRoutes(api, s.deps.Tickets)
			v1.RegisterRunRoutes(api, s.deps.Store, s.deps.Executor)
			v1.RegisterArtifactRoutes(api, s.deps.Artifacts)
			v1.RegisterAuditRoutes(api, s.deps.Auditor)
			v1.RegisterValidatorRoutes(api, s.deps.Registry)

			// Multipart upload and binary download bypass the typed API.
			r.Post("/runs/{runID}/artifacts", v1.UploadArtifactHandler(s.deps.Artifacts))
			r.Get("/artifacts/{id}/download", v1.DownloadArtifactHandler(s.deps.Artifacts))
		})
	})

	// WebSocket event streams.
	s.router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.Auth(s.deps.Auth))
		r.Get("/runs/{runID}", s.wsHub.ServeRun)
		r.Get("/tickets/{ticketID}", s.wsHub.ServeTicket)
	})

	// Health check (unauthenticated).
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}
