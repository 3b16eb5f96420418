package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/visionforge/visionforge/internal/observability"
	"github.com/visionforge/visionforge/internal/server/handlers"
	servermw "github.com/visionforge/visionforge/internal/server/middleware"
)

func (s *Server) registerRoutes() {
	health := s.opts.Health
	s.router.Get("/health/live", health.LivenessHandler)
	if !s.opts.DisableHealthChecks {
		s.router.Get("/health", health.HealthHandler)
		s.router.Get("/health/ready", health.ReadinessHandler)
		s.router.Get("/health/startup", health.StartupHandler)
	}

	s.router.Get("/version", handlers.VersionHandler(s.opts.Version))
	s.router.Get("/metrics", s.metricsHandler)

	api := s.opts.API
	s.router.Route("/v1", func(r chi.Router) {
		if limit := s.opts.Config.MaxBodyBytes; limit > 0 {
			r.Use(servermw.MaxBody(limit))
		}

		r.Post("/validate", api.Validate)
		r.Post("/prompts", api.BuildPrompt)
		r.Post("/analyze", api.Analyze)
		r.Post("/responses", api.ProcessResponse)

		r.Route("/combinations", func(r chi.Router) {
			r.Post("/validate", api.ValidateCombination)
			r.Post("/resolve", api.ResolveConflicts)
			r.Post("/order", api.OrderForApplication)
			r.Post("/prompt", api.CombinedPrompt)
		})

		r.Post("/workflows/run", api.RunWorkflow)
		r.Get("/runs", api.Runs)
		r.Get("/runs/{id}", api.Run)

		r.Get("/models", api.Models)
		r.Get("/techniques", api.Techniques)
		r.Get("/templates", api.ListTemplates)
		r.Get("/templates/{id}", api.Template)
	})

	s.registerAdminEndpoint()
}

// registerAdminEndpoint mounts POST /admin/signal when an admin token is set.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
