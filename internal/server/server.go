package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/visionforge/visionforge/internal/config"
	apperrors "github.com/visionforge/visionforge/internal/errors"
	"github.com/visionforge/visionforge/internal/observability"
	"github.com/visionforge/visionforge/internal/server/handlers"
	servermw "github.com/visionforge/visionforge/internal/server/middleware"
)

// Options wires the server's collaborators.
type Options struct {
	Config  config.ServerConfig
	API     *handlers.API
	Health  *handlers.HealthManager
	Version handlers.BuildInfo
	// MetricsPort is where the Prometheus exporter listens. Zero falls back
	// to the exporter's own port, then 9090.
	MetricsPort int
	// AdminToken enables POST /admin/signal when set.
	AdminToken string
	// DisableHealthChecks unmounts the checked health probes. Liveness stays.
	DisableHealthChecks bool
}

// Server is the visionforge HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	opts   Options
}

// New builds the router. Nil API or Health values get empty defaults, so
// routes that need missing collaborators answer 503.
func New(opts Options) *Server {
	if opts.API == nil {
		opts.API = &handlers.API{}
	}
	if opts.Health == nil {
		opts.Health = handlers.NewHealthManager(opts.Version.Version)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	// Request ID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{router: r, opts: opts}
	s.registerRoutes()
	return s
}

// HandleError writes err as the standard JSON error body.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Config.Host, fmt.Sprint(s.opts.Config.Port))
}

// Start listens until Shutdown. It returns http.ErrServerClosed after a
// clean shutdown.
func (s *Server) Start() error {
	cfg := s.opts.Config
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadTimeout:       orDefault(cfg.ReadTimeout, 30*time.Second),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      orDefault(cfg.WriteTimeout, 120*time.Second),
		IdleTimeout:       orDefault(cfg.IdleTimeout, 120*time.Second),
	}

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Starting HTTP server",
			zap.String("addr", s.server.Addr),
			zap.Duration("write_timeout", s.server.WriteTimeout))
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.opts.Config.Port
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
