package cmd

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visionforge/visionforge/internal/appid"
	"github.com/visionforge/visionforge/internal/config"
	"github.com/visionforge/visionforge/internal/observability"
	"github.com/visionforge/visionforge/internal/server"
	"github.com/visionforge/visionforge/internal/server/handlers"
	"github.com/visionforge/visionforge/internal/store"
	"github.com/visionforge/visionforge/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read the config file and apply the log level

The server runs without an AI provider; analysis routes then answer 503.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "server host (overrides server.host)")
	serveCmd.Flags().IntP("port", "p", 0, "server port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()
	if namespace == "" {
		namespace = identity.BinaryName
	}
	loggerOpts := observability.ServerLoggerOptions{
		Service:   identity.BinaryName,
		Level:     cfg.Logging.Level,
		Profile:   cfg.Logging.Profile,
		Namespace: namespace,
	}
	observability.InitServerLogger(loggerOpts)
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return err
		}
	}

	ctx := cmd.Context()
	defaultContext, err := cfg.Workflow.DefaultContextMode()
	if err != nil {
		return err
	}
	health := handlers.NewHealthManager(versionInfo.Version)
	api := &handlers.API{
		Logger:         logger,
		ImageOptions:   cfg.Images,
		DefaultModel:   cfg.AILink.DefaultModel,
		DefaultContext: defaultContext,
		DrawMarkups:    cfg.Workflow.DrawMarkups,
	}

	templates, err := workflow.BuiltinTemplates()
	if err != nil {
		return err
	}
	api.Templates = templates

	if svc, err := newAnalyzer(cfg); err != nil {
		logger.Warn("Analysis routes disabled", zap.Error(err))
		health.RegisterChecker("gateway", handlers.CheckFunc(func(context.Context) error { return handlers.ErrDegraded }))
	} else {
		api.Analyzer = svc
		health.RegisterChecker("gateway", handlers.CheckFunc(func(context.Context) error { return nil }))
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		logger.Warn("Run history disabled", zap.Error(err))
	} else if db != nil {
		api.History = db
		api.Recorder = db
		health.RegisterChecker("store", storeChecker(db))
	}

	if cfg.Metrics.Enabled {
		health.RegisterChecker("telemetry", handlers.CheckFunc(func(context.Context) error {
			if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
				return stderrors.New("telemetry system not initialized")
			}
			return nil
		}))
	}

	srv := server.New(server.Options{
		Config:      cfg.Server,
		API:         api,
		Health:      health,
		MetricsPort: cfg.Metrics.Port,
		AdminToken:  os.Getenv(appid.Prefix(identity) + "ADMIN_TOKEN"),

		DisableHealthChecks: !cfg.Health.Enabled,
		Version: handlers.BuildInfo{
			Name:      identity.BinaryName,
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		},
	})

	logger.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("version", versionInfo.Version),
		zap.String("addr", srv.Addr()),
		zap.Bool("analysis", api.Analyzer != nil),
		zap.Bool("history", api.History != nil))

	registerShutdown(srv, db, cfg.Server.ShutdownTimeout)
	registerReload(cfg, loggerOpts)

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	return <-errChan
}

func storeChecker(db *store.Store) handlers.CheckFunc {
	return func(ctx context.Context) error {
		return db.DB.PingContext(ctx)
	}
}

// registerShutdown wires graceful shutdown. Handlers run LIFO, so the HTTP
// server drains before the store closes and the logger flushes.
func registerShutdown(srv *server.Server, db *store.Store, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := observability.ServerLogger

	signals.OnShutdown(func(ctx context.Context) error {
		if err := logger.Sync(); err != nil {
			// Sync errors on stdout/stderr are common and benign.
			logger.Debug("Logger sync returned error", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		if db != nil {
			logger.Info("Closing run history store")
			return db.Close()
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})
}

// registerReload re-reads the config on SIGHUP. Only the logging section
// applies without a restart.
func registerReload(current *config.Config, opts observability.ServerLoggerOptions) {
	signals.OnReload(func(ctx context.Context) error {
		loaded, err := config.Load(config.Options{ConfigFile: cfgFile, Identity: GetAppIdentity()})
		if err != nil {
			observability.ServerLogger.Error("Config reload failed", zap.Error(err))
			return err
		}
		if loaded.Logging != current.Logging {
			opts.Level = loaded.Logging.Level
			opts.Profile = loaded.Logging.Profile
			logger, err := observability.NewServerLogger(opts)
			if err != nil {
				observability.ServerLogger.Error("Logger rebuild failed", zap.Error(err))
				return err
			}
			observability.ServerLogger = logger
			current.Logging = loaded.Logging
		}
		observability.ServerLogger.Info("Configuration reloaded",
			zap.String("file", loaded.FileUsed),
			zap.String("log_level", current.Logging.Level))
		return nil
	})
}
