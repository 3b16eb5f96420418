package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visionforge/visionforge/internal/observability"
	"github.com/visionforge/visionforge/internal/workflow"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Check that the configuration loads, the built-in templates parse, the run
history store opens and an AI provider is configured. With --check-key the
provider credential is also verified against the gateway.`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().Bool("check-key", false, "Verify the provider API key with the gateway")
}

type healthCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runHealth(cmd *cobra.Command, args []string) error {
	checkKey, err := cmd.Flags().GetBool("check-key")
	if err != nil {
		return err
	}
	cfg, err := currentConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	checks := []healthCheck{
		{name: "config", run: func(context.Context) (string, error) {
			return fmt.Sprintf("context_mode=%s", cfg.Workflow.ContextMode), cfg.Validate()
		}},
		{name: "templates", run: func(context.Context) (string, error) {
			reg, err := workflow.BuiltinTemplates()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d built-in", len(reg.List(""))), nil
		}},
		{name: "store", run: func(ctx context.Context) (string, error) {
			db, err := openStore(ctx, cfg)
			if err != nil {
				return "", err
			}
			if db == nil {
				return "disabled", nil
			}
			defer closeStore(db)
			return db.Driver(), db.DB.PingContext(ctx)
		}},
		{name: "gateway", run: func(ctx context.Context) (string, error) {
			svc, err := newAnalyzer(cfg)
			if err != nil {
				return "", err
			}
			if !checkKey {
				return "configured", nil
			}
			provider, err := svc.ValidateKey(ctx)
			return provider, err
		}},
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	logger := observability.CLILogger
	failed := 0
	for _, check := range checks {
		detail, err := check.run(ctx)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "❌ %s: %v\n", check.name, err)
			if logger != nil {
				logger.Debug("Health check failed", zap.String("check", check.name), zap.Error(err))
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: %s\n", check.name, detail)
	}
	if failed > 0 {
		return fmt.Errorf("%d health check(s) failed", failed)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "All health checks passed")
	return nil
}
