package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/config"
	"github.com/visionforge/visionforge/internal/observability"
	"github.com/visionforge/visionforge/internal/output"
	"github.com/visionforge/visionforge/internal/store"
)

// newAnalyzer builds the gateway service from cfg. It fails when no
// provider is configured.
func newAnalyzer(cfg *config.Config) (*ailink.Service, error) {
	providers := ailink.NewRegistry(cfg.AILink, tracer)
	if len(providers.ProviderIDs()) == 0 {
		return nil, fmt.Errorf("no AI provider configured (set %sOPENROUTER_API_KEY or ailink.providers)", GetAppIdentity().EnvPrefix)
	}
	return ailink.NewService(providers), nil
}

// openStore opens and migrates the run history store. It returns nil, nil
// when the store is disabled.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if !cfg.Store.Enabled {
		return nil, nil
	}
	return store.OpenAndMigrate(ctx, cfg.Store)
}

func closeStore(db *store.Store) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil && observability.CLILogger != nil {
		observability.CLILogger.Warn("Failed to close store", zap.Error(err))
	}
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "table", "Output format: table, json, markdown")
}

func outputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

func printRendered(cmd *cobra.Command, rendered string) {
	fmt.Fprintln(cmd.OutOrStdout(), rendered)
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("input file is required (-f)")
	}
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is user-provided
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
