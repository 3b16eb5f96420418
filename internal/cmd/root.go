package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visionforge/visionforge/internal/ailink/driver"
	"github.com/visionforge/visionforge/internal/appid"
	"github.com/visionforge/visionforge/internal/config"
	"github.com/visionforge/visionforge/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	traceFile string

	appIdentity *appidentity.Identity
	appConfig   *config.Loaded
	tracer      *driver.Tracer

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity.
func GetAppIdentity() *appidentity.Identity {
	if appIdentity == nil {
		return appid.Default()
	}
	return appIdentity
}

var rootCmd = &cobra.Command{
	Use:   appid.BinaryName,
	Short: appid.Description,
	Long: appid.BinaryName + ` - ` + appid.Description + `

Validate and build prompting-technique configurations, chain them into
workflows of prompt cards, and run them against a vision-capable model.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeTracer()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Config loading must not emit metrics to stdout; serve sets up the
	// real exporter later.
	observability.DisableGlobalTelemetry()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", appid.ConfigName))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "trace gateway requests/responses to NDJSON file")
}

// initConfig resolves identity, logger, config and tracing before any
// command runs.
func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity", err)
	}
	appIdentity = identity

	observability.InitCLILogger(identity.BinaryName, verbose)

	loaded, err := config.Load(config.Options{ConfigFile: cfgFile, Identity: identity})
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", err)
	}
	appConfig = loaded
	if loaded.FileUsed != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", loaded.FileUsed))
	} else {
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	}

	if traceFile != "" {
		t, err := driver.OpenTracer(traceFile)
		if err != nil {
			observability.CLILogger.Warn("Failed to enable tracing", zap.Error(err))
			return
		}
		tracer = t
		observability.CLILogger.Debug("Gateway tracing enabled", zap.String("file", traceFile))
	}
}

// currentConfig returns the loaded config, loading it on demand for callers
// that bypass cobra initialization.
func currentConfig() (*config.Config, error) {
	if appConfig != nil {
		return appConfig.Config, nil
	}
	loaded, err := config.Load(config.Options{ConfigFile: cfgFile, Identity: GetAppIdentity()})
	if err != nil {
		return nil, err
	}
	appConfig = loaded
	return loaded.Config, nil
}

func closeTracer() {
	if tracer == nil {
		return
	}
	if err := tracer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: close trace file: %v\n", err)
	}
	tracer = nil
}
