package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger is used for CLI commands (SIMPLE profile)
	CLILogger *logging.Logger

	// ServerLogger is used by the HTTP API (STRUCTURED profile)
	ServerLogger *logging.Logger
)

// ServerLoggerOptions configures NewServerLogger.
type ServerLoggerOptions struct {
	Service   string
	Level     string
	Profile   string
	Namespace string
	// Stream is "stderr" (default) or "stdout".
	Stream string
}

// InitCLILogger initializes the CLI logger with SIMPLE profile
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger initializes ServerLogger and exits on invalid settings.
func InitServerLogger(opts ServerLoggerOptions) {
	logger, err := NewServerLogger(opts)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

// NewServerLogger builds a logger for the given profile. SIMPLE writes
// human-readable console lines; STRUCTURED (the default) writes JSON with
// the correlation middleware attached.
func NewServerLogger(opts ServerLoggerOptions) (*logging.Logger, error) {
	stream := opts.Stream
	if stream == "" {
		stream = "stderr"
	}

	staticFields := make(map[string]any)
	if opts.Namespace != "" {
		staticFields["namespace"] = opts.Namespace
	}

	config := &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: ParseLevel(opts.Level),
		Service:      opts.Service,
		Environment:  "production",
		StaticFields: staticFields,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: make(map[string]any)},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:    "console",
				Format:  "json",
				Console: &logging.ConsoleSinkConfig{Stream: stream},
			},
		},
		EnableCaller:     true,
		EnableStacktrace: true,
	}

	switch strings.ToLower(strings.TrimSpace(opts.Profile)) {
	case "", "structured", "enterprise":
	case "simple":
		config.Profile = logging.ProfileSimple
		config.Middleware = nil
		config.Sinks[0].Format = "console"
		config.EnableStacktrace = false
	default:
		return nil, fmt.Errorf("unknown logging profile %q", opts.Profile)
	}

	return logging.New(config)
}

// Logger returns the server logger when the API is running, otherwise the
// CLI logger. Either may be nil before initialization.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

// ParseLevel maps a config level name to a gofulmen severity. Unknown names
// fall back to INFO.
func ParseLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// exitWithCodeStderr is used when a logger cannot be built, so there is
// nothing to log through.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}
