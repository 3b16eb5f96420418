package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/imageset"
	"github.com/visionforge/visionforge/internal/workflow"
)

// Config is the complete application configuration. Values come from, in
// increasing precedence: defaults, the YAML config file, VISIONFORGE_* env vars.
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Logging  LoggingConfig    `mapstructure:"logging"`
	Metrics  MetricsConfig    `mapstructure:"metrics"`
	Health   HealthConfig     `mapstructure:"health"`
	Store    StoreConfig      `mapstructure:"store"`
	AILink   ailink.Config    `mapstructure:"ailink"`
	Images   imageset.Options `mapstructure:"images"`
	Workflow WorkflowConfig   `mapstructure:"workflow"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxBodyBytes caps request bodies on the API routes.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	// Enabled turns run history on. Disabled runs are not persisted.
	Enabled   bool   `mapstructure:"enabled"`
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Profile is SIMPLE, STRUCTURED or ENTERPRISE (gofulmen logging profiles).
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port.
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WorkflowConfig holds runner defaults for workflow execution.
type WorkflowConfig struct {
	// ContextMode is applied to cards that don't pick their own.
	ContextMode      string `mapstructure:"context_mode"`
	StopOnError      bool   `mapstructure:"stop_on_error"`
	StructuredOutput bool   `mapstructure:"structured_output"`
	// DrawMarkups burns visual-pointing markups into the uploaded image.
	DrawMarkups bool `mapstructure:"draw_markups"`
}

// DefaultContextMode parses ContextMode.
func (w WorkflowConfig) DefaultContextMode() (workflow.ContextMode, error) {
	return workflow.ParseContextMode(w.ContextMode)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port)
	}
	if _, err := c.Workflow.DefaultContextMode(); err != nil {
		return fmt.Errorf("workflow.context_mode: %w", err)
	}
	if c.Images.MaxDimension < 0 || c.Images.MaxBytes < 0 {
		return fmt.Errorf("images limits must not be negative")
	}
	if q := c.Images.JPEGQuality; q < 0 || q > 100 {
		return fmt.Errorf("images.jpeg_quality must be within 0-100, got %d", q)
	}
	if t := c.AILink.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("ailink.temperature must be within 0-2, got %g", *t)
	}
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "", "libsql":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	return nil
}
