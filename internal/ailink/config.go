package ailink

import "time"

// Config defines the LLM gateway configuration.
type Config struct {
	DefaultProvider string        `mapstructure:"default_provider"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`
	DefaultModel    string        `mapstructure:"default_model"`
	MaxTokens       int           `mapstructure:"max_tokens"`

	// Temperature is the sampling temperature; nil uses DefaultTemperature
	// and an explicit zero is kept.
	Temperature *float64 `mapstructure:"temperature"`

	// EnforceCatalog rejects models missing from the supported-model catalog.
	EnforceCatalog bool `mapstructure:"enforce_catalog"`

	// Providers is a set of provider instances keyed by a user-defined id.
	// Each instance declares its driver via AIProvider.
	Providers map[string]ProviderInstanceConfig `mapstructure:"providers"`

	// Routing maps a role (e.g. "analysis") to a provider id.
	Routing map[string]string `mapstructure:"routing"`
}

// ProviderInstanceConfig defines one configured provider instance.
type ProviderInstanceConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// AIProvider selects the driver: "openrouter" or "openai".
	AIProvider string `mapstructure:"ai_provider"`

	// SelectionPolicy is "priority" (default) or "round_robin".
	SelectionPolicy string `mapstructure:"selection_policy"`

	// DefaultCredential forces the credential with this label when usable.
	DefaultCredential string `mapstructure:"default_credential"`

	BaseURL string            `mapstructure:"base_url"`
	Models  map[string]string `mapstructure:"models"`
	Roles   []string          `mapstructure:"roles"`

	Credentials []CredentialConfig `mapstructure:"credentials"`
}

// CredentialConfig is a single API key for a provider instance.
type CredentialConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Label    string `mapstructure:"label"`
	APIKey   string `mapstructure:"api_key"`
	Priority int    `mapstructure:"priority"`
}

const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
	DefaultModel       = "anthropic/claude-3.5-sonnet"
	// RoleAnalysis is the routing role used for image analysis calls.
	RoleAnalysis = "analysis"
)

// OpenRouterProvider returns a single-key OpenRouter provider config.
func OpenRouterProvider(apiKey string) ProviderInstanceConfig {
	return ProviderInstanceConfig{
		Enabled:     true,
		AIProvider:  "openrouter",
		Models:      map[string]string{"default": DefaultModel},
		Credentials: []CredentialConfig{{Enabled: true, Label: "default", APIKey: apiKey}},
	}
}
