// Package config loads visionforge configuration with viper: built-in
// defaults, an optional YAML file, then VISIONFORGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/appid"
	"github.com/visionforge/visionforge/internal/imageset"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an explicit config file. It must exist when set.
	ConfigFile string

	// Identity supplies the env prefix and config directory name. Nil uses
	// the built-in identity.
	Identity *appidentity.Identity
}

// Loaded is the result of Load.
type Loaded struct {
	*Config

	// FileUsed is the config file that was read, or empty.
	FileUsed string
}

// Load builds the configuration. A missing discovered config file is not an
// error; a missing explicit one is.
func Load(opts Options) (*Loaded, error) {
	identity := opts.Identity
	if identity == nil {
		identity = appid.Default()
	}
	prefix := appid.Prefix(identity)

	v := viper.New()
	setDefaults(v, identity)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		for _, dir := range configSearchPaths(identity) {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(strings.TrimSuffix(prefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvAliases(v, prefix)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if overrides := ailinkEnvOverrides(prefix, os.Environ()); len(overrides) > 0 {
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to apply ailink env overrides: %w", err)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToFloat64HookFunc(),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	applyAPIKeyShortcut(cfg, prefix)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return &Loaded{Config: cfg, FileUsed: v.ConfigFileUsed()}, nil
}

// GetConfig returns the most recently loaded configuration (thread-safe).
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func setDefaults(v *viper.Viper, identity *appidentity.Identity) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 64<<20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", storePathFor(identity))
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("ailink.default_provider", "")
	v.SetDefault("ailink.default_timeout", "60s")
	v.SetDefault("ailink.default_model", ailink.DefaultModel)
	v.SetDefault("ailink.max_tokens", ailink.DefaultMaxTokens)
	v.SetDefault("ailink.temperature", ailink.DefaultTemperature)
	v.SetDefault("ailink.enforce_catalog", false)

	v.SetDefault("images.max_dimension", imageset.DefaultMaxDimension)
	v.SetDefault("images.max_bytes", imageset.DefaultMaxBytes)
	v.SetDefault("images.jpeg_quality", imageset.DefaultJPEGQuality)

	v.SetDefault("workflow.context_mode", "")
	v.SetDefault("workflow.stop_on_error", false)
	v.SetDefault("workflow.structured_output", false)
	v.SetDefault("workflow.draw_markups", true)
}

// bindEnvAliases keeps the short env names (VISIONFORGE_PORT, VISIONFORGE_DB_PATH,
// ...) working next to the derived VISIONFORGE_SERVER_PORT style names.
func bindEnvAliases(v *viper.Viper, prefix string) {
	aliases := map[string][]string{
		"server.host":             {"HOST"},
		"server.port":             {"PORT"},
		"logging.level":           {"LOG_LEVEL"},
		"logging.profile":         {"LOG_PROFILE"},
		"store.driver":            {"DB_DRIVER"},
		"store.path":              {"DB_PATH"},
		"store.url":               {"DB_URL"},
		"store.auth_token":        {"DB_AUTH_TOKEN"},
		"ailink.default_model":    {"MODEL"},
		"workflow.context_mode":   {"CONTEXT_MODE"},
		"workflow.stop_on_error":  {"STOP_ON_ERROR"},
		"images.max_dimension":    {"MAX_IMAGE_DIMENSION"},
		"ailink.default_provider": {"PROVIDER"},
	}
	for key, names := range aliases {
		envs := []string{prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		for _, name := range names {
			envs = append(envs, prefix+name)
		}
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}

func configSearchPaths(identity *appidentity.Identity) []string {
	var dirs []string
	if dir := gfconfig.GetAppConfigDir(configName(identity)); strings.TrimSpace(dir) != "" {
		dirs = append(dirs, dir)
	}
	return append(dirs, "./config")
}

// applyAPIKeyShortcut adds an "openrouter" provider from a bare API key env
// var when no providers are configured.
func applyAPIKeyShortcut(cfg *Config, prefix string) {
	if len(cfg.AILink.Providers) > 0 {
		return
	}
	key := strings.TrimSpace(os.Getenv(prefix + "OPENROUTER_API_KEY"))
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}
	if key == "" {
		return
	}
	provider := ailink.OpenRouterProvider(key)
	if model := strings.TrimSpace(cfg.AILink.DefaultModel); model != "" {
		provider.Models = map[string]string{"default": model}
	}
	cfg.AILink.Providers = map[string]ailink.ProviderInstanceConfig{"openrouter": provider}
	if cfg.AILink.DefaultProvider == "" {
		cfg.AILink.DefaultProvider = "openrouter"
	}
}

func configName(identity *appidentity.Identity) string {
	if identity != nil {
		if name := strings.TrimSpace(identity.ConfigName); name != "" {
			return name
		}
		if name := strings.TrimSpace(identity.BinaryName); name != "" {
			return name
		}
	}
	return appid.ConfigName
}

func binaryName(identity *appidentity.Identity) string {
	if identity != nil && strings.TrimSpace(identity.BinaryName) != "" {
		return identity.BinaryName
	}
	return appid.BinaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appid.ConfigName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(appid.ConfigName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	return storePathFor(nil)
}

func storePathFor(identity *appidentity.Identity) string {
	dataDir := gfconfig.GetAppDataDir(configName(identity))
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName(identity) + ".db"
	}
	return filepath.Join(dataDir, binaryName(identity)+".db")
}

// ailinkEnvOverrides turns VISIONFORGE_AILINK_PROVIDERS_<ID>_<FIELD> and
// VISIONFORGE_AILINK_ROUTING_<ROLE> variables into a nested config map.
// Provider ids use "-" where the variable name has "_".
func ailinkEnvOverrides(prefix string, environ []string) map[string]any {
	overrides := map[string]any{}
	providerPrefix := prefix + "AILINK_PROVIDERS_"
	routingPrefix := prefix + "AILINK_ROUTING_"

	for _, item := range environ {
		key, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		switch {
		case strings.HasPrefix(key, providerPrefix):
			applyProviderOverride(overrides, key[len(providerPrefix):], value)
		case strings.HasPrefix(key, routingPrefix):
			applyRoutingOverride(overrides, key[len(routingPrefix):], value)
		}
	}
	return overrides
}

func applyRoutingOverride(overrides map[string]any, rawRole string, providerID string) {
	role := toSlug(rawRole)
	providerID = strings.TrimSpace(providerID)
	if role == "" || providerID == "" {
		return
	}
	routing := ensureMap(ensureMap(overrides, "ailink"), "routing")
	routing[role] = providerID
}

// providerFields are the words that end a provider id in an env var name.
var providerFields = map[string]bool{
	"ENABLED": true, "AI": true, "BASE": true, "MODELS": true,
	"CREDENTIALS": true, "SELECTION": true, "DEFAULT": true, "ROLES": true,
}

func applyProviderOverride(overrides map[string]any, raw string, value string) {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	section := -1
	for i, part := range parts {
		if providerFields[part] {
			section = i
			break
		}
	}
	if section <= 0 {
		return
	}

	providerID := strings.ToLower(strings.Join(parts[:section], "-"))
	providers := ensureMap(ensureMap(overrides, "ailink"), "providers")
	provider := ensureMap(providers, providerID)
	value = strings.TrimSpace(value)

	rest := parts[section:]
	switch {
	case len(rest) == 1 && rest[0] == "ENABLED":
		provider["enabled"] = strings.EqualFold(value, "true")
	case len(rest) == 1 && rest[0] == "ROLES":
		provider["roles"] = value
	case len(rest) == 2 && rest[0] == "AI" && rest[1] == "PROVIDER":
		provider["ai_provider"] = strings.ToLower(value)
	case len(rest) == 2 && rest[0] == "DEFAULT" && rest[1] == "CREDENTIAL":
		provider["default_credential"] = value
	case len(rest) == 2 && rest[0] == "SELECTION" && rest[1] == "POLICY":
		provider["selection_policy"] = strings.ToLower(value)
	case len(rest) == 2 && rest[0] == "BASE" && rest[1] == "URL":
		provider["base_url"] = value
	case len(rest) >= 2 && rest[0] == "MODELS":
		models := ensureMap(provider, "models")
		models[strings.ToLower(strings.Join(rest[1:], "_"))] = value
	case len(rest) >= 3 && rest[0] == "CREDENTIALS":
		idx, err := strconv.Atoi(rest[1])
		if err != nil || idx < 0 {
			return
		}
		field := strings.ToLower(strings.Join(rest[2:], "_"))
		cred := ensureSliceMap(ensureSlice(provider, "credentials", idx+1), idx)
		switch field {
		case "priority":
			if parsed, err := strconv.Atoi(value); err == nil {
				cred[field] = parsed
				return
			}
			cred[field] = value
		case "enabled":
			cred[field] = strings.EqualFold(value, "true")
		default:
			cred[field] = value
		}
	}
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if existing, ok := parent[key].(map[string]any); ok {
		return existing
	}
	next := map[string]any{}
	parent[key] = next
	return next
}

func ensureSlice(parent map[string]any, key string, length int) []any {
	existing, _ := parent[key].([]any)
	for len(existing) < length {
		existing = append(existing, map[string]any{})
	}
	parent[key] = existing
	return existing
}

func ensureSliceMap(slice []any, idx int) map[string]any {
	if typed, ok := slice[idx].(map[string]any); ok {
		return typed
	}
	m := map[string]any{}
	slice[idx] = m
	return m
}

func toSlug(raw string) string {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "-")
}
