package ailink

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/visionforge/visionforge/internal/ailink/driver"
	"github.com/visionforge/visionforge/internal/ailink/driver/openai"
	"github.com/visionforge/visionforge/internal/ailink/driver/openrouter"
)

// Registry resolves a role to a provider instance, credential, driver and
// model. Drivers are built lazily and reused per provider and credential.
type Registry struct {
	cfg    Config
	tracer *driver.Tracer

	mu      sync.Mutex
	drivers map[string]driver.Driver
	rr      map[string]int
}

// ResolvedProvider is the outcome of routing one call.
type ResolvedProvider struct {
	ProviderID string
	Provider   ProviderInstanceConfig
	Credential CredentialConfig
	Driver     driver.Driver
	Model      string
}

// NewRegistry returns a registry over cfg. tracer may be nil.
func NewRegistry(cfg Config, tracer *driver.Tracer) *Registry {
	return &Registry{cfg: cfg, tracer: tracer}
}

// Config returns the gateway configuration.
func (r *Registry) Config() Config {
	if r == nil {
		return Config{}
	}
	return r.cfg
}

// Resolve picks the provider for role and the model to call. A non-empty
// modelOverride wins over configured defaults.
func (r *Registry) Resolve(role, modelOverride string) (*ResolvedProvider, error) {
	providerID, providerCfg, err := r.resolveProvider(role)
	if err != nil {
		return nil, err
	}

	cred, credKey, err := selectCredential(providerCfg, func(group string, n int) int {
		return r.rrIndex(providerID+":"+group, n)
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cred.APIKey) == "" {
		return nil, fmt.Errorf("provider %q has no usable api key", providerID)
	}

	drv, err := r.driverFor(providerID, providerCfg, cred, credKey)
	if err != nil {
		return nil, err
	}

	model, err := r.resolveModel(providerCfg, modelOverride)
	if err != nil {
		return nil, err
	}

	return &ResolvedProvider{
		ProviderID: providerID,
		Provider:   providerCfg,
		Credential: cred,
		Driver:     drv,
		Model:      model,
	}, nil
}

// ProviderIDs lists enabled provider ids, sorted.
func (r *Registry) ProviderIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.cfg.Providers))
	for id, p := range r.cfg.Providers {
		if p.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) resolveProvider(role string) (string, ProviderInstanceConfig, error) {
	if r == nil {
		return "", ProviderInstanceConfig{}, fmt.Errorf("ailink registry not configured")
	}

	if role = strings.TrimSpace(role); role != "" {
		if providerID := strings.TrimSpace(r.cfg.Routing[role]); providerID != "" {
			return r.enabledProvider(providerID, fmt.Sprintf("role %q", role))
		}
		for _, id := range r.ProviderIDs() {
			if contains(r.cfg.Providers[id].Roles, role) {
				return id, r.cfg.Providers[id], nil
			}
		}
	}

	if id := strings.TrimSpace(r.cfg.DefaultProvider); id != "" {
		return r.enabledProvider(id, "default provider")
	}

	enabled := r.ProviderIDs()
	switch len(enabled) {
	case 0:
		return "", ProviderInstanceConfig{}, fmt.Errorf("no enabled providers configured")
	case 1:
		return enabled[0], r.cfg.Providers[enabled[0]], nil
	default:
		return "", ProviderInstanceConfig{}, fmt.Errorf("no provider routing configured for %d enabled providers", len(enabled))
	}
}

func (r *Registry) enabledProvider(id, source string) (string, ProviderInstanceConfig, error) {
	cfg, ok := r.cfg.Providers[id]
	if !ok {
		return "", ProviderInstanceConfig{}, fmt.Errorf("unknown provider %q for %s", id, source)
	}
	if !cfg.Enabled {
		return "", ProviderInstanceConfig{}, fmt.Errorf("provider %q is disabled", id)
	}
	return id, cfg, nil
}

// selectCredential returns the credential to use and a stable key naming it.
// Only credentials with an API key are candidates; among them the highest
// priority group wins, rotated when the policy is round_robin.
func selectCredential(cfg ProviderInstanceConfig, rrNext func(group string, n int) int) (CredentialConfig, string, error) {
	if len(cfg.Credentials) == 0 {
		return CredentialConfig{}, "", fmt.Errorf("no credentials configured")
	}

	usable := make([]CredentialConfig, 0, len(cfg.Credentials))
	for _, cred := range cfg.Credentials {
		if !cred.Enabled && strings.TrimSpace(cred.Label) != "" {
			continue
		}
		if strings.TrimSpace(cred.APIKey) == "" {
			continue
		}
		usable = append(usable, cred)
	}
	if len(usable) == 0 {
		return cfg.Credentials[0], credentialKey(cfg.Credentials[0], 0), nil
	}

	if label := strings.TrimSpace(cfg.DefaultCredential); label != "" {
		for _, cred := range usable {
			if strings.EqualFold(strings.TrimSpace(cred.Label), label) {
				return cred, credentialKey(cred, cred.Priority), nil
			}
		}
	}

	highest := usable[0].Priority
	for _, cred := range usable[1:] {
		highest = max(highest, cred.Priority)
	}
	group := make([]CredentialConfig, 0, len(usable))
	for _, cred := range usable {
		if cred.Priority == highest {
			group = append(group, cred)
		}
	}

	idx := 0
	if strings.EqualFold(strings.TrimSpace(cfg.SelectionPolicy), "round_robin") && rrNext != nil {
		idx = rrNext(strconv.Itoa(highest), len(group))
	}
	return group[idx], credentialKey(group[idx], highest), nil
}

func credentialKey(cred CredentialConfig, priority int) string {
	if label := strings.TrimSpace(cred.Label); label != "" {
		return label
	}
	return "p" + strconv.Itoa(priority)
}

func (r *Registry) driverFor(providerID string, providerCfg ProviderInstanceConfig, cred CredentialConfig, credKey string) (driver.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drivers == nil {
		r.drivers = map[string]driver.Driver{}
	}
	key := providerID + ":" + credKey
	if drv, ok := r.drivers[key]; ok {
		return drv, nil
	}

	var drv driver.Driver
	switch kind := strings.ToLower(strings.TrimSpace(providerCfg.AIProvider)); kind {
	case "openrouter", "":
		client := openrouter.NewClient(providerCfg.BaseURL, cred.APIKey)
		client.Timeout = r.cfg.DefaultTimeout
		client.Tracer = r.tracer
		drv = client
	case "openai":
		client := openai.NewClient(providerCfg.BaseURL, cred.APIKey)
		client.Timeout = r.cfg.DefaultTimeout
		client.Tracer = r.tracer
		drv = client
	default:
		return nil, fmt.Errorf("unsupported ai_provider %q for provider %q", kind, providerID)
	}
	r.drivers[key] = drv
	return drv, nil
}

func (r *Registry) resolveModel(providerCfg ProviderInstanceConfig, override string) (string, error) {
	if model := strings.TrimSpace(override); model != "" {
		return model, nil
	}
	if model := strings.TrimSpace(providerCfg.Models["default"]); model != "" {
		return model, nil
	}
	if model := strings.TrimSpace(r.cfg.DefaultModel); model != "" {
		return model, nil
	}
	return "", fmt.Errorf("model not configured")
}

func (r *Registry) rrIndex(key string, n int) int {
	if n <= 1 || r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rr == nil {
		r.rr = map[string]int{}
	}
	idx := r.rr[key] % n
	r.rr[key]++
	return idx
}

func contains(values []string, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return false
	}
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), needle) {
			return true
		}
	}
	return false
}
