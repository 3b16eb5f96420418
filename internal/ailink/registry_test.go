package ailink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visionforge/visionforge/internal/ailink/driver/openai"
	"github.com/visionforge/visionforge/internal/ailink/driver/openrouter"
)

func TestResolveSingleEnabledProvider(t *testing.T) {
	reg := NewRegistry(Config{Providers: map[string]ProviderInstanceConfig{
		"router": OpenRouterProvider("key-1"),
	}}, nil)

	resolved, err := reg.Resolve(RoleAnalysis, "")
	require.NoError(t, err)
	require.Equal(t, "router", resolved.ProviderID)
	require.Equal(t, DefaultModel, resolved.Model)
	require.IsType(t, &openrouter.Client{}, resolved.Driver)
}

func TestResolvePrefersRoutingThenRoles(t *testing.T) {
	cfg := Config{
		Providers: map[string]ProviderInstanceConfig{
			"router": OpenRouterProvider("key-1"),
			"direct": {
				Enabled:     true,
				AIProvider:  "openai",
				Roles:       []string{"analysis"},
				Models:      map[string]string{"default": "gpt-4o"},
				Credentials: []CredentialConfig{{Enabled: true, APIKey: "key-2"}},
			},
		},
	}
	resolved, err := NewRegistry(cfg, nil).Resolve(RoleAnalysis, "")
	require.NoError(t, err)
	require.Equal(t, "direct", resolved.ProviderID)
	require.IsType(t, &openai.Client{}, resolved.Driver)

	cfg.Routing = map[string]string{"analysis": "router"}
	resolved, err = NewRegistry(cfg, nil).Resolve(RoleAnalysis, "override/model")
	require.NoError(t, err)
	require.Equal(t, "router", resolved.ProviderID)
	require.Equal(t, "override/model", resolved.Model)
}

func TestResolveErrors(t *testing.T) {
	_, err := NewRegistry(Config{}, nil).Resolve(RoleAnalysis, "")
	require.EqualError(t, err, "no enabled providers configured")

	disabled := OpenRouterProvider("k")
	disabled.Enabled = false
	_, err = NewRegistry(Config{DefaultProvider: "router", Providers: map[string]ProviderInstanceConfig{"router": disabled}}, nil).Resolve("", "")
	require.EqualError(t, err, `provider "router" is disabled`)

	_, err = NewRegistry(Config{Providers: map[string]ProviderInstanceConfig{"router": OpenRouterProvider("")}}, nil).Resolve("", "")
	require.EqualError(t, err, `provider "router" has no usable api key`)

	unknown := OpenRouterProvider("k")
	unknown.AIProvider = "carrier-pigeon"
	_, err = NewRegistry(Config{Providers: map[string]ProviderInstanceConfig{"p": unknown}}, nil).Resolve("", "")
	require.ErrorContains(t, err, "unsupported ai_provider")
}

func TestSelectCredentialRoundRobin(t *testing.T) {
	cfg := ProviderInstanceConfig{
		SelectionPolicy: "round_robin",
		Credentials: []CredentialConfig{
			{Enabled: true, Label: "a", APIKey: "ka", Priority: 1},
			{Enabled: true, Label: "b", APIKey: "kb", Priority: 1},
			{Enabled: true, Label: "low", APIKey: "kl", Priority: 0},
		},
	}
	reg := NewRegistry(Config{}, nil)
	next := func(group string, n int) int { return reg.rrIndex("p:"+group, n) }

	var labels []string
	for i := 0; i < 3; i++ {
		cred, _, err := selectCredential(cfg, next)
		require.NoError(t, err)
		labels = append(labels, cred.Label)
	}
	require.Equal(t, []string{"a", "b", "a"}, labels)
}

func TestSelectCredentialDefaultLabel(t *testing.T) {
	cfg := ProviderInstanceConfig{
		DefaultCredential: "backup",
		Credentials: []CredentialConfig{
			{Enabled: true, Label: "main", APIKey: "k1", Priority: 5},
			{Enabled: true, Label: "backup", APIKey: "k2"},
		},
	}
	cred, key, err := selectCredential(cfg, nil)
	require.NoError(t, err)
	require.Equal(t, "backup", cred.Label)
	require.Equal(t, "backup", key)
}

func TestDriversAreReused(t *testing.T) {
	reg := NewRegistry(Config{Providers: map[string]ProviderInstanceConfig{"router": OpenRouterProvider("k")}}, nil)
	first, err := reg.Resolve("", "")
	require.NoError(t, err)
	second, err := reg.Resolve("", "")
	require.NoError(t, err)
	require.Same(t, first.Driver, second.Driver)
}
