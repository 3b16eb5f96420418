// Package appid resolves the application identity.
//
// An explicit identity file (FULMEN_APP_IDENTITY_PATH or a .fulmen/app.yaml in
// the working tree) wins. Otherwise the built-in visionforge identity is used so
// the binary works standalone.
package appid

import (
	"context"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
)

const (
	BinaryName  = "visionforge"
	ConfigName  = "visionforge"
	EnvPrefix   = "VISIONFORGE_"
	Vendor      = "visionforge"
	Description = "Vision prompt engineering toolkit: technique validation, prompt building and response processing"
)

// Default returns the built-in identity.
func Default() *appidentity.Identity {
	return &appidentity.Identity{
		BinaryName:  BinaryName,
		Vendor:      Vendor,
		EnvPrefix:   EnvPrefix,
		ConfigName:  ConfigName,
		Description: Description,
	}
}

// Get returns the discovered identity, or Default when none is present. An
// explicitly configured identity path that cannot be loaded is an error.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	identity, err := appidentity.Get(ctx)
	if err == nil && identity != nil {
		return identity, nil
	}
	if strings.TrimSpace(os.Getenv(appidentity.EnvIdentityPath)) != "" {
		return nil, err
	}
	return Default(), nil
}

// Prefix returns the identity's env prefix with a trailing underscore.
func Prefix(identity *appidentity.Identity) string {
	prefix := EnvPrefix
	if identity != nil && strings.TrimSpace(identity.EnvPrefix) != "" {
		prefix = identity.EnvPrefix
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}
