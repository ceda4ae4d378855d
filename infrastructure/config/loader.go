package config

import (
	"context"
)

// SettingsSource is satisfied by the Asset Registry's lookup of a published
// "operation_settings"-kind asset. Defined here (not imported from
// internal/asset) so this package has no dependency on the domain layer;
// internal/asset's Registry satisfies it without importing this package.
type SettingsSource interface {
	GetSetting(ctx context.Context, key string) (value string, found bool)
}

// Loader resolves a configuration key using the spec's documented priority:
// published asset value, then environment variable, then a caller-supplied
// default.
type Loader struct {
	settings SettingsSource
}

// NewLoader builds a Loader backed by settings. settings may be nil, in
// which case lookups fall through to env/default only.
func NewLoader(settings SettingsSource) *Loader {
	return &Loader{settings: settings}
}

// String resolves key as a string: published > env > def.
func (l *Loader) String(ctx context.Context, key, envKey, def string) string {
	if l.settings != nil {
		if v, ok := l.settings.GetSetting(ctx, key); ok {
			return v
		}
	}
	return GetEnv(envKey, def)
}

// Int resolves key as an int: published > env > def.
func (l *Loader) Int(ctx context.Context, key, envKey string, def int) int {
	if l.settings != nil {
		if v, ok := l.settings.GetSetting(ctx, key); ok {
			return ParseIntOrDefault(v, def)
		}
	}
	return GetEnvInt(envKey, def)
}

// Bool resolves key as a bool: published > env > def.
func (l *Loader) Bool(ctx context.Context, key, envKey string, def bool) bool {
	if l.settings != nil {
		if v, ok := l.settings.GetSetting(ctx, key); ok {
			return ParseBoolOrDefault(v, def)
		}
	}
	return GetEnvBool(envKey, def)
}
