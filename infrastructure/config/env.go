// Package config provides environment/secret loading helpers and the
// published-asset configuration priority chain.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the environment variable value or def if unset/empty.
func GetEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// GetEnvBool parses the environment variable as a bool, or returns def.
func GetEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetEnvInt parses the environment variable as an int, or returns def.
func GetEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// RequireEnv returns the environment variable value or an error if unset.
func RequireEnv(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("required environment variable %q is not set", key)
	}
	return v, nil
}

// ParseDurationOrDefault parses s as a time.Duration, falling back to def
// on a parse error or empty string.
func ParseDurationOrDefault(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ParseBoolOrDefault parses s as a bool, falling back to def.
func ParseBoolOrDefault(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

// ParseIntOrDefault parses s as an int, falling back to def.
func ParseIntOrDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// SplitAndTrimCSV splits s on commas, trims whitespace from each element,
// and drops empty elements.
func SplitAndTrimCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DefaultTimeouts holds the orchestrator's stage-level default timeouts,
// overridable by environment variables of the same name.
type DefaultTimeouts struct {
	PlanTimeout    time.Duration
	ExecuteTimeout time.Duration
	ComposeTimeout time.Duration
	ToolTimeout    time.Duration
}

// GetDefaultTimeouts reads stage timeouts from the environment, falling
// back to the spec's documented defaults.
func GetDefaultTimeouts() DefaultTimeouts {
	return DefaultTimeouts{
		PlanTimeout:    ParseDurationOrDefault(os.Getenv("PLAN_TIMEOUT"), 5*time.Second),
		ExecuteTimeout: ParseDurationOrDefault(os.Getenv("EXECUTE_TIMEOUT"), 20*time.Second),
		ComposeTimeout: ParseDurationOrDefault(os.Getenv("COMPOSE_TIMEOUT"), 5*time.Second),
		ToolTimeout:    ParseDurationOrDefault(os.Getenv("TOOL_TIMEOUT"), 30*time.Second),
	}
}
