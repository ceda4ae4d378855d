// Package ratelimit provides per-tool token bucket rate limiting.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config configures a single limiter.
type Config struct {
	RequestsPerMinute int
	Burst             int
}

// Limiter wraps golang.org/x/time/rate.Limiter with a per-minute dial,
// matching the teacher's ratelimit.go RateLimiter shape.
type Limiter struct {
	limiter *rate.Limiter
	perMin  int
}

// NewLimiter builds a Limiter from cfg. A RequestsPerMinute <= 0 means
// unlimited.
func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return &Limiter{limiter: nil, perMin: 0}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	perSecond := float64(cfg.RequestsPerMinute) / 60.0
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst), perMin: cfg.RequestsPerMinute}
}

// Allow reports whether a request may proceed right now without blocking.
func (l *Limiter) Allow() bool {
	if l.limiter == nil {
		return true
	}
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Manager owns one Limiter per tool id, created lazily from a shared
// per-tool configuration looked up by name.
type Manager struct {
	mu       sync.Mutex
	configs  map[string]Config
	limiters map[string]*Limiter
	fallback Config
}

// NewManager builds a Manager. fallback is used for tools with no
// registered per-tool Config.
func NewManager(fallback Config) *Manager {
	return &Manager{
		configs:  make(map[string]Config),
		limiters: make(map[string]*Limiter),
		fallback: fallback,
	}
}

// Configure sets the rate limit configuration for a specific tool id,
// read from that tool's ToolCapability.RateLimitPerMinute at registry load
// time.
func (m *Manager) Configure(toolID string, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[toolID] = cfg
	delete(m.limiters, toolID) // reconfigure lazily on next Get
}

// Get returns the Limiter for toolID, creating it on first use.
func (m *Manager) Get(toolID string) *Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[toolID]; ok {
		return l
	}
	cfg, ok := m.configs[toolID]
	if !ok {
		cfg = m.fallback
	}
	l := NewLimiter(cfg)
	m.limiters[toolID] = l
	return l
}

// Allow is a convenience wrapper around Get(toolID).Allow().
func (m *Manager) Allow(toolID string) bool {
	return m.Get(toolID).Allow()
}

// Wait is a convenience wrapper around Get(toolID).Wait(ctx).
func (m *Manager) Wait(ctx context.Context, toolID string) error {
	return m.Get(toolID).Wait(ctx)
}
