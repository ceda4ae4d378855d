// Package resilience implements the per-tool circuit breaker state machine.
package resilience

import (
	"context"
	"sync"
	"time"
)

// State is one of the three circuit breaker states (spec §3 CircuitBreaker).
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config configures a single breaker's thresholds.
type Config struct {
	MaxFailures     int           // consecutive failures before opening
	Timeout         time.Duration // how long to stay open before probing
	HalfOpenMax     int           // consecutive half-open successes before closing
	OnStateChange   func(name string, from, to State)
}

// DefaultConfig matches the spec's documented defaults.
func DefaultConfig() Config {
	return Config{MaxFailures: 5, Timeout: 30 * time.Second, HalfOpenMax: 2}
}

// Breaker is a single named circuit breaker.
type Breaker struct {
	name string
	cfg  Config

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	consecutiveSuccess  int
	openedAt            time.Time
}

// NewBreaker constructs a closed breaker.
func NewBreaker(name string, cfg Config) *Breaker {
	return &Breaker{name: name, cfg: cfg, state: StateClosed}
}

// State returns the breaker's current state, first resolving an expired
// open-state timeout into half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeProbe()
	return b.state
}

// maybeProbe transitions open -> half_open once cfg.Timeout has elapsed.
// Caller must hold b.mu.
func (b *Breaker) maybeProbe() {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.Timeout {
		b.setState(StateHalfOpen)
		b.consecutiveSuccess = 0
	}
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// beforeRequest reports whether a request may proceed, returning
// ErrCircuitOpen if not.
func (b *Breaker) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeProbe()
	if b.state == StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

func (b *Breaker) afterRequest(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
		return
	}
	b.onSuccess()
}

func (b *Breaker) onFailure() {
	switch b.state {
	case StateHalfOpen:
		b.setState(StateOpen)
		b.openedAt = time.Now()
		b.consecutiveFailures = 0
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.MaxFailures {
			b.setState(StateOpen)
			b.openedAt = time.Now()
			b.consecutiveFailures = 0
		}
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateHalfOpen:
		b.consecutiveSuccess++
		if b.consecutiveSuccess >= b.cfg.HalfOpenMax {
			b.setState(StateClosed)
			b.consecutiveSuccess = 0
		}
	case StateClosed:
		b.consecutiveFailures = 0
	}
}

// Execute runs fn, gating on breaker state and recording the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.beforeRequest(); err != nil {
		return err
	}
	err := fn(ctx)
	b.afterRequest(err)
	return err
}

// ErrCircuitOpen is returned by Execute when the breaker is open.
var ErrCircuitOpen = &circuitOpenError{}

type circuitOpenError struct{}

func (e *circuitOpenError) Error() string { return "circuit breaker open" }

// Manager owns one named Breaker per tool, matching spec §4's Circuit
// Breaker Manager component (lazily created on first use, one per tool id).
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
}

// NewManager builds a Manager that lazily creates breakers with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get returns the named breaker, creating it if it doesn't exist yet.
func (m *Manager) Get(name string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, m.cfg)
	m.breakers[name] = b
	return b
}

// Execute runs fn through the named breaker.
func (m *Manager) Execute(ctx context.Context, name string, fn func(context.Context) error) error {
	return m.Get(name).Execute(ctx, fn)
}

// Snapshot returns the current state of every breaker known to the
// manager, for metrics/inspector reporting.
func (m *Manager) Snapshot() map[string]State {
	m.mu.Lock()
	names := make([]string, 0, len(m.breakers))
	breakers := make([]*Breaker, 0, len(m.breakers))
	for name, b := range m.breakers {
		names = append(names, name)
		breakers = append(breakers, b)
	}
	m.mu.Unlock()

	out := make(map[string]State, len(names))
	for i, name := range names {
		out[name] = breakers[i].State()
	}
	return out
}
