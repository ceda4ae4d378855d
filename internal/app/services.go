// Package app wires every collaborator package into a single process-wide
// Services value, built once at startup and threaded explicitly through
// request handlers — no package-level globals (the REDESIGN FLAG against
// "global mutable singletons... hidden global state" in favor of "a
// process-wide Services value constructed at startup, passed explicitly
// into each request context").
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/infrastructure/config"
	"github.com/ops-intel/orchestrator/infrastructure/logging"
	"github.com/ops-intel/orchestrator/infrastructure/ratelimit"
	"github.com/ops-intel/orchestrator/infrastructure/resilience"
	"github.com/ops-intel/orchestrator/internal/asset"
	"github.com/ops-intel/orchestrator/internal/chainexec"
	"github.com/ops-intel/orchestrator/internal/pipeline"
	"github.com/ops-intel/orchestrator/internal/planner"
	"github.com/ops-intel/orchestrator/internal/platform/database"
	"github.com/ops-intel/orchestrator/internal/resolver"
	"github.com/ops-intel/orchestrator/internal/source"
	"github.com/ops-intel/orchestrator/internal/tool"
	"github.com/ops-intel/orchestrator/internal/tracer"
	"github.com/ops-intel/orchestrator/internal/validator"
)

// sourceScope is the asset scope every source-type asset is published
// under; sources are process-wide, never per-tenant (spec §3 Source has
// no tenant_id field).
const sourceScope = "ops"

// toolScope is the asset scope Tool Registry.Reload reads published
// tool-type assets from.
const toolScope = "ops"

// Services is the fully wired, process-wide dependency graph. One value
// is constructed in cmd/orchestrator's main and passed into every HTTP
// handler; nothing here is package-level state.
type Services struct {
	DB       *sqlx.DB
	Assets   *asset.Registry
	Sources  *source.Manager
	Tools    *tool.Registry
	Breakers *resilience.Manager
	Limiters *ratelimit.Manager
	Resolver *resolver.Resolver
	Pipeline *pipeline.Pipeline
	Traces   *tracer.Manager
	Logger   *logging.Logger
}

// Options configures Build with the environment-driven knobs spec §4.1's
// ambient configuration layer exposes. Build uses every field as given
// and substitutes no defaults; DefaultOptions fills them from the
// environment. Only the tracer replaces a zero TraceMaxBufferBytes with
// its built-in size, and a zero TraceRetention disables the sweep.
type Options struct {
	PostgresDSN          string
	LogLevel             string
	LogFormat            string
	ConfidenceThreshold  float64
	PlannerSystemPrompt  string
	LLMClient            planner.LLMClient
	ToolCacheDefaultTTL  time.Duration
	ToolCacheCleanup     time.Duration
	CircuitBreaker       resilience.Config
	RateLimitFallback    ratelimit.Config
	TraceMaxBufferBytes  int
	TraceRetention       time.Duration
	TraceSweepCron       string
	MaxChainParallelism  int
}

// DefaultOptions loads Options from the environment, matching the
// teacher's GetEnv/GetEnvInt/ParseDurationOrDefault configuration style
// (infrastructure/config).
func DefaultOptions() Options {
	return Options{
		PostgresDSN:         config.GetEnv("ORCH_POSTGRES_DSN", ""),
		LogLevel:            config.GetEnv("ORCH_LOG_LEVEL", "info"),
		LogFormat:           config.GetEnv("ORCH_LOG_FORMAT", "json"),
		ConfidenceThreshold: 0.6,
		ToolCacheDefaultTTL: config.ParseDurationOrDefault(config.GetEnv("ORCH_TOOL_CACHE_TTL", ""), 30*time.Second),
		ToolCacheCleanup:    config.ParseDurationOrDefault(config.GetEnv("ORCH_TOOL_CACHE_SWEEP", ""), 5*time.Minute),
		CircuitBreaker:      resilience.DefaultConfig(),
		RateLimitFallback:   ratelimit.Config{RequestsPerMinute: config.GetEnvInt("ORCH_RATE_LIMIT_FALLBACK_RPM", 120)},
		TraceMaxBufferBytes: config.GetEnvInt("ORCH_TRACE_MAX_BUFFER_BYTES", 256*1024),
		TraceRetention:      config.ParseDurationOrDefault(config.GetEnv("ORCH_TRACE_RETENTION", ""), 30*24*time.Hour),
		TraceSweepCron:      config.GetEnv("ORCH_TRACE_SWEEP_CRON", "0 0 * * *"),
		MaxChainParallelism: config.GetEnvInt("ORCH_MAX_CHAIN_PARALLELISM", 8),
	}
}

// Build opens the database, constructs every collaborator in dependency
// order, and returns a ready-to-serve Services. Callers must call
// Services.Close when done.
func Build(ctx context.Context, opts Options) (*Services, error) {
	logger := logging.New("orchestrator", opts.LogLevel, opts.LogFormat)

	db, err := database.Open(ctx, opts.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	assetStore := asset.NewPostgresStore(db)
	assets := asset.NewRegistry(assetStore, logger)

	sources := source.NewManager()
	tools := tool.NewRegistry(assets, toolScope)
	if err := tools.Reload(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("load tool registry: %w", err)
	}

	breakers := resilience.NewManager(opts.CircuitBreaker)
	limiters := ratelimit.NewManager(opts.RateLimitFallback)
	for _, kind := range []tool.Kind{tool.KindDatabaseQuery, tool.KindHTTPAPI, tool.KindGraphQuery, tool.KindSearch, tool.KindMCP} {
		for _, def := range tools.ByKind(kind) {
			if def.Capability.RateLimitPerMinute > 0 {
				limiters.Configure(def.Name, ratelimit.Config{RequestsPerMinute: def.Capability.RateLimitPerMinute})
			}
		}
	}
	res := resolver.NewResolver(assets)
	cache := tool.NewResultCache(opts.ToolCacheDefaultTTL, opts.ToolCacheCleanup)

	lookup := sourceLookup(assets)
	executor := tool.NewExecutor(tools, res, sources, breakers, limiters, cache, logger, lookup)
	chain := chainexec.NewExecutor(executor, opts.MaxChainParallelism)

	pl := planner.New(assets, tools, opts.LLMClient, opts.ConfidenceThreshold, opts.PlannerSystemPrompt)
	val := validator.New(assets, tools, res)

	traceStore := tracer.NewPostgresStore(db)
	traces := tracer.NewManager(traceStore, logger, opts.TraceMaxBufferBytes, opts.TraceRetention)
	if opts.TraceSweepCron != "" {
		if err := traces.StartSweeper(opts.TraceSweepCron); err != nil {
			logger.WithField("error", err).Warn("trace retention sweeper did not start")
		}
	}

	pipe := pipeline.New(assets, pl, val, chain, traces, logger)

	return &Services{
		DB:       db,
		Assets:   assets,
		Sources:  sources,
		Tools:    tools,
		Breakers: breakers,
		Limiters: limiters,
		Resolver: res,
		Pipeline: pipe,
		Traces:   traces,
		Logger:   logger,
	}, nil
}

// Close releases every pooled resource. Safe to call once at shutdown.
func (s *Services) Close() {
	s.Traces.StopSweeper()
	s.Sources.CloseAll()
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

// sourceLookup adapts the Asset Registry's published source-type assets
// into the tool.SourceLookup seam the Executor dispatch step needs:
// decode the single published source-type asset named sourceRef under
// the process-wide "ops" scope into a source.Def (spec §4.2).
func sourceLookup(assets *asset.Registry) tool.SourceLookup {
	return func(ctx context.Context, sourceRef string) (source.Def, error) {
		a, err := assets.Get(ctx, asset.Key{Type: asset.TypeSource, Scope: sourceScope, Name: sourceRef})
		if err != nil {
			return source.Def{}, err
		}
		if a == nil {
			return source.Def{}, apperrors.Of(apperrors.CodeConfigurationError, "no published source asset: "+sourceRef).
				WithDetails("source_ref", sourceRef)
		}
		var def source.Def
		if err := json.Unmarshal(a.Content, &def); err != nil {
			return source.Def{}, apperrors.Ofw(apperrors.CodeConfigurationError, "malformed source asset: "+sourceRef, err)
		}
		return def, nil
	}
}
