package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/infrastructure/logging"
	"github.com/ops-intel/orchestrator/infrastructure/ratelimit"
	"github.com/ops-intel/orchestrator/infrastructure/resilience"
	"github.com/ops-intel/orchestrator/internal/resolver"
	"github.com/ops-intel/orchestrator/internal/source"
)

// SourceLookup resolves a tool's source_ref into the connection definition
// to dial, decoupling Executor from how source-type assets are stored.
type SourceLookup func(ctx context.Context, sourceRef string) (source.Def, error)

// Executor runs the fixed ten-step tool invocation pipeline (spec §4.4):
// lookup, tenant check, capability check, input validation, cache lookup,
// circuit breaker gate, rate limit gate, dispatch, output recording,
// fallback.
type Executor struct {
	registry     *Registry
	resolver     *resolver.Resolver
	conns        *source.Manager
	breakers     *resilience.Manager
	limiters     *ratelimit.Manager
	cache        *ResultCache
	logger       *logging.Logger
	sourceLookup SourceLookup
}

// NewExecutor wires an Executor from its already-constructed collaborators.
func NewExecutor(registry *Registry, res *resolver.Resolver, conns *source.Manager, breakers *resilience.Manager, limiters *ratelimit.Manager, cache *ResultCache, logger *logging.Logger, sourceLookup SourceLookup) *Executor {
	return &Executor{registry: registry, resolver: res, conns: conns, breakers: breakers, limiters: limiters, cache: cache, logger: logger, sourceLookup: sourceLookup}
}

// Invoke runs the full pipeline for one tool call and returns its Result
// alongside the CallRecord the caller should append to the execution
// trace (spec §3 ExecutionTrace.tool_calls).
func (e *Executor) Invoke(ctx context.Context, toolName, tenantID string, params map[string]interface{}) (*Result, CallRecord, error) {
	start := time.Now()
	record := CallRecord{Tool: toolName, InputParams: params}

	result, err := e.invoke(ctx, toolName, tenantID, params)
	record.ElapsedMS = time.Since(start).Milliseconds()

	if err != nil {
		appErr := apperrors.As(err)
		if appErr != nil {
			record.ErrorCode = string(appErr.Code)
		}
		record.Error = err.Error()
	} else {
		record.CacheHit = result.CacheHit
		record.OutputSummary = result.Summary
	}

	if e.logger != nil {
		code := ""
		if record.ErrorCode != "" {
			code = record.ErrorCode
		}
		e.logger.LogToolCall(ctx, toolName, time.Since(start), code)
	}
	return result, record, err
}

func (e *Executor) invoke(ctx context.Context, toolName, tenantID string, params map[string]interface{}) (*Result, error) {
	// Step 1: lookup.
	def, err := e.registry.Get(toolName)
	if err != nil {
		return nil, err
	}

	// Step 2: tenant check.
	if !tenantSupported(def.Capability.SupportedTenants, tenantID) {
		return nil, apperrors.Of(apperrors.CodeTenantMismatch, "tool not available for tenant: "+toolName).
			WithDetails("tool", toolName).WithDetails("tenant_id", tenantID)
	}

	// Step 3: capability check.
	if def.Capability.Deprecated {
		return nil, apperrors.Of(apperrors.CodeToolBadRequest, "tool is deprecated: "+toolName)
	}

	// Step 4: input validation.
	if err := validateInput(def, params); err != nil {
		return nil, err
	}

	// Step 5: cache lookup.
	cacheKey := ""
	if e.cache != nil {
		canon, err := resolver.CanonicalizeParams(params)
		if err == nil {
			cacheKey = toolName + "|" + tenantID + "|" + canon
			if v, ok := e.cache.Get(cacheKey); ok {
				if res, ok := v.(*Result); ok {
					cached := *res
					cached.CacheHit = true
					return &cached, nil
				}
			}
		}
	}

	// Steps 6-8 run inside the breaker so a dispatch failure is recorded
	// against that tool's circuit.
	var result *Result
	execErr := e.breakers.Execute(ctx, toolName, func(ctx context.Context) error {
		// Step 7: rate limit gate.
		if !e.limiters.Allow(toolName) {
			return apperrors.Of(apperrors.CodeRateLimited, "rate limit exceeded: "+toolName)
		}

		// Step 8: dispatch.
		r, err := e.dispatch(ctx, def, tenantID, params)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	if execErr != nil {
		if execErr == resilience.ErrCircuitOpen {
			execErr = apperrors.Of(apperrors.CodeCircuitOpen, "circuit open for tool: "+toolName)
		}
		// Step 10: fallback.
		if fallback, ok := e.tryFallback(ctx, def, tenantID, params, execErr); ok {
			return fallback, nil
		}
		return nil, execErr
	}

	// Step 9: output recording (cache on success).
	if e.cache != nil && cacheKey != "" {
		e.cache.Set(cacheKey, result)
	}
	return result, nil
}

func tenantSupported(supported []string, tenantID string) bool {
	if len(supported) == 0 {
		return true
	}
	for _, t := range supported {
		if t == "*" || t == tenantID {
			return true
		}
	}
	return false
}

// validateInput performs a structural presence check against the tool's
// declared input_schema, read as {"required": [...], "properties": {...}};
// only "required" is consulted. No JSON-schema library
// appears anywhere in the retrieval pack, so this stays a targeted
// required-field walk rather than a hand-rolled schema validator.
func validateInput(def *Def, params map[string]interface{}) error {
	required, _ := def.InputSchema["required"].([]interface{})
	for _, r := range required {
		name, ok := r.(string)
		if !ok {
			continue
		}
		if _, present := params[name]; !present {
			return apperrors.Of(apperrors.CodeToolBadRequest, "missing required parameter: "+name).
				WithDetails("tool", def.Name)
		}
	}
	return nil
}

// dispatch executes def against its backend by kind (spec §4.4 step 8).
func (e *Executor) dispatch(ctx context.Context, def *Def, tenantID string, params map[string]interface{}) (*Result, error) {
	switch def.Kind {
	case KindDatabaseQuery:
		return e.dispatchDatabaseQuery(ctx, def, tenantID, params)
	case KindHTTPAPI:
		return e.dispatchHTTP(ctx, def, params)
	case KindGraphQuery:
		return e.dispatchGraph(ctx, def, tenantID, params)
	case KindSearch:
		return e.dispatchHTTP(ctx, def, params)
	case KindMCP:
		return nil, apperrors.Of(apperrors.CodeToolBadRequest, "mcp dispatch not configured for tool: "+def.Name)
	default:
		return nil, apperrors.Of(apperrors.CodeConfigurationError, "unknown tool kind: "+string(def.Kind))
	}
}

func (e *Executor) dispatchDatabaseQuery(ctx context.Context, def *Def, tenantID string, params map[string]interface{}) (*Result, error) {
	_, bound, err := e.resolver.Resolve(ctx, "ops", "database_query", def.Operation, tenantID, params)
	if err != nil {
		return nil, err
	}
	sourceDef, err := e.sourceLookup(ctx, def.SourceRef)
	if err != nil {
		return nil, err
	}
	conn, err := e.conns.Open(ctx, def.SourceRef, sourceDef, true)
	if err != nil {
		return nil, err
	}
	sqlConn, ok := conn.(source.SQLConnection)
	if !ok {
		return nil, apperrors.Of(apperrors.CodeConfigurationError, "source is not a SQL connection: "+def.SourceRef)
	}
	rows, err := sqlConn.Query(ctx, bound.Statement, bound.Args)
	if err != nil {
		return nil, err
	}
	if def.Capability.MaxRows > 0 && len(rows) > def.Capability.MaxRows {
		return nil, apperrors.Of(apperrors.CodeMaxRowsExceeded, "result exceeds max_rows for tool: "+def.Name).
			WithDetails("max_rows", def.Capability.MaxRows).WithDetails("row_count", len(rows))
	}
	return &Result{
		Data:    rows,
		Summary: map[string]interface{}{"row_count": len(rows)},
	}, nil
}

func (e *Executor) dispatchGraph(ctx context.Context, def *Def, tenantID string, params map[string]interface{}) (*Result, error) {
	_, bound, err := e.resolver.Resolve(ctx, "ops", "graph_query", def.Operation, tenantID, params)
	if err != nil {
		return nil, err
	}
	sourceDef, err := e.sourceLookup(ctx, def.SourceRef)
	if err != nil {
		return nil, err
	}
	conn, err := e.conns.Open(ctx, def.SourceRef, sourceDef, true)
	if err != nil {
		return nil, err
	}
	graphConn, ok := conn.(source.GraphConnection)
	if !ok {
		return nil, apperrors.Of(apperrors.CodeConfigurationError, "source is not a graph connection: "+def.SourceRef)
	}
	rows, err := graphConn.RunCypher(ctx, bound.Statement, params)
	if err != nil {
		return nil, err
	}
	return &Result{Data: rows, Summary: map[string]interface{}{"row_count": len(rows)}}, nil
}

func (e *Executor) dispatchHTTP(ctx context.Context, def *Def, params map[string]interface{}) (*Result, error) {
	sourceDef, err := e.sourceLookup(ctx, def.SourceRef)
	if err != nil {
		return nil, err
	}
	conn, err := e.conns.Open(ctx, def.SourceRef, sourceDef, true)
	if err != nil {
		return nil, err
	}
	httpConn, ok := conn.(source.HTTPConnection)
	if !ok {
		return nil, apperrors.Of(apperrors.CodeConfigurationError, "source is not an HTTP connection: "+def.SourceRef)
	}
	path := renderPath(def.HTTPPath, params)
	status, body, err := httpConn.Do(ctx, httpMethodOrDefault(def.HTTPMethod), path, nil, nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, apperrors.Of(apperrors.CodeUpstreamUnavailable, fmt.Sprintf("upstream returned status %d", status)).
			WithDetails("status", status)
	}
	return &Result{
		Data:    string(body),
		Summary: map[string]interface{}{"status": status, "bytes": len(body)},
	}, nil
}

func httpMethodOrDefault(m string) string {
	if m == "" {
		return "GET"
	}
	return m
}

// renderPath substitutes {name} placeholders in an HTTP path template with
// params, matching the resolver's {name} convention used for SQL.
func renderPath(path string, params map[string]interface{}) string {
	out := path
	for k, v := range params {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprintf("%v", v))
	}
	return out
}

// tryFallback retries once against def.Retry.FallbackToolName when cause
// is retryable (or a locally-absorbed breaker/rate-limit rejection) and
// not one of the non-retryable policy/validation codes (spec §4.4 step 10).
func (e *Executor) tryFallback(ctx context.Context, def *Def, tenantID string, params map[string]interface{}, cause error) (*Result, bool) {
	if !def.Retry.FallbackEnabled || def.Retry.FallbackToolName == "" {
		return nil, false
	}
	code := apperrors.CodeOf(cause)
	switch code {
	case apperrors.CodePolicyDeny, apperrors.CodeToolBadRequest, apperrors.CodeSQLBlocked, apperrors.CodeTenantMismatch:
		return nil, false
	}
	appErr := apperrors.As(cause)
	retryable := code == apperrors.CodeCircuitOpen || code == apperrors.CodeRateLimited || (appErr != nil && appErr.Retryable())
	if !retryable {
		return nil, false
	}
	result, _, err := e.Invoke(ctx, def.Retry.FallbackToolName, tenantID, params)
	if err != nil {
		return nil, false
	}
	return result, true
}
