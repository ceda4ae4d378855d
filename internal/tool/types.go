// Package tool implements the Tool Registry and Executor: the uniform,
// declarative dispatch layer for database_query/http_api/graph_query/
// search/mcp tools.
package tool

import "time"

// Kind discriminates how a Tool dispatches.
type Kind string

const (
	KindDatabaseQuery Kind = "database_query"
	KindHTTPAPI       Kind = "http_api"
	KindGraphQuery    Kind = "graph_query"
	KindSearch        Kind = "search"
	KindMCP           Kind = "mcp"
)

// CapabilityType classifies what a tool's backend access pattern is,
// ported from original_source's capability_registry.py CapabilityType.
type CapabilityType string

const (
	CapabilityReadWrite  CapabilityType = "READ_WRITE"
	CapabilityReadOnly   CapabilityType = "READ_ONLY"
	CapabilityAppendOnly CapabilityType = "APPEND_ONLY"
	CapabilityTimeSeries CapabilityType = "TIME_SERIES"
	CapabilityAPICall    CapabilityType = "API_CALL"
	CapabilityGraphQuery CapabilityType = "GRAPH_QUERY"
	CapabilitySearch     CapabilityType = "SEARCH"
)

// ExecutionMode classifies how the executor may schedule calls to a tool,
// ported from capability_registry.py's ExecutionMode.
type ExecutionMode string

const (
	ExecutionSerial    ExecutionMode = "SERIAL"
	ExecutionParallel  ExecutionMode = "PARALLEL"
	ExecutionStreaming ExecutionMode = "STREAMING"
	ExecutionBatch     ExecutionMode = "BATCH"
)

// RetryPolicy configures the Tool Executor's retry/fallback behavior for
// one tool.
type RetryPolicy struct {
	RetryCount        int           `json:"retry_count"`
	RetryDelaySeconds int           `json:"retry_delay_seconds"`
	FallbackEnabled   bool          `json:"fallback_enabled"`
	FallbackToolName  string        `json:"fallback_tool_name"`
}

// Capability is the ToolCapability dataclass from capability_registry.py,
// kept distinct from Tool itself and derived from the Tool asset's
// `capability flags` field at registry load time (SPEC_FULL.md F.3).
type Capability struct {
	Type              CapabilityType `json:"capability_type"`
	ExecutionMode     ExecutionMode  `json:"execution_mode"`
	MaxConcurrentCalls int           `json:"max_concurrent_calls"`
	TimeoutSeconds    int            `json:"timeout_seconds"`
	RateLimitPerMinute int           `json:"rate_limit_per_minute"`
	MaxResultSizeMB   int            `json:"max_result_size_mb"`
	SupportedTenants  []string       `json:"supported_tenants"`
	MaxRows           int            `json:"max_rows"`
	RequiresAuth      bool           `json:"requires_authentication"`
	DependsOn         []string       `json:"depends_on"`
	Version           int            `json:"version"`
	Deprecated        bool           `json:"deprecated"`
	Description       string         `json:"description"`
}

// Def is the decoded content of a tool-type Asset (spec §3 Tool).
type Def struct {
	Name        string         `json:"name"`
	Kind        Kind           `json:"kind"`
	SourceRef   string         `json:"source_ref"`
	QueryRef    string         `json:"query_ref"`
	InputSchema map[string]interface{} `json:"input_schema"`
	OutputSchema map[string]interface{} `json:"output_schema"`
	Timeout     time.Duration  `json:"timeout"`
	Capability  Capability     `json:"capability"`
	Retry       RetryPolicy    `json:"retry"`
	Operation   string         `json:"operation"`
	HTTPMethod  string         `json:"http_method"`
	HTTPPath    string         `json:"http_path"`
	HTTPBodyTemplate string    `json:"http_body_template"`
}

// CallRecord is the {tool, elapsed, input_params, output_summary, error?,
// error_code?} record written to the trace (spec §3 ExecutionTrace).
type CallRecord struct {
	Tool          string                 `json:"tool"`
	ElapsedMS     int64                  `json:"elapsed_ms"`
	InputParams   map[string]interface{} `json:"input_params"`
	OutputSummary map[string]interface{} `json:"output_summary,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	CacheHit      bool                   `json:"cache_hit,omitempty"`
}

// Result is one tool invocation's outcome.
type Result struct {
	Data     interface{}
	Summary  map[string]interface{}
	CacheHit bool
}
