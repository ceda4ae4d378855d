// Package tracer implements the Execution Tracer: per-stage/per-tool span
// capture, in-memory buffering with bounded-memory truncation, and a
// Postgres-backed append-only trace store (spec §4.11).
package tracer

import (
	"encoding/json"
	"time"
)

// Status is an ExecutionTrace's terminal outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusPartial Status = "partial"
)

// Span is one recorded execution of a stage or a tool call (spec's
// "Span — one recorded execution of a stage or a tool call").
type Span struct {
	Name      string                 `json:"name"`
	Input     map[string]interface{} `json:"input,omitempty"`
	Output    map[string]interface{} `json:"output,omitempty"`
	ElapsedMS int64                  `json:"elapsed_ms"`
	Status    string                 `json:"status"`
	Warnings  []string               `json:"warnings,omitempty"`
	Errors    []string               `json:"errors,omitempty"`
	AppliedAssets map[string]int     `json:"applied_assets,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	// truncated marks a span whose payload was dropped by the bounded
	// buffer policy rather than recorded in full.
	Truncated bool `json:"truncated,omitempty"`
}

// ToolCall is the {tool, elapsed, input_params, output_summary, error?,
// error_code?} record (spec §3 ExecutionTrace).
type ToolCall struct {
	Tool          string                 `json:"tool"`
	ElapsedMS     int64                  `json:"elapsed_ms"`
	InputParams   map[string]interface{} `json:"input_params,omitempty"`
	OutputSummary map[string]interface{} `json:"output_summary,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	CacheHit      bool                   `json:"cache_hit,omitempty"`
}

// ReplanEventRecord is the trace-local projection of a control-loop
// decision (spec's "replan_events list").
type ReplanEventRecord struct {
	StageName    string    `json:"stage_name"`
	TriggerType  string    `json:"trigger_type"`
	Reason       string    `json:"reason"`
	Approved     bool      `json:"approved"`
	Timestamp    time.Time `json:"timestamp"`
}

// Trace is the append-only ExecutionTrace record keyed by trace_id (spec
// §3). Once FinishedAt is set the record is immutable.
type Trace struct {
	TraceID       string              `json:"trace_id" db:"trace_id"`
	ParentTraceID string              `json:"parent_trace_id,omitempty" db:"parent_trace_id"`
	TenantID      string              `json:"tenant_id" db:"tenant_id"`
	Question      string              `json:"question" db:"question"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty" db:"finished_at"`
	Status        Status              `json:"status" db:"status"`
	DurationMS    int64               `json:"duration_ms" db:"duration_ms"`
	StageInputs   []Span              `json:"stage_inputs" db:"-"`
	StageOutputs  []Span              `json:"stage_outputs" db:"-"`
	ToolCalls     []ToolCall          `json:"tool_calls" db:"-"`
	AssetVersions map[string]int      `json:"asset_versions_applied" db:"-"`
	ReplanEvents  []ReplanEventRecord `json:"replan_events" db:"-"`

	// Body carries StageInputs/StageOutputs/ToolCalls/AssetVersions/
	// ReplanEvents encoded as one JSON blob for the "header + stage I/O
	// blob" persistent layout (spec §6); populated on read/write only.
	Body json.RawMessage `json:"-" db:"body"`
}

// traceBody is Trace's blob-column shape.
type traceBody struct {
	StageInputs   []Span              `json:"stage_inputs"`
	StageOutputs  []Span              `json:"stage_outputs"`
	ToolCalls     []ToolCall          `json:"tool_calls"`
	AssetVersions map[string]int      `json:"asset_versions_applied"`
	ReplanEvents  []ReplanEventRecord `json:"replan_events"`
}

func (t *Trace) marshalBody() error {
	b, err := json.Marshal(traceBody{
		StageInputs:   t.StageInputs,
		StageOutputs:  t.StageOutputs,
		ToolCalls:     t.ToolCalls,
		AssetVersions: t.AssetVersions,
		ReplanEvents:  t.ReplanEvents,
	})
	if err != nil {
		return err
	}
	t.Body = b
	return nil
}

func (t *Trace) unmarshalBody() error {
	if len(t.Body) == 0 {
		return nil
	}
	var body traceBody
	if err := json.Unmarshal(t.Body, &body); err != nil {
		return err
	}
	t.StageInputs = body.StageInputs
	t.StageOutputs = body.StageOutputs
	t.ToolCalls = body.ToolCalls
	t.AssetVersions = body.AssetVersions
	t.ReplanEvents = body.ReplanEvents
	return nil
}

// SearchFilter narrows a trace search (spec's "GET /inspector/traces?q=&tenant_id=&from=&to=&limit=&offset=").
type SearchFilter struct {
	Query    string
	TenantID string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}
