// Package planner implements the Planner: a deterministic keyword-driven
// pre-pass plus an optional LLM call that together produce a typed
// PlanOutput (spec §4.6).
package planner

import "github.com/ops-intel/orchestrator/internal/chainexec"

// OutputKind discriminates PlanOutput's three variants (spec §3).
type OutputKind string

const (
	KindDirectAnswer OutputKind = "direct_answer"
	KindReject       OutputKind = "reject"
	KindPlan         OutputKind = "plan"
)

// Output is the discriminated union a planning pass produces.
type Output struct {
	Kind OutputKind `json:"kind"`

	// direct_answer
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	// reject
	Reason string `json:"reason,omitempty"`

	// plan
	Steps        []chainexec.Step `json:"steps,omitempty"`
	OutputViews  []string         `json:"output_views,omitempty"`
	AggregateSpec map[string]interface{} `json:"aggregate_spec,omitempty"`
	GraphSpec     map[string]interface{} `json:"graph_spec,omitempty"`
	MetricSpec    map[string]interface{} `json:"metric_spec,omitempty"`
	HistorySpec   map[string]interface{} `json:"history_spec,omitempty"`
	AutoSpec      map[string]interface{} `json:"auto_spec,omitempty"`
}

// Intent is the pre-pass's best guess at the question's shape.
type Intent string

const (
	IntentAggregate Intent = "aggregate"
	IntentSeries    Intent = "series"
	IntentHistory   Intent = "history"
	IntentGraph     Intent = "graph"
	IntentList      Intent = "list"
	IntentUnknown   Intent = "unknown"
)

// PreHints is the deterministic pre-pass's output: everything extractable
// from the question text without calling an LLM (spec §4.6 step a).
type PreHints struct {
	Intent          Intent
	MetricAliases   []string
	Aggregation     string
	TimeRange       string
	GraphView       string
	GraphDepth      int
	Filters         map[string]string
	Confidence      float64
}
