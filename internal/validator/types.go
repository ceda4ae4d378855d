// Package validator implements the Plan Validator: schema validation,
// budget/view/relation policy clamping, tenant isolation, tool existence,
// and pre-safety delegation (spec §4.7).
package validator

// BudgetPolicy is the published plan_budget system asset's decoded shape
// (spec §4.1: required, hard-fails when missing).
type BudgetPolicy struct {
	MaxSteps       int `json:"max_steps"`
	MaxTimeoutSec  int `json:"max_timeout_seconds"`
	MaxGraphDepth  int `json:"max_graph_depth"`
	MaxParallelism int `json:"max_parallelism"`
}

// ViewPolicy is one graph view's depth/direction policy, part of the
// published view_depth system asset (spec §4.1).
type ViewPolicy struct {
	DefaultDepth     int    `json:"default_depth"`
	MaxDepth         int    `json:"max_depth"`
	DefaultDirection string `json:"default_direction"`
}

// ViewDepthPolicy decodes the view_depth system asset: one ViewPolicy per
// graph view name.
type ViewDepthPolicy map[string]ViewPolicy

// RelationAllowlist decodes the optional graph_relation_allowlist mapping
// asset (spec §4.7 step 4).
type RelationAllowlist struct {
	Views map[string][]string `json:"views"`
}

// Decisions records every clamp/allowlist decision the validator made, for
// the execution trace's policy_decisions field (spec §4.7, §8 scenario 4).
type Decisions struct {
	DepthClamped      bool              `json:"depth_clamped,omitempty"`
	StepsClamped      bool              `json:"steps_clamped,omitempty"`
	TimeoutClamped    bool              `json:"timeout_clamped,omitempty"`
	RelationsFiltered bool              `json:"relations_filtered,omitempty"`
	AppliedDepths     map[string]int    `json:"applied_depths,omitempty"`
	AppliedDirections map[string]string `json:"applied_directions,omitempty"`
}
