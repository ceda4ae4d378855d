// Package chainexec implements the Chain/DAG Executor: topological
// leveling, parallel dispatch within a level, and path-based
// output→input mapping between steps (spec §4.5).
package chainexec

// Step is one node of a plan's execution graph (spec §3 PlanOutput.plan.steps).
type Step struct {
	StepID         string                 `json:"step_id"`
	ToolName       string                 `json:"tool_name"`
	Parameters     map[string]interface{} `json:"parameters"`
	DependsOn      []string               `json:"depends_on,omitempty"`
	OutputMapping  map[string]string      `json:"output_mapping,omitempty"` // target_param -> "<step_id>.<path>"
	Required       bool                   `json:"required,omitempty"`
	ExecutionOrder int                    `json:"execution_order,omitempty"`
}

// Status is a step's terminal disposition after one chain execution.
type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusFailed         Status = "failed"
	StatusSkippedDepFail Status = "skipped_dep_failed"
	StatusCancelled      Status = "cancelled"
)

// StepResult is one step's recorded outcome, kept for later steps'
// output_mapping lookups and for the execution trace.
type StepResult struct {
	StepID    string      `json:"step_id"`
	Status    Status      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	ElapsedMS int64       `json:"elapsed_ms"`
}

// ChainResult is the DAG executor's overall outcome for one plan.
type ChainResult struct {
	Steps   []StepResult `json:"steps"`
	Partial bool         `json:"partial"`
}
