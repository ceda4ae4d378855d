// Package controlloop implements the Control Loop: the should-replan
// decision gate that sits between a failed pipeline stage and a new
// planning pass (spec §4's replan path, pinned down by
// original_source/.../control_loop.py).
package controlloop

import "time"

// Severity classifies how urgent a replan trigger is; only "critical"
// can override a cooling period.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// TriggerType enumerates the reasons a stage can ask for a replan.
type TriggerType string

const (
	TriggerError           TriggerType = "error"
	TriggerTimeout         TriggerType = "timeout"
	TriggerPolicyViolation TriggerType = "policy_violation"
	TriggerLowConfidence   TriggerType = "low_confidence"
	TriggerPartialResult   TriggerType = "partial_result"
)

// ParseTriggerType normalizes a free-form string into a TriggerType,
// mirroring safe_parse_trigger's string-to-enum coercion.
func ParseTriggerType(s string) (TriggerType, bool) {
	switch TriggerType(s) {
	case TriggerError, TriggerTimeout, TriggerPolicyViolation, TriggerLowConfidence, TriggerPartialResult:
		return TriggerType(s), true
	default:
		return "", false
	}
}

// ReplanTrigger is the request a stage raises when it wants the Control
// Loop to consider a replan.
type ReplanTrigger struct {
	TriggerType TriggerType `json:"trigger_type"`
	StageName   string      `json:"stage_name"`
	Reason      string      `json:"reason"`
	Severity    Severity    `json:"severity"`
}

// PatchDiff describes what would change about the plan on replan (kept
// opaque to the Control Loop itself — it only gates the decision).
type PatchDiff struct {
	Description string                 `json:"description,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
}

// DecisionMetadata is attached to every ReplanEvent for the execution
// trace (spec F.3: "decision_metadata map with trace_id and
// evaluation_time").
type DecisionMetadata struct {
	TraceID        string    `json:"trace_id"`
	ShouldReplan   bool      `json:"should_replan"`
	EvaluationTime time.Time `json:"evaluation_time"`
}

// ReplanEvent records one replan decision, approved or not.
type ReplanEvent struct {
	EventType        string            `json:"event_type"`
	StageName        string            `json:"stage_name"`
	Trigger          ReplanTrigger     `json:"trigger"`
	Patch            PatchDiff         `json:"patch"`
	Timestamp        time.Time         `json:"timestamp"`
	DecisionMetadata DecisionMetadata  `json:"decision_metadata"`
}

// Policy configures replan gating thresholds (spec §4.1's control_loop
// system asset, shaped after ControlLoopPolicy).
type Policy struct {
	MaxReplans            int           `json:"max_replans"`
	AllowedTriggers       []TriggerType `json:"allowed_triggers"`
	EnableAutomaticReplan bool          `json:"enable_automatic_replan"`
	MinInterval           time.Duration `json:"min_interval_seconds"`
	CoolingPeriod         time.Duration `json:"cooling_period_seconds"`
}

// DefaultPolicy mirrors ControlLoopPolicy's constructor defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxReplans:            3,
		AllowedTriggers:       []TriggerType{TriggerError, TriggerTimeout, TriggerPolicyViolation},
		EnableAutomaticReplan: true,
		MinInterval:           60 * time.Second,
		CoolingPeriod:         300 * time.Second,
	}
}

// Validate reports configuration errors, mirroring validate_policy.
func (p Policy) Validate() []string {
	var errs []string
	if p.MaxReplans <= 0 {
		errs = append(errs, "max_replans must be positive")
	}
	if p.MinInterval <= 0 {
		errs = append(errs, "min_interval_seconds must be positive")
	}
	if p.CoolingPeriod <= 0 {
		errs = append(errs, "cooling_period_seconds must be positive")
	}
	if p.MinInterval > p.CoolingPeriod {
		errs = append(errs, "min_interval_seconds must be <= cooling_period_seconds")
	}
	return errs
}

func (p Policy) allows(t TriggerType) bool {
	for _, a := range p.AllowedTriggers {
		if a == t {
			return true
		}
	}
	return false
}

// Stats reports the loop's current counters (spec's get_stats).
type Stats struct {
	ReplanCount     int                   `json:"replan_count"`
	MaxReplans      int                   `json:"max_replans"`
	LastReplanTime  *time.Time            `json:"last_replan_time,omitempty"`
	HistoryCount    int                   `json:"replan_history_count"`
	TriggerCounts   map[TriggerType]int   `json:"trigger_counts"`
	Policy          Policy                `json:"policy"`
}
