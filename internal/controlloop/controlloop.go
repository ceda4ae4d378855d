package controlloop

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/infrastructure/logging"
)

// Loop gates replan requests against a Policy, tracking how many replans
// have fired and when the last one happened. One Loop is scoped to a
// single in-flight ask (spec's pipeline run), not shared across requests.
type Loop struct {
	mu            sync.Mutex
	policy        Policy
	replanCount   int
	lastReplan    *time.Time
	history       []ReplanEvent
	triggerCounts map[TriggerType]int
	logger        *logging.Logger
}

// New builds a Loop over policy, rejecting a misconfigured one exactly as
// ControlLoopManager._validate_policy does.
func New(policy Policy, logger *logging.Logger) (*Loop, error) {
	if errs := policy.Validate(); len(errs) > 0 {
		return nil, apperrors.Of(apperrors.CodeConfigurationError, "invalid control loop policy: "+strings.Join(errs, ", "))
	}
	return &Loop{
		policy:        policy,
		triggerCounts: make(map[TriggerType]int),
		logger:        logger,
	}, nil
}

// ShouldReplan is the gate itself (control_loop.py's should_replan):
//  1. trigger type must be in policy.allowed_triggers
//  2. replan_count must be below max_replans
//  3. elapsed time since the last replan must be >= min_interval_seconds
//  4. within cooling_period_seconds, only a critical-severity trigger
//     (whose type is still allowed) overrides and is accepted
func (l *Loop) ShouldReplan(trigger ReplanTrigger) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shouldReplanLocked(trigger, time.Now())
}

func (l *Loop) shouldReplanLocked(trigger ReplanTrigger, now time.Time) bool {
	if !l.policy.allows(trigger.TriggerType) {
		return false
	}
	if l.replanCount >= l.policy.MaxReplans {
		return false
	}
	if l.lastReplan != nil {
		elapsed := now.Sub(*l.lastReplan)
		if elapsed < l.policy.MinInterval {
			return false
		}
		if elapsed < l.policy.CoolingPeriod {
			return trigger.Severity == SeverityCritical
		}
	}
	return true
}

// Evaluate runs ShouldReplan, builds the ReplanEvent carrying
// decision_metadata{trace_id, should_replan, evaluation_time}, records it
// when approved, and logs the decision. Mirrors evaluate_replan_request.
func (l *Loop) Evaluate(ctx context.Context, trigger ReplanTrigger, patch PatchDiff) (bool, ReplanEvent) {
	now := time.Now()
	l.mu.Lock()
	approved := l.shouldReplanLocked(trigger, now)
	event := ReplanEvent{
		EventType: "replan_decision",
		StageName: trigger.StageName,
		Trigger:   trigger,
		Patch:     patch,
		Timestamp: now,
		DecisionMetadata: DecisionMetadata{
			TraceID:        logging.GetTraceID(ctx),
			ShouldReplan:   approved,
			EvaluationTime: now,
		},
	}
	if approved {
		l.recordLocked(event, now)
	}
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.LogReplanDecision(ctx, string(trigger.TriggerType), approved, trigger.Reason)
	}
	return approved, event
}

// recordLocked updates counters/history for an approved replan. Caller
// must hold l.mu.
func (l *Loop) recordLocked(event ReplanEvent, now time.Time) {
	l.replanCount++
	l.lastReplan = &now
	l.history = append(l.history, event)
	l.triggerCounts[event.Trigger.TriggerType]++
}

// History returns a copy of the recorded replan events.
func (l *Loop) History() []ReplanEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ReplanEvent, len(l.history))
	copy(out, l.history)
	return out
}

// Stats reports current counters, mirroring get_stats.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[TriggerType]int, len(l.triggerCounts))
	for k, v := range l.triggerCounts {
		counts[k] = v
	}
	return Stats{
		ReplanCount:    l.replanCount,
		MaxReplans:     l.policy.MaxReplans,
		LastReplanTime: l.lastReplan,
		HistoryCount:   len(l.history),
		TriggerCounts:  counts,
		Policy:         l.policy,
	}
}

// Reset clears all runtime state, keeping the policy (mirrors
// ControlLoopManager.reset).
func (l *Loop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replanCount = 0
	l.lastReplan = nil
	l.history = nil
	l.triggerCounts = make(map[TriggerType]int)
}
