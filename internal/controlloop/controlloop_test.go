package controlloop

import (
	"context"
	"testing"
	"time"
)

func testPolicy() Policy {
	return Policy{
		MaxReplans:            2,
		AllowedTriggers:       []TriggerType{TriggerError, TriggerTimeout},
		EnableAutomaticReplan: true,
		MinInterval:           10 * time.Millisecond,
		CoolingPeriod:         50 * time.Millisecond,
	}
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	_, err := New(Policy{MaxReplans: 0}, nil)
	if err == nil {
		t.Fatal("expected error for max_replans <= 0")
	}
}

func TestShouldReplanDeniesDisallowedTriggerType(t *testing.T) {
	l, err := New(testPolicy(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.ShouldReplan(ReplanTrigger{TriggerType: TriggerPolicyViolation}) {
		t.Error("expected trigger type not in allowed_triggers to be denied")
	}
}

func TestShouldReplanDeniesAtMaxReplans(t *testing.T) {
	l, _ := New(testPolicy(), nil)
	now := time.Now().Add(-time.Hour)
	l.recordLocked(ReplanEvent{Trigger: ReplanTrigger{TriggerType: TriggerError}}, now)
	l.recordLocked(ReplanEvent{Trigger: ReplanTrigger{TriggerType: TriggerError}}, now)
	if l.ShouldReplan(ReplanTrigger{TriggerType: TriggerError}) {
		t.Error("expected denial once replan_count reaches max_replans")
	}
}

func TestShouldReplanDeniesBelowMinInterval(t *testing.T) {
	l, _ := New(testPolicy(), nil)
	now := time.Now()
	l.recordLocked(ReplanEvent{Trigger: ReplanTrigger{TriggerType: TriggerError}}, now)
	if l.shouldReplanLocked(ReplanTrigger{TriggerType: TriggerError}, now.Add(time.Millisecond)) {
		t.Error("expected denial before min_interval elapses")
	}
}

func TestShouldReplanCoolingPeriodRequiresCritical(t *testing.T) {
	l, _ := New(testPolicy(), nil)
	now := time.Now()
	l.recordLocked(ReplanEvent{Trigger: ReplanTrigger{TriggerType: TriggerError}}, now)

	withinCooling := now.Add(20 * time.Millisecond)
	if l.shouldReplanLocked(ReplanTrigger{TriggerType: TriggerError, Severity: SeverityWarning}, withinCooling) {
		t.Error("expected non-critical trigger to be denied within cooling period")
	}
	if !l.shouldReplanLocked(ReplanTrigger{TriggerType: TriggerError, Severity: SeverityCritical}, withinCooling) {
		t.Error("expected critical trigger to override cooling period")
	}
}

func TestShouldReplanCriticalStillRequiresAllowedTriggerType(t *testing.T) {
	l, _ := New(testPolicy(), nil)
	now := time.Now()
	l.recordLocked(ReplanEvent{Trigger: ReplanTrigger{TriggerType: TriggerError}}, now)

	withinCooling := now.Add(20 * time.Millisecond)
	if l.shouldReplanLocked(ReplanTrigger{TriggerType: TriggerPolicyViolation, Severity: SeverityCritical}, withinCooling) {
		t.Error("critical severity must not override a disallowed trigger type")
	}
}

func TestShouldReplanAllowsPastCoolingPeriod(t *testing.T) {
	l, _ := New(testPolicy(), nil)
	now := time.Now()
	l.recordLocked(ReplanEvent{Trigger: ReplanTrigger{TriggerType: TriggerError}}, now)

	pastCooling := now.Add(60 * time.Millisecond)
	if !l.shouldReplanLocked(ReplanTrigger{TriggerType: TriggerError, Severity: SeverityWarning}, pastCooling) {
		t.Error("expected allowance once both min_interval and cooling_period have elapsed")
	}
}

func TestEvaluateRecordsApprovedDecision(t *testing.T) {
	l, _ := New(testPolicy(), nil)
	approved, event := l.Evaluate(context.Background(), ReplanTrigger{TriggerType: TriggerError, StageName: "execute"}, PatchDiff{})
	if !approved {
		t.Fatal("expected first replan to be approved")
	}
	if event.DecisionMetadata.ShouldReplan != true {
		t.Error("decision_metadata.should_replan should mirror the decision")
	}
	stats := l.Stats()
	if stats.ReplanCount != 1 {
		t.Errorf("ReplanCount = %d, want 1", stats.ReplanCount)
	}
	if stats.TriggerCounts[TriggerError] != 1 {
		t.Errorf("TriggerCounts[error] = %d, want 1", stats.TriggerCounts[TriggerError])
	}
}

func TestEvaluateDeniedDoesNotRecord(t *testing.T) {
	l, _ := New(testPolicy(), nil)
	approved, _ := l.Evaluate(context.Background(), ReplanTrigger{TriggerType: TriggerPolicyViolation}, PatchDiff{})
	if approved {
		t.Fatal("expected denial for disallowed trigger type")
	}
	if l.Stats().ReplanCount != 0 {
		t.Error("a denied replan must not be recorded")
	}
}

func TestResetClearsState(t *testing.T) {
	l, _ := New(testPolicy(), nil)
	l.Evaluate(context.Background(), ReplanTrigger{TriggerType: TriggerError}, PatchDiff{})
	l.Reset()
	stats := l.Stats()
	if stats.ReplanCount != 0 || stats.LastReplanTime != nil || len(l.History()) != 0 {
		t.Error("Reset should clear all runtime counters and history")
	}
}
