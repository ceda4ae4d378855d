package chainexec

import "testing"

func TestLevelsOrdersByDependency(t *testing.T) {
	steps := []Step{
		{StepID: "c", DependsOn: []string{"b"}},
		{StepID: "a"},
		{StepID: "b", DependsOn: []string{"a"}},
	}
	out, err := levels(steps)
	if err != nil {
		t.Fatalf("levels: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len(levels) = %d, want 3 (a, then b, then c)", len(out))
	}
	if out[0][0].StepID != "a" || out[1][0].StepID != "b" || out[2][0].StepID != "c" {
		t.Fatalf("unexpected level ordering: %+v", out)
	}
}

func TestLevelsGroupsIndependentStepsTogether(t *testing.T) {
	steps := []Step{
		{StepID: "a"},
		{StepID: "b"},
		{StepID: "c", DependsOn: []string{"a", "b"}},
	}
	out, err := levels(steps)
	if err != nil {
		t.Fatalf("levels: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(levels) = %d, want 2 (a+b in parallel, then c)", len(out))
	}
	if len(out[0]) != 2 {
		t.Fatalf("level 0 = %+v, want both independent steps", out[0])
	}
}

func TestLevelsDetectsCycle(t *testing.T) {
	steps := []Step{
		{StepID: "a", DependsOn: []string{"b"}},
		{StepID: "b", DependsOn: []string{"a"}},
	}
	if _, err := levels(steps); err == nil {
		t.Fatal("expected a cycle to be rejected")
	}
}

func TestLevelsRejectsUnknownDependency(t *testing.T) {
	steps := []Step{{StepID: "a", DependsOn: []string{"ghost"}}}
	if _, err := levels(steps); err == nil {
		t.Fatal("expected an unknown dependency reference to be rejected")
	}
}

func TestLevelsRejectsDuplicateStepID(t *testing.T) {
	steps := []Step{{StepID: "a"}, {StepID: "a"}}
	if _, err := levels(steps); err == nil {
		t.Fatal("expected a duplicate step_id to be rejected")
	}
}

func TestLevelsBreaksTiesByExecutionOrderThenStepID(t *testing.T) {
	steps := []Step{
		{StepID: "z", ExecutionOrder: 1},
		{StepID: "a", ExecutionOrder: 2},
	}
	out, err := levels(steps)
	if err != nil {
		t.Fatalf("levels: %v", err)
	}
	if out[0][0].StepID != "z" {
		t.Fatalf("level 0 first step = %s, want z (lower execution_order wins the tie)", out[0][0].StepID)
	}
}
