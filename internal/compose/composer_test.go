package compose

import (
	"testing"
	"time"

	"github.com/ops-intel/orchestrator/internal/chainexec"
	"github.com/ops-intel/orchestrator/internal/planner"
)

func TestComposeTextBlockFromScalar(t *testing.T) {
	out := &planner.Output{
		Kind:        planner.KindPlan,
		Steps:       []chainexec.Step{{StepID: "s1", ToolName: "ci.aggregate_count"}},
		OutputViews: []string{"text"},
	}
	chain := &chainexec.ChainResult{
		Steps: []chainexec.StepResult{
			{StepID: "s1", Status: chainexec.StatusSucceeded, Data: map[string]interface{}{"count": 42}},
		},
	}
	result := New().Compose(out, chain)
	if len(result.Blocks) != 1 || result.Blocks[0].Type != BlockText {
		t.Fatalf("expected one text block, got %+v", result.Blocks)
	}
	if result.Blocks[0].Text != "42" {
		t.Errorf("Text = %q, want %q", result.Blocks[0].Text, "42")
	}
	if len(result.References) != 1 || result.References[0].ID != "ci.aggregate_count" {
		t.Errorf("unexpected references: %+v", result.References)
	}
}

func TestComposeTableBlockMergesParallelSteps(t *testing.T) {
	out := &planner.Output{
		Kind: planner.KindPlan,
		Steps: []chainexec.Step{
			{StepID: "s1", ToolName: "ci.list"},
			{StepID: "s2", ToolName: "ci.list"},
		},
		OutputViews: []string{"table"},
	}
	chain := &chainexec.ChainResult{
		Steps: []chainexec.StepResult{
			{StepID: "s1", Status: chainexec.StatusSucceeded, Data: []map[string]interface{}{{"name": "srv-a", "zone": "zone-a"}}},
			{StepID: "s2", Status: chainexec.StatusSucceeded, Data: []map[string]interface{}{{"name": "srv-b", "zone": "zone-b"}}},
		},
	}
	result := New().Compose(out, chain)
	if len(result.Blocks) != 1 || result.Blocks[0].Type != BlockTable {
		t.Fatalf("expected one table block, got %+v", result.Blocks)
	}
	if len(result.Blocks[0].Rows) != 2 {
		t.Errorf("expected 2 merged rows, got %d", len(result.Blocks[0].Rows))
	}
}

func TestComposeTimeseriesBlock(t *testing.T) {
	out := &planner.Output{
		Kind:        planner.KindPlan,
		Steps:       []chainexec.Step{{StepID: "s1", ToolName: "metric.query"}},
		OutputViews: []string{"timeseries"},
	}
	chain := &chainexec.ChainResult{
		Steps: []chainexec.StepResult{
			{StepID: "s1", Status: chainexec.StatusSucceeded, Data: []map[string]interface{}{
				{"timestamp": "2026-07-30T00:00:00Z", "value": 12.5},
				{"timestamp": "2026-07-30T01:00:00Z", "value": 14.0},
			}},
		},
	}
	result := New().Compose(out, chain)
	if len(result.Blocks) != 1 || result.Blocks[0].Type != BlockTimeseries {
		t.Fatalf("expected one timeseries block, got %+v", result.Blocks)
	}
	if len(result.Blocks[0].Points) != 2 {
		t.Errorf("expected 2 points, got %d", len(result.Blocks[0].Points))
	}
}

func TestComposeReferencesDedup(t *testing.T) {
	out := &planner.Output{
		Kind: planner.KindPlan,
		Steps: []chainexec.Step{
			{StepID: "s1", ToolName: "ci.lookup"},
			{StepID: "s2", ToolName: "ci.lookup"},
		},
		OutputViews: []string{"text"},
	}
	chain := &chainexec.ChainResult{
		Steps: []chainexec.StepResult{
			{StepID: "s1", Status: chainexec.StatusSucceeded, Data: map[string]interface{}{"a": 1}},
			{StepID: "s2", Status: chainexec.StatusSucceeded, Data: map[string]interface{}{"a": 2}},
		},
	}
	result := New().Compose(out, chain)
	if len(result.References) != 1 {
		t.Errorf("expected deduped to 1 reference, got %d", len(result.References))
	}
}

func TestPresentDirectAnswerSkipsBlocks(t *testing.T) {
	out := &planner.Output{Kind: planner.KindDirectAnswer, Text: "Servers are monitored every 60s."}
	resp := NewPresenter().Present(out, nil, nil, "orch", 5*time.Millisecond, "")
	if resp.Answer != out.Text {
		t.Errorf("Answer = %q, want %q", resp.Answer, out.Text)
	}
	if len(resp.Blocks) != 0 {
		t.Error("direct_answer should carry no blocks")
	}
}

func TestPresentSynthesizesTableSummary(t *testing.T) {
	composed := &Result{Blocks: []Block{{Type: BlockTable, Rows: []map[string]interface{}{{"a": 1}, {"a": 2}}}}}
	resp := NewPresenter().Present(&planner.Output{Kind: planner.KindPlan}, composed, []string{"ci.list"}, "orch", time.Millisecond, "")
	if resp.Answer == "" {
		t.Error("expected a synthesized answer for a table-only result")
	}
}
