package validator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ops-intel/orchestrator/internal/asset"
	"github.com/ops-intel/orchestrator/internal/chainexec"
	"github.com/ops-intel/orchestrator/internal/planner"
	"github.com/ops-intel/orchestrator/internal/resolver"
	"github.com/ops-intel/orchestrator/internal/tool"
)

type fakeStore struct {
	published map[asset.Key]*asset.Asset
}

func (f *fakeStore) Get(ctx context.Context, key asset.Key) (*asset.Asset, error) {
	return f.published[key], nil
}
func (f *fakeStore) GetVersion(ctx context.Context, key asset.Key, version int) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeStore) List(ctx context.Context, typ asset.Type, filter asset.ListFilter) ([]*asset.Asset, error) {
	var out []*asset.Asset
	for k, a := range f.published {
		if k.Type == typ && (filter.Scope == "" || k.Scope == filter.Scope) {
			out = append(out, a)
		}
	}
	return out, nil
}
func (f *fakeStore) CreateDraft(ctx context.Context, draft asset.Asset) (*asset.Asset, error) {
	return &draft, nil
}
func (f *fakeStore) Publish(ctx context.Context, assetID, actor string) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeStore) Rollback(ctx context.Context, assetID string, targetVersion int, actor string) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeStore) UpdateDraft(ctx context.Context, assetID string, patch asset.Patch, actor string) (*asset.Asset, error) {
	return nil, nil
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func newTestValidator(t *testing.T, budget BudgetPolicy, views ViewDepthPolicy) (*Validator, *fakeStore) {
	t.Helper()
	store := &fakeStore{published: make(map[asset.Key]*asset.Asset)}
	store.published[asset.Key{Type: asset.TypeMapping, Scope: "ops", Name: asset.SystemAssetPlanBudget}] =
		&asset.Asset{Content: mustJSON(t, budget)}
	store.published[asset.Key{Type: asset.TypeMapping, Scope: "ops", Name: asset.SystemAssetViewDepth}] =
		&asset.Asset{Content: mustJSON(t, views)}

	assets := asset.NewRegistry(store, nil)

	queryKey := asset.Key{Type: asset.TypeQuery, Scope: "ops", Name: "database_query.list_assets", TenantID: "tenant-a"}
	store.published[queryKey] = &asset.Asset{Content: mustJSON(t, resolver.QueryDef{
		ToolType: "database_query", Operation: "list_assets", Statement: "SELECT * FROM assets WHERE tenant_id = {tenant_id}",
	})}

	toolKey := asset.Key{Type: asset.TypeTool, Scope: "ops", Name: "list_assets"}
	store.published[toolKey] = &asset.Asset{Content: mustJSON(t, tool.Def{
		Name: "list_assets", Kind: tool.KindDatabaseQuery, Operation: "list_assets",
	})}
	tools := tool.NewRegistry(assets, "ops")
	if err := tools.Reload(context.Background()); err != nil {
		t.Fatalf("tools.Reload: %v", err)
	}

	res := resolver.NewResolver(assets)
	return New(assets, tools, res), store
}

func planWithSteps(n int) *planner.Output {
	steps := make([]chainexec.Step, n)
	for i := range steps {
		steps[i] = chainexec.Step{StepID: "s", ToolName: "list_assets"}
	}
	for i := range steps {
		steps[i].StepID = "step-" + string(rune('a'+i))
	}
	return &planner.Output{Kind: planner.KindPlan, Steps: steps}
}

func TestValidateClampsStepsOverBudget(t *testing.T) {
	v, _ := newTestValidator(t, BudgetPolicy{MaxSteps: 2}, ViewDepthPolicy{})
	out, decisions, err := v.Validate(context.Background(), planWithSteps(5), "tenant-a")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(out.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want clamped to 2", len(out.Steps))
	}
	if !decisions.StepsClamped {
		t.Error("expected StepsClamped decision to be recorded")
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	v, _ := newTestValidator(t, BudgetPolicy{MaxSteps: 3}, ViewDepthPolicy{})
	first, _, err := v.Validate(context.Background(), planWithSteps(5), "tenant-a")
	if err != nil {
		t.Fatalf("first Validate: %v", err)
	}
	second, _, err := v.Validate(context.Background(), first, "tenant-a")
	if err != nil {
		t.Fatalf("second Validate: %v", err)
	}
	if len(first.Steps) != len(second.Steps) {
		t.Fatalf("re-validating an already-valid plan changed step count: %d -> %d", len(first.Steps), len(second.Steps))
	}
}

func TestValidateRejectsUnknownTool(t *testing.T) {
	v, _ := newTestValidator(t, BudgetPolicy{MaxSteps: 10}, ViewDepthPolicy{})
	plan := &planner.Output{Kind: planner.KindPlan, Steps: []chainexec.Step{{StepID: "s1", ToolName: "nonexistent"}}}
	if _, _, err := v.Validate(context.Background(), plan, "tenant-a"); err == nil {
		t.Fatal("expected an error for a plan referencing an unregistered tool")
	}
}

func TestValidateRejectsTenantMismatch(t *testing.T) {
	v, _ := newTestValidator(t, BudgetPolicy{MaxSteps: 10}, ViewDepthPolicy{})
	plan := &planner.Output{Kind: planner.KindPlan, Steps: []chainexec.Step{
		{StepID: "s1", ToolName: "list_assets", Parameters: map[string]interface{}{"tenant_id": "other-tenant"}},
	}}
	if _, _, err := v.Validate(context.Background(), plan, "tenant-a"); err == nil {
		t.Fatal("expected an error when a step's explicit tenant_id does not match the caller")
	}
}

func TestNonPlanOutputsPassThroughUnchanged(t *testing.T) {
	v, _ := newTestValidator(t, BudgetPolicy{}, ViewDepthPolicy{})
	out := &planner.Output{Kind: planner.KindDirectAnswer, Text: "answer"}
	got, decisions, err := v.Validate(context.Background(), out, "tenant-a")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got != out {
		t.Fatal("direct_answer output should pass through unchanged")
	}
	if decisions.DepthClamped || decisions.StepsClamped || decisions.RelationsFiltered {
		t.Fatalf("no policy decisions should be recorded for a non-plan output, got %+v", decisions)
	}
}

func TestClampDepthBoundary(t *testing.T) {
	cases := []struct {
		requested, viewMax, budgetMax, want int
	}{
		{requested: 0, viewMax: 5, budgetMax: 10, want: 1},
		{requested: -3, viewMax: 5, budgetMax: 10, want: 1},
		{requested: 8, viewMax: 5, budgetMax: 10, want: 5},
		{requested: 8, viewMax: 0, budgetMax: 6, want: 6},
		{requested: 3, viewMax: 5, budgetMax: 10, want: 3},
	}
	for _, c := range cases {
		got := clampDepth(c.requested, c.viewMax, c.budgetMax)
		if got != c.want {
			t.Errorf("clampDepth(%d, %d, %d) = %d, want %d", c.requested, c.viewMax, c.budgetMax, got, c.want)
		}
	}
}

func TestApplyGraphPolicyClampsDepthAndFiltersRelations(t *testing.T) {
	v, _ := newTestValidator(t, BudgetPolicy{MaxGraphDepth: 4}, ViewDepthPolicy{
		"NEIGHBORS": {DefaultDepth: 2, MaxDepth: 3, DefaultDirection: "outbound"},
	})
	spec := map[string]interface{}{
		"view":           "NEIGHBORS",
		"depth":          float64(10),
		"relation_types": []interface{}{"DEPENDS_ON", "NOT_ALLOWED"},
	}
	var decisions Decisions
	v.applyGraphPolicy(spec, ViewDepthPolicy{"NEIGHBORS": {DefaultDepth: 2, MaxDepth: 3, DefaultDirection: "outbound"}}, nil, BudgetPolicy{MaxGraphDepth: 4}, &decisions)

	if spec["depth"] != 3 {
		t.Errorf("depth = %v, want clamped to view max_depth 3", spec["depth"])
	}
	if !decisions.DepthClamped {
		t.Error("expected DepthClamped to be recorded")
	}
	rel, _ := spec["relation_types"].([]string)
	if len(rel) != 1 || rel[0] != "DEPENDS_ON" {
		t.Errorf("relation_types = %v, want only DEPENDS_ON (allowlisted)", rel)
	}
	if !decisions.RelationsFiltered {
		t.Error("expected RelationsFiltered to be recorded")
	}
}

func TestAllowedRelationsEmptyRequestStaysEmpty(t *testing.T) {
	out := allowedRelations("NEIGHBORS", []string{}, nil)
	if len(out) != 0 {
		t.Fatalf("allowedRelations with an empty request = %v, want empty", out)
	}
}

func TestAllowedRelationsStaticViewBypassesAllowlist(t *testing.T) {
	requested := []string{"ANYTHING_AT_ALL"}
	out := allowedRelations("DEPENDENCY", requested, nil)
	if len(out) != 1 || out[0] != "ANYTHING_AT_ALL" {
		t.Fatalf("static view should pass its requested relations through unfiltered, got %v", out)
	}
}
