package chainexec

import "testing"

func TestResolvePathPlainDottedAccess(t *testing.T) {
	results := map[string]StepResult{
		"s1": {StepID: "s1", Data: map[string]interface{}{"count": 7}},
	}
	got := resolvePath(results, "s1.count")
	if got != float64(7) {
		t.Fatalf("resolvePath = %v (%T), want 7", got, got)
	}
}

func TestResolvePathWildcardFansOutOverList(t *testing.T) {
	results := map[string]StepResult{
		"s1": {StepID: "s1", Data: map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"id": "a"},
				map[string]interface{}{"id": "b"},
			},
		}},
	}
	got := resolvePath(results, "s1.items.*.id")
	list, ok := got.([]interface{})
	if !ok || len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Fatalf("resolvePath with wildcard = %#v, want [\"a\",\"b\"]", got)
	}
}

func TestResolvePathMissingStepReturnsNil(t *testing.T) {
	if got := resolvePath(map[string]StepResult{}, "missing.path"); got != nil {
		t.Fatalf("resolvePath for an unknown step = %v, want nil", got)
	}
}

func TestResolvePathMissingIntermediateFieldReturnsNil(t *testing.T) {
	results := map[string]StepResult{
		"s1": {StepID: "s1", Data: map[string]interface{}{"count": 7}},
	}
	if got := resolvePath(results, "s1.missing.field"); got != nil {
		t.Fatalf("resolvePath for a missing field = %v, want nil", got)
	}
}

func TestApplyOutputMappingOverridesStaticParam(t *testing.T) {
	results := map[string]StepResult{
		"s1": {StepID: "s1", Data: map[string]interface{}{"ids": []interface{}{"x", "y"}}},
	}
	params := map[string]interface{}{"ci_ids": "placeholder", "tenant_id": "t1"}
	out := applyOutputMapping(params, map[string]string{"ci_ids": "s1.ids"}, results)

	if out["tenant_id"] != "t1" {
		t.Errorf("unrelated param tenant_id should be untouched, got %v", out["tenant_id"])
	}
	list, ok := out["ci_ids"].([]interface{})
	if !ok || len(list) != 2 {
		t.Fatalf("ci_ids = %#v, want the resolved list overriding the static placeholder", out["ci_ids"])
	}
}

func TestApplyOutputMappingNoMappingReturnsSameParams(t *testing.T) {
	params := map[string]interface{}{"a": 1}
	out := applyOutputMapping(params, nil, nil)
	if len(out) != 1 || out["a"] != 1 {
		t.Fatalf("applyOutputMapping with no mapping = %#v, want params unchanged", out)
	}
}
