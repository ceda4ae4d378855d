package validator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/internal/asset"
	"github.com/ops-intel/orchestrator/internal/planner"
	"github.com/ops-intel/orchestrator/internal/resolver"
	"github.com/ops-intel/orchestrator/internal/tool"
)

// Validator implements the seven-step ordered check from spec §4.7.
type Validator struct {
	assets   *asset.Registry
	tools    *tool.Registry
	resolver *resolver.Resolver
}

// New builds a Validator over its collaborators.
func New(assets *asset.Registry, tools *tool.Registry, res *resolver.Resolver) *Validator {
	return &Validator{assets: assets, tools: tools, resolver: res}
}

// Validate runs the ordered checks against a plan-kind Output and returns
// the (possibly clamped) Output plus the policy decisions made, for the
// execution trace. Non-plan outputs (direct_answer/reject) pass through
// unchanged — spec §4.7 only applies "given a PlanOutput of kind plan".
func (v *Validator) Validate(ctx context.Context, out *planner.Output, tenantID string) (*planner.Output, Decisions, error) {
	var decisions Decisions
	if out == nil {
		return nil, decisions, apperrors.Of(apperrors.CodePlanInvalid, "nil plan output")
	}
	if out.Kind != planner.KindPlan {
		return out, decisions, nil
	}

	// Step 1: schema validation.
	if err := v.checkSchema(out); err != nil {
		return nil, decisions, err
	}

	// Step 2: budget policy.
	budget, err := v.loadBudget(ctx)
	if err != nil {
		return nil, decisions, err
	}
	if budget.MaxSteps > 0 && len(out.Steps) > budget.MaxSteps {
		out.Steps = out.Steps[:budget.MaxSteps]
		decisions.StepsClamped = true
	}

	// Step 3 + 4: view policy + relation allowlist (graph_spec only).
	if out.GraphSpec != nil {
		viewPolicy, err := v.loadViewPolicy(ctx)
		if err != nil {
			return nil, decisions, err
		}
		allowlist, err := loadRelationAllowlist(ctx, v.assets)
		if err != nil {
			return nil, decisions, err
		}
		v.applyGraphPolicy(out.GraphSpec, viewPolicy, allowlist, budget, &decisions)
	}

	// Step 5: tenant isolation.
	for _, step := range out.Steps {
		if explicit, ok := step.Parameters["tenant_id"]; ok {
			if s, ok := explicit.(string); ok && s != "" && s != tenantID {
				return nil, decisions, apperrors.Of(apperrors.CodeTenantMismatch, "step parameter tenant_id does not match caller").
					WithDetails("step_id", step.StepID)
			}
		}
	}

	// Step 6: tool existence.
	for _, step := range out.Steps {
		if !v.tools.Exists(step.ToolName) {
			return nil, decisions, apperrors.Of(apperrors.CodePlanInvalid, "plan references unknown tool: "+step.ToolName).
				WithDetails("step_id", step.StepID)
		}
	}

	// Step 7: SQL/HTTP pre-safety: the Query Resolver's CheckSafety for
	// database_query tools, checkHTTPSafety for http_api tools.
	for _, step := range out.Steps {
		def, err := v.tools.Get(step.ToolName)
		if err != nil {
			return nil, decisions, err
		}
		if def.Kind == tool.KindDatabaseQuery {
			if err := v.resolver.CheckSafety(ctx, "ops", "database_query", def.Operation, tenantID); err != nil {
				return nil, decisions, err
			}
		}
		if def.Kind == tool.KindHTTPAPI {
			if err := checkHTTPSafety(def); err != nil {
				return nil, decisions, err
			}
		}
	}

	return out, decisions, nil
}

func (v *Validator) checkSchema(out *planner.Output) error {
	for _, step := range out.Steps {
		if step.StepID == "" {
			return apperrors.Of(apperrors.CodePlanInvalid, "plan step missing step_id")
		}
		if step.ToolName == "" {
			return apperrors.Of(apperrors.CodePlanInvalid, "plan step missing tool_name").WithDetails("step_id", step.StepID)
		}
	}
	return nil
}

func (v *Validator) loadBudget(ctx context.Context) (BudgetPolicy, error) {
	a, err := v.assets.Get(ctx, asset.Key{Type: asset.TypeMapping, Scope: "ops", Name: asset.SystemAssetPlanBudget})
	if err != nil {
		return BudgetPolicy{}, err
	}
	var budget BudgetPolicy
	if err := unmarshalAssetContent(a, &budget); err != nil {
		return BudgetPolicy{}, apperrors.Ofw(apperrors.CodePlanInvalid, "malformed plan_budget asset", err)
	}
	return budget, nil
}

func (v *Validator) loadViewPolicy(ctx context.Context) (ViewDepthPolicy, error) {
	a, err := v.assets.Get(ctx, asset.Key{Type: asset.TypeMapping, Scope: "ops", Name: asset.SystemAssetViewDepth})
	if err != nil {
		return nil, err
	}
	var policy ViewDepthPolicy
	if err := unmarshalAssetContent(a, &policy); err != nil {
		return nil, apperrors.Ofw(apperrors.CodePlanInvalid, "malformed view_depth asset", err)
	}
	return policy, nil
}

// applyGraphPolicy clamps graph_spec's depth into [1, max_depth(view)],
// sets a default direction when unset, and intersects relation_types
// against the view's allowlist (spec §4.7 steps 3-4).
func (v *Validator) applyGraphPolicy(spec map[string]interface{}, viewPolicy ViewDepthPolicy, allowlist *RelationAllowlist, budget BudgetPolicy, decisions *Decisions) {
	view, _ := spec["view"].(string)
	policy, ok := viewPolicy[view]
	if !ok {
		return
	}

	requestedDepth := policy.DefaultDepth
	if d, ok := spec["depth"].(float64); ok {
		requestedDepth = int(d)
	} else if d, ok := spec["depth"].(int); ok {
		requestedDepth = d
	}
	clamped := clampDepth(requestedDepth, policy.MaxDepth, budget.MaxGraphDepth)
	if clamped != requestedDepth {
		decisions.DepthClamped = true
	}
	spec["depth"] = clamped
	decisions.AppliedDepths = map[string]int{view: clamped}

	if direction, ok := spec["direction"].(string); !ok || direction == "" {
		spec["direction"] = policy.DefaultDirection
		decisions.AppliedDirections = map[string]string{view: policy.DefaultDirection}
	}

	if requested, ok := spec["relation_types"].([]interface{}); ok {
		reqStrings := make([]string, 0, len(requested))
		for _, r := range requested {
			if s, ok := r.(string); ok {
				reqStrings = append(reqStrings, s)
			}
		}
		filtered := allowedRelations(view, reqStrings, allowlist)
		if len(filtered) != len(reqStrings) {
			decisions.RelationsFiltered = true
		}
		spec["relation_types"] = filtered
	}
}

// clampDepth enforces max(1, requested) then min against both the view's
// own max_depth and the budget policy's overall max_graph_depth ceiling.
func clampDepth(requested, viewMax, budgetMax int) int {
	depth := requested
	if depth < 1 {
		depth = 1
	}
	if viewMax > 0 && depth > viewMax {
		depth = viewMax
	}
	if budgetMax > 0 && depth > budgetMax {
		depth = budgetMax
	}
	return depth
}

// checkHTTPSafety enforces the HTTP half of step 7's "SQL/HTTP pre-safety":
// an http_api tool must carry a non-empty path, and an absolute one must be
// well-formed per asset.ValidateHTTPToolURL (relative paths are resolved
// against the source's base URI at dispatch time, so they're exempt here).
func checkHTTPSafety(def *tool.Def) error {
	if def.HTTPPath == "" {
		return apperrors.Of(apperrors.CodePlanInvalid, "http tool missing http_path").WithDetails("tool", def.Name)
	}
	if strings.HasPrefix(def.HTTPPath, "http://") || strings.HasPrefix(def.HTTPPath, "https://") {
		if !asset.ValidateHTTPToolURL(def.HTTPPath) {
			return apperrors.Of(apperrors.CodePlanInvalid, "http tool has malformed absolute http_path").WithDetails("tool", def.Name)
		}
		return nil
	}
	if !strings.HasPrefix(def.HTTPPath, "/") {
		return apperrors.Of(apperrors.CodePlanInvalid, "http tool relative http_path must start with /").WithDetails("tool", def.Name)
	}
	return nil
}

func unmarshalAssetContent(a *asset.Asset, out interface{}) error {
	if a == nil {
		return nil
	}
	return json.Unmarshal(a.Content, out)
}
