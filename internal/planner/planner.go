package planner

import (
	"context"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/internal/asset"
	"github.com/ops-intel/orchestrator/internal/tool"
)

const mappingScope = "ops"
const planKeywordsName = "planner_keywords"
const planDefaultsName = "planner_defaults"

// Planner turns a question into a PlanOutput via a deterministic pre-pass
// and an optional LLM call (spec §4.6).
type Planner struct {
	assets             *asset.Registry
	tools              *tool.Registry
	llm                LLMClient
	confidenceThreshold float64
	systemPrompt       string
}

// New builds a Planner. confidenceThreshold configures when the pre-pass
// alone is trusted without an LLM call (spec §4.6 Determinism).
func New(assets *asset.Registry, tools *tool.Registry, llm LLMClient, confidenceThreshold float64, systemPrompt string) *Planner {
	return &Planner{assets: assets, tools: tools, llm: llm, confidenceThreshold: confidenceThreshold, systemPrompt: systemPrompt}
}

// Plan produces an Output for question under tenantID.
func (p *Planner) Plan(ctx context.Context, question, tenantID string) (*Output, PreHints, error) {
	km, defaults, err := p.loadMappings(ctx)
	if err != nil {
		return nil, PreHints{}, err
	}

	hints := scan(question, km)

	if hints.Confidence >= p.confidenceThreshold {
		out := p.planFromHints(question, hints, defaults)
		return out, hints, nil
	}

	if p.llm == nil {
		out := p.planFromHints(question, hints, defaults)
		if out.Kind == KindReject {
			return out, hints, nil
		}
		return out, hints, nil
	}

	userPrompt := buildUserPrompt(question, hints)
	out, err := callLLM(ctx, p.llm, p.systemPrompt, userPrompt)
	if err != nil {
		// LLM unreachable (not malformed-JSON, which already surfaced
		// PLANNING_ERROR inside callLLM): fall back to a best-effort plan
		// from the pre-pass, or REJECT if even that has no signal.
		if apperrors.CodeOf(err) == apperrors.CodePlanningError {
			return nil, hints, err
		}
		fallback := p.planFromHints(question, hints, defaults)
		return fallback, hints, nil
	}

	p.rewriteToolNames(out)
	if err := p.checkToolsExist(out); err != nil {
		return nil, hints, err
	}
	return out, hints, nil
}

func (p *Planner) loadMappings(ctx context.Context) (*KeywordMap, *Defaults, error) {
	kwAsset, err := p.assets.Get(ctx, asset.Key{Type: asset.TypeMapping, Scope: mappingScope, Name: planKeywordsName})
	if err != nil {
		return nil, nil, err
	}
	if kwAsset == nil {
		return nil, nil, apperrors.Of(apperrors.CodeConfigurationError, "planner_keywords mapping asset not published")
	}
	km, err := decodeKeywordMap(kwAsset.Content)
	if err != nil {
		return nil, nil, apperrors.Ofw(apperrors.CodePlanningError, "malformed planner_keywords asset", err)
	}

	defAsset, err := p.assets.Get(ctx, asset.Key{Type: asset.TypeMapping, Scope: mappingScope, Name: planDefaultsName})
	if err != nil {
		return nil, nil, err
	}
	var defaults *Defaults
	if defAsset != nil {
		defaults, err = decodeDefaults(defAsset.Content)
		if err != nil {
			return nil, nil, apperrors.Ofw(apperrors.CodePlanningError, "malformed planner_defaults asset", err)
		}
	} else {
		defaults = &Defaults{}
	}
	return km, defaults, nil
}

// planFromHints builds a best-effort Output directly from the
// deterministic pre-pass, used when pre-pass confidence clears the
// threshold or the LLM is unreachable (spec §4.6 Determinism, Failure).
func (p *Planner) planFromHints(question string, hints PreHints, defaults *Defaults) *Output {
	if hints.Intent == IntentUnknown {
		return &Output{Kind: KindReject, Reason: "unable to determine intent from question"}
	}

	views := intentToViews(hints.Intent, defaults)
	return &Output{
		Kind:        KindPlan,
		OutputViews: views,
		AggregateSpec: specForIntent(hints, IntentAggregate),
		MetricSpec:    specForIntent(hints, IntentSeries),
		HistorySpec:   specForIntent(hints, IntentHistory),
		GraphSpec:     specForIntent(hints, IntentGraph),
	}
}

func specForIntent(hints PreHints, intent Intent) map[string]interface{} {
	if hints.Intent != intent {
		return nil
	}
	spec := map[string]interface{}{
		"metric_aliases": hints.MetricAliases,
		"aggregation":    hints.Aggregation,
		"time_range":     hints.TimeRange,
	}
	if intent == IntentGraph {
		spec["view"] = hints.GraphView
		spec["depth"] = hints.GraphDepth
	}
	return spec
}

func intentToViews(intent Intent, defaults *Defaults) []string {
	switch intent {
	case IntentSeries:
		return []string{"timeseries"}
	case IntentHistory:
		return []string{"table"}
	case IntentGraph:
		return []string{"graph"}
	case IntentList:
		return []string{"table"}
	case IntentAggregate:
		return []string{"text", "table"}
	default:
		if defaults != nil && len(defaults.OutputTypePriorities.GlobalPriorities) > 0 {
			return defaults.OutputTypePriorities.GlobalPriorities[:1]
		}
		return []string{"text"}
	}
}

func buildUserPrompt(question string, hints PreHints) string {
	return question + "\n\n[pre-pass hints] intent=" + string(hints.Intent) +
		" aggregation=" + hints.Aggregation + " time_range=" + hints.TimeRange
}

// rewriteToolNames applies the Tool Registry's alias table to every step's
// tool_name (spec §4.6 step c).
func (p *Planner) rewriteToolNames(out *Output) {
	if out.Kind != KindPlan {
		return
	}
	for i, step := range out.Steps {
		if resolved, ok := p.tools.Resolve(step.ToolName); ok {
			out.Steps[i].ToolName = resolved.Name
		}
	}
}

// checkToolsExist verifies every step's (possibly rewritten) tool_name
// names a registered tool.
func (p *Planner) checkToolsExist(out *Output) error {
	if out.Kind != KindPlan {
		return nil
	}
	for _, step := range out.Steps {
		if !p.tools.Exists(step.ToolName) {
			return apperrors.Of(apperrors.CodePlanInvalid, "plan references unknown tool: "+step.ToolName).
				WithDetails("step_id", step.StepID)
		}
	}
	return nil
}
