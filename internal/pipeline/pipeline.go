// Package pipeline implements the Stage Pipeline: Route -> Validate ->
// Execute -> Compose -> Present, writing a span per stage to the
// Execution Tracer and asking the Control Loop whether to loop back to
// Route on a retryable stage failure (spec §4.8).
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/infrastructure/logging"
	"github.com/ops-intel/orchestrator/internal/asset"
	"github.com/ops-intel/orchestrator/internal/chainexec"
	"github.com/ops-intel/orchestrator/internal/compose"
	"github.com/ops-intel/orchestrator/internal/controlloop"
	"github.com/ops-intel/orchestrator/internal/planner"
	"github.com/ops-intel/orchestrator/internal/tracer"
	"github.com/ops-intel/orchestrator/internal/validator"
)

const routeName = "orch"

// controlLoopAssetName is the optional mapping asset publishing a custom
// Policy; its absence is not a hard failure (spec §4.1's "missing
// optional assets return null and callers pick a documented default").
const controlLoopAssetName = "control_loop_policy"

// Pipeline wires together every stage's collaborator.
type Pipeline struct {
	assets    *asset.Registry
	planner   *planner.Planner
	validator *validator.Validator
	chain     *chainexec.Executor
	composer  *compose.Composer
	presenter *compose.Presenter
	traces    *tracer.Manager
	logger    *logging.Logger
}

// New builds a Pipeline over its collaborators.
func New(assets *asset.Registry, pl *planner.Planner, v *validator.Validator, chain *chainexec.Executor, traces *tracer.Manager, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		assets:    assets,
		planner:   pl,
		validator: v,
		chain:     chain,
		composer:  compose.New(),
		presenter: compose.NewPresenter(),
		traces:    traces,
		logger:    logger,
	}
}

// maxPipelineAttempts bounds the Route-retry loop independent of the
// Control Loop's own max_replans, as a backstop against a misconfigured
// policy (enable_automatic_replan=true with an unreasonably high cap).
const maxPipelineAttempts = 8

// Ask runs the full pipeline for one question and returns the final
// response envelope. It never returns a transport-level error for a
// domain failure — spec §6: "status 200 always when the server produced
// a structured response (even failure)". The returned error is always
// nil: every failure, a context cancellation included, comes back as a
// structured failure response.
func (p *Pipeline) Ask(ctx context.Context, question, tenantID string) (compose.Response, error) {
	start := time.Now()
	rec := p.traces.Start(tenantID, question, "")

	loop, err := p.controlLoop(ctx)
	if err != nil {
		return p.errorResponse(ctx, rec, start, err), nil
	}

	var (
		out       *planner.Output
		composed  *compose.Result
		usedTools []string
		lastErr   error
	)

	for attempt := 0; attempt < maxPipelineAttempts; attempt++ {
		if ctx.Err() != nil {
			rec.MarkCancelled()
			lastErr = apperrors.Ofw(apperrors.CodeExecuteTimeout, "pipeline cancelled", ctx.Err())
			break
		}

		out, lastErr = p.route(ctx, rec, question, tenantID)
		if lastErr != nil {
			if p.maybeReplan(ctx, rec, loop, "route", lastErr) {
				continue
			}
			break
		}

		validated, decisions, verr := p.validate(ctx, rec, out, tenantID)
		_ = decisions
		if verr != nil {
			if p.maybeReplan(ctx, rec, loop, "validate", verr) {
				continue
			}
			lastErr = verr
			break
		}
		out = validated

		if out.Kind != planner.KindPlan {
			lastErr = nil
			break
		}

		chainResult, calls, cerr := p.execute(ctx, rec, out, tenantID)
		for _, c := range calls {
			rec.RecordToolCall(tracer.ToolCall(c))
			usedTools = appendUnique(usedTools, c.Tool)
		}
		if cerr != nil {
			if p.maybeReplan(ctx, rec, loop, "execute", cerr) {
				continue
			}
			lastErr = cerr
			break
		}

		composed = p.compose(ctx, rec, out, chainResult)
		lastErr = nil
		break
	}

	if lastErr != nil {
		return p.errorResponse(ctx, rec, start, lastErr), nil
	}

	resp := p.present(ctx, rec, out, composed, usedTools, start)
	_ = p.traces.Finish(ctx, rec, tracer.StatusOK)
	return resp, nil
}

func (p *Pipeline) controlLoop(ctx context.Context) (*controlloop.Loop, error) {
	policy := controlloop.DefaultPolicy()
	a, err := p.assets.Get(ctx, asset.Key{Type: asset.TypeMapping, Scope: "ops", Name: controlLoopAssetName})
	if err != nil {
		return nil, err
	}
	if a != nil {
		var custom controlloop.Policy
		if err := unmarshalAssetContent(a, &custom); err == nil && custom.MaxReplans > 0 {
			policy = custom
		}
	}
	return controlloop.New(policy, p.logger)
}

// maybeReplan classifies err and, if retryable, asks the Control Loop for
// permission to loop back to Route.
func (p *Pipeline) maybeReplan(ctx context.Context, rec *tracer.Recorder, loop *controlloop.Loop, stage string, err error) bool {
	appErr := apperrors.As(err)
	if appErr == nil || !appErr.Retryable() {
		return false
	}
	severity := controlloop.SeverityWarning
	if appErr.Code == apperrors.CodeExecuteTimeout {
		severity = controlloop.SeverityCritical
	}
	trigger := controlloop.ReplanTrigger{
		TriggerType: controlloop.TriggerError,
		StageName:   stage,
		Reason:      appErr.Message,
		Severity:    severity,
	}
	approved, event := loop.Evaluate(ctx, trigger, controlloop.PatchDiff{Description: "retry from route"})
	rec.RecordReplanEvent(tracer.ReplanEventRecord{
		StageName:   stage,
		TriggerType: string(trigger.TriggerType),
		Reason:      trigger.Reason,
		Approved:    approved,
		Timestamp:   event.Timestamp,
	})
	return approved
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}

func unmarshalAssetContent(a *asset.Asset, out interface{}) error {
	return json.Unmarshal(a.Content, out)
}
