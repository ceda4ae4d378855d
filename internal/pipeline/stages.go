package pipeline

import (
	"context"
	"time"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/internal/chainexec"
	"github.com/ops-intel/orchestrator/internal/compose"
	"github.com/ops-intel/orchestrator/internal/planner"
	"github.com/ops-intel/orchestrator/internal/tool"
	"github.com/ops-intel/orchestrator/internal/tracer"
	"github.com/ops-intel/orchestrator/internal/validator"
)

// route runs the Planner and records the stage span, carrying input as
// the raw question and output as the produced PlanOutput kind (spec
// §4.8 stage 1, §4.11's span shape).
func (p *Pipeline) route(ctx context.Context, rec *tracer.Recorder, question, tenantID string) (*planner.Output, error) {
	started := time.Now()
	rec.RecordStageInput(tracer.Span{Name: "route", Input: map[string]interface{}{"question": question}})

	out, hints, err := p.planner.Plan(ctx, question, tenantID)
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		rec.RecordStageOutput(tracer.Span{Name: "route", ElapsedMS: elapsed, Status: "error", Errors: []string{err.Error()}})
		return nil, err
	}
	rec.RecordStageOutput(tracer.Span{
		Name:      "route",
		ElapsedMS: elapsed,
		Status:    "ok",
		Output: map[string]interface{}{
			"kind":       string(out.Kind),
			"intent":     string(hints.Intent),
			"confidence": hints.Confidence,
		},
	})
	return out, nil
}

// validate runs the Plan Validator and records its span; on reject the
// caller skips straight to Present per spec §4.8 stage 2.
func (p *Pipeline) validate(ctx context.Context, rec *tracer.Recorder, out *planner.Output, tenantID string) (*planner.Output, validator.Decisions, error) {
	started := time.Now()
	rec.RecordStageInput(tracer.Span{Name: "validate", Input: map[string]interface{}{"kind": string(out.Kind)}})

	validated, decisions, err := p.validator.Validate(ctx, out, tenantID)
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		rec.RecordStageOutput(tracer.Span{Name: "validate", ElapsedMS: elapsed, Status: "error", Errors: []string{err.Error()}})
		return nil, decisions, err
	}
	rec.RecordStageOutput(tracer.Span{
		Name:      "validate",
		ElapsedMS: elapsed,
		Status:    "ok",
		Output: map[string]interface{}{
			"depth_clamped":      decisions.DepthClamped,
			"steps_clamped":      decisions.StepsClamped,
			"relations_filtered": decisions.RelationsFiltered,
		},
	})
	return validated, decisions, nil
}

// execute runs the Chain/DAG Executor and records its span plus every
// tool call (spec §4.8 stage 3).
func (p *Pipeline) execute(ctx context.Context, rec *tracer.Recorder, out *planner.Output, tenantID string) (*chainexec.ChainResult, []tool.CallRecord, error) {
	started := time.Now()
	rec.RecordStageInput(tracer.Span{Name: "execute", Input: map[string]interface{}{"step_count": len(out.Steps)}})

	result, calls, err := p.chain.Run(ctx, out.Steps, tenantID)
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		rec.RecordStageOutput(tracer.Span{Name: "execute", ElapsedMS: elapsed, Status: "error", Errors: []string{err.Error()}})
		return nil, calls, err
	}
	status := "ok"
	if result != nil && result.Partial {
		status = "partial"
		rec.MarkCancelled()
	}
	rec.RecordStageOutput(tracer.Span{
		Name:      "execute",
		ElapsedMS: elapsed,
		Status:    status,
		Output:    map[string]interface{}{"step_results": len(result.Steps)},
	})
	return result, calls, nil
}

// compose runs the Response Builder's aggregation stage and records its
// span (spec §4.8 stage 4).
func (p *Pipeline) compose(ctx context.Context, rec *tracer.Recorder, out *planner.Output, chainResult *chainexec.ChainResult) *compose.Result {
	started := time.Now()
	rec.RecordStageInput(tracer.Span{Name: "compose", Input: map[string]interface{}{"output_views": out.OutputViews}})
	result := p.composer.Compose(out, chainResult)
	rec.RecordStageOutput(tracer.Span{
		Name:      "compose",
		ElapsedMS: time.Since(started).Milliseconds(),
		Status:    "ok",
		Output:    map[string]interface{}{"block_count": len(result.Blocks), "reference_count": len(result.References)},
	})
	return result
}

// present runs the final shaping stage and records its span (spec §4.8
// stage 5).
func (p *Pipeline) present(ctx context.Context, rec *tracer.Recorder, out *planner.Output, composed *compose.Result, usedTools []string, start time.Time) compose.Response {
	stageStart := time.Now()
	rec.RecordStageInput(tracer.Span{Name: "present"})
	resp := p.presenter.Present(out, composed, usedTools, routeName, time.Since(start), "")
	rec.RecordStageOutput(tracer.Span{
		Name:      "present",
		ElapsedMS: time.Since(stageStart).Milliseconds(),
		Status:    "ok",
		Output:    map[string]interface{}{"block_count": len(resp.Blocks)},
	})
	return resp
}

// errorResponse builds the user-visible failure envelope: a fixed
// human-readable answer plus meta.error_code. It carries no blocks, not
// even partial ones, and no trace; the trace is only finished and saved.
func (p *Pipeline) errorResponse(ctx context.Context, rec *tracer.Recorder, start time.Time, err error) compose.Response {
	resp := compose.Response{
		Answer: "The question could not be answered.",
		Meta: compose.Meta{
			Route:      routeName,
			DurationMS: time.Since(start).Milliseconds(),
			ErrorCode:  string(apperrors.CodeOf(err)),
		},
	}
	_ = p.traces.Finish(ctx, rec, tracer.StatusError)
	return resp
}
