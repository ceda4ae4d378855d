package chainexec

import (
	"context"
	"sync"
	"time"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/internal/tool"
)

// Invoker is the subset of internal/tool.Executor the chain executor
// depends on, kept as an interface so tests can substitute a stub.
type Invoker interface {
	Invoke(ctx context.Context, toolName, tenantID string, params map[string]interface{}) (*tool.Result, tool.CallRecord, error)
}

// Executor runs one plan's steps to completion: topological leveling,
// concurrent dispatch within a level, output_mapping substitution, and
// required-step failure propagation (spec §4.5).
type Executor struct {
	invoker        Invoker
	maxParallelism int
}

// NewExecutor builds a chain Executor bounded to maxParallelism concurrent
// steps per level. maxParallelism <= 0 means unbounded.
func NewExecutor(invoker Invoker, maxParallelism int) *Executor {
	return &Executor{invoker: invoker, maxParallelism: maxParallelism}
}

// Run executes every step of plan against tenantID, honoring ctx's
// deadline as the chain's overall budget (spec §4.5 Cancellation).
func (e *Executor) Run(ctx context.Context, plan []Step, tenantID string) (*ChainResult, []tool.CallRecord, error) {
	tiers, err := levels(plan)
	if err != nil {
		return nil, nil, err
	}

	required := make(map[string]bool, len(plan))
	for _, s := range plan {
		required[s.StepID] = s.Required
	}

	results := make(map[string]StepResult, len(plan))
	var calls []tool.CallRecord
	var mu sync.Mutex
	partial := false

	for _, tier := range tiers {
		if ctx.Err() != nil {
			partial = true
			for _, s := range tier {
				results[s.StepID] = StepResult{StepID: s.StepID, Status: StatusCancelled}
			}
			continue
		}

		sem := e.semaphore()
		var wg sync.WaitGroup
		for _, s := range tier {
			s := s

			mu.Lock()
			skip := dependencyFailed(s, results, required)
			mu.Unlock()
			if skip {
				mu.Lock()
				results[s.StepID] = StepResult{StepID: s.StepID, Status: StatusSkippedDepFail}
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				if sem != nil {
					sem <- struct{}{}
					defer func() { <-sem }()
				}

				mu.Lock()
				snapshot := copyResults(results)
				mu.Unlock()

				start := time.Now()
				params := applyOutputMapping(s.Parameters, s.OutputMapping, snapshot)
				res, record, err := e.invoker.Invoke(ctx, s.ToolName, tenantID, params)

				sr := StepResult{StepID: s.StepID, ElapsedMS: time.Since(start).Milliseconds()}
				if err != nil {
					sr.Status = StatusFailed
					sr.Error = err.Error()
					sr.ErrorCode = string(apperrors.CodeOf(err))
				} else {
					sr.Status = StatusSucceeded
					sr.Data = res.Data
				}

				mu.Lock()
				results[s.StepID] = sr
				calls = append(calls, record)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	out := make([]StepResult, 0, len(plan))
	for _, s := range plan {
		if r, ok := results[s.StepID]; ok {
			out = append(out, r)
			if r.Status == StatusFailed || r.Status == StatusCancelled {
				partial = true
			}
		}
	}
	return &ChainResult{Steps: out, Partial: partial}, calls, nil
}

// dependencyFailed reports whether any of s's dependencies failed (or was
// itself skipped/cancelled) and was declared required=true, per spec
// §4.5: "If any step has required=true and failed, downstream steps that
// depend on it are marked SKIPPED_DEP_FAILED. Otherwise downstream steps
// run with null for unavailable sources." Caller must hold the results
// lock.
func dependencyFailed(s Step, results map[string]StepResult, required map[string]bool) bool {
	for _, dep := range s.DependsOn {
		r, ok := results[dep]
		if !ok {
			continue
		}
		didFail := r.Status == StatusFailed || r.Status == StatusSkippedDepFail || r.Status == StatusCancelled
		if didFail && required[dep] {
			return true
		}
	}
	return false
}

func (e *Executor) semaphore() chan struct{} {
	if e.maxParallelism <= 0 {
		return nil
	}
	return make(chan struct{}, e.maxParallelism)
}

func copyResults(results map[string]StepResult) map[string]StepResult {
	out := make(map[string]StepResult, len(results))
	for k, v := range results {
		out[k] = v
	}
	return out
}
