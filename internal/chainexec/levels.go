package chainexec

import (
	"sort"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
)

// levels computes the topological layering described in spec §4.5: level 0
// is every step with no depends_on, level k is every step whose
// dependencies all lie in levels < k. A cycle (or a depends_on reference
// to an unknown step_id) is rejected with PLAN_INVALID.
func levels(steps []Step) ([][]Step, error) {
	byID := make(map[string]Step, len(steps))
	for _, s := range steps {
		if _, dup := byID[s.StepID]; dup {
			return nil, apperrors.Of(apperrors.CodePlanInvalid, "duplicate step_id: "+s.StepID)
		}
		byID[s.StepID] = s
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, apperrors.Of(apperrors.CodePlanInvalid, "unknown dependency: "+dep).
					WithDetails("step_id", s.StepID)
			}
		}
	}

	assigned := make(map[string]int, len(steps))
	var out [][]Step
	remaining := make(map[string]Step, len(steps))
	for id, s := range byID {
		remaining[id] = s
	}

	for level := 0; len(remaining) > 0; level++ {
		var ready []Step
		for _, s := range remaining {
			allDepsAssigned := true
			for _, dep := range s.DependsOn {
				if _, ok := assigned[dep]; !ok {
					allDepsAssigned = false
					break
				}
			}
			if allDepsAssigned {
				ready = append(ready, s)
			}
		}
		if len(ready) == 0 {
			return nil, apperrors.Of(apperrors.CodePlanInvalid, "cycle detected in step dependencies")
		}
		sort.Slice(ready, func(i, j int) bool {
			if ready[i].ExecutionOrder != ready[j].ExecutionOrder {
				return ready[i].ExecutionOrder < ready[j].ExecutionOrder
			}
			return ready[i].StepID < ready[j].StepID
		})
		for _, s := range ready {
			assigned[s.StepID] = level
			delete(remaining, s.StepID)
		}
		out = append(out, ready)
	}
	return out, nil
}
