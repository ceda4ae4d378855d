package planner

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
)

// LLMClient is the external collaborator that turns an enriched question
// plus pre-pass hints into a PlanOutput JSON document. Hosting the model
// itself is out of scope (spec §1 Non-goals); this is the seam a real
// provider client plugs into.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// callLLM sends the enriched prompt and parses the result into an Output,
// repairing malformed JSON once before failing with PLANNING_ERROR (spec
// §4.6 step b, §4.6 Failure).
func callLLM(ctx context.Context, client LLMClient, systemPrompt, userPrompt string) (*Output, error) {
	raw, err := client.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	out, err := parseOutput(raw)
	if err == nil {
		return out, nil
	}

	repaired, repairErr := client.Complete(ctx, systemPrompt, userPrompt+"\n\nYour previous reply was not valid JSON. Reply with JSON only, matching the schema exactly.")
	if repairErr != nil {
		return nil, apperrors.Ofw(apperrors.CodePlanningError, "llm repair call failed", repairErr)
	}
	out, err = parseOutput(repaired)
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodePlanningError, "llm returned malformed JSON after repair retry", err)
	}
	return out, nil
}

func parseOutput(raw string) (*Output, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var out Output
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out.Kind == "" {
		return nil, apperrors.Of(apperrors.CodePlanningError, "llm plan missing kind discriminator")
	}
	return &out, nil
}
