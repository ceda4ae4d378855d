package compose

import (
	"fmt"
	"time"

	"github.com/ops-intel/orchestrator/internal/planner"
)

// Presenter performs the Present stage's final shaping: block ordering,
// answer-text synthesis, metadata, and next-action suggestions (spec
// §4.8 stage 5).
type Presenter struct{}

// NewPresenter builds a Presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Present builds the final response envelope from a Compose Result, the
// plan that produced it, the tools actually invoked, and stage timing.
func (p *Presenter) Present(out *planner.Output, composed *Result, usedTools []string, route string, duration time.Duration, errorCode string) Response {
	if out != nil && out.Kind == planner.KindDirectAnswer {
		return Response{
			Answer: out.Text,
			Meta: Meta{
				Route:      route,
				UsedTools:  usedTools,
				DurationMS: duration.Milliseconds(),
				ErrorCode:  errorCode,
			},
		}
	}
	if out != nil && out.Kind == planner.KindReject {
		return Response{
			Answer: out.Reason,
			Meta: Meta{
				Route:      route,
				UsedTools:  usedTools,
				DurationMS: duration.Milliseconds(),
				ErrorCode:  errorCode,
			},
		}
	}

	var blocks []Block
	var refs []Reference
	if composed != nil {
		blocks = composed.Blocks
		refs = composed.References
	}

	return Response{
		Answer:      synthesizeAnswer(blocks),
		Blocks:      blocks,
		References:  refs,
		NextActions: suggestNextActions(blocks),
		Meta: Meta{
			Route:      route,
			UsedTools:  usedTools,
			Summary:    summarize(blocks),
			DurationMS: duration.Milliseconds(),
			ErrorCode:  errorCode,
		},
	}
}

// synthesizeAnswer picks the lead block's text/markdown as the headline
// answer, falling back to a block-count summary for structured-only
// results (table/timeseries/graph with no text block).
func synthesizeAnswer(blocks []Block) string {
	for _, b := range blocks {
		if b.Type == BlockText && b.Text != "" {
			return b.Text
		}
	}
	for _, b := range blocks {
		if b.Type == BlockMarkdown && b.Markdown != "" {
			return b.Markdown
		}
	}
	for _, b := range blocks {
		switch b.Type {
		case BlockTable:
			return fmt.Sprintf("Found %d matching rows.", len(b.Rows))
		case BlockTimeseries:
			return fmt.Sprintf("Found %d data points.", len(b.Points))
		case BlockGraph:
			if b.Graph != nil {
				return fmt.Sprintf("Found %d related nodes.", len(b.Graph.Nodes))
			}
		}
	}
	return "No data was found for this question."
}

func summarize(blocks []Block) string {
	return fmt.Sprintf("%d block(s) produced", len(blocks))
}

// suggestNextActions adds one follow-up suggestion string for each table
// block with no rows and each graph block with no nodes. It builds no
// blocks.
func suggestNextActions(blocks []Block) []string {
	var actions []string
	for _, b := range blocks {
		switch b.Type {
		case BlockTable:
			if len(b.Rows) == 0 {
				actions = append(actions, "Try broadening the search filters.")
			}
		case BlockGraph:
			if b.Graph != nil && len(b.Graph.Nodes) == 0 {
				actions = append(actions, "Try a different starting node or a wider view.")
			}
		}
	}
	return actions
}
