package compose

import (
	"fmt"
	"sort"

	"github.com/ops-intel/orchestrator/internal/chainexec"
	"github.com/ops-intel/orchestrator/internal/planner"
)

// Composer aggregates a DAG executor's step results into semantic blocks
// per the plan's output_views, and deduplicates references (spec §4.8
// stage 4).
type Composer struct{}

// New builds a Composer. It carries no state: every Compose call is a
// pure function of its inputs.
func New() *Composer {
	return &Composer{}
}

// Compose builds one Block per requested output_view plus the
// deduplicated reference list, from plan (for step_id -> tool_name) and
// chain (the executed results).
func (c *Composer) Compose(out *planner.Output, chain *chainexec.ChainResult) *Result {
	steps := make(map[string]chainexec.Step, len(out.Steps))
	for _, s := range out.Steps {
		steps[s.StepID] = s
	}
	results := make(map[string]chainexec.StepResult, len(chain.Steps))
	var ordered []chainexec.StepResult
	if chain != nil {
		for _, r := range chain.Steps {
			results[r.StepID] = r
			ordered = append(ordered, r)
		}
	}

	var blocks []Block
	views := out.OutputViews
	if len(views) == 0 {
		views = []string{string(BlockText)}
	}
	for _, view := range views {
		switch BlockType(view) {
		case BlockTable:
			blocks = append(blocks, buildTableBlock(ordered))
		case BlockTimeseries:
			blocks = append(blocks, buildTimeseriesBlock(ordered))
		case BlockGraph:
			blocks = append(blocks, buildGraphBlock(ordered, out.GraphSpec))
		case BlockMarkdown:
			blocks = append(blocks, buildMarkdownBlock(ordered))
		case BlockReferences:
			// references are assembled separately below; a references
			// view adds no block.
			continue
		default:
			blocks = append(blocks, buildTextBlock(ordered))
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, buildTextBlock(ordered))
	}

	refs := buildReferences(steps, ordered)
	return &Result{Blocks: blocks, References: refs}
}

func buildTextBlock(results []chainexec.StepResult) Block {
	for _, r := range results {
		if r.Status != chainexec.StatusSucceeded {
			continue
		}
		if scalar, ok := asScalarSummary(r.Data); ok {
			return Block{Type: BlockText, Text: scalar, SourceSteps: []string{r.StepID}}
		}
	}
	for _, r := range results {
		if r.Status != chainexec.StatusSucceeded {
			return Block{Type: BlockText, Text: "No data was found for this question.", SourceSteps: []string{r.StepID}}
		}
	}
	return Block{Type: BlockText, Text: "No data was found for this question."}
}

// asScalarSummary renders a single-field numeric/string result as a short
// answer string (spec §8 scenario 1: "Total number of CIs" -> the
// integer).
func asScalarSummary(data interface{}) (string, bool) {
	switch v := data.(type) {
	case map[string]interface{}:
		if len(v) == 1 {
			for _, val := range v {
				return fmt.Sprintf("%v", val), true
			}
		}
	case []map[string]interface{}:
		if len(v) == 1 && len(v[0]) == 1 {
			for _, val := range v[0] {
				return fmt.Sprintf("%v", val), true
			}
		}
	}
	return "", false
}

func buildTableBlock(results []chainexec.StepResult) Block {
	block := Block{Type: BlockTable}
	colSet := map[string]bool{}
	for _, r := range results {
		if r.Status != chainexec.StatusSucceeded {
			continue
		}
		rows := rowsOf(r.Data)
		if len(rows) == 0 {
			continue
		}
		block.Rows = append(block.Rows, rows...)
		block.SourceSteps = append(block.SourceSteps, r.StepID)
		for _, row := range rows {
			for k := range row {
				colSet[k] = true
			}
		}
	}
	block.Columns = sortedKeys(colSet)
	return block
}

func rowsOf(data interface{}) []map[string]interface{} {
	switch v := data.(type) {
	case []map[string]interface{}:
		return v
	case map[string]interface{}:
		if rows, ok := v["rows"].([]map[string]interface{}); ok {
			return rows
		}
		if rows, ok := v["rows"].([]interface{}); ok {
			return toMapSlice(rows)
		}
		return []map[string]interface{}{v}
	case []interface{}:
		return toMapSlice(v)
	}
	return nil
}

func toMapSlice(in []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(in))
	for _, item := range in {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func buildTimeseriesBlock(results []chainexec.StepResult) Block {
	block := Block{Type: BlockTimeseries}
	for _, r := range results {
		if r.Status != chainexec.StatusSucceeded {
			continue
		}
		for _, row := range rowsOf(r.Data) {
			ts, tsOK := firstString(row, "timestamp", "ts", "time")
			val, valOK := firstFloat(row, "value", "val", "metric_value")
			if !tsOK || !valOK {
				continue
			}
			series, _ := firstString(row, "series", "metric", "name")
			block.Points = append(block.Points, TimeseriesPoint{Timestamp: ts, Value: val, Series: series})
		}
		if len(block.Points) > 0 {
			block.SourceSteps = append(block.SourceSteps, r.StepID)
		}
	}
	return block
}

func buildGraphBlock(results []chainexec.StepResult, graphSpec map[string]interface{}) Block {
	block := Block{Type: BlockGraph, Graph: &GraphData{}}
	if d, ok := graphSpec["depth"].(int); ok {
		block.Graph.Depth = d
	} else if d, ok := graphSpec["depth"].(float64); ok {
		block.Graph.Depth = int(d)
	}
	for _, r := range results {
		if r.Status != chainexec.StatusSucceeded {
			continue
		}
		m, ok := r.Data.(map[string]interface{})
		if !ok {
			continue
		}
		if nodes, ok := m["nodes"].([]interface{}); ok {
			block.Graph.Nodes = append(block.Graph.Nodes, toMapSlice(nodes)...)
		}
		if edges, ok := m["edges"].([]interface{}); ok {
			block.Graph.Edges = append(block.Graph.Edges, toMapSlice(edges)...)
		}
		if len(block.Graph.Nodes) > 0 || len(block.Graph.Edges) > 0 {
			block.SourceSteps = append(block.SourceSteps, r.StepID)
		}
	}
	return block
}

func buildMarkdownBlock(results []chainexec.StepResult) Block {
	text := buildTextBlock(results)
	return Block{Type: BlockMarkdown, Markdown: text.Text, SourceSteps: text.SourceSteps}
}

// buildReferences keeps one reference per distinct tool name among the
// step results, whatever their status (spec's "reference dedup").
func buildReferences(steps map[string]chainexec.Step, results []chainexec.StepResult) []Reference {
	seen := map[string]bool{}
	var refs []Reference
	for _, r := range results {
		step, ok := steps[r.StepID]
		if !ok {
			continue
		}
		key := step.ToolName
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, Reference{
			Type:   "tool_call",
			ID:     step.ToolName,
			Label:  step.ToolName,
			Detail: string(r.Status),
		})
	}
	return refs
}

func firstString(row map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func firstFloat(row map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			switch n := v.(type) {
			case float64:
				return n, true
			case int:
				return float64(n), true
			}
		}
	}
	return 0, false
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
