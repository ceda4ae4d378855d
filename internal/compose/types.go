// Package compose implements the Response Builder: the Compose and
// Present stages that turn DAG-executor step results into the semantic
// blocks, deduplicated references, and final answer envelope the API
// returns (spec §4.8 stages 4-5).
package compose

// BlockType discriminates the shape of one response block.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockTable      BlockType = "table"
	BlockTimeseries BlockType = "timeseries"
	BlockGraph      BlockType = "graph"
	BlockReferences BlockType = "references"
	BlockMarkdown   BlockType = "markdown"
)

// Block is one semantic unit of the composed answer.
type Block struct {
	Type    BlockType       `json:"type"`
	Title   string          `json:"title,omitempty"`
	Text    string          `json:"text,omitempty"`
	Columns []string        `json:"columns,omitempty"`
	Rows    []map[string]interface{} `json:"rows,omitempty"`
	Points  []TimeseriesPoint `json:"points,omitempty"`
	Graph   *GraphData      `json:"graph,omitempty"`
	Markdown string         `json:"markdown,omitempty"`
	SourceSteps []string    `json:"source_steps,omitempty"`
}

// TimeseriesPoint is one sample of a timeseries block.
type TimeseriesPoint struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
	Series    string  `json:"series,omitempty"`
}

// GraphData is a graph block's node/edge payload, passed through from a
// graph_query tool's result largely unchanged.
type GraphData struct {
	Nodes []map[string]interface{} `json:"nodes"`
	Edges []map[string]interface{} `json:"edges"`
	Depth int                      `json:"depth,omitempty"`
}

// Reference is one citation into the data the answer was built from
// (spec's "reference dedup").
type Reference struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Result is the Compose stage's output: blocks plus deduplicated
// references, before Present does final shaping.
type Result struct {
	Blocks     []Block     `json:"blocks"`
	References []Reference `json:"references"`
}

// Meta carries the envelope's meta{route, used_tools, summary} (spec
// §6's POST /ops/ask response shape).
type Meta struct {
	Route      string   `json:"route"`
	UsedTools  []string `json:"used_tools"`
	Summary    string   `json:"summary,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	ErrorCode  string   `json:"error_code,omitempty"`
}

// Response is the final Present-stage envelope.
type Response struct {
	Answer      string      `json:"answer"`
	Blocks      []Block     `json:"blocks"`
	References  []Reference `json:"references"`
	NextActions []string    `json:"next_actions,omitempty"`
	Meta        Meta        `json:"meta"`
}
