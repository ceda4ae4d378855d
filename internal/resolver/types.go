// Package resolver resolves a named query asset plus bound parameters into
// an executable statement, enforcing SQL safety before execution.
package resolver

// QueryDef is the decoded content of a query-type Asset: a parameterized
// statement plus the metadata the resolver selects it by.
type QueryDef struct {
	ToolType  string `json:"tool_type"`
	Operation string `json:"operation"`
	SourceRef string `json:"source_ref"`
	Statement string `json:"statement"`
	// GuardParams lists parameter names whose clause should be stripped
	// from the bound statement entirely when the bound value is an empty
	// list, rather than binding an empty IN(...)/ANY(...) (spec §4.3).
	GuardParams []string `json:"guard_params"`
}

// Bound is a resolved, ready-to-execute statement plus its positional
// argument values in parameter order.
type Bound struct {
	Statement string
	Args      []interface{}
}
