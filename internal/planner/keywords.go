package planner

import (
	"encoding/json"
	"strings"
)

// KeywordMap decodes the published planner_keywords mapping asset (spec
// §4.6), shaped after the seed template's metric_aliases/agg_keywords/
// series_keywords/history_keywords/list_keywords/graph_scope_keywords/
// graph_view_keywords/filterable_fields sections.
type KeywordMap struct {
	MetricAliases struct {
		Aliases  map[string]string `json:"aliases"`
		Keywords []string          `json:"keywords"`
	} `json:"metric_aliases"`
	AggKeywords struct {
		Mappings map[string]string `json:"mappings"`
	} `json:"agg_keywords"`
	SeriesKeywords struct {
		Keywords []string `json:"keywords"`
	} `json:"series_keywords"`
	HistoryKeywords struct {
		Keywords []string          `json:"keywords"`
		TimeMap  map[string]string `json:"time_map"`
	} `json:"history_keywords"`
	ListKeywords struct {
		Keywords []string `json:"keywords"`
	} `json:"list_keywords"`
	GraphScopeKeywords struct {
		ScopeKeywords  []string `json:"scope_keywords"`
		MetricKeywords []string `json:"metric_keywords"`
	} `json:"graph_scope_keywords"`
	GraphViewKeywords struct {
		ViewKeywordMap map[string]string `json:"view_keyword_map"`
		DefaultDepths  map[string]int    `json:"default_depths"`
	} `json:"graph_view_keywords"`
	FilterableFields struct {
		TagFilterKeys  []string `json:"tag_filter_keys"`
		AttrFilterKeys []string `json:"attr_filter_keys"`
	} `json:"filterable_fields"`
}

// Defaults decodes the published planner_defaults mapping asset.
type Defaults struct {
	OutputTypePriorities struct {
		GlobalPriorities []string `json:"global_priorities"`
	} `json:"output_type_priorities"`
}

func decodeKeywordMap(raw json.RawMessage) (*KeywordMap, error) {
	var km KeywordMap
	if err := json.Unmarshal(raw, &km); err != nil {
		return nil, err
	}
	return &km, nil
}

func decodeDefaults(raw json.RawMessage) (*Defaults, error) {
	var d Defaults
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// scan runs the deterministic pre-pass over question against km,
// producing intent hints, resolved metric aliases, aggregation and
// time-range keywords, and a confidence score (spec §4.6 step a).
func scan(question string, km *KeywordMap) PreHints {
	q := strings.ToLower(question)
	hints := PreHints{Intent: IntentUnknown, Filters: map[string]string{}}

	var matched int
	var total int

	total++
	if view, depth, ok := matchGraphView(q, km); ok {
		hints.Intent = IntentGraph
		hints.GraphView = view
		hints.GraphDepth = depth
		matched++
	} else if containsAny(q, km.SeriesKeywords.Keywords) {
		hints.Intent = IntentSeries
		matched++
	} else if containsAny(q, km.HistoryKeywords.Keywords) {
		hints.Intent = IntentHistory
		matched++
	} else if containsAny(q, km.ListKeywords.Keywords) {
		hints.Intent = IntentList
		matched++
	} else if containsAny(q, km.MetricAliases.Keywords) {
		hints.Intent = IntentAggregate
		matched++
	}

	total++
	if alias := resolveMetricAliases(q, km); len(alias) > 0 {
		hints.MetricAliases = alias
		matched++
	}

	total++
	if agg := resolveAggregation(q, km); agg != "" {
		hints.Aggregation = agg
		matched++
	}

	total++
	if tr := resolveTimeRange(q, km); tr != "" {
		hints.TimeRange = tr
		matched++
	}

	if total > 0 {
		hints.Confidence = float64(matched) / float64(total)
	}
	return hints
}

func containsAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func resolveMetricAliases(q string, km *KeywordMap) []string {
	var out []string
	seen := map[string]bool{}
	for _, kw := range km.MetricAliases.Keywords {
		if !strings.Contains(q, strings.ToLower(kw)) {
			continue
		}
		resolved := km.MetricAliases.Aliases[kw]
		if resolved == "" {
			resolved = kw
		}
		if !seen[resolved] {
			seen[resolved] = true
			out = append(out, resolved)
		}
	}
	return out
}

func resolveAggregation(q string, km *KeywordMap) string {
	for kw, agg := range km.AggKeywords.Mappings {
		if strings.Contains(q, strings.ToLower(kw)) {
			return agg
		}
	}
	return ""
}

func resolveTimeRange(q string, km *KeywordMap) string {
	for phrase, abstractRange := range km.HistoryKeywords.TimeMap {
		if strings.Contains(q, strings.ToLower(phrase)) {
			return abstractRange
		}
	}
	return ""
}

func matchGraphView(q string, km *KeywordMap) (view string, depth int, ok bool) {
	for kw, v := range km.GraphViewKeywords.ViewKeywordMap {
		if strings.Contains(q, strings.ToLower(kw)) {
			return v, km.GraphViewKeywords.DefaultDepths[v], true
		}
	}
	return "", 0, false
}
