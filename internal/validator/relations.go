package validator

import (
	"context"
	"encoding/json"

	"github.com/ops-intel/orchestrator/internal/asset"
)

// staticViews are graph views whose allowlist is authoritative regardless
// of discovery (spec's STATIC_VIEW_NAMES in the relation-mapping policy).
var staticViews = map[string]bool{
	"COMPOSITION": true, "DEPENDENCY": true, "IMPACT": true, "PATH": true,
}

// builtinRelationAllowlist is the compiled-in last-resort tier of the
// three-tier fallback chain from original_source's policy.py
// (published asset -> seed file -> hardcoded list); this module has no
// seed-file directory, so the chain collapses to two tiers: published
// asset, else this map.
var builtinRelationAllowlist = map[string][]string{
	"SUMMARY": {
		"COMPOSED_OF", "DEPENDS_ON", "RUNS_ON", "DEPLOYED_ON", "USES", "PROTECTED_BY", "CONNECTED_TO",
	},
	"NEIGHBORS": {
		"COMPOSED_OF", "DEPENDS_ON", "RUNS_ON", "DEPLOYED_ON", "USES", "PROTECTED_BY", "CONNECTED_TO",
	},
}

// loadRelationAllowlist fetches the graph_relation_allowlist mapping asset
// if published, else returns nil (caller falls back to builtinRelationAllowlist).
func loadRelationAllowlist(ctx context.Context, assets *asset.Registry) (*RelationAllowlist, error) {
	a, err := assets.Get(ctx, asset.Key{Type: asset.TypeMapping, Scope: "ops", Name: "graph_relation_allowlist"})
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	var allow RelationAllowlist
	if err := json.Unmarshal(a.Content, &allow); err != nil {
		return nil, err
	}
	return &allow, nil
}

// allowedRelations resolves the allowed relation types for view, per spec
// §4.7 step 4: static views pass the requested list through unfiltered; SUMMARY/
// NEIGHBORS consult the allowlist (asset if present, else the built-in
// default); any other view with no mapping falls back to the requested
// list unfiltered.
func allowedRelations(view string, requested []string, published *RelationAllowlist) []string {
	if staticViews[view] {
		return requested
	}
	var allow []string
	if published != nil {
		allow = published.Views[view]
	}
	if len(allow) == 0 {
		allow = builtinRelationAllowlist[view]
	}
	if len(allow) == 0 {
		return requested
	}
	allowSet := make(map[string]bool, len(allow))
	for _, r := range allow {
		allowSet[r] = true
	}
	var out []string
	for _, r := range requested {
		if allowSet[r] {
			out = append(out, r)
		}
	}
	return out
}
