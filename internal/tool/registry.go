package tool

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/internal/asset"
)

// Registry holds the in-process view of every published Tool asset,
// keyed by name and indexed by kind (spec §4.4). Populated at
// initialization from the Asset Registry; Reload must be called after a
// tool asset is published/rolled back.
type Registry struct {
	assets *asset.Registry
	scope  string

	mu      sync.RWMutex
	byName  map[string]*Def
	byKind  map[Kind][]*Def
	aliases map[string]string
}

// NewRegistry builds an empty Registry bound to the Asset Registry.
func NewRegistry(assets *asset.Registry, scope string) *Registry {
	return &Registry{
		assets:  assets,
		scope:   scope,
		byName:  make(map[string]*Def),
		byKind:  make(map[Kind][]*Def),
		aliases: make(map[string]string),
	}
}

// Reload repopulates the registry from every published tool-type asset.
func (r *Registry) Reload(ctx context.Context) error {
	assets, err := r.assets.List(ctx, asset.TypeTool, asset.ListFilter{Scope: r.scope})
	if err != nil {
		return err
	}

	byName := make(map[string]*Def, len(assets))
	byKind := make(map[Kind][]*Def)
	for _, a := range assets {
		var def Def
		if err := json.Unmarshal(a.Content, &def); err != nil {
			continue
		}
		d := def
		byName[d.Name] = &d
		byKind[d.Kind] = append(byKind[d.Kind], &d)
	}

	r.mu.Lock()
	r.byName = byName
	r.byKind = byKind
	r.mu.Unlock()
	return nil
}

// RegisterAlias maps an alternate tool name to its canonical registered
// name, used by the Planner's post-pass to rewrite LLM-chosen tool names
// (spec §4.6).
func (r *Registry) RegisterAlias(alias, canonical string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = canonical
}

// Resolve returns the Def for name, following any registered alias.
func (r *Registry) Resolve(name string) (*Def, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	d, ok := r.byName[name]
	return d, ok
}

// Exists reports whether name (after alias resolution) names a
// registered tool — used by the Plan Validator's tool-existence check.
func (r *Registry) Exists(name string) bool {
	_, ok := r.Resolve(name)
	return ok
}

// ByKind returns every registered tool of kind.
func (r *Registry) ByKind(kind Kind) []*Def {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Def, len(r.byKind[kind]))
	copy(out, r.byKind[kind])
	return out
}

// Get returns the Def for name or TOOL_NOT_FOUND.
func (r *Registry) Get(name string) (*Def, error) {
	d, ok := r.Resolve(name)
	if !ok {
		return nil, apperrors.Of(apperrors.CodeToolNotFound, "tool not found: "+name)
	}
	return d, nil
}
