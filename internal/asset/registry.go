package asset

import (
	"context"
	"sync"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/infrastructure/logging"
)

// requiredSystemAssets are the names spec §4.1 says must fail hard when
// missing, never fall back to a built-in default.
var requiredSystemAssets = map[string]bool{
	SystemAssetPlanBudget:      true,
	SystemAssetViewDepth:       true,
	SystemAssetDiscoveryConfig: true,
}

// cacheEntry holds one cached lookup result plus the lock guarding its
// lazy fill, matching spec §4.1: "each with its own lazy-initialization
// lock... reads are lock-free after first hit."
type cacheEntry struct {
	once    sync.Once
	asset   *Asset
	err     error
	fetched bool
}

// Registry is the in-process, cached view of the Asset Store. Each
// (type, scope, name, tenant) key gets its own cache entry and lock;
// InvalidateAll or Invalidate(key) must be called after any write so the
// next Get re-fetches.
type Registry struct {
	store  Store
	logger *logging.Logger

	mu    sync.RWMutex
	cache map[Key]*cacheEntry
}

// NewRegistry builds a Registry over store.
func NewRegistry(store Store, logger *logging.Logger) *Registry {
	return &Registry{store: store, logger: logger, cache: make(map[Key]*cacheEntry)}
}

func (r *Registry) entry(key Key) *cacheEntry {
	r.mu.RLock()
	e, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.cache[key]; ok {
		return e
	}
	e = &cacheEntry{}
	r.cache[key] = e
	return e
}

// Get returns the single published asset for key, using the per-key cache.
// A cache miss (no published asset) is cached too, to avoid hammering the
// store for assets that are simply absent. Required system assets that
// are absent return a hard error instead of a nil asset.
func (r *Registry) Get(ctx context.Context, key Key) (*Asset, error) {
	e := r.entry(key)
	e.once.Do(func() {
		e.asset, e.err = r.store.Get(ctx, key)
		e.fetched = true
	})
	if e.err != nil {
		return nil, e.err
	}
	if e.asset == nil && requiredSystemAssets[key.Name] {
		return nil, apperrors.Of(apperrors.CodeConfigurationError, "required system asset missing: "+key.Name).
			WithDetails("asset_name", key.Name)
	}
	return e.asset, nil
}

// Invalidate forces the next Get(key) to re-fetch from the store. Called
// after Publish/Rollback for the affected (type, scope, name, tenant).
func (r *Registry) Invalidate(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, key)
}

// InvalidateAll clears every cached entry (used on an explicit reload
// signal per spec §4.1).
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[Key]*cacheEntry)
}

// List delegates to the store uncached (list queries are not hot-path).
func (r *Registry) List(ctx context.Context, typ Type, filter ListFilter) ([]*Asset, error) {
	return r.store.List(ctx, typ, filter)
}

// CreateDraft delegates to the store.
func (r *Registry) CreateDraft(ctx context.Context, draft Asset) (*Asset, error) {
	return r.store.CreateDraft(ctx, draft)
}

// UpdateDraft delegates to the store.
func (r *Registry) UpdateDraft(ctx context.Context, assetID string, patch Patch, actor string) (*Asset, error) {
	return r.store.UpdateDraft(ctx, assetID, patch, actor)
}

// Publish publishes assetID and invalidates its cache key so the next Get
// observes the new published row.
func (r *Registry) Publish(ctx context.Context, key Key, assetID, actor string) (*Asset, error) {
	a, err := r.store.Publish(ctx, assetID, actor)
	if err != nil {
		return nil, err
	}
	r.Invalidate(key)
	if r.logger != nil {
		r.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"asset_id": assetID, "type": key.Type, "name": key.Name, "version": a.Version,
		}).Info("asset published")
	}
	return a, nil
}

// Rollback publishes targetVersion's content as a new row and invalidates
// the cache key.
func (r *Registry) Rollback(ctx context.Context, key Key, assetID string, targetVersion int, actor string) (*Asset, error) {
	a, err := r.store.Rollback(ctx, assetID, targetVersion, actor)
	if err != nil {
		return nil, err
	}
	r.Invalidate(key)
	return a, nil
}

// GetSetting implements infrastructure/config.SettingsSource by reading
// the system "operation_settings" mapping asset's content as a flat
// string-keyed JSON object.
func (r *Registry) GetSetting(ctx context.Context, key string) (string, bool) {
	a, err := r.Get(ctx, Key{Type: TypeMapping, Scope: "ops", Name: "operation_settings", TenantID: ""})
	if err != nil || a == nil {
		return "", false
	}
	settings, err := decodeStringMap(a.Content)
	if err != nil {
		return "", false
	}
	v, ok := settings[key]
	return v, ok
}
