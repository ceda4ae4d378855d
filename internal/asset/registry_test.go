package asset

import (
	"context"
	"encoding/json"
	"testing"
)

// memStore is a minimal in-memory Store for exercising Registry caching and
// the publish/rollback invalidation contract without a database.
type memStore struct {
	published map[Key]*Asset
	getCalls  int
}

func newMemStore() *memStore { return &memStore{published: make(map[Key]*Asset)} }

func (m *memStore) Get(ctx context.Context, key Key) (*Asset, error) {
	m.getCalls++
	return m.published[key], nil
}
func (m *memStore) GetVersion(ctx context.Context, key Key, version int) (*Asset, error) {
	return nil, nil
}
func (m *memStore) List(ctx context.Context, typ Type, filter ListFilter) ([]*Asset, error) {
	return nil, nil
}
func (m *memStore) CreateDraft(ctx context.Context, draft Asset) (*Asset, error) {
	return &draft, nil
}
func (m *memStore) Publish(ctx context.Context, assetID, actor string) (*Asset, error) {
	return &Asset{ID: assetID, PublishedBy: actor, Version: 2}, nil
}
func (m *memStore) Rollback(ctx context.Context, assetID string, targetVersion int, actor string) (*Asset, error) {
	return &Asset{ID: assetID, Version: targetVersion, PublishedBy: actor}, nil
}
func (m *memStore) UpdateDraft(ctx context.Context, assetID string, patch Patch, actor string) (*Asset, error) {
	return nil, nil
}

func TestRegistryGetCachesAfterFirstFetch(t *testing.T) {
	store := newMemStore()
	key := Key{Type: TypeMapping, Scope: "ops", Name: "plan_budget"}
	store.published[key] = &Asset{ID: "a1", Content: json.RawMessage(`{"max_steps":5}`)}

	reg := NewRegistry(store, nil)
	for i := 0; i < 5; i++ {
		a, err := reg.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if a == nil || a.ID != "a1" {
			t.Fatalf("Get() = %+v, want a1", a)
		}
	}
	if store.getCalls != 1 {
		t.Fatalf("store.Get called %d times, want 1 (cached)", store.getCalls)
	}
}

func TestRegistryRequiredSystemAssetMissingFailsHard(t *testing.T) {
	store := newMemStore()
	reg := NewRegistry(store, nil)
	_, err := reg.Get(context.Background(), Key{Type: TypeMapping, Scope: "ops", Name: SystemAssetPlanBudget})
	if err == nil {
		t.Fatal("expected an error for a missing required system asset")
	}
}

func TestRegistryOptionalAssetMissingReturnsNilNoError(t *testing.T) {
	store := newMemStore()
	reg := NewRegistry(store, nil)
	a, err := reg.Get(context.Background(), Key{Type: TypeMapping, Scope: "ops", Name: "graph_relation_allowlist"})
	if err != nil {
		t.Fatalf("unexpected error for an optional missing asset: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil asset, got %+v", a)
	}
}

func TestRegistryPublishInvalidatesCache(t *testing.T) {
	store := newMemStore()
	key := Key{Type: TypeMapping, Scope: "ops", Name: "control_loop_policy"}
	store.published[key] = &Asset{ID: "v1", Version: 1}

	reg := NewRegistry(store, nil)
	a, _ := reg.Get(context.Background(), key)
	if a.Version != 1 {
		t.Fatalf("Version = %d, want 1", a.Version)
	}

	if _, err := reg.Publish(context.Background(), key, "v2", "tester"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	store.published[key] = &Asset{ID: "v2", Version: 2}

	a, err := reg.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get after publish: %v", err)
	}
	if a.Version != 2 {
		t.Fatalf("Version after publish = %d, want 2 (cache must be invalidated)", a.Version)
	}
}

func TestRegistryRollbackInvalidatesCache(t *testing.T) {
	store := newMemStore()
	key := Key{Type: TypeMapping, Scope: "ops", Name: "control_loop_policy"}
	store.published[key] = &Asset{ID: "v3", Version: 3}

	reg := NewRegistry(store, nil)
	_, _ = reg.Get(context.Background(), key)

	if _, err := reg.Rollback(context.Background(), key, "v3", 1, "tester"); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	store.published[key] = &Asset{ID: "v4", Version: 1}

	a, err := reg.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get after rollback: %v", err)
	}
	if a.Version != 1 {
		t.Fatalf("Version after rollback = %d, want 1 (the restored version)", a.Version)
	}
}
