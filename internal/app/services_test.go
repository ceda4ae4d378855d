package app

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/internal/asset"
	"github.com/ops-intel/orchestrator/internal/source"
)

type fakeSourceStore struct {
	published map[asset.Key]*asset.Asset
}

func (f *fakeSourceStore) Get(ctx context.Context, key asset.Key) (*asset.Asset, error) {
	return f.published[key], nil
}
func (f *fakeSourceStore) GetVersion(ctx context.Context, key asset.Key, version int) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeSourceStore) List(ctx context.Context, typ asset.Type, filter asset.ListFilter) ([]*asset.Asset, error) {
	return nil, nil
}
func (f *fakeSourceStore) CreateDraft(ctx context.Context, draft asset.Asset) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeSourceStore) Publish(ctx context.Context, assetID, actor string) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeSourceStore) Rollback(ctx context.Context, assetID string, targetVersion int, actor string) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeSourceStore) UpdateDraft(ctx context.Context, assetID string, patch asset.Patch, actor string) (*asset.Asset, error) {
	return nil, nil
}

func TestSourceLookupDecodesPublishedAsset(t *testing.T) {
	body, err := json.Marshal(source.Def{Type: source.KindPostgreSQL, Host: "db.internal", Port: 5432})
	if err != nil {
		t.Fatal(err)
	}
	key := asset.Key{Type: asset.TypeSource, Scope: sourceScope, Name: "inventory_db"}
	registry := asset.NewRegistry(&fakeSourceStore{published: map[asset.Key]*asset.Asset{key: {Content: body}}}, nil)

	def, err := sourceLookup(registry)(context.Background(), "inventory_db")
	if err != nil {
		t.Fatalf("sourceLookup: %v", err)
	}
	if def.Type != source.KindPostgreSQL || def.Host != "db.internal" {
		t.Errorf("unexpected source def: %+v", def)
	}
}

func TestSourceLookupMissingAssetReturnsConfigurationError(t *testing.T) {
	registry := asset.NewRegistry(&fakeSourceStore{}, nil)
	_, err := sourceLookup(registry)(context.Background(), "missing")
	if apperrors.CodeOf(err) != apperrors.CodeConfigurationError {
		t.Errorf("CodeOf(err) = %v, want CONFIGURATION_ERROR", apperrors.CodeOf(err))
	}
}

func TestDefaultOptionsHonorsEnvironmentOverrides(t *testing.T) {
	os.Setenv("ORCH_LOG_LEVEL", "debug")
	defer os.Unsetenv("ORCH_LOG_LEVEL")

	opts := DefaultOptions()
	if opts.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", opts.LogLevel, "debug")
	}
	if opts.RateLimitFallback.RequestsPerMinute <= 0 {
		t.Error("expected a positive default rate-limit fallback")
	}
}

func TestBuildRequiresPostgresDSN(t *testing.T) {
	_, err := Build(context.Background(), Options{PostgresDSN: ""})
	if err == nil {
		t.Fatal("expected Build to fail without a Postgres DSN")
	}
}
