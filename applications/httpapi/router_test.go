package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ops-intel/orchestrator/infrastructure/logging"
	"github.com/ops-intel/orchestrator/infrastructure/metrics"
	"github.com/ops-intel/orchestrator/infrastructure/middleware"
	"github.com/ops-intel/orchestrator/internal/app"
	"github.com/ops-intel/orchestrator/internal/asset"
	"github.com/ops-intel/orchestrator/internal/tracer"
)

type fakeAssetStore struct {
	drafted   *asset.Asset
	published map[asset.Key]*asset.Asset
}

func (f *fakeAssetStore) Get(ctx context.Context, key asset.Key) (*asset.Asset, error) {
	return f.published[key], nil
}
func (f *fakeAssetStore) GetVersion(ctx context.Context, key asset.Key, version int) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeAssetStore) List(ctx context.Context, typ asset.Type, filter asset.ListFilter) ([]*asset.Asset, error) {
	if f.drafted == nil {
		return nil, nil
	}
	return []*asset.Asset{f.drafted}, nil
}
func (f *fakeAssetStore) CreateDraft(ctx context.Context, draft asset.Asset) (*asset.Asset, error) {
	draft.ID = "draft-1"
	draft.Version = 1
	f.drafted = &draft
	return &draft, nil
}
func (f *fakeAssetStore) Publish(ctx context.Context, assetID, actor string) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeAssetStore) Rollback(ctx context.Context, assetID string, targetVersion int, actor string) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeAssetStore) UpdateDraft(ctx context.Context, assetID string, patch asset.Patch, actor string) (*asset.Asset, error) {
	return nil, nil
}

type fakeTraceStore struct{}

func (fakeTraceStore) Save(ctx context.Context, t *tracer.Trace) error { return nil }
func (fakeTraceStore) Get(ctx context.Context, traceID string) (*tracer.Trace, error) {
	return &tracer.Trace{TraceID: traceID}, nil
}
func (fakeTraceStore) Search(ctx context.Context, filter tracer.SearchFilter) ([]*tracer.Trace, error) {
	return []*tracer.Trace{{TraceID: "t1"}}, nil
}
func (fakeTraceStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newTestServer() *Server {
	logger := logging.New("orchestrator-test", "error", "text")
	services := &app.Services{
		Assets: asset.NewRegistry(&fakeAssetStore{}, logger),
		Traces: tracer.NewManager(fakeTraceStore{}, logger, 0, 0),
		Logger: logger,
	}
	return NewServer(services, metrics.NewWithRegistry("orchestrator-test", nil), middleware.CORSConfig{})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCreateAndListDraftAssets(t *testing.T) {
	srv := newTestServer()

	body, _ := json.Marshal(createDraftRequest{Name: "inventory_db", Scope: "ops", Content: json.RawMessage(`{"type":"postgresql"}`), Actor: "tester"})
	req := httptest.NewRequest(http.MethodPost, "/assets/source", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create draft status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/assets/source", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list assets status = %d, want 200", rec.Code)
	}
	var out []asset.Asset
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Name != "inventory_db" {
		t.Errorf("unexpected listed assets: %+v", out)
	}
}

func TestGetAndSearchTraces(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/inspector/traces/t1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get trace status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/inspector/traces?limit=10", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("search traces status = %d, want 200", rec.Code)
	}
	var out []tracer.Trace
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("expected 1 trace, got %d", len(out))
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	srv := newTestServer()
	body, _ := json.Marshal(askRequest{Question: ""})
	req := httptest.NewRequest(http.MethodPost, "/ops/ask", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an empty question", rec.Code)
	}
}
