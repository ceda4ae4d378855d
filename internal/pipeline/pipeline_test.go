package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/internal/asset"
	"github.com/ops-intel/orchestrator/internal/compose"
	"github.com/ops-intel/orchestrator/internal/controlloop"
	"github.com/ops-intel/orchestrator/internal/planner"
	"github.com/ops-intel/orchestrator/internal/tracer"
)

// fakeAssetStore answers every Get with whatever was stashed for the key,
// and panics on the write paths this package never calls.
type fakeAssetStore struct {
	published map[asset.Key]*asset.Asset
}

func (f *fakeAssetStore) Get(ctx context.Context, key asset.Key) (*asset.Asset, error) {
	return f.published[key], nil
}
func (f *fakeAssetStore) GetVersion(ctx context.Context, key asset.Key, version int) (*asset.Asset, error) {
	return nil, nil
}
func (f *fakeAssetStore) List(ctx context.Context, typ asset.Type, filter asset.ListFilter) ([]*asset.Asset, error) {
	return nil, nil
}
func (f *fakeAssetStore) CreateDraft(ctx context.Context, draft asset.Asset) (*asset.Asset, error) {
	return nil, nil
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
	return nil, nil
}
func (fakeTraceStore) Search(ctx context.Context, filter tracer.SearchFilter) ([]*tracer.Trace, error) {
	return nil, nil
}
func (fakeTraceStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newTestPipeline(published map[asset.Key]*asset.Asset) *Pipeline {
	registry := asset.NewRegistry(&fakeAssetStore{published: published}, nil)
	return &Pipeline{
		assets:    registry,
		composer:  compose.New(),
		presenter: compose.NewPresenter(),
		traces:    tracer.NewManager(fakeTraceStore{}, nil, 0, 0),
	}
}

func TestControlLoopFallsBackToDefaultPolicyWhenAssetAbsent(t *testing.T) {
	p := newTestPipeline(nil)
	loop, err := p.controlLoop(context.Background())
	if err != nil {
		t.Fatalf("controlLoop: %v", err)
	}
	stats := loop.Stats()
	if stats.MaxReplans != controlloop.DefaultPolicy().MaxReplans {
		t.Errorf("MaxReplans = %d, want default %d", stats.MaxReplans, controlloop.DefaultPolicy().MaxReplans)
	}
}

func TestControlLoopUsesPublishedPolicyAsset(t *testing.T) {
	custom := controlloop.Policy{
		MaxReplans:      1,
		AllowedTriggers: []controlloop.TriggerType{controlloop.TriggerError},
		MinInterval:     time.Second,
		CoolingPeriod:   time.Minute,
	}
	body, err := json.Marshal(custom)
	if err != nil {
		t.Fatal(err)
	}
	key := asset.Key{Type: asset.TypeMapping, Scope: "ops", Name: controlLoopAssetName}
	p := newTestPipeline(map[asset.Key]*asset.Asset{key: {Content: body}})

	loop, err := p.controlLoop(context.Background())
	if err != nil {
		t.Fatalf("controlLoop: %v", err)
	}
	if loop.Stats().MaxReplans != 1 {
		t.Errorf("MaxReplans = %d, want 1 from published policy", loop.Stats().MaxReplans)
	}
}

func TestMaybeReplanDeniesNonRetryableError(t *testing.T) {
	p := newTestPipeline(nil)
	loop, err := p.controlLoop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rec := p.traces.Start("tenant-a", "q", "")
	nonRetryable := apperrors.Of(apperrors.CodePlanInvalid, "bad plan")
	if p.maybeReplan(context.Background(), rec, loop, "validate", nonRetryable) {
		t.Error("expected a non-retryable error not to trigger a replan")
	}
}

func TestMaybeReplanApprovesRetryableErrorAndRecordsEvent(t *testing.T) {
	p := newTestPipeline(nil)
	loop, err := p.controlLoop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rec := p.traces.Start("tenant-a", "q", "")
	retryable := apperrors.Of(apperrors.CodeToolTimeout, "tool timed out")
	if !p.maybeReplan(context.Background(), rec, loop, "execute", retryable) {
		t.Fatal("expected a retryable error to trigger an approved replan on first attempt")
	}
	if loop.Stats().ReplanCount != 1 {
		t.Errorf("ReplanCount = %d, want 1 after an approved replan", loop.Stats().ReplanCount)
	}
}

func TestMaybeReplanExhaustsMaxReplans(t *testing.T) {
	custom := controlloop.Policy{
		MaxReplans:      1,
		AllowedTriggers: []controlloop.TriggerType{controlloop.TriggerError},
		MinInterval:     time.Millisecond,
		CoolingPeriod:   time.Millisecond,
	}
	body, _ := json.Marshal(custom)
	key := asset.Key{Type: asset.TypeMapping, Scope: "ops", Name: controlLoopAssetName}
	p := newTestPipeline(map[asset.Key]*asset.Asset{key: {Content: body}})
	loop, err := p.controlLoop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rec := p.traces.Start("tenant-a", "q", "")
	retryable := apperrors.Of(apperrors.CodeToolTimeout, "tool timed out")

	if !p.maybeReplan(context.Background(), rec, loop, "execute", retryable) {
		t.Fatal("expected the first retryable failure to be approved")
	}
	if p.maybeReplan(context.Background(), rec, loop, "execute", retryable) {
		t.Fatal("expected the second retryable failure to be denied once max_replans is reached")
	}
}

func TestAppendUniqueSkipsDuplicates(t *testing.T) {
	list := appendUnique(nil, "db.query")
	list = appendUnique(list, "db.query")
	list = appendUnique(list, "http.fetch")
	if len(list) != 2 {
		t.Fatalf("expected 2 distinct entries, got %v", list)
	}
}

func TestErrorResponseCarriesErrorCodeAndFinishesTrace(t *testing.T) {
	p := newTestPipeline(nil)
	rec := p.traces.Start("tenant-a", "q", "")
	resp := p.errorResponse(context.Background(), rec, time.Now(), apperrors.Of(apperrors.CodePlanInvalid, "bad plan"))
	if resp.Meta.ErrorCode != string(apperrors.CodePlanInvalid) {
		t.Errorf("ErrorCode = %q, want %q", resp.Meta.ErrorCode, apperrors.CodePlanInvalid)
	}
	if resp.Answer == "" {
		t.Error("expected a non-empty failure message")
	}
}

func TestAskShortCircuitsReject(t *testing.T) {
	p := newTestPipeline(nil)
	// present() is exercised directly here; the full Route stage is
	// covered by the planner's own tests (spec's reject path short-
	// circuits straight to Present without Validate/Execute/Compose).
	out := &planner.Output{Kind: planner.KindReject, Reason: "unable to determine intent from question"}
	rec := p.traces.Start("tenant-a", "q", "")
	resp := p.present(context.Background(), rec, out, nil, nil, time.Now())
	if resp.Answer != out.Reason {
		t.Errorf("Answer = %q, want reject reason %q", resp.Answer, out.Reason)
	}
	if len(resp.Blocks) != 0 {
		t.Error("reject should carry no blocks")
	}
}
