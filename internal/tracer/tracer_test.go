package tracer

import (
	"context"
	"testing"
	"time"
)

type fakeStore struct {
	saved []*Trace
}

func (f *fakeStore) Save(ctx context.Context, t *Trace) error {
	cp := *t
	f.saved = append(f.saved, &cp)
	return nil
}
func (f *fakeStore) Get(ctx context.Context, traceID string) (*Trace, error) {
	for _, t := range f.saved {
		if t.TraceID == traceID {
			return t, nil
		}
	}
	return nil, nil
}
func (f *fakeStore) Search(ctx context.Context, filter SearchFilter) ([]*Trace, error) {
	return f.saved, nil
}
func (f *fakeStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestStartAllocatesTraceID(t *testing.T) {
	m := NewManager(&fakeStore{}, nil, 0, 0)
	r := m.Start("tenant-a", "how many servers are down?", "")
	if r.TraceID() == "" {
		t.Fatal("expected a non-empty trace_id")
	}
}

func TestFinishFlushesToStore(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store, nil, 0, 0)
	r := m.Start("tenant-a", "q", "")
	r.RecordStageInput(Span{Name: "route"})
	r.RecordStageOutput(Span{Name: "route"})
	r.RecordToolCall(ToolCall{Tool: "db.query", ElapsedMS: 12})

	if err := m.Finish(context.Background(), r, StatusOK); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one saved trace, got %d", len(store.saved))
	}
	saved := store.saved[0]
	if saved.Status != StatusOK {
		t.Errorf("Status = %q, want ok", saved.Status)
	}
	if saved.FinishedAt == nil {
		t.Error("expected FinishedAt to be set")
	}
	if len(saved.ToolCalls) != 1 {
		t.Errorf("expected 1 tool call, got %d", len(saved.ToolCalls))
	}
}

func TestFinishMarksPartialOnCancellation(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store, nil, 0, 0)
	r := m.Start("tenant-a", "q", "")
	r.MarkCancelled()
	if err := m.Finish(context.Background(), r, StatusOK); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if store.saved[0].Status != StatusPartial {
		t.Errorf("Status = %q, want partial after cancellation", store.saved[0].Status)
	}
}

func TestTruncationBoundsBufferedBytes(t *testing.T) {
	m := NewManager(&fakeStore{}, nil, 128, 0)
	r := m.Start("tenant-a", "q", "")
	big := map[string]interface{}{}
	for i := 0; i < 50; i++ {
		big["field"+string(rune('a'+i%26))] = "a long value that pads the estimated size of this payload"
	}
	for i := 0; i < 5; i++ {
		r.RecordStageOutput(Span{Name: "execute", Output: big})
	}
	truncatedSeen := false
	for _, s := range r.trace.StageOutputs {
		if s.Truncated {
			truncatedSeen = true
		}
	}
	if !truncatedSeen {
		t.Error("expected at least one stage output to be truncated once the buffer budget is exceeded")
	}
}

func TestTraceBodyRoundTrip(t *testing.T) {
	tr := &Trace{
		TraceID:       "t1",
		StageInputs:   []Span{{Name: "route"}},
		ToolCalls:     []ToolCall{{Tool: "db.query"}},
		AssetVersions: map[string]int{"planner_prompt": 3},
	}
	if err := tr.marshalBody(); err != nil {
		t.Fatalf("marshalBody: %v", err)
	}
	out := &Trace{Body: tr.Body}
	if err := out.unmarshalBody(); err != nil {
		t.Fatalf("unmarshalBody: %v", err)
	}
	if len(out.StageInputs) != 1 || out.StageInputs[0].Name != "route" {
		t.Errorf("StageInputs round-trip mismatch: %+v", out.StageInputs)
	}
	if out.AssetVersions["planner_prompt"] != 3 {
		t.Errorf("AssetVersions round-trip mismatch: %+v", out.AssetVersions)
	}
}
