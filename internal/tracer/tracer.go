package tracer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/infrastructure/logging"
)

// defaultMaxSpanPayload times 64 is the whole-trace buffer budget
// NewManager uses when given maxBufferSize <= 0. No single span is
// bounded by it.
const defaultMaxSpanPayload = 64 * 1024

// Recorder is one in-flight trace's buffer: the unit that stage/tool code
// calls record(span) against, single-writer-locked per spec's
// shared-resource policy ("single-writer lock on trace buffers").
type Recorder struct {
	mu            sync.Mutex
	trace         *Trace
	maxBufferSize int
	bufferedBytes int
	cancelled     bool
}

func newRecorder(tenantID, question, parentTraceID string, maxBufferSize int) *Recorder {
	now := time.Now().UTC()
	return &Recorder{
		trace: &Trace{
			TraceID:       uuid.New().String(),
			ParentTraceID: parentTraceID,
			TenantID:      tenantID,
			Question:      question,
			CreatedAt:     now,
			Status:        StatusOK,
			AssetVersions: make(map[string]int),
		},
		maxBufferSize: maxBufferSize,
	}
}

// TraceID returns the allocated trace_id.
func (r *Recorder) TraceID() string {
	return r.trace.TraceID
}

// RecordStageInput buffers a stage's input snapshot, applying the
// truncation policy if the buffer is over budget.
func (r *Recorder) RecordStageInput(span Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span.CreatedAt = time.Now().UTC()
	r.truncateIfNeeded(&span)
	r.trace.StageInputs = append(r.trace.StageInputs, span)
}

// RecordStageOutput buffers a stage's output snapshot. Stage outputs are
// recorded even on failure (spec §3 invariant).
func (r *Recorder) RecordStageOutput(span Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span.CreatedAt = time.Now().UTC()
	r.truncateIfNeeded(&span)
	r.trace.StageOutputs = append(r.trace.StageOutputs, span)
}

// RecordToolCall buffers one tool invocation's record.
func (r *Recorder) RecordToolCall(call ToolCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bufferedBytes += estimateSize(call.InputParams) + estimateSize(call.OutputSummary)
	if r.bufferedBytes > r.maxBufferSize && call.OutputSummary != nil {
		call.OutputSummary = map[string]interface{}{"truncated": true}
	}
	r.trace.ToolCalls = append(r.trace.ToolCalls, call)
}

// RecordReplanEvent appends a control-loop decision to the trace.
func (r *Recorder) RecordReplanEvent(ev ReplanEventRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.ReplanEvents = append(r.trace.ReplanEvents, ev)
}

// ApplyAsset records that assetName@version was consulted while building
// this trace (spec's "asset_versions applied map").
func (r *Recorder) ApplyAsset(name string, version int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.AssetVersions[name] = version
}

// MarkCancelled flags the trace as having observed a cancellation signal,
// so Finish records status "partial" (spec §4.11 "Cancellation").
func (r *Recorder) MarkCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
}

// truncateIfNeeded drops span's Input/Output bodies, oldest payloads
// first, once the buffer exceeds maxBufferSize. Caller holds r.mu.
func (r *Recorder) truncateIfNeeded(span *Span) {
	size := estimateSize(span.Input) + estimateSize(span.Output)
	r.bufferedBytes += size
	if r.bufferedBytes <= r.maxBufferSize {
		return
	}
	// Truncate per-tool payload summaries already buffered before
	// touching stage I/O snapshots (spec's ordering).
	for i := range r.trace.ToolCalls {
		if r.trace.ToolCalls[i].OutputSummary == nil {
			continue
		}
		r.trace.ToolCalls[i].OutputSummary = map[string]interface{}{"truncated": true}
		r.bufferedBytes -= size / 2
		if r.bufferedBytes <= r.maxBufferSize {
			return
		}
	}
	for i := range r.trace.StageOutputs {
		if r.trace.StageOutputs[i].Truncated {
			continue
		}
		r.trace.StageOutputs[i].Output = nil
		r.trace.StageOutputs[i].Input = nil
		r.trace.StageOutputs[i].Truncated = true
		return
	}
	span.Truncated = true
	span.Input = nil
	span.Output = nil
}

func estimateSize(m map[string]interface{}) int {
	n := 0
	for k, v := range m {
		n += len(k) + 16
		if s, ok := v.(string); ok {
			n += len(s)
		} else {
			n += 32
		}
	}
	return n
}

// Manager owns every in-flight Recorder plus the durable Store, flushes a
// trace in Finish, and runs the periodic retention sweep.
type Manager struct {
	store         Store
	logger        *logging.Logger
	maxBufferSize int
	retention     time.Duration

	mu        sync.Mutex
	inflight  map[string]*Recorder

	cron *cron.Cron
}

// NewManager builds a Manager. retention <= 0 disables the sweep.
func NewManager(store Store, logger *logging.Logger, maxBufferSize int, retention time.Duration) *Manager {
	if maxBufferSize <= 0 {
		maxBufferSize = defaultMaxSpanPayload * 64
	}
	return &Manager{
		store:         store,
		logger:        logger,
		maxBufferSize: maxBufferSize,
		retention:     retention,
		inflight:      make(map[string]*Recorder),
	}
}

// Start allocates a trace_id and parent span for a new trace (spec
// §4.11: "on trace start, allocate a trace_id and a parent span").
func (m *Manager) Start(tenantID, question, parentTraceID string) *Recorder {
	r := newRecorder(tenantID, question, parentTraceID, m.maxBufferSize)
	m.mu.Lock()
	m.inflight[r.TraceID()] = r
	m.mu.Unlock()
	return r
}

// Finish marks the trace finished, flushes it to the Store, and drops it
// from the in-flight set. Once flushed the row is immutable.
func (m *Manager) Finish(ctx context.Context, r *Recorder, status Status) error {
	r.mu.Lock()
	now := time.Now().UTC()
	r.trace.FinishedAt = &now
	r.trace.DurationMS = now.Sub(r.trace.CreatedAt).Milliseconds()
	if r.cancelled && status == StatusOK {
		status = StatusPartial
	}
	r.trace.Status = status
	trace := *r.trace
	r.mu.Unlock()

	m.mu.Lock()
	delete(m.inflight, r.TraceID())
	m.mu.Unlock()

	if err := m.store.Save(ctx, &trace); err != nil {
		if m.logger != nil {
			m.logger.WithContext(ctx).WithFields(map[string]interface{}{"trace_id": trace.TraceID}).Warn("trace flush failed")
		}
		return err
	}
	return nil
}

// Get returns a persisted trace by ID.
func (m *Manager) Get(ctx context.Context, traceID string) (*Trace, error) {
	return m.store.Get(ctx, traceID)
}

// Search runs the paginated inspector query.
func (m *Manager) Search(ctx context.Context, filter SearchFilter) ([]*Trace, error) {
	return m.store.Search(ctx, filter)
}

// StartSweeper schedules the periodic retention sweep on spec string
// (standard five-field cron), deleting finished traces older than
// m.retention. A no-op if retention <= 0.
func (m *Manager) StartSweeper(spec string) error {
	if m.retention <= 0 {
		return nil
	}
	m.cron = cron.New()
	_, err := m.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cutoff := time.Now().UTC().Add(-m.retention)
		n, err := m.store.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			if m.logger != nil {
				m.logger.WithField("error", err).Warn("trace retention sweep failed")
			}
			return
		}
		if m.logger != nil {
			m.logger.WithField("deleted", n).Info("trace retention sweep completed")
		}
	})
	if err != nil {
		return apperrors.Ofw(apperrors.CodeConfigurationError, "invalid retention sweep schedule", err)
	}
	m.cron.Start()
	return nil
}

// StopSweeper stops the cron scheduler if running.
func (m *Manager) StopSweeper() {
	if m.cron != nil {
		m.cron.Stop()
	}
}
