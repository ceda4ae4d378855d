package tracer

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
)

// Store is the durable, append-only trace table (spec §6's "execution
// trace table (header + stage I/O blob)").
type Store interface {
	Save(ctx context.Context, t *Trace) error
	Get(ctx context.Context, traceID string) (*Trace, error)
	Search(ctx context.Context, filter SearchFilter) ([]*Trace, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresStore is the sqlx-backed Store, indexed by (tenant, created_at
// desc) and by trace_id per spec §6.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open *sqlx.DB.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save writes t as a single row. A trace is written once, at flush time
// (spec §4.11: "records are buffered in memory and flushed to a trace
// store at trace completion"); ON CONFLICT lets a cancelled/timed-out
// flush supersede an earlier partial write for the same trace_id without
// violating the append-only guarantee observed by readers (only
// completed rows are ever visible to Get/Search).
func (s *PostgresStore) Save(ctx context.Context, t *Trace) error {
	if err := t.marshalBody(); err != nil {
		return apperrors.Ofw(apperrors.CodeInternalError, "trace body encode failed", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_traces
			(trace_id, parent_trace_id, tenant_id, question, created_at, finished_at, status, duration_ms, body)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (trace_id) DO UPDATE SET
			finished_at=EXCLUDED.finished_at, status=EXCLUDED.status,
			duration_ms=EXCLUDED.duration_ms, body=EXCLUDED.body`,
		t.TraceID, nullable(t.ParentTraceID), t.TenantID, t.Question, t.CreatedAt,
		t.FinishedAt, string(t.Status), t.DurationMS, t.Body)
	if err != nil {
		return apperrors.Ofw(apperrors.CodeConnectionError, "trace save failed", err)
	}
	return nil
}

// Get returns the persisted trace by ID, or CodeNotFound.
func (s *PostgresStore) Get(ctx context.Context, traceID string) (*Trace, error) {
	var t Trace
	err := s.db.GetContext(ctx, &t, `
		SELECT trace_id, parent_trace_id, tenant_id, question, created_at, finished_at, status, duration_ms, body
		FROM execution_traces WHERE trace_id=$1`, traceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Of(apperrors.CodeNotFound, "trace not found")
	}
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "trace lookup failed", err)
	}
	if err := t.unmarshalBody(); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeInternalError, "trace body decode failed", err)
	}
	return &t, nil
}

// Search runs the paginated inspector query over (tenant, created_at
// desc), optionally filtered by a question substring and a time range.
func (s *PostgresStore) Search(ctx context.Context, filter SearchFilter) ([]*Trace, error) {
	query := `SELECT trace_id, parent_trace_id, tenant_id, question, created_at, finished_at, status, duration_ms, body
		FROM execution_traces WHERE 1=1`
	args := []interface{}{}
	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		query += argClause("tenant_id=", len(args))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		query += argClause("question ILIKE ", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += argClause("created_at >= ", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += argClause("created_at <= ", len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	var rows []*Trace
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "trace search failed", err)
	}
	for _, t := range rows {
		if err := t.unmarshalBody(); err != nil {
			return nil, apperrors.Ofw(apperrors.CodeInternalError, "trace body decode failed", err)
		}
	}
	return rows, nil
}

// DeleteOlderThan removes finished traces created before cutoff, for the
// retention sweep's periodic cleanup pass.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM execution_traces WHERE created_at < $1 AND finished_at IS NOT NULL`, cutoff)
	if err != nil {
		return 0, apperrors.Ofw(apperrors.CodeConnectionError, "trace retention sweep failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Ofw(apperrors.CodeConnectionError, "trace retention sweep row count failed", err)
	}
	return n, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func argClause(prefix string, n int) string {
	return " AND " + prefix + "$" + strconv.Itoa(n)
}
