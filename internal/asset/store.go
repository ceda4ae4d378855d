package asset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
)

// ListFilter narrows a List query.
type ListFilter struct {
	Scope    string
	Name     string
	TenantID string
}

// Store is the durable asset table: versioned rows, one (type, scope,
// name, tenant) published at a time.
type Store interface {
	Get(ctx context.Context, key Key) (*Asset, error)
	GetVersion(ctx context.Context, key Key, version int) (*Asset, error)
	List(ctx context.Context, typ Type, filter ListFilter) ([]*Asset, error)
	CreateDraft(ctx context.Context, draft Asset) (*Asset, error)
	Publish(ctx context.Context, assetID, actor string) (*Asset, error)
	Rollback(ctx context.Context, assetID string, targetVersion int, actor string) (*Asset, error)
	UpdateDraft(ctx context.Context, assetID string, patch Patch, actor string) (*Asset, error)
}

// PostgresStore is the sqlx-backed implementation of Store, matching the
// "asset registry table (with version history)" persistent layout (spec
// §6).
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open *sqlx.DB.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const assetColumns = `id, type, name, scope, version, status, tenant_id, content, tool_type, is_system, created_by, created_at, published_by, published_at`

// Get returns the single published asset for key, or nil if none exists.
func (s *PostgresStore) Get(ctx context.Context, key Key) (*Asset, error) {
	var a Asset
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE type=$1 AND scope=$2 AND name=$3 AND tenant_id=$4 AND status='published'`, assetColumns)
	err := s.db.GetContext(ctx, &a, query, key.Type, key.Scope, key.Name, key.TenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "asset lookup failed", err)
	}
	return &a, nil
}

// GetVersion returns a specific version of an asset regardless of status,
// used by Rollback to read the target snapshot.
func (s *PostgresStore) GetVersion(ctx context.Context, key Key, version int) (*Asset, error) {
	var a Asset
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE type=$1 AND scope=$2 AND name=$3 AND tenant_id=$4 AND version=$5`, assetColumns)
	err := s.db.GetContext(ctx, &a, query, key.Type, key.Scope, key.Name, key.TenantID, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Of(apperrors.CodeNotFound, "asset version not found")
	}
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "asset version lookup failed", err)
	}
	return &a, nil
}

// List returns every published asset of typ matching filter.
func (s *PostgresStore) List(ctx context.Context, typ Type, filter ListFilter) ([]*Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE type=$1 AND status='published'`, assetColumns)
	args := []interface{}{typ}
	if filter.Scope != "" {
		args = append(args, filter.Scope)
		query += fmt.Sprintf(` AND scope=$%d`, len(args))
	}
	if filter.Name != "" {
		args = append(args, filter.Name)
		query += fmt.Sprintf(` AND name=$%d`, len(args))
	}
	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		query += fmt.Sprintf(` AND tenant_id=$%d`, len(args))
	}
	var out []*Asset
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "asset list failed", err)
	}
	return out, nil
}

// CreateDraft inserts draft as a new draft version: version is one past
// the highest version ever recorded for (type, scope, name, tenant).
func (s *PostgresStore) CreateDraft(ctx context.Context, draft Asset) (*Asset, error) {
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	draft.Status = StatusDraft
	draft.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "begin tx failed", err)
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	err = tx.GetContext(ctx, &maxVersion,
		`SELECT MAX(version) FROM assets WHERE type=$1 AND scope=$2 AND name=$3 AND tenant_id=$4`,
		draft.Type, draft.Scope, draft.Name, draft.TenantID)
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "version lookup failed", err)
	}
	draft.Version = int(maxVersion.Int64) + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assets (id, type, name, scope, version, status, tenant_id, content, tool_type, is_system, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		draft.ID, draft.Type, draft.Name, draft.Scope, draft.Version, draft.Status, draft.TenantID,
		draft.Content, draft.ToolType, draft.IsSystem, draft.CreatedBy, draft.CreatedAt)
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "draft insert failed", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "commit failed", err)
	}
	return &draft, nil
}

// UpdateDraft applies patch to the draft row identified by assetID. Only
// draft-status rows may be updated; published/archived rows are
// immutable.
func (s *PostgresStore) UpdateDraft(ctx context.Context, assetID string, patch Patch, actor string) (*Asset, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "begin tx failed", err)
	}
	defer tx.Rollback()

	var a Asset
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE id=$1 FOR UPDATE`, assetColumns)
	if err := tx.GetContext(ctx, &a, query, assetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Of(apperrors.CodeNotFound, "asset not found")
		}
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "asset lookup failed", err)
	}
	if a.Status != StatusDraft {
		return nil, apperrors.Of(apperrors.CodeConflict, "only draft assets can be updated")
	}
	if patch.Content != nil {
		a.Content = *patch.Content
	}
	if patch.ToolType != nil {
		a.ToolType = *patch.ToolType
	}

	if _, err := tx.ExecContext(ctx, `UPDATE assets SET content=$1, tool_type=$2 WHERE id=$3`, a.Content, a.ToolType, a.ID); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "draft update failed", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "commit failed", err)
	}
	return &a, nil
}

// Publish performs the transactional publish described in spec §4.1:
// archive the prior published row for the same (type, scope, name,
// tenant), then promote assetID's draft row to published.
func (s *PostgresStore) Publish(ctx context.Context, assetID, actor string) (*Asset, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "begin tx failed", err)
	}
	defer tx.Rollback()

	var draft Asset
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE id=$1 FOR UPDATE`, assetColumns)
	if err := tx.GetContext(ctx, &draft, query, assetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Of(apperrors.CodeNotFound, "asset not found")
		}
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "asset lookup failed", err)
	}
	if draft.Status != StatusDraft {
		return nil, apperrors.Of(apperrors.CodeConflict, "only draft assets can be published")
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE assets SET status='archived'
		WHERE type=$1 AND scope=$2 AND name=$3 AND tenant_id=$4 AND status='published'`,
		draft.Type, draft.Scope, draft.Name, draft.TenantID); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "archive previous published failed", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE assets SET status='published', published_by=$1, published_at=$2 WHERE id=$3`,
		actor, now, draft.ID); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "publish failed", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "commit failed", err)
	}

	draft.Status = StatusPublished
	draft.PublishedBy = actor
	draft.PublishedAt = &now
	return &draft, nil
}

// Rollback publishes a prior version's content unchanged, as a brand-new
// published row (matching spec §3's "rollback publishes a prior version
// unchanged" lifecycle — the historical row itself is never mutated).
func (s *PostgresStore) Rollback(ctx context.Context, assetID string, targetVersion int, actor string) (*Asset, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "begin tx failed", err)
	}
	defer tx.Rollback()

	var current Asset
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE id=$1`, assetColumns)
	if err := tx.GetContext(ctx, &current, query, assetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Of(apperrors.CodeNotFound, "asset not found")
		}
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "asset lookup failed", err)
	}

	var target Asset
	targetQuery := fmt.Sprintf(`SELECT %s FROM assets WHERE type=$1 AND scope=$2 AND name=$3 AND tenant_id=$4 AND version=$5`, assetColumns)
	if err := tx.GetContext(ctx, &target, targetQuery, current.Type, current.Scope, current.Name, current.TenantID, targetVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Of(apperrors.CodeNotFound, "target version not found")
		}
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "target version lookup failed", err)
	}

	var maxVersion int
	if err := tx.GetContext(ctx, &maxVersion,
		`SELECT MAX(version) FROM assets WHERE type=$1 AND scope=$2 AND name=$3 AND tenant_id=$4`,
		current.Type, current.Scope, current.Name, current.TenantID); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "version lookup failed", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE assets SET status='archived'
		WHERE type=$1 AND scope=$2 AND name=$3 AND tenant_id=$4 AND status='published'`,
		current.Type, current.Scope, current.Name, current.TenantID); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "archive previous published failed", err)
	}

	now := time.Now().UTC()
	rolledBack := Asset{
		ID:          uuid.New().String(),
		Type:        current.Type,
		Name:        current.Name,
		Scope:       current.Scope,
		Version:     maxVersion + 1,
		Status:      StatusPublished,
		TenantID:    current.TenantID,
		Content:     target.Content,
		ToolType:    target.ToolType,
		IsSystem:    current.IsSystem,
		CreatedBy:   actor,
		CreatedAt:   now,
		PublishedBy: actor,
		PublishedAt: &now,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO assets (id, type, name, scope, version, status, tenant_id, content, tool_type, is_system, created_by, created_at, published_by, published_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rolledBack.ID, rolledBack.Type, rolledBack.Name, rolledBack.Scope, rolledBack.Version, rolledBack.Status,
		rolledBack.TenantID, rolledBack.Content, rolledBack.ToolType, rolledBack.IsSystem, rolledBack.CreatedBy,
		rolledBack.CreatedAt, rolledBack.PublishedBy, rolledBack.PublishedAt); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "rollback insert failed", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Ofw(apperrors.CodeConnectionError, "commit failed", err)
	}
	return &rolledBack, nil
}
