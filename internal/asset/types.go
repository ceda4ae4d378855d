// Package asset implements the Asset Registry: the versioned store of
// prompts, queries, mappings, policies, sources, catalogs, tools, and
// resolvers the orchestrator consumes at runtime.
package asset

import (
	"encoding/json"
	"time"
)

// Type discriminates the kind of configuration unit an Asset holds.
type Type string

const (
	TypePrompt   Type = "prompt"
	TypeQuery    Type = "query"
	TypeMapping  Type = "mapping"
	TypePolicy   Type = "policy"
	TypeSource   Type = "source"
	TypeCatalog  Type = "catalog"
	TypeTool     Type = "tool"
	TypeResolver Type = "resolver"
)

// Status is an Asset's position in its publish lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Asset is the versioned configuration unit described in spec §3. Content
// is kept as raw JSON until a caller unmarshals it against the schema its
// Type implies — the registry itself never interprets the payload.
type Asset struct {
	ID          string          `db:"id" json:"id"`
	Type        Type            `db:"type" json:"type"`
	Name        string          `db:"name" json:"name"`
	Scope       string          `db:"scope" json:"scope"`
	Version     int             `db:"version" json:"version"`
	Status      Status          `db:"status" json:"status"`
	TenantID    string          `db:"tenant_id" json:"tenant_id"`
	Content     json.RawMessage `db:"content" json:"content"`
	ToolType    string          `db:"tool_type" json:"tool_type,omitempty"`
	IsSystem    bool            `db:"is_system" json:"is_system"`
	CreatedBy   string          `db:"created_by" json:"created_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	PublishedBy string          `db:"published_by" json:"published_by,omitempty"`
	PublishedAt *time.Time      `db:"published_at" json:"published_at,omitempty"`
}

// Key identifies the (type, scope, name, tenant) tuple that the
// at-most-one-published invariant is enforced over.
type Key struct {
	Type     Type
	Scope    string
	Name     string
	TenantID string
}

// Patch is a partial update applied by UpdateDraft; nil fields are left
// unchanged.
type Patch struct {
	Content *json.RawMessage
	ToolType *string
}

// System asset names the registry treats as required (spec §4.1: missing
// required system assets fail the read with a hard error).
const (
	SystemAssetPlanBudget       = "plan_budget"
	SystemAssetViewDepth        = "view_depth"
	SystemAssetDiscoveryConfig  = "discovery_config"
)
