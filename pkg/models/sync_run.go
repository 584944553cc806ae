package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SyncRunStatus string

const (
	SyncRunStatusRunning SyncRunStatus = "running"
	SyncRunStatusSuccess SyncRunStatus = "success"
	SyncRunStatusError   SyncRunStatus = "error"
)

// SyncRun records one execution of the sync job against one integration.
// Created as "running" when the pass starts, finalized exactly once with the
// outcome and {uploaded, skipped} stats. Observability only; the job never
// reads these rows back.
type SyncRun struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	IntegrationID uuid.UUID      `json:"integration_id" gorm:"type:uuid;not null;index"`
	Provider      Provider       `json:"provider" gorm:"type:varchar(20);not null"`
	Status        SyncRunStatus  `json:"status" gorm:"type:varchar(20);not null;default:'running';index"`
	StartedAt     time.Time      `json:"started_at" gorm:"not null"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
	Stats         datatypes.JSON `json:"stats,omitempty" gorm:"type:jsonb"` // {"uploaded": n, "skipped": n}
	Error         *string        `json:"error,omitempty" gorm:"type:text"`
}

// TableName specifies the table name for SyncRun
func (SyncRun) TableName() string {
	return "file_sync_runs"
}

// SyncCursor holds the opaque listing position for one (integration, provider)
// pair: a Drive pageToken, a Graph nextLink, or a Dropbox cursor. Replaced
// wholesale after each pass; NULL means the page sequence was exhausted and the
// next pass starts from the root. Version guards against interleaved writers:
// saves match on the loaded version and fail when another pass got there first.
type SyncCursor struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	IntegrationID uuid.UUID `json:"integration_id" gorm:"type:uuid;not null;uniqueIndex:idx_integration_provider_cursor"`
	Provider      Provider  `json:"provider" gorm:"type:varchar(20);not null;uniqueIndex:idx_integration_provider_cursor"`
	Cursor        *string   `json:"cursor,omitempty" gorm:"type:text"`
	Version       int64     `json:"version" gorm:"not null;default:0"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for SyncCursor
func (SyncCursor) TableName() string {
	return "file_sync_cursors"
}

// SyncLease is an advisory per-integration lock. A pass acquires the lease
// before touching the integration and releases it when done; a lease whose
// ExpiresAt has passed is considered abandoned and may be taken over.
type SyncLease struct {
	IntegrationID uuid.UUID `json:"integration_id" gorm:"type:uuid;primaryKey"`
	HolderID      string    `json:"holder_id" gorm:"type:varchar(36);not null"`
	AcquiredAt    time.Time `json:"acquired_at" gorm:"not null"`
	ExpiresAt     time.Time `json:"expires_at" gorm:"not null;index"`
}

// TableName specifies the table name for SyncLease
func (SyncLease) TableName() string {
	return "file_sync_leases"
}
