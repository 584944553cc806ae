package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncedFile is one mirrored remote file, one row per (organization, provider,
// external file id), enforced by the unique index. The sync job upserts on that
// key, never blind-inserts, which is what makes re-syncing idempotent.
type SyncedFile struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationID   uuid.UUID  `json:"organization_id" gorm:"type:uuid;not null;uniqueIndex:idx_org_provider_source"`
	SourceProvider   Provider   `json:"source_provider" gorm:"type:varchar(20);not null;uniqueIndex:idx_org_provider_source"`
	SourceFileID     string     `json:"source_file_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_org_provider_source"`
	FileName         string     `json:"file_name" gorm:"type:varchar(255);not null"`
	StorageBucket    string     `json:"storage_bucket" gorm:"type:varchar(100);not null"`
	StorageKey       string     `json:"storage_key" gorm:"type:varchar(600);not null"`
	SizeBytes        int64      `json:"size_bytes"`
	MimeType         string     `json:"mime_type" gorm:"type:varchar(255)"`
	SourceModifiedAt *time.Time `json:"source_modified_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name for SyncedFile
func (SyncedFile) TableName() string {
	return "organization_files"
}
