package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Provider string

const (
	ProviderGoogleDrive Provider = "google_drive"
	ProviderOneDrive    Provider = "onedrive"
	ProviderDropbox     Provider = "dropbox"
)

// SupportedProviders is the set of drive providers the sync job processes.
var SupportedProviders = []Provider{ProviderGoogleDrive, ProviderOneDrive, ProviderDropbox}

func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogleDrive, ProviderOneDrive, ProviderDropbox:
		return true
	}
	return false
}

// DisplayName returns the human-facing provider name for emails and pushes.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGoogleDrive:
		return "Google Drive"
	case ProviderOneDrive:
		return "OneDrive"
	case ProviderDropbox:
		return "Dropbox"
	default:
		return string(p)
	}
}

type IntegrationStatus string

const (
	IntegrationStatusActive   IntegrationStatus = "active"
	IntegrationStatusDisabled IntegrationStatus = "disabled"
	IntegrationStatusError    IntegrationStatus = "error"
)

// Integration is one connected cloud-drive account, one row per (user, provider).
// Created by the OAuth callback; tokens and last_sync_at are mutated by the sync
// job. The job never deletes rows, integrations are turned off via Status.
type Integration struct {
	ID             uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID         string            `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_user_provider"`
	OrganizationID *uuid.UUID        `json:"organization_id,omitempty" gorm:"type:uuid;index"`
	Provider       Provider          `json:"provider" gorm:"type:varchar(20);not null;uniqueIndex:idx_user_provider"`
	Status         IntegrationStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	AccessToken    *string           `json:"-" gorm:"type:text"`
	RefreshToken   *string           `json:"-" gorm:"type:text"`
	TokenExpiresAt *time.Time        `json:"token_expires_at,omitempty"`
	Metadata       datatypes.JSON    `json:"metadata,omitempty" gorm:"type:jsonb"`
	LastSyncAt     *time.Time        `json:"last_sync_at,omitempty" gorm:"index"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// TableName specifies the table name for Integration
func (Integration) TableName() string {
	return "oauth_integrations"
}
