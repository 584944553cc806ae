// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"filesync-service/pkg/models"
)

// ErrCursorConflict means another writer advanced the cursor row between this
// pass reading it and writing it back. The pass must fail, not overwrite.
var ErrCursorConflict = errors.New("sync cursor version conflict")

// Store is the single persistence surface for the sync job and the HTTP layer.
type Store interface {
	// Sync job
	SelectSyncableIntegrations(ctx context.Context, limit int) ([]models.Integration, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateIntegrationToken(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt time.Time) error
	StampLastSync(ctx context.Context, id uuid.UUID, t time.Time) error

	// GetCursor returns the persisted cursor row, or a fresh unpersisted one
	// (Version 0) when the integration has never synced this provider.
	GetCursor(ctx context.Context, integrationID uuid.UUID, p models.Provider) (*models.SyncCursor, error)
	// SaveCursor replaces the cursor value, guarded by cur's loaded Version.
	// Returns ErrCursorConflict when another pass advanced the row first.
	SaveCursor(ctx context.Context, cur *models.SyncCursor, next *string) error

	// AcquireLease takes the per-integration advisory lock, or takes over an
	// expired one. Returns false when a live holder has it.
	AcquireLease(ctx context.Context, integrationID uuid.UUID, holderID string, ttl time.Duration) (bool, error)
	ExtendLease(ctx context.Context, integrationID uuid.UUID, holderID string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, integrationID uuid.UUID, holderID string) error

	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	FinalizeSyncRun(ctx context.Context, runID uuid.UUID, status models.SyncRunStatus, uploaded, skipped int, errMsg *string) error
	UpsertSyncedFile(ctx context.Context, file *models.SyncedFile) error

	// Integrations (HTTP layer)
	ListIntegrationsByUser(ctx context.Context, userID string) ([]models.Integration, error)
	ListIntegrations(ctx context.Context, limit int) ([]models.Integration, error)
	GetIntegration(ctx context.Context, id uuid.UUID) (*models.Integration, error)
	UpsertIntegration(ctx context.Context, integ *models.Integration) error
	SetIntegrationStatus(ctx context.Context, id uuid.UUID, status models.IntegrationStatus) error

	// Observability (HTTP layer)
	ListSyncRuns(ctx context.Context, integrationID *uuid.UUID, limit int) ([]models.SyncRun, error)
	ListSyncedFiles(ctx context.Context, orgID uuid.UUID, limit int) ([]models.SyncedFile, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)

	// Push devices
	RegisterDeviceToken(ctx context.Context, token *models.DeviceToken) error
	DeleteDeviceToken(ctx context.Context, userID, token string) error
	ListDeviceTokens(ctx context.Context, userID string) ([]string, error)
}
