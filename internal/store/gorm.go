// internal/store/gorm.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"filesync-service/pkg/models"
)

type gormStore struct {
	db *gorm.DB
}

// New wraps a gorm handle in the Store interface.
func New(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) SelectSyncableIntegrations(ctx context.Context, limit int) ([]models.Integration, error) {
	var integrations []models.Integration
	err := s.db.WithContext(ctx).
		Where("provider IN ?", models.SupportedProviders).
		Where("status = ?", models.IntegrationStatusActive).
		Where("access_token IS NOT NULL").
		Order("last_sync_at ASC NULLS FIRST").
		Order("created_at ASC").
		Limit(limit).
		Find(&integrations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select integrations: %w", err)
	}
	return integrations, nil
}

func (s *gormStore) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load organization %s: %w", id, err)
	}
	return &org, nil
}

func (s *gormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return &user, nil
}

func (s *gormStore) UpdateIntegrationToken(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt time.Time) error {
	updates := map[string]interface{}{
		"access_token":     accessToken,
		"token_expires_at": expiresAt,
	}
	if refreshToken != nil {
		updates["refresh_token"] = *refreshToken
	}
	err := s.db.WithContext(ctx).Model(&models.Integration{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	return nil
}

func (s *gormStore) StampLastSync(ctx context.Context, id uuid.UUID, t time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Integration{}).Where("id = ?", id).Update("last_sync_at", t).Error
	if err != nil {
		return fmt.Errorf("failed to stamp last_sync_at: %w", err)
	}
	return nil
}

func (s *gormStore) GetCursor(ctx context.Context, integrationID uuid.UUID, p models.Provider) (*models.SyncCursor, error) {
	var cur models.SyncCursor
	err := s.db.WithContext(ctx).
		Where("integration_id = ? AND provider = ?", integrationID, p).
		First(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.SyncCursor{IntegrationID: integrationID, Provider: p}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync cursor: %w", err)
	}
	return &cur, nil
}

func (s *gormStore) SaveCursor(ctx context.Context, cur *models.SyncCursor, next *string) error {
	now := time.Now().UTC()

	if cur.ID == uuid.Nil {
		fresh := models.SyncCursor{
			IntegrationID: cur.IntegrationID,
			Provider:      cur.Provider,
			Cursor:        next,
			Version:       1,
			UpdatedAt:     now,
		}
		if err := s.db.WithContext(ctx).Create(&fresh).Error; err != nil {
			// Another pass inserted the row first.
			if isUniqueViolation(err) {
				return ErrCursorConflict
			}
			return fmt.Errorf("failed to create sync cursor: %w", err)
		}
		*cur = fresh
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.SyncCursor{}).
		Where("id = ? AND version = ?", cur.ID, cur.Version).
		Updates(map[string]interface{}{
			"cursor":     next,
			"version":    cur.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to save sync cursor: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCursorConflict
	}
	cur.Cursor = next
	cur.Version++
	return nil
}

func (s *gormStore) AcquireLease(ctx context.Context, integrationID uuid.UUID, holderID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	lease := models.SyncLease{
		IntegrationID: integrationID,
		HolderID:      holderID,
		AcquiredAt:    now,
		ExpiresAt:     now.Add(ttl),
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lease)
	if res.Error != nil {
		return false, fmt.Errorf("failed to acquire sync lease: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// Lease row exists; take it over only when the current holder expired.
	takeover := s.db.WithContext(ctx).Model(&models.SyncLease{}).
		Where("integration_id = ? AND expires_at < ?", integrationID, now).
		Updates(map[string]interface{}{
			"holder_id":   holderID,
			"acquired_at": now,
			"expires_at":  now.Add(ttl),
		})
	if takeover.Error != nil {
		return false, fmt.Errorf("failed to take over sync lease: %w", takeover.Error)
	}
	return takeover.RowsAffected == 1, nil
}

func (s *gormStore) ExtendLease(ctx context.Context, integrationID uuid.UUID, holderID string, ttl time.Duration) error {
	err := s.db.WithContext(ctx).Model(&models.SyncLease{}).
		Where("integration_id = ? AND holder_id = ?", integrationID, holderID).
		Update("expires_at", time.Now().UTC().Add(ttl)).Error
	if err != nil {
		return fmt.Errorf("failed to extend sync lease: %w", err)
	}
	return nil
}

func (s *gormStore) ReleaseLease(ctx context.Context, integrationID uuid.UUID, holderID string) error {
	err := s.db.WithContext(ctx).
		Where("integration_id = ? AND holder_id = ?", integrationID, holderID).
		Delete(&models.SyncLease{}).Error
	if err != nil {
		return fmt.Errorf("failed to release sync lease: %w", err)
	}
	return nil
}

func (s *gormStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

func (s *gormStore) FinalizeSyncRun(ctx context.Context, runID uuid.UUID, status models.SyncRunStatus, uploaded, skipped int, errMsg *string) error {
	statsJSON, err := json.Marshal(map[string]int{"uploaded": uploaded, "skipped": skipped})
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}

	updates := map[string]interface{}{
		"status":      status,
		"finished_at": time.Now().UTC(),
		"stats":       datatypes.JSON(statsJSON),
	}
	if errMsg != nil {
		updates["error"] = *errMsg
	}
	err = s.db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", runID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to finalize sync run: %w", err)
	}
	return nil
}

func (s *gormStore) UpsertSyncedFile(ctx context.Context, file *models.SyncedFile) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "organization_id"},
			{Name: "source_provider"},
			{Name: "source_file_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"file_name", "storage_bucket", "storage_key",
			"size_bytes", "mime_type", "source_modified_at", "updated_at",
		}),
	}).Create(file).Error
	if err != nil {
		return fmt.Errorf("failed to upsert synced file: %w", err)
	}
	return nil
}

func (s *gormStore) ListIntegrationsByUser(ctx context.Context, userID string) ([]models.Integration, error) {
	var integrations []models.Integration
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&integrations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations for user %s: %w", userID, err)
	}
	return integrations, nil
}

func (s *gormStore) ListIntegrations(ctx context.Context, limit int) ([]models.Integration, error) {
	var integrations []models.Integration
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&integrations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	return integrations, nil
}

func (s *gormStore) GetIntegration(ctx context.Context, id uuid.UUID) (*models.Integration, error) {
	var integ models.Integration
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&integ).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load integration %s: %w", id, err)
	}
	return &integ, nil
}

func (s *gormStore) UpsertIntegration(ctx context.Context, integ *models.Integration) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"organization_id", "status", "access_token", "refresh_token",
			"token_expires_at", "metadata", "updated_at",
		}),
	}).Create(integ).Error
	if err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}
	// On the conflict path the struct keeps its pre-insert zero ID; reload so
	// callers always see the persisted row.
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", integ.UserID, integ.Provider).
		First(integ).Error
	if err != nil {
		return fmt.Errorf("failed to reload upserted integration: %w", err)
	}
	return nil
}

func (s *gormStore) SetIntegrationStatus(ctx context.Context, id uuid.UUID, status models.IntegrationStatus) error {
	err := s.db.WithContext(ctx).Model(&models.Integration{}).Where("id = ?", id).Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to set integration status: %w", err)
	}
	return nil
}

func (s *gormStore) ListSyncRuns(ctx context.Context, integrationID *uuid.UUID, limit int) ([]models.SyncRun, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if integrationID != nil {
		q = q.Where("integration_id = ?", *integrationID)
	}
	var runs []models.SyncRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}

func (s *gormStore) ListSyncedFiles(ctx context.Context, orgID uuid.UUID, limit int) ([]models.SyncedFile, error) {
	var files []models.SyncedFile
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list synced files: %w", err)
	}
	return files, nil
}

func (s *gormStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (s *gormStore) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return entries, nil
}

func (s *gormStore) RegisterDeviceToken(ctx context.Context, token *models.DeviceToken) error {
	// Atomic upsert: INSERT ... ON CONFLICT (token) DO UPDATE
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform"}),
	}).Create(token).Error
	if err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

func (s *gormStore) DeleteDeviceToken(ctx context.Context, userID, token string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.DeviceToken{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete device token: %w", err)
	}
	return nil
}

func (s *gormStore) ListDeviceTokens(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	err := s.db.WithContext(ctx).Model(&models.DeviceToken{}).
		Where("user_id = ?", userID).
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	return tokens, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
