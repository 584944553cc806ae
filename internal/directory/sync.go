// internal/directory/sync.go
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"filesync-service/pkg/models"
)

// Service mirrors the portal's user and organization directory into the local
// database so the sync job can resolve file ownership without a network hop
// per integration.
type Service struct {
	db           *gorm.DB
	portalAPIURL string
	serviceToken string
	client       *http.Client
}

func NewService(db *gorm.DB, portalAPIURL, serviceToken string) *Service {
	return &Service{
		db:           db,
		portalAPIURL: portalAPIURL,
		serviceToken: serviceToken,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// portalUser is the portal service API's wire shape for a user.
type portalUser struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Roles          []string   `json:"roles,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// portalOrganization is the portal service API's wire shape for an organization.
type portalOrganization struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	StorageEnabled bool      `json:"storage_enabled"`
	StoragePrefix  *string   `json:"storage_prefix,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Run performs an incremental pass from the stored watermark.
func (s *Service) Run(ctx context.Context) error {
	since, err := s.lastSyncTime()
	if err != nil {
		log.Printf("⚠️ [Directory] Could not read last sync time, mirroring everything: %v", err)
		since = time.Time{}
	}
	return s.SyncSince(ctx, since)
}

// SyncSince pulls directory records updated since the given time and upserts
// them locally. A zero since mirrors the full directory. Organizations are
// applied before users so organization references resolve.
func (s *Service) SyncSince(ctx context.Context, since time.Time) error {
	if since.IsZero() {
		log.Printf("🔄 [Directory] Starting full directory sync")
	} else {
		log.Printf("🔄 [Directory] Starting directory sync from: %s", since.UTC().Format(time.RFC3339))
	}
	startedAt := time.Now().UTC()

	orgs, err := s.fetchOrganizations(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to fetch organizations from portal: %w", err)
	}
	users, err := s.fetchUsers(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to fetch users from portal: %w", err)
	}
	log.Printf("📥 [Directory] Retrieved %d organization(s), %d user(s)", len(orgs), len(users))

	for _, org := range orgs {
		if err := s.upsertOrganization(ctx, org); err != nil {
			log.Printf("⚠️ [Directory] Failed to mirror organization %s: %v", org.ID, err)
		}
	}
	for _, user := range users {
		if err := s.upsertUser(ctx, user); err != nil {
			log.Printf("⚠️ [Directory] Failed to mirror user %s: %v", user.ID, err)
		}
	}

	// Records updated while the pass ran fall after startedAt and will be
	// picked up again next time.
	if err := s.updateLastSyncTime(startedAt); err != nil {
		log.Printf("⚠️ [Directory] Failed to update last sync time: %v", err)
	}

	log.Printf("✅ [Directory] Directory sync completed")
	return nil
}

func (s *Service) fetchUsers(ctx context.Context, since time.Time) ([]portalUser, error) {
	body, err := s.get(ctx, "/svc/v1/users", since)
	if err != nil {
		return nil, err
	}
	var response struct {
		Users []portalUser `json:"users"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal users response: %w", err)
	}
	return response.Users, nil
}

func (s *Service) fetchOrganizations(ctx context.Context, since time.Time) ([]portalOrganization, error) {
	body, err := s.get(ctx, "/svc/v1/organizations", since)
	if err != nil {
		return nil, err
	}
	var response struct {
		Organizations []portalOrganization `json:"organizations"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal organizations response: %w", err)
	}
	return response.Organizations, nil
}

func (s *Service) get(ctx context.Context, path string, since time.Time) ([]byte, error) {
	url := s.portalAPIURL + path
	if !since.IsZero() {
		url = fmt.Sprintf("%s?since=%s", url, since.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Service-Token", s.serviceToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("portal returned status %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

// upsertUser saves or updates a mirrored user, only ever moving forward in
// time so a stale fetch never clobbers a newer record.
func (s *Service) upsertUser(ctx context.Context, pu portalUser) error {
	roles := strings.Join(pu.Roles, ",")

	var existing models.User
	err := s.db.WithContext(ctx).Where("id = ?", pu.ID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user := models.User{
				ID:             pu.ID,
				Username:       pu.Username,
				Email:          pu.Email,
				OrganizationID: pu.OrganizationID,
				Roles:          roles,
				UpdatedAt:      pu.UpdatedAt,
			}
			return s.db.WithContext(ctx).Create(&user).Error
		}
		return err
	}

	if !pu.UpdatedAt.After(existing.UpdatedAt) {
		return nil
	}
	existing.Username = pu.Username
	existing.Email = pu.Email
	existing.OrganizationID = pu.OrganizationID
	existing.Roles = roles
	existing.UpdatedAt = pu.UpdatedAt
	return s.db.WithContext(ctx).Save(&existing).Error
}

func (s *Service) upsertOrganization(ctx context.Context, po portalOrganization) error {
	var existing models.Organization
	err := s.db.WithContext(ctx).Where("id = ?", po.ID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			org := models.Organization{
				ID:             po.ID,
				Name:           po.Name,
				StorageEnabled: po.StorageEnabled,
				StoragePrefix:  po.StoragePrefix,
				UpdatedAt:      po.UpdatedAt,
			}
			return s.db.WithContext(ctx).Create(&org).Error
		}
		return err
	}

	if !po.UpdatedAt.After(existing.UpdatedAt) {
		return nil
	}
	existing.Name = po.Name
	existing.StorageEnabled = po.StorageEnabled
	existing.StoragePrefix = po.StoragePrefix
	existing.UpdatedAt = po.UpdatedAt
	return s.db.WithContext(ctx).Save(&existing).Error
}

// lastSyncTime reads the directory watermark. A missing row means the
// directory has never been mirrored.
func (s *Service) lastSyncTime() (time.Time, error) {
	var config models.SyncConfig
	err := s.db.Where("key = ?", models.SyncConfigDirectoryWatermark).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	parsed, err := time.Parse(time.RFC3339, config.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse sync time: %w", err)
	}
	return parsed, nil
}

func (s *Service) updateLastSyncTime(syncTime time.Time) error {
	value := syncTime.UTC().Format(time.RFC3339)

	var existing models.SyncConfig
	err := s.db.Where("key = ?", models.SyncConfigDirectoryWatermark).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.db.Create(&models.SyncConfig{
				Key:   models.SyncConfigDirectoryWatermark,
				Value: value,
			}).Error
		}
		return err
	}
	return s.db.Model(&existing).Update("value", value).Error
}
