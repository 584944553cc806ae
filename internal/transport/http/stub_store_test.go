// internal/transport/http/stub_store_test.go
package http

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"filesync-service/pkg/models"
)

// stubStore is an in-memory store.Store for handler tests. The HTTP-layer
// methods keep real state and capture their arguments; the sync-job methods
// are inert because no handler calls them.
type stubStore struct {
	users        map[string]*models.User
	integrations map[uuid.UUID]*models.Integration
	runs         []models.SyncRun
	files        []models.SyncedFile
	auditLogs    []models.AuditLog
	devices      []models.DeviceToken

	// "userID|token" pairs handed to DeleteDeviceToken.
	deletedDevices []string

	getUserErr     error
	listRunsErr    error
	listFilesErr   error
	listIntegErr   error
	listAuditErr   error
	registerErr    error
	deleteDevErr   error
	upsertIntegErr error
	setStatusErr   error

	runsFilter *uuid.UUID
	runsLimit  int
	filesOrg   uuid.UUID
	filesLimit int
	integLimit int
	auditLimit int
}

func newStubStore() *stubStore {
	return &stubStore{
		users:        make(map[string]*models.User),
		integrations: make(map[uuid.UUID]*models.Integration),
	}
}

// Sync-job surface, never reached from handlers.

func (s *stubStore) SelectSyncableIntegrations(ctx context.Context, limit int) ([]models.Integration, error) {
	return nil, nil
}

func (s *stubStore) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return nil, nil
}

func (s *stubStore) UpdateIntegrationToken(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt time.Time) error {
	return nil
}

func (s *stubStore) StampLastSync(ctx context.Context, id uuid.UUID, t time.Time) error {
	return nil
}

func (s *stubStore) GetCursor(ctx context.Context, integrationID uuid.UUID, p models.Provider) (*models.SyncCursor, error) {
	return &models.SyncCursor{IntegrationID: integrationID, Provider: p}, nil
}

func (s *stubStore) SaveCursor(ctx context.Context, cur *models.SyncCursor, next *string) error {
	return nil
}

func (s *stubStore) AcquireLease(ctx context.Context, integrationID uuid.UUID, holderID string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (s *stubStore) ExtendLease(ctx context.Context, integrationID uuid.UUID, holderID string, ttl time.Duration) error {
	return nil
}

func (s *stubStore) ReleaseLease(ctx context.Context, integrationID uuid.UUID, holderID string) error {
	return nil
}

func (s *stubStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	return nil
}

func (s *stubStore) FinalizeSyncRun(ctx context.Context, runID uuid.UUID, status models.SyncRunStatus, uploaded, skipped int, errMsg *string) error {
	return nil
}

func (s *stubStore) UpsertSyncedFile(ctx context.Context, file *models.SyncedFile) error {
	return nil
}

// HTTP-layer surface.

func (s *stubStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	if s.getUserErr != nil {
		return nil, s.getUserErr
	}
	return s.users[id], nil
}

func (s *stubStore) ListIntegrationsByUser(ctx context.Context, userID string) ([]models.Integration, error) {
	if s.listIntegErr != nil {
		return nil, s.listIntegErr
	}
	var out []models.Integration
	for _, integ := range s.integrations {
		if integ.UserID == userID {
			out = append(out, *integ)
		}
	}
	return out, nil
}

func (s *stubStore) ListIntegrations(ctx context.Context, limit int) ([]models.Integration, error) {
	s.integLimit = limit
	if s.listIntegErr != nil {
		return nil, s.listIntegErr
	}
	var out []models.Integration
	for _, integ := range s.integrations {
		out = append(out, *integ)
	}
	return out, nil
}

func (s *stubStore) GetIntegration(ctx context.Context, id uuid.UUID) (*models.Integration, error) {
	return s.integrations[id], nil
}

func (s *stubStore) UpsertIntegration(ctx context.Context, integ *models.Integration) error {
	if s.upsertIntegErr != nil {
		return s.upsertIntegErr
	}
	if integ.ID == uuid.Nil {
		integ.ID = uuid.New()
	}
	// Kept past the request, so request-backed strings must be copied.
	row := *integ
	row.UserID = strings.Clone(integ.UserID)
	row.Provider = models.Provider(strings.Clone(string(integ.Provider)))
	s.integrations[row.ID] = &row
	return nil
}

func (s *stubStore) SetIntegrationStatus(ctx context.Context, id uuid.UUID, status models.IntegrationStatus) error {
	if s.setStatusErr != nil {
		return s.setStatusErr
	}
	if integ, ok := s.integrations[id]; ok {
		integ.Status = status
	}
	return nil
}

func (s *stubStore) ListSyncRuns(ctx context.Context, integrationID *uuid.UUID, limit int) ([]models.SyncRun, error) {
	s.runsFilter = integrationID
	s.runsLimit = limit
	if s.listRunsErr != nil {
		return nil, s.listRunsErr
	}
	return s.runs, nil
}

func (s *stubStore) ListSyncedFiles(ctx context.Context, orgID uuid.UUID, limit int) ([]models.SyncedFile, error) {
	s.filesOrg = orgID
	s.filesLimit = limit
	if s.listFilesErr != nil {
		return nil, s.listFilesErr
	}
	return s.files, nil
}

func (s *stubStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	row := *entry
	if entry.ActorID != nil {
		actor := strings.Clone(*entry.ActorID)
		row.ActorID = &actor
	}
	row.TargetID = strings.Clone(entry.TargetID)
	s.auditLogs = append(s.auditLogs, row)
	return nil
}

func (s *stubStore) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	s.auditLimit = limit
	if s.listAuditErr != nil {
		return nil, s.listAuditErr
	}
	return s.auditLogs, nil
}

func (s *stubStore) RegisterDeviceToken(ctx context.Context, token *models.DeviceToken) error {
	if s.registerErr != nil {
		return s.registerErr
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	row := *token
	row.UserID = strings.Clone(token.UserID)
	s.devices = append(s.devices, row)
	return nil
}

func (s *stubStore) DeleteDeviceToken(ctx context.Context, userID, token string) error {
	if s.deleteDevErr != nil {
		return s.deleteDevErr
	}
	s.deletedDevices = append(s.deletedDevices, userID+"|"+token)
	return nil
}

func (s *stubStore) ListDeviceTokens(ctx context.Context, userID string) ([]string, error) {
	var out []string
	for _, d := range s.devices {
		if d.UserID == userID {
			out = append(out, d.Token)
		}
	}
	return out, nil
}
