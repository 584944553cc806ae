// internal/sync/stubs_test.go
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"filesync-service/internal/provider"
	"filesync-service/pkg/models"
	"filesync-service/utils"
)

var errUnsupportedProvider = errors.New("unsupported provider")

// callLog records the order of store and adapter calls so tests can assert
// sequencing, e.g. that refreshed credentials are persisted before first use.
type callLog struct {
	calls []string
}

func (l *callLog) add(name string) {
	l.calls = append(l.calls, name)
}

func (l *callLog) indexOf(name string) int {
	for i, c := range l.calls {
		if c == name {
			return i
		}
	}
	return -1
}

type tokenWrite struct {
	integrationID uuid.UUID
	accessToken   string
	refreshToken  *string
	expiresAt     time.Time
}

type finalizedRun struct {
	status   models.SyncRunStatus
	uploaded int
	skipped  int
	errMsg   *string
}

// stubStore is a test-only in-memory implementation of store.Store. The sync
// job path is backed by real state; the HTTP-layer methods are no-ops.
type stubStore struct {
	log *callLog

	integrations []models.Integration
	orgs         map[uuid.UUID]*models.Organization
	users        map[string]*models.User
	cursors      map[string]*models.SyncCursor
	leases       map[uuid.UUID]string
	runs         []*models.SyncRun
	finals       map[uuid.UUID]finalizedRun
	files        []models.SyncedFile
	tokenWrites  []tokenWrite
	lastSync     map[uuid.UUID]time.Time

	selectErr     error
	acquireErr    error
	leaseHeld     bool
	saveCursorErr error
	upsertFileErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		log:      &callLog{},
		orgs:     map[uuid.UUID]*models.Organization{},
		users:    map[string]*models.User{},
		cursors:  map[string]*models.SyncCursor{},
		leases:   map[uuid.UUID]string{},
		finals:   map[uuid.UUID]finalizedRun{},
		lastSync: map[uuid.UUID]time.Time{},
	}
}

func cursorKey(integrationID uuid.UUID, p models.Provider) string {
	return integrationID.String() + "|" + string(p)
}

func (s *stubStore) SelectSyncableIntegrations(ctx context.Context, limit int) ([]models.Integration, error) {
	s.log.add("store.Select")
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	if limit > len(s.integrations) {
		limit = len(s.integrations)
	}
	out := make([]models.Integration, limit)
	copy(out, s.integrations[:limit])
	return out, nil
}

func (s *stubStore) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return s.orgs[id], nil
}

func (s *stubStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users[id], nil
}

func (s *stubStore) UpdateIntegrationToken(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt time.Time) error {
	s.log.add("store.UpdateToken")
	s.tokenWrites = append(s.tokenWrites, tokenWrite{
		integrationID: id,
		accessToken:   accessToken,
		refreshToken:  refreshToken,
		expiresAt:     expiresAt,
	})
	return nil
}

func (s *stubStore) StampLastSync(ctx context.Context, id uuid.UUID, t time.Time) error {
	s.log.add("store.StampLastSync")
	s.lastSync[id] = t
	return nil
}

func (s *stubStore) GetCursor(ctx context.Context, integrationID uuid.UUID, p models.Provider) (*models.SyncCursor, error) {
	if cur, ok := s.cursors[cursorKey(integrationID, p)]; ok {
		return cur, nil
	}
	return &models.SyncCursor{IntegrationID: integrationID, Provider: p}, nil
}

func (s *stubStore) SaveCursor(ctx context.Context, cur *models.SyncCursor, next *string) error {
	s.log.add("store.SaveCursor")
	if s.saveCursorErr != nil {
		return s.saveCursorErr
	}
	cur.Cursor = next
	cur.Version++
	s.cursors[cursorKey(cur.IntegrationID, cur.Provider)] = cur
	return nil
}

func (s *stubStore) AcquireLease(ctx context.Context, integrationID uuid.UUID, holderID string, ttl time.Duration) (bool, error) {
	s.log.add("store.AcquireLease")
	if s.acquireErr != nil {
		return false, s.acquireErr
	}
	if s.leaseHeld {
		return false, nil
	}
	s.leases[integrationID] = holderID
	return true, nil
}

func (s *stubStore) ExtendLease(ctx context.Context, integrationID uuid.UUID, holderID string, ttl time.Duration) error {
	return nil
}

func (s *stubStore) ReleaseLease(ctx context.Context, integrationID uuid.UUID, holderID string) error {
	s.log.add("store.ReleaseLease")
	delete(s.leases, integrationID)
	return nil
}

func (s *stubStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	s.log.add("store.CreateSyncRun")
	run.ID = uuid.New()
	s.runs = append(s.runs, run)
	return nil
}

func (s *stubStore) FinalizeSyncRun(ctx context.Context, runID uuid.UUID, status models.SyncRunStatus, uploaded, skipped int, errMsg *string) error {
	s.finals[runID] = finalizedRun{status: status, uploaded: uploaded, skipped: skipped, errMsg: errMsg}
	return nil
}

func (s *stubStore) UpsertSyncedFile(ctx context.Context, file *models.SyncedFile) error {
	if s.upsertFileErr != nil {
		return s.upsertFileErr
	}
	s.files = append(s.files, *file)
	return nil
}

func (s *stubStore) ListIntegrationsByUser(ctx context.Context, userID string) ([]models.Integration, error) {
	return nil, nil
}

func (s *stubStore) ListIntegrations(ctx context.Context, limit int) ([]models.Integration, error) {
	return nil, nil
}

func (s *stubStore) GetIntegration(ctx context.Context, id uuid.UUID) (*models.Integration, error) {
	return nil, nil
}

func (s *stubStore) UpsertIntegration(ctx context.Context, integ *models.Integration) error {
	return nil
}

func (s *stubStore) SetIntegrationStatus(ctx context.Context, id uuid.UUID, status models.IntegrationStatus) error {
	return nil
}

func (s *stubStore) ListSyncRuns(ctx context.Context, integrationID *uuid.UUID, limit int) ([]models.SyncRun, error) {
	return nil, nil
}

func (s *stubStore) ListSyncedFiles(ctx context.Context, orgID uuid.UUID, limit int) ([]models.SyncedFile, error) {
	return nil, nil
}

func (s *stubStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return nil
}

func (s *stubStore) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return nil, nil
}

func (s *stubStore) RegisterDeviceToken(ctx context.Context, token *models.DeviceToken) error {
	return nil
}

func (s *stubStore) DeleteDeviceToken(ctx context.Context, userID, token string) error {
	return nil
}

func (s *stubStore) ListDeviceTokens(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

// stubAdapter serves canned pages keyed by cursor and records the access token
// used on the last listing call.
type stubAdapter struct {
	kind models.Provider
	log  *callLog

	pages         map[string]provider.Page
	listErr       error
	lastListToken string

	refreshTok *provider.Token
	refreshErr error

	downloadErr map[string]error
}

func (a *stubAdapter) Kind() models.Provider {
	return a.kind
}

func (a *stubAdapter) RefreshAccessToken(ctx context.Context, refreshToken string) (*provider.Token, error) {
	a.log.add("adapter.Refresh")
	if a.refreshErr != nil {
		return nil, a.refreshErr
	}
	if a.refreshTok != nil {
		return a.refreshTok, nil
	}
	return &provider.Token{AccessToken: "fresh-token", ExpiresIn: 3600}, nil
}

func (a *stubAdapter) ListEntries(ctx context.Context, accessToken, cursor string, pageSize int) (*provider.Page, error) {
	a.log.add("adapter.List")
	a.lastListToken = accessToken
	if a.listErr != nil {
		return nil, a.listErr
	}
	page := a.pages[cursor]
	return &page, nil
}

func (a *stubAdapter) DownloadEntry(ctx context.Context, accessToken string, entry provider.Entry) (*provider.Content, error) {
	if err := a.downloadErr[entry.ID]; err != nil {
		return nil, err
	}
	return &provider.Content{Data: []byte("data-" + entry.ID), ContentType: "text/plain"}, nil
}

func (a *stubAdapter) IsSyncableFile(entry provider.Entry) bool {
	return !entry.IsFolder
}

type stubRegistry struct {
	adapters map[models.Provider]provider.Adapter
}

func (r *stubRegistry) Get(p models.Provider) (provider.Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, errUnsupportedProvider
	}
	return a, nil
}

type stubObjectStore struct {
	uploads   []string
	deletes   []string
	uploadErr error
}

func (s *stubObjectStore) Upload(ctx context.Context, key string, content []byte, contentType string) (*utils.UploadResult, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	s.uploads = append(s.uploads, key)
	return &utils.UploadResult{Bucket: "test-bucket", Key: key}, nil
}

func (s *stubObjectStore) Delete(ctx context.Context, key string) error {
	s.deletes = append(s.deletes, key)
	return nil
}

type stubEvents struct {
	published []string
}

func (e *stubEvents) Publish(orgID uuid.UUID, eventType string, data interface{}) {
	e.published = append(e.published, eventType)
}

func (e *stubEvents) PublishAll(eventType string, data interface{}) {
	e.published = append(e.published, "all:"+eventType)
}
