// internal/sync/orchestrator.go
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"filesync-service/internal/provider"
	"filesync-service/internal/store"
	"filesync-service/pkg/models"
	"filesync-service/utils"
)

// Hard caps on how much work one invocation may do.
const (
	maxIntegrationsPerRun = 5
	listPageSize          = 20
	maxUploadsPerRun      = 5
	tokenExpiryMargin     = 60 * time.Second
	leaseTTL              = 5 * time.Minute
	providerCallTimeout   = 30 * time.Second
)

// Result statuses reported per integration.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// IntegrationResult is one integration's outcome within a batch. For skipped
// integrations Error carries the reason.
type IntegrationResult struct {
	IntegrationID uuid.UUID       `json:"integration_id"`
	Provider      models.Provider `json:"provider"`
	Status        string          `json:"status"`
	Uploaded      int             `json:"uploaded"`
	Skipped       int             `json:"skipped"`
	Error         string          `json:"error,omitempty"`
}

// BatchResult summarizes one invocation of the sync job.
type BatchResult struct {
	Processed int                 `json:"processed"`
	Results   []IntegrationResult `json:"results"`
}

// ObjectStore is the storage capability the job needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, content []byte, contentType string) (*utils.UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// AdapterRegistry resolves a provider enum to its adapter.
type AdapterRegistry interface {
	Get(p models.Provider) (provider.Adapter, error)
}

// EventPublisher receives run lifecycle events for the live activity feed.
type EventPublisher interface {
	Publish(orgID uuid.UUID, eventType string, data interface{})
	PublishAll(eventType string, data interface{})
}

// SyncService drives one bounded sync pass across eligible integrations.
// Integrations are processed strictly sequentially; one integration's failure
// never aborts the batch.
type SyncService struct {
	store    store.Store
	registry AdapterRegistry
	storage  ObjectStore
	events   EventPublisher // optional
}

func NewSyncService(st store.Store, registry AdapterRegistry, storage ObjectStore, events EventPublisher) *SyncService {
	return &SyncService{store: st, registry: registry, storage: storage, events: events}
}

// RunAll executes one sync pass: up to maxIntegrationsPerRun integrations,
// least-recently-synced first. The returned error is non-nil only when the
// selection query itself fails; every per-integration failure is contained in
// its result entry.
func (s *SyncService) RunAll(ctx context.Context) (*BatchResult, error) {
	integrations, err := s.store.SelectSyncableIntegrations(ctx, maxIntegrationsPerRun)
	if err != nil {
		return nil, err
	}

	holderID := uuid.New().String()
	log.Printf("🔄 [FileSync] Batch start: %d integration(s)", len(integrations))

	batch := &BatchResult{
		Processed: len(integrations),
		Results:   make([]IntegrationResult, 0, len(integrations)),
	}
	for i := range integrations {
		batch.Results = append(batch.Results, s.syncIntegration(ctx, &integrations[i], holderID))
	}

	log.Printf("🏁 [FileSync] Batch done: processed=%d", batch.Processed)
	if s.events != nil {
		s.events.PublishAll("sync.batch.finished", batch)
	}
	return batch, nil
}

func (s *SyncService) syncIntegration(ctx context.Context, integ *models.Integration, holderID string) IntegrationResult {
	result := IntegrationResult{
		IntegrationID: integ.ID,
		Provider:      integ.Provider,
		Status:        StatusSuccess,
	}

	adapter, err := s.registry.Get(integ.Provider)
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	acquired, err := s.store.AcquireLease(ctx, integ.ID, holderID, leaseTTL)
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}
	if !acquired {
		result.Status = StatusSkipped
		result.Error = "sync already in progress"
		log.Printf("⏭️ [FileSync] %s (%s): lease held elsewhere", integ.ID, integ.Provider)
		return result
	}
	defer func() {
		if relErr := s.store.ReleaseLease(ctx, integ.ID, holderID); relErr != nil {
			log.Printf("⚠️ [FileSync] Failed to release lease for %s: %v", integ.ID, relErr)
		}
	}()

	org, skipReason, err := s.resolveOrganization(ctx, integ)
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}
	if org == nil {
		result.Status = StatusSkipped
		result.Error = skipReason
		log.Printf("⏭️ [FileSync] %s (%s): %s", integ.ID, integ.Provider, skipReason)
		return result
	}

	run := &models.SyncRun{
		IntegrationID: integ.ID,
		Provider:      integ.Provider,
		Status:        models.SyncRunStatusRunning,
		StartedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateSyncRun(ctx, run); err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}
	s.publish(org.ID, "sync.run.started", map[string]interface{}{
		"run_id":         run.ID,
		"integration_id": integ.ID,
		"provider":       integ.Provider,
	})

	uploaded, skipped, passErr := s.runPass(ctx, integ, org, adapter, holderID)
	result.Uploaded = uploaded
	result.Skipped = skipped

	if passErr != nil {
		msg := passErr.Error()
		result.Status = StatusError
		result.Error = msg
		if finErr := s.store.FinalizeSyncRun(ctx, run.ID, models.SyncRunStatusError, uploaded, skipped, &msg); finErr != nil {
			log.Printf("⚠️ [FileSync] Failed to finalize run %s: %v", run.ID, finErr)
		}
		s.publish(org.ID, "sync.run.finished", map[string]interface{}{
			"run_id": run.ID, "status": StatusError, "uploaded": uploaded, "skipped": skipped, "error": msg,
		})
		log.Printf("❌ [FileSync] %s (%s): %v", integ.ID, integ.Provider, passErr)
		return result
	}

	if finErr := s.store.FinalizeSyncRun(ctx, run.ID, models.SyncRunStatusSuccess, uploaded, skipped, nil); finErr != nil {
		log.Printf("⚠️ [FileSync] Failed to finalize run %s: %v", run.ID, finErr)
	}
	s.publish(org.ID, "sync.run.finished", map[string]interface{}{
		"run_id": run.ID, "status": StatusSuccess, "uploaded": uploaded, "skipped": skipped,
	})
	log.Printf("✅ [FileSync] %s (%s): uploaded=%d skipped=%d", integ.ID, integ.Provider, uploaded, skipped)
	return result
}

// resolveOrganization falls back to the owning user's organization when the
// integration row does not carry one. A nil org with a reason means "skip".
func (s *SyncService) resolveOrganization(ctx context.Context, integ *models.Integration) (*models.Organization, string, error) {
	orgID := integ.OrganizationID
	if orgID == nil {
		user, err := s.store.GetUser(ctx, integ.UserID)
		if err != nil {
			return nil, "", err
		}
		if user == nil || user.OrganizationID == nil {
			return nil, "no organization for integration owner", nil
		}
		orgID = user.OrganizationID
	}

	org, err := s.store.GetOrganization(ctx, *orgID)
	if err != nil {
		return nil, "", err
	}
	if org == nil {
		return nil, "organization not found", nil
	}
	if !org.StorageEnabled {
		return nil, "storage disabled for organization", nil
	}
	return org, "", nil
}

// runPass performs one bounded pass for one integration: refresh the token if
// it is about to expire, list one page from the cursor, mirror files until the
// upload cap, save the advanced cursor, stamp last_sync_at.
func (s *SyncService) runPass(ctx context.Context, integ *models.Integration, org *models.Organization, adapter provider.Adapter, holderID string) (uploaded, skipped int, err error) {
	accessToken, err := s.ensureFreshToken(ctx, integ, adapter)
	if err != nil {
		return 0, 0, err
	}

	cur, err := s.store.GetCursor(ctx, integ.ID, integ.Provider)
	if err != nil {
		return 0, 0, err
	}
	state, decErr := decodeCursor(cur.Cursor)
	if decErr != nil {
		log.Printf("⚠️ [FileSync] %s (%s): unreadable cursor, restarting from root: %v", integ.ID, integ.Provider, decErr)
		state = cursorState{}
	}

	listCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	page, err := adapter.ListEntries(listCtx, accessToken, state.Page, listPageSize)
	cancel()
	if err != nil {
		return 0, 0, err
	}

	if leaseErr := s.store.ExtendLease(ctx, integ.ID, holderID, leaseTTL); leaseErr != nil {
		log.Printf("⚠️ [FileSync] Failed to extend lease for %s: %v", integ.ID, leaseErr)
	}

	// Entries before the offset were consumed by an earlier pass that stopped
	// at the upload cap mid-page.
	entries := page.Entries
	skip := state.Offset
	if skip > len(entries) {
		skip = len(entries)
	}
	consumed := skip

	for _, entry := range entries[skip:] {
		if uploaded >= maxUploadsPerRun {
			break
		}
		if !adapter.IsSyncableFile(entry) {
			skipped++
			consumed++
			continue
		}
		if err := s.mirrorEntry(ctx, integ, org, adapter, accessToken, entry); err != nil {
			return uploaded, skipped, err
		}
		uploaded++
		consumed++
	}

	// A fully consumed page advances to the provider's next token (or clears
	// the cursor at the end of the sequence); a capped pass re-points at the
	// same page with the consumed count so the next run picks up mid-page.
	var nextState cursorState
	if consumed >= len(entries) {
		nextState = cursorState{Page: page.NextCursor}
	} else {
		nextState = cursorState{Page: state.Page, Offset: consumed}
	}
	if err := s.store.SaveCursor(ctx, cur, encodeCursor(nextState)); err != nil {
		return uploaded, skipped, err
	}
	if err := s.store.StampLastSync(ctx, integ.ID, time.Now().UTC()); err != nil {
		return uploaded, skipped, err
	}
	return uploaded, skipped, nil
}

// mirrorEntry downloads one file, uploads it under a sanitized key, and
// upserts the SyncedFile row. An upsert failure rolls the object back so
// storage and DB stay in step; the deterministic key lets the next pass redo
// both safely.
func (s *SyncService) mirrorEntry(ctx context.Context, integ *models.Integration, org *models.Organization, adapter provider.Adapter, accessToken string, entry provider.Entry) error {
	dlCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	content, err := adapter.DownloadEntry(dlCtx, accessToken, entry)
	cancel()
	if err != nil {
		return err
	}

	key := utils.BuildObjectKey(org.StoragePrefix, org.ID.String(), string(integ.Provider), integ.UserID, entry.ID, entry.Name)
	contentType := content.ContentType
	if contentType == "" {
		contentType = utils.GuessContentType(entry.Name)
	}

	upCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	res, err := s.storage.Upload(upCtx, key, content.Data, contentType)
	cancel()
	if err != nil {
		return err
	}

	file := &models.SyncedFile{
		OrganizationID:   org.ID,
		SourceProvider:   integ.Provider,
		SourceFileID:     entry.ID,
		FileName:         utils.SanitizeFileName(entry.Name, entry.ID),
		StorageBucket:    res.Bucket,
		StorageKey:       res.Key,
		SizeBytes:        int64(len(content.Data)),
		MimeType:         contentType,
		SourceModifiedAt: entry.ModifiedAt,
	}
	if err := s.store.UpsertSyncedFile(ctx, file); err != nil {
		delCtx, cancel := context.WithTimeout(context.Background(), providerCallTimeout)
		if delErr := s.storage.Delete(delCtx, res.Key); delErr != nil {
			log.Printf("⚠️ [FileSync] Orphan object %s left behind: %v", res.Key, delErr)
		}
		cancel()
		return err
	}
	return nil
}

// ensureFreshToken refreshes the access token when it expires inside the
// safety margin and a refresh token exists. The new credentials are persisted
// before first use, so they survive even if the rest of the pass fails.
func (s *SyncService) ensureFreshToken(ctx context.Context, integ *models.Integration, adapter provider.Adapter) (string, error) {
	if integ.AccessToken == nil || *integ.AccessToken == "" {
		return "", fmt.Errorf("integration has no access token")
	}
	if !tokenExpired(integ) || integ.RefreshToken == nil || *integ.RefreshToken == "" {
		return *integ.AccessToken, nil
	}

	refreshCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	tok, err := adapter.RefreshAccessToken(refreshCtx, *integ.RefreshToken)
	cancel()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second)
	var rotated *string
	if tok.RefreshToken != "" {
		rotated = &tok.RefreshToken
	}
	if err := s.store.UpdateIntegrationToken(ctx, integ.ID, tok.AccessToken, rotated, expiresAt); err != nil {
		return "", err
	}

	integ.AccessToken = &tok.AccessToken
	if rotated != nil {
		integ.RefreshToken = rotated
	}
	integ.TokenExpiresAt = &expiresAt
	log.Printf("🔐 [FileSync] Refreshed %s token for integration %s", integ.Provider, integ.ID)
	return tok.AccessToken, nil
}

// tokenExpired applies the safety margin so a token never expires between the
// check and its first use.
func tokenExpired(integ *models.Integration) bool {
	if integ.TokenExpiresAt == nil {
		return false
	}
	return time.Now().After(integ.TokenExpiresAt.Add(-tokenExpiryMargin))
}

func (s *SyncService) publish(orgID uuid.UUID, eventType string, data interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(orgID, eventType, data)
}

// cursorState is what the job persists between passes: the provider's page
// token plus how many of that page's entries earlier passes already consumed.
// The zero state (first page, nothing consumed) is stored as NULL.
type cursorState struct {
	Page   string `json:"page,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

func encodeCursor(state cursorState) *string {
	if state.Page == "" && state.Offset == 0 {
		return nil
	}
	raw, _ := json.Marshal(state)
	encoded := string(raw)
	return &encoded
}

func decodeCursor(raw *string) (cursorState, error) {
	if raw == nil || *raw == "" {
		return cursorState{}, nil
	}
	var state cursorState
	if err := json.Unmarshal([]byte(*raw), &state); err != nil {
		return cursorState{}, err
	}
	return state, nil
}
