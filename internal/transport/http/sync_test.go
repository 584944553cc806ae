// internal/transport/http/sync_test.go
package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filesync-service/internal/audit"
	syncjob "filesync-service/internal/sync"
	"filesync-service/pkg/models"
)

func TestTriggerFileSync(t *testing.T) {
	t.Run("reports the batch outcome", func(t *testing.T) {
		st := newStubStore()
		runner := &stubRunner{batch: &syncjob.BatchResult{
			Processed: 2,
			Results: []syncjob.IntegrationResult{
				{
					IntegrationID: uuid.New(),
					Provider:      models.ProviderDropbox,
					Status:        syncjob.StatusSuccess,
					Uploaded:      3,
					Skipped:       1,
				},
				{
					IntegrationID: uuid.New(),
					Provider:      models.ProviderGoogleDrive,
					Status:        syncjob.StatusError,
					Error:         "token refresh failed",
				},
			},
		}}
		_, app := newTestHandler(st, runner)

		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/svc/v1/sync/files", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeMap(t, resp)
		assert.Equal(t, float64(2), body["processed"])

		results, ok := body["results"].([]interface{})
		require.True(t, ok, "results missing: %v", body)
		require.Len(t, results, 2)

		first := results[0].(map[string]interface{})
		assert.Equal(t, "success", first["status"])
		assert.Equal(t, "dropbox", first["provider"])
		assert.Equal(t, float64(3), first["uploaded"])
		assert.Equal(t, float64(1), first["skipped"])

		second := results[1].(map[string]interface{})
		assert.Equal(t, "error", second["status"])
		assert.Equal(t, "token refresh failed", second["error"])
	})

	t.Run("audits the trigger with batch totals", func(t *testing.T) {
		st := newStubStore()
		runner := &stubRunner{batch: &syncjob.BatchResult{
			Processed: 2,
			Results: []syncjob.IntegrationResult{
				{IntegrationID: uuid.New(), Provider: models.ProviderDropbox, Status: syncjob.StatusSuccess, Uploaded: 4},
				{IntegrationID: uuid.New(), Provider: models.ProviderOneDrive, Status: syncjob.StatusError, Error: "boom"},
			},
		}}
		_, app := newTestHandler(st, runner)

		req := httptest.NewRequest(http.MethodGet, "/svc/v1/sync/files", nil)
		req.Header.Set("X-User-ID", "admin-1")
		resp := doRequest(t, app, req)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		require.Len(t, st.auditLogs, 1)
		row := st.auditLogs[0]
		assert.Equal(t, audit.ActionSyncTriggered, row.Action)
		assert.Equal(t, "sync_batch", row.TargetType)
		require.NotNil(t, row.ActorID)
		assert.Equal(t, "admin-1", *row.ActorID)
		assert.Contains(t, string(row.Detail), `"processed":2`)
		assert.Contains(t, string(row.Detail), `"uploaded":4`)
		assert.Contains(t, string(row.Detail), `"failed":1`)
	})

	t.Run("scheduler-style call audits without an actor", func(t *testing.T) {
		st := newStubStore()
		_, app := newTestHandler(st, &stubRunner{batch: &syncjob.BatchResult{}})

		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/svc/v1/sync/files", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		require.Len(t, st.auditLogs, 1)
		assert.Nil(t, st.auditLogs[0].ActorID)
	})

	t.Run("selection failure is a 500 carrying the cause", func(t *testing.T) {
		st := newStubStore()
		runner := &stubRunner{err: errors.New("select syncable integrations: connection refused")}
		_, app := newTestHandler(st, runner)

		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/svc/v1/sync/files", nil))
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		body := decodeMap(t, resp)
		assert.Equal(t, "select syncable integrations: connection refused", body["error"])
		assert.Empty(t, st.auditLogs, "a batch that never started must not be audited")
	})
}

func TestTriggerDirectorySync_InvalidSince(t *testing.T) {
	st := newStubStore()
	_, app := newTestHandler(st, &stubRunner{})

	req := httptest.NewRequest(http.MethodPost, "/svc/v1/directory/sync?since=yesterday", nil)
	resp := doRequest(t, app, req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeMap(t, resp)
	assert.Equal(t, "invalid since format, use RFC3339", body["error"])
}
