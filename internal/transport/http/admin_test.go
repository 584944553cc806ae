// internal/transport/http/admin_test.go
package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"filesync-service/pkg/models"
)

func TestGetSyncRuns(t *testing.T) {
	t.Run("lists recent runs", func(t *testing.T) {
		st := newStubStore()
		st.runs = []models.SyncRun{
			{
				ID:            uuid.New(),
				IntegrationID: uuid.New(),
				Provider:      models.ProviderDropbox,
				Status:        models.SyncRunStatusSuccess,
				StartedAt:     time.Now().Add(-time.Minute),
				Stats:         datatypes.JSON(`{"uploaded":5,"skipped":2}`),
			},
		}
		_, app := newTestHandler(st, &stubRunner{})

		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/admin/sync-runs", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeMap(t, resp)
		runs, ok := body["runs"].([]interface{})
		require.True(t, ok, "runs missing: %v", body)
		require.Len(t, runs, 1)

		run := runs[0].(map[string]interface{})
		assert.Equal(t, "success", run["status"])
		stats, ok := run["stats"].(map[string]interface{})
		require.True(t, ok, "stats missing: %v", run)
		assert.Equal(t, float64(5), stats["uploaded"])

		assert.Nil(t, st.runsFilter)
		assert.Equal(t, 50, st.runsLimit)
	})

	t.Run("filters by integration id", func(t *testing.T) {
		st := newStubStore()
		_, app := newTestHandler(st, &stubRunner{})

		integID := uuid.New()
		target := "/admin/sync-runs?integration_id=" + integID.String() + "&limit=5"
		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		require.NotNil(t, st.runsFilter)
		assert.Equal(t, integID, *st.runsFilter)
		assert.Equal(t, 5, st.runsLimit)
	})

	t.Run("rejects a malformed integration id", func(t *testing.T) {
		st := newStubStore()
		_, app := newTestHandler(st, &stubRunner{})

		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/admin/sync-runs?integration_id=nope", nil))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		body := decodeMap(t, resp)
		assert.Equal(t, "invalid integration_id", body["error"])
	})

	t.Run("store failure is a 500", func(t *testing.T) {
		st := newStubStore()
		st.listRunsErr = errors.New("db down")
		_, app := newTestHandler(st, &stubRunner{})

		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/admin/sync-runs", nil))
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		body := decodeMap(t, resp)
		assert.Equal(t, "failed to fetch sync runs", body["error"])
	})
}

func TestGetAllIntegrations(t *testing.T) {
	t.Run("lists integrations without token fields", func(t *testing.T) {
		st := newStubStore()
		access := "super-secret-access"
		integ := &models.Integration{
			ID:          uuid.New(),
			UserID:      "user-1",
			Provider:    models.ProviderOneDrive,
			Status:      models.IntegrationStatusActive,
			AccessToken: &access,
		}
		st.integrations[integ.ID] = integ
		_, app := newTestHandler(st, &stubRunner{})

		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/admin/integrations?limit=500", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeMap(t, resp)
		integrations, ok := body["integrations"].([]interface{})
		require.True(t, ok, "integrations missing: %v", body)
		require.Len(t, integrations, 1)

		row := integrations[0].(map[string]interface{})
		assert.Equal(t, "onedrive", row["provider"])
		// Tokens are json:"-" on the model and must never serialize.
		assert.NotContains(t, row, "access_token")
		assert.NotContains(t, row, "AccessToken")

		assert.Equal(t, 500, st.integLimit)
	})

	t.Run("store failure is a 500", func(t *testing.T) {
		st := newStubStore()
		st.listIntegErr = errors.New("db down")
		_, app := newTestHandler(st, &stubRunner{})

		resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/admin/integrations", nil))
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		body := decodeMap(t, resp)
		assert.Equal(t, "failed to fetch integrations", body["error"])
	})
}

func TestGetAuditLogs(t *testing.T) {
	st := newStubStore()
	actor := "user-1"
	st.auditLogs = []models.AuditLog{
		{ID: uuid.New(), ActorID: &actor, Action: "integration.connected", TargetType: "integration"},
		{ID: uuid.New(), Action: "sync.triggered", TargetType: "sync_batch"},
	}
	_, app := newTestHandler(st, &stubRunner{})

	resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeMap(t, resp)
	entries, ok := body["audit_logs"].([]interface{})
	require.True(t, ok, "audit_logs missing: %v", body)
	require.Len(t, entries, 2)
	assert.Equal(t, 100, st.auditLimit)

	first := entries[0].(map[string]interface{})
	assert.Equal(t, "integration.connected", first["action"])
	assert.Equal(t, "user-1", first["actor_id"])
}
