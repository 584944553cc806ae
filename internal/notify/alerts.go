// internal/notify/alerts.go
package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"filesync-service/internal/email"
	"filesync-service/internal/email/templates"
	"filesync-service/internal/fcm"
	"filesync-service/internal/store"
	"filesync-service/pkg/models"
)

const alertTimeout = 30 * time.Second

// AlertService delivers sync lifecycle alerts to integration owners over
// email and push. Every method is fire-and-forget: delivery runs in the
// background with its own timeout and never blocks or fails the caller.
type AlertService struct {
	store   store.Store
	email   *email.Sender
	fcm     *fcm.FCMClient // nil when FCM is not configured
	enabled bool
}

func NewAlertService(st store.Store, sender *email.Sender, fcmClient *fcm.FCMClient, enabled bool) *AlertService {
	return &AlertService{store: st, email: sender, fcm: fcmClient, enabled: enabled}
}

// SyncFailed notifies the integration owner that a sync run errored.
func (a *AlertService) SyncFailed(integrationID uuid.UUID, provider models.Provider, errMsg string) {
	if a == nil || !a.enabled {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()

		integ, user := a.resolveOwner(ctx, integrationID)
		if user == nil {
			return
		}

		runID := ""
		if runs, err := a.store.ListSyncRuns(ctx, &integrationID, 1); err == nil && len(runs) > 0 {
			runID = runs[0].ID.String()
		}

		if a.email != nil && user.Email != "" {
			data := templates.SyncFailedData{
				UserName:     user.Username,
				Provider:     provider.DisplayName(),
				ErrorMessage: errMsg,
				OccurredAt:   time.Now().UTC().Format(time.RFC3339),
				RunID:        runID,
			}
			if err := a.email.SendSyncFailed(ctx, user.Email, data); err != nil {
				log.Printf("⚠️ [Alerts] Sync failure email to %s failed: %v", user.Email, err)
			}
		}

		a.push(ctx, user.ID, "File sync failed",
			provider.DisplayName()+" could not be synced. We will retry automatically.",
			map[string]interface{}{
				"type":           "sync.failed",
				"integration_id": integ.ID.String(),
				"provider":       string(provider),
			})
	}()
}

// IntegrationConnected welcomes a freshly linked provider account.
func (a *AlertService) IntegrationConnected(integrationID uuid.UUID, provider models.Provider) {
	if a == nil || !a.enabled {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()

		integ, user := a.resolveOwner(ctx, integrationID)
		if user == nil {
			return
		}

		if a.email != nil && user.Email != "" {
			data := templates.IntegrationConnectedData{
				UserName:    user.Username,
				Provider:    provider.DisplayName(),
				ConnectedAt: time.Now().UTC().Format(time.RFC3339),
			}
			if err := a.email.SendIntegrationConnected(ctx, user.Email, data); err != nil {
				log.Printf("⚠️ [Alerts] Integration connected email to %s failed: %v", user.Email, err)
			}
		}

		a.push(ctx, user.ID, provider.DisplayName()+" connected",
			"Files will be mirrored to your organization's storage on the next sync.",
			map[string]interface{}{
				"type":           "integration.connected",
				"integration_id": integ.ID.String(),
				"provider":       string(provider),
			})
	}()
}

// resolveOwner loads the integration and its owning user. A nil user means
// the alert has nowhere to go.
func (a *AlertService) resolveOwner(ctx context.Context, integrationID uuid.UUID) (*models.Integration, *models.User) {
	integ, err := a.store.GetIntegration(ctx, integrationID)
	if err != nil || integ == nil {
		log.Printf("⚠️ [Alerts] Integration %s not found for alert: %v", integrationID, err)
		return nil, nil
	}
	user, err := a.store.GetUser(ctx, integ.UserID)
	if err != nil || user == nil {
		log.Printf("⚠️ [Alerts] Owner %s of integration %s not found: %v", integ.UserID, integrationID, err)
		return nil, nil
	}
	return integ, user
}

func (a *AlertService) push(ctx context.Context, userID, title, body string, data map[string]interface{}) {
	if a.fcm == nil {
		return
	}
	tokens, err := a.store.ListDeviceTokens(ctx, userID)
	if err != nil {
		log.Printf("⚠️ [Alerts] Could not list device tokens for %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}
	if err := a.fcm.SendToMultipleTokens(ctx, tokens, title, body, data); err != nil {
		log.Printf("⚠️ [Alerts] Push to %s failed: %v", userID, err)
	}
}
