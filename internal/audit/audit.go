// internal/audit/audit.go
package audit

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"filesync-service/internal/store"
	"filesync-service/pkg/models"
)

// Actions recorded by this service.
const (
	ActionSyncTriggered           = "sync.triggered"
	ActionSyncBatchFinished       = "sync.batch.finished"
	ActionIntegrationConnected    = "integration.connected"
	ActionIntegrationDisconnected = "integration.disconnected"
	ActionDirectorySynced         = "directory.synced"
	ActionDeviceRegistered        = "device.registered"
	ActionDeviceUnregistered      = "device.unregistered"
)

// Entry is one auditable action. ActorID is nil for scheduler-triggered work.
type Entry struct {
	OrganizationID *uuid.UUID
	ActorID        *string
	Action         string
	TargetType     string
	TargetID       string
	Detail         map[string]interface{}
}

// Recorder persists audit entries. Failures are logged, never surfaced: an
// audit hiccup must not fail the action it describes.
type Recorder struct {
	store store.Store
}

func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st}
}

func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil {
		return
	}

	var detail datatypes.JSON
	if entry.Detail != nil {
		raw, err := json.Marshal(entry.Detail)
		if err != nil {
			log.Printf("⚠️ [Audit] Could not marshal detail for %s: %v", entry.Action, err)
		} else {
			detail = datatypes.JSON(raw)
		}
	}

	row := &models.AuditLog{
		OrganizationID: entry.OrganizationID,
		ActorID:        entry.ActorID,
		Action:         entry.Action,
		TargetType:     entry.TargetType,
		TargetID:       entry.TargetID,
		Detail:         detail,
	}
	if err := r.store.CreateAuditLog(ctx, row); err != nil {
		log.Printf("⚠️ [Audit] Failed to record %s on %s/%s: %v", entry.Action, entry.TargetType, entry.TargetID, err)
	}
}
