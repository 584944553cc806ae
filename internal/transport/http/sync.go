// internal/transport/http/sync.go
package http

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"filesync-service/internal/audit"
	syncjob "filesync-service/internal/sync"
)

// TriggerFileSync runs one sync batch and reports the per-integration
// outcomes. The request blocks until the batch finishes; a 500 is returned
// only when the batch could not start at all.
func (h *Handler) TriggerFileSync(c *fiber.Ctx) error {
	log.Printf("🔄 [TriggerFileSync] Triggered (actor=%s, ip=%s)", c.Get("X-User-ID"), c.IP())

	batch, err := h.syncer.RunAll(c.Context())
	if err != nil {
		log.Printf("❌ [TriggerFileSync] Could not start batch: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.dispatchBatchOutcome(c, batch)
	return c.JSON(batch)
}

// dispatchBatchOutcome records the audit trail and fans out failure alerts
// once the batch is over. Alert delivery is fire-and-forget.
func (h *Handler) dispatchBatchOutcome(c *fiber.Ctx, batch *syncjob.BatchResult) {
	uploaded, skipped, failed := 0, 0, 0
	for _, r := range batch.Results {
		uploaded += r.Uploaded
		skipped += r.Skipped
		if r.Status == syncjob.StatusError {
			failed++
			h.alerts.SyncFailed(r.IntegrationID, r.Provider, r.Error)
		}
	}

	h.audit.Record(c.Context(), audit.Entry{
		ActorID:    actorID(c),
		Action:     audit.ActionSyncTriggered,
		TargetType: "sync_batch",
		Detail: map[string]interface{}{
			"processed": batch.Processed,
			"uploaded":  uploaded,
			"skipped":   skipped,
			"failed":    failed,
		},
	})
}

// TriggerDirectorySync mirrors users and organizations from the portal. An
// optional RFC3339 `since` narrows the pull; otherwise the stored watermark
// is used.
func (h *Handler) TriggerDirectorySync(c *fiber.Ctx) error {
	sinceStr := c.Query("since")

	var err error
	if sinceStr != "" {
		since, parseErr := time.Parse(time.RFC3339, sinceStr)
		if parseErr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid since format, use RFC3339"})
		}
		err = h.directory.SyncSince(c.Context(), since)
	} else {
		err = h.directory.Run(c.Context())
	}
	if err != nil {
		log.Printf("❌ [TriggerDirectorySync] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "directory sync failed"})
	}

	h.audit.Record(c.Context(), audit.Entry{
		ActorID:    actorID(c),
		Action:     audit.ActionDirectorySynced,
		TargetType: "directory",
		Detail:     map[string]interface{}{"since": sinceStr},
	})
	return c.JSON(fiber.Map{"status": "success", "message": "directory synced"})
}
