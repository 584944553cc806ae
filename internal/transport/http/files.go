// internal/transport/http/files.go
package http

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"filesync-service/pkg/models"
)

type fileResponse struct {
	models.SyncedFile
	PublicURL string `json:"public_url,omitempty"`
}

// ListFiles returns the mirrored files for the caller's organization, newest
// first, with public URLs when the bucket exposes one.
func (h *Handler) ListFiles(c *fiber.Ctx) error {
	orgID, err := h.resolveUserOrg(c, requestUserID(c))
	if err != nil {
		log.Printf("❌ [ListFiles] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve organization"})
	}
	if orgID == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no organization for user"})
	}

	limit := getQueryInt(c, "limit", 50, 1, 200)
	files, err := h.store.ListSyncedFiles(c.Context(), *orgID, limit)
	if err != nil {
		log.Printf("❌ [ListFiles] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch files"})
	}

	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, fileResponse{
			SyncedFile: f,
			PublicURL:  h.storage.PublicURL(f.StorageKey),
		})
	}
	return c.JSON(fiber.Map{"files": out})
}
