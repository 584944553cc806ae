// internal/transport/http/admin.go
package http

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetSyncRuns lists recent sync runs, optionally filtered to one integration.
func (h *Handler) GetSyncRuns(c *fiber.Ctx) error {
	limit := getQueryInt(c, "limit", 50, 1, 200)

	var integrationID *uuid.UUID
	if idStr := c.Query("integration_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid integration_id"})
		}
		integrationID = &id
	}

	runs, err := h.store.ListSyncRuns(c.Context(), integrationID, limit)
	if err != nil {
		log.Printf("❌ [GetSyncRuns] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch sync runs"})
	}
	return c.JSON(fiber.Map{"runs": runs})
}

// GetAllIntegrations lists every integration across users, tokens redacted.
func (h *Handler) GetAllIntegrations(c *fiber.Ctx) error {
	limit := getQueryInt(c, "limit", 100, 1, 500)

	integrations, err := h.store.ListIntegrations(c.Context(), limit)
	if err != nil {
		log.Printf("❌ [GetAllIntegrations] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch integrations"})
	}
	return c.JSON(fiber.Map{"integrations": integrations})
}

// GetAuditLogs lists the most recent audit entries.
func (h *Handler) GetAuditLogs(c *fiber.Ctx) error {
	limit := getQueryInt(c, "limit", 100, 1, 500)

	entries, err := h.store.ListAuditLogs(c.Context(), limit)
	if err != nil {
		log.Printf("❌ [GetAuditLogs] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch audit logs"})
	}
	return c.JSON(fiber.Map{"audit_logs": entries})
}
