// internal/transport/http/devices.go
package http

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"filesync-service/internal/audit"
	"filesync-service/pkg/models"
)

// RegisterDevice stores a push token for the caller so sync alerts reach
// their devices. Re-registering an existing token just moves it to the
// caller.
func (h *Handler) RegisterDevice(c *fiber.Ctx) error {
	var req struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token required"})
	}
	if req.Platform == "" {
		req.Platform = "web"
	}

	userID := requestUserID(c)
	token := &models.DeviceToken{
		UserID:   userID,
		Token:    req.Token,
		Platform: req.Platform,
	}
	if err := h.store.RegisterDeviceToken(c.Context(), token); err != nil {
		log.Printf("❌ [RegisterDevice] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to register device"})
	}

	h.audit.Record(c.Context(), audit.Entry{
		ActorID:    actorID(c),
		Action:     audit.ActionDeviceRegistered,
		TargetType: "device_token",
		TargetID:   token.ID.String(),
		Detail:     map[string]interface{}{"platform": req.Platform},
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success", "message": "device registered"})
}

// UnregisterDevice removes one of the caller's push tokens.
func (h *Handler) UnregisterDevice(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token required"})
	}

	userID := requestUserID(c)
	if err := h.store.DeleteDeviceToken(c.Context(), userID, token); err != nil {
		log.Printf("❌ [UnregisterDevice] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to unregister device"})
	}

	h.audit.Record(c.Context(), audit.Entry{
		ActorID:    actorID(c),
		Action:     audit.ActionDeviceUnregistered,
		TargetType: "device_token",
	})
	return c.JSON(fiber.Map{"status": "success", "message": "device unregistered"})
}
