// internal/transport/http/events.go
package http

import (
	"bufio"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"filesync-service/internal/events"
)

// StreamEvents is the live activity feed: an SSE stream of sync run events
// for the caller's organization.
func (h *Handler) StreamEvents(c *fiber.Ctx) error {
	// Copied because the stream writer below outlives the handler.
	userID := strings.Clone(requestUserID(c))
	orgID, err := h.resolveUserOrg(c, userID)
	if err != nil {
		log.Printf("❌ [StreamEvents] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve organization"})
	}
	if orgID == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no organization for user"})
	}

	connStart := time.Now()
	log.Printf("🟢 [StreamEvents] Connection started for user=%s org=%s", userID, orgID)

	// Headers must be set before SetBodyStreamWriter.
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	clientChan := make(chan events.Event, 10)
	h.broker.Register(*orgID, clientChan)

	org := *orgID
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.broker.Unregister(org, clientChan)
			log.Printf("🔴 [StreamEvents] Connection closed for user=%s after %v", userID, time.Since(connStart))
		}()

		ready := fmt.Sprintf("event: ready\ndata: %s\n\n", toJSON(fiber.Map{
			"status": "ready",
			"org_id": org.String(),
			"at":     time.Now().Format(time.RFC3339),
		}))
		if _, err := w.WriteString(ready); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		done := c.Context().Done()
		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-done:
				return

			case event, ok := <-clientChan:
				if !ok {
					return
				}
				message := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, toJSON(event.Data))
				if _, err := w.WriteString(message); err != nil {
					log.Printf("⚠️ [StreamEvents] Write error for user=%s: %v", userID, err)
					return
				}
				if err := w.Flush(); err != nil {
					log.Printf("⚠️ [StreamEvents] Flush error for user=%s: %v", userID, err)
					return
				}

			case <-heartbeat.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
