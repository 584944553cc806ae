// internal/transport/http/handlers.go
package http

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"filesync-service/internal/audit"
	"filesync-service/internal/config"
	"filesync-service/internal/directory"
	"filesync-service/internal/events"
	"filesync-service/internal/notify"
	"filesync-service/internal/store"
	syncjob "filesync-service/internal/sync"
	"filesync-service/pkg/models"
	"filesync-service/utils"
)

// SyncRunner triggers one sync batch.
type SyncRunner interface {
	RunAll(ctx context.Context) (*syncjob.BatchResult, error)
}

type Handler struct {
	cfg       *config.Config
	store     store.Store
	syncer    SyncRunner
	directory *directory.Service
	storage   *utils.FileStorageClient
	broker    *events.Broker
	alerts    *notify.AlertService
	audit     *audit.Recorder
	oauth     *oauthFlow
}

func NewHandler(
	cfg *config.Config,
	st store.Store,
	syncer SyncRunner,
	dir *directory.Service,
	storage *utils.FileStorageClient,
	broker *events.Broker,
	alerts *notify.AlertService,
	auditRec *audit.Recorder,
) *Handler {
	return &Handler{
		cfg:       cfg,
		store:     st,
		syncer:    syncer,
		directory: dir,
		storage:   storage,
		broker:    broker,
		alerts:    alerts,
		audit:     auditRec,
		oauth:     newOAuthFlow(cfg),
	}
}

func toJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("⚠️ toJSON marshal error: %v", err)
		return "{}"
	}
	return string(b)
}

// requestUserID reads the gateway-injected user id. Gateway-auth routes
// guarantee it is present.
func requestUserID(c *fiber.Ctx) string {
	return c.Get("X-User-ID")
}

// actorID returns the acting user for audit rows, nil for service calls.
func actorID(c *fiber.Ctx) *string {
	id := c.Get("X-User-ID")
	if id == "" {
		return nil
	}
	return &id
}

func parseProviderParam(c *fiber.Ctx) (models.Provider, bool) {
	p := models.Provider(c.Params("provider"))
	return p, p.Valid()
}

// resolveUserOrg maps the request user to their organization.
func (h *Handler) resolveUserOrg(c *fiber.Ctx, userID string) (*uuid.UUID, error) {
	user, err := h.store.GetUser(c.Context(), userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return user.OrganizationID, nil
}

// Helper
func getQueryInt(c *fiber.Ctx, key string, def, min, max int) int {
	s := c.Query(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
