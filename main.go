package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"filesync-service/internal/audit"
	"filesync-service/internal/config"
	"filesync-service/internal/directory"
	"filesync-service/internal/email"
	"filesync-service/internal/events"
	"filesync-service/internal/fcm"
	"filesync-service/internal/notify"
	"filesync-service/internal/provider"
	"filesync-service/internal/scheduler"
	"filesync-service/internal/store"
	syncjob "filesync-service/internal/sync"
	"filesync-service/internal/transport/http"
	"filesync-service/pkg/models"
	"filesync-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

var startTime time.Time

func main() {
	startTime = time.Now()
	cfg := config.Load()
	log.Printf("🔧 Service expected token: %s******", maskSecret(cfg.ServiceExpectedToken))
	store.InitDB(cfg)

	storageConfig := utils.FileStorageConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		AccessKeySecret: cfg.R2AccessKeySecret,
		BucketName:      cfg.R2BucketName,
		PublicURL:       cfg.R2PublicURL,
	}
	storageClient, err := utils.NewFileStorageClient(storageConfig)
	if err != nil {
		log.Fatalf("❌ [R2] Failed to initialize client: %v", err)
	}
	log.Println("✅ [R2] File storage client initialized")

	st := store.New(store.GetDB())
	registry := provider.NewRegistry(cfg)
	broker := events.NewBroker()

	syncService := syncjob.NewSyncService(st, registry, storageClient, broker)
	log.Println("🔄 [SYNC] File sync service initialized")

	directoryService := directory.NewService(store.GetDB(), cfg.PortalServiceURL, cfg.ServiceExpectedToken)
	log.Printf("🔄 [Directory] Directory sync service initialized (PortalServiceURL: %s)", cfg.PortalServiceURL)

	// Warm the local user/org mirror so org resolution works before the
	// portal's first push.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := directoryService.Run(ctx); err != nil {
			log.Printf("⚠️ [Directory] Startup sync failed: %v", err)
		}
	}()

	emailSender := email.NewSender(cfg)

	// Initialize FCM client
	var fcmClient *fcm.FCMClient
	fcmCredsJSON := os.Getenv("FIREBASE_CREDENTIALS_JSON")
	if fcmCredsJSON != "" {
		client, err := fcm.NewFCMClient(context.Background(), []byte(fcmCredsJSON))
		if err != nil {
			log.Fatalf("❌ Failed to initialize FCM: %v", err)
		}
		fcmClient = client
		log.Println("✅ FCM client initialized")
	} else {
		log.Println("⚠️ FCM disabled (no FIREBASE_CREDENTIALS_JSON)")
	}

	alerts := notify.NewAlertService(st, emailSender, fcmClient, cfg.AlertsEnabled)
	auditRec := audit.NewRecorder(st)

	handler := http.NewHandler(cfg, st, syncService, directoryService, storageClient, broker, alerts, auditRec)
	log.Println("✅ [SERVICE] Sync services & handler initialized")

	app := fiber.New(fiber.Config{
		AppName:      "filesync-service",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())

	// CORS configuration:
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With,X-Device-ID,X-User-ID,X-User-Roles,X-Service-Token,Cache-Control",
		ExposeHeaders:    "Content-Type",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${ua}\n",
	}))

	// 1. User routes (via Gateway, secured)
	gatewayUserRoutes := app.Group("/v2", gatewayAuth())
	gatewayUserRoutes.Get("/integrations", handler.ListIntegrations)
	gatewayUserRoutes.Get("/integrations/:provider/connect", handler.ConnectIntegration)
	gatewayUserRoutes.Get("/integrations/:provider/callback", handler.OAuthCallback)
	gatewayUserRoutes.Delete("/integrations/:id", handler.DisconnectIntegration)
	gatewayUserRoutes.Get("/files", handler.ListFiles)
	gatewayUserRoutes.Post("/devices", handler.RegisterDevice)
	gatewayUserRoutes.Delete("/devices/:token", handler.UnregisterDevice)
	gatewayUserRoutes.Get("/events", handler.StreamEvents)
	log.Println("✅ [ROUTES] Registered user routes: /v2/integrations*, /v2/files, /v2/devices*, /v2/events")

	// 2. Admin routes (via Gateway + admin role)
	gatewayAdminRoutes := app.Group("/admin", gatewayAuth(), adminRoleAuth())
	gatewayAdminRoutes.Get("/sync-runs", handler.GetSyncRuns)
	gatewayAdminRoutes.Get("/integrations", handler.GetAllIntegrations)
	gatewayAdminRoutes.Get("/audit-logs", handler.GetAuditLogs)
	log.Println("✅ [ROUTES] Registered admin routes: /admin/*")

	// 3. Service-to-service routes
	serviceRoutes := app.Group("/svc/v1", serviceAuth(cfg))
	serviceRoutes.Post("/directory/sync", handler.TriggerDirectorySync)
	log.Println("✅ [ROUTES] Registered service routes: /svc/v1/directory/sync")

	// 4. Sync trigger: the one route with two audiences (portal backend with
	// the shared token, or an admin session via the gateway).
	app.Get("/svc/v1/sync/files", syncTriggerAuth(cfg), handler.TriggerFileSync)
	log.Println("✅ [ROUTES] Registered sync route: /svc/v1/sync/files")

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		uptime := time.Since(startTime).Round(time.Second)
		return c.JSON(fiber.Map{
			"status":         "ok",
			"service":        "filesync-service",
			"uptime":         uptime.String(),
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
			"portal_url":     cfg.PortalServiceURL,
			"storage_bucket": cfg.R2BucketName,
			"providers":      models.SupportedProviders,
			"fcm_enabled":    fcmClient != nil,
			"alerts_enabled": cfg.AlertsEnabled,
		})
	})
	log.Println("✅ [ROUTES] Registered /health")

	// Scheduled sync batches, enabled by SYNC_CRON.
	var cronRunner *scheduler.Runner
	if cfg.SyncCron != "" {
		cronRunner = scheduler.New(context.Background())
		_, err := cronRunner.Add(cfg.SyncCron, "file-sync", func(ctx context.Context) {
			batch, err := syncService.RunAll(ctx)
			if err != nil {
				log.Printf("❌ [Scheduler] File sync could not start: %v", err)
				return
			}
			for _, r := range batch.Results {
				if r.Status == syncjob.StatusError {
					alerts.SyncFailed(r.IntegrationID, r.Provider, r.Error)
				}
			}
			auditRec.Record(ctx, audit.Entry{
				Action:     audit.ActionSyncTriggered,
				TargetType: "sync_batch",
				Detail:     map[string]interface{}{"processed": batch.Processed, "source": "scheduler"},
			})
		})
		if err != nil {
			log.Fatalf("❌ [Scheduler] Invalid SYNC_CRON %q: %v", cfg.SyncCron, err)
		}
		cronRunner.Start()
		log.Printf("⏰ [Scheduler] File sync scheduled: %q", cfg.SyncCron)
	} else {
		log.Println("⚠️ Scheduled sync disabled (no SYNC_CRON)")
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("🛑 [SHUTDOWN] Graceful shutdown initiated...")
		if cronRunner != nil {
			cronRunner.Stop()
		}
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ [SHUTDOWN] Error: %v", err)
		}
	}()

	log.Printf("🚀 filesync-service starting...")
	log.Printf("   🔗 Listening on port: %s", cfg.ServerPort)
	log.Printf("   🌐 CORS allowed origins: %s", cfg.AllowedOrigins)
	log.Printf("   📦 R2 bucket: %s", cfg.R2BucketName)
	log.Printf("   🔄 Portal directory URL: %s", cfg.PortalServiceURL)
	log.Printf("   🛡️  Service token prefix: %s******", maskSecret(cfg.ServiceExpectedToken))
	log.Println("✅ Server ready.")

	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("❌ [STARTUP] Server failed to start: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var errMsg string
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		errMsg = e.Message
	} else {
		errMsg = err.Error()
	}
	log.Printf("🔥 [ERROR] [%d] %s %s → %v | IP=%s | UA=%s",
		code,
		c.Method(),
		c.Path(),
		errMsg,
		c.IP(),
		c.Get("User-Agent"),
	)
	return c.Status(code).JSON(fiber.Map{
		"error":      "something went wrong",
		"request_id": c.Get("X-Request-ID"),
	})
}

func serviceAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := serviceToken(c)
		if token != cfg.ServiceExpectedToken {
			log.Printf("[SERVICE-AUTH] ❌ REJECTED | IP=%s | Path=%s | Token=%s",
				c.IP(), c.Path(), maskSecret(token))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized: invalid or missing service token",
			})
		}
		log.Printf("[SERVICE-AUTH] ✅ ACCEPTED | IP=%s | Path=%s", c.IP(), c.Path())
		return c.Next()
	}
}

func gatewayAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		deviceID := c.Get("X-Device-ID")
		if userID == "" || deviceID == "" {
			log.Printf("[GATEWAY-AUTH] ❌ REJECTED | IP=%s | Path=%s | UserID=%q | DeviceID=%q",
				c.IP(), c.Path(), userID, deviceID)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized: missing user/device context from Gateway",
			})
		}
		return c.Next()
	}
}

func adminRoleAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userRolesHeader := c.Get("X-User-Roles")
		if userRolesHeader == "" {
			log.Printf("[ADMIN-AUTH] ❌ REJECTED (no roles) | Path=%s", c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: missing user roles from Gateway",
			})
		}
		if !hasAdminRole(userRolesHeader) {
			log.Printf("[ADMIN-AUTH] ❌ REJECTED (no admin) | Roles=%s | Path=%s",
				userRolesHeader, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: admin role required",
			})
		}
		return c.Next()
	}
}

// syncTriggerAuth admits service-to-service calls carrying the shared token,
// or portal users with the admin role.
func syncTriggerAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := serviceToken(c)
		if token != "" && token == cfg.ServiceExpectedToken {
			log.Printf("[SYNC-AUTH] ✅ ACCEPTED (service) | IP=%s", c.IP())
			return c.Next()
		}

		if c.Get("X-User-ID") != "" && hasAdminRole(c.Get("X-User-Roles")) {
			log.Printf("[SYNC-AUTH] ✅ ACCEPTED (admin %s) | IP=%s", c.Get("X-User-ID"), c.IP())
			return c.Next()
		}

		log.Printf("[SYNC-AUTH] ❌ REJECTED | IP=%s | Path=%s | Token=%s",
			c.IP(), c.Path(), maskSecret(token))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized: service token or admin session required",
		})
	}
}

// serviceToken reads the shared secret from X-Service-Token or a Bearer header.
func serviceToken(c *fiber.Ctx) string {
	token := c.Get("X-Service-Token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	return token
}

func hasAdminRole(rolesHeader string) bool {
	for _, role := range strings.Split(rolesHeader, ",") {
		if strings.ToLower(strings.TrimSpace(role)) == "admin" {
			return true
		}
	}
	return false
}

func maskSecret(secret string) string {
	if secret == "" {
		return "<empty>"
	}
	if len(secret) <= 6 {
		return secret
	}
	return secret[:6] + "..."
}
