// internal/store/db.go
package store

import (
	"fmt"
	"log"

	"filesync-service/internal/config"
	"filesync-service/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func InitDB(cfg *config.Config) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName, cfg.DBSSLMode,
	)

	var err error
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}

	// Auto-migrate (safe in dev; use migrations in prod)
	err = db.AutoMigrate(
		&models.SyncConfig{},
		&models.Organization{},
		&models.User{},
		&models.DeviceToken{},
		&models.Integration{},
		&models.SyncCursor{},
		&models.SyncLease{},
		&models.SyncRun{},
		&models.SyncedFile{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("❌ Failed to migrate: %v", err)
	}

	log.Println("✅ FileSync DB connected & migrated")
}

func GetDB() *gorm.DB {
	return db
}
