// pkg/models/sync_config.go
package models

// Watermark keys stored in sync_configs.
const (
	SyncConfigDirectoryWatermark = "last_directory_sync_at"
)

// SyncConfig stores synchronization metadata as key/value rows
type SyncConfig struct {
	Key   string `json:"key" gorm:"primaryKey;type:varchar(255)"`
	Value string `json:"value" gorm:"type:text"`
}

// TableName specifies the table name for SyncConfig
func (SyncConfig) TableName() string {
	return "sync_configs"
}
