package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a portal tenant, mirrored locally by directory sync.
// IDs are assigned by the portal, not generated here. StoragePrefix, when set,
// overrides the default object-key prefix for the organization's synced files.
type Organization struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name           string    `json:"name" gorm:"type:varchar(255);not null"`
	StorageEnabled bool      `json:"storage_enabled" gorm:"not null;default:true"`
	StoragePrefix  *string   `json:"storage_prefix,omitempty" gorm:"type:varchar(255)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for Organization
func (Organization) TableName() string {
	return "organizations"
}
