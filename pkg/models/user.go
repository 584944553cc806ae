package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents the user data from the portal (stored locally by directory sync)
type User struct {
	ID             string         `json:"id" gorm:"primaryKey;type:varchar(36)"` // UUID as string
	Username       string         `json:"username" gorm:"type:varchar(100);not null;index"`
	Email          string         `json:"email" gorm:"type:varchar(255);not null;index"`
	OrganizationID *uuid.UUID     `json:"organization_id,omitempty" gorm:"type:uuid;index"`
	Roles          string         `json:"roles" gorm:"type:varchar(255)"` // comma-separated portal roles
	UpdatedAt      time.Time      `json:"updated_at"`
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// DeviceToken is an FCM push target registered by the portal frontend.
type DeviceToken struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Token     string    `json:"token" gorm:"type:varchar(500);not null;uniqueIndex"`
	Platform  string    `json:"platform" gorm:"type:varchar(20)"` // "web", "ios", "android"
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for DeviceToken
func (DeviceToken) TableName() string {
	return "device_tokens"
}
