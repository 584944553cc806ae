package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog is an append-only record of who did what: OAuth connects and
// disconnects, manual sync triggers, batch outcomes. Written by the HTTP layer.
type AuditLog struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrganizationID *uuid.UUID     `json:"organization_id,omitempty" gorm:"type:uuid;index"`
	ActorID        *string        `json:"actor_id,omitempty" gorm:"type:varchar(36);index"` // nil for scheduler-triggered actions
	Action         string         `json:"action" gorm:"type:varchar(100);not null;index"`
	TargetType     string         `json:"target_type" gorm:"type:varchar(50)"`
	TargetID       string         `json:"target_id" gorm:"type:varchar(100)"`
	Detail         datatypes.JSON `json:"detail,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
