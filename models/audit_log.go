// Package models contains domain entities for campaigns, targets and the message queue
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog records one trigger action invoked against the dispatcher
type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	OwnerID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_audit_owner_id" json:"owner_id"`
	Action       string          `gorm:"type:varchar(50);not null;index:idx_audit_action" json:"action"`
	CampaignUUID *uuid.UUID      `gorm:"type:uuid" json:"campaign_uuid,omitempty"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorCode    *string         `gorm:"type:varchar(64)" json:"error_code,omitempty"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "action_audit_log"
}

// Audit action constants
const (
	AuditActionStartCampaign  = "start_campaign"
	AuditActionPauseCampaign  = "pause_campaign"
	AuditActionProcessQueue   = "process_queue"
	AuditActionGetStats       = "get_stats"
	AuditActionInvalid        = "invalid_action"
	AuditActionSettingsUpdate = "settings_updated"
	AuditActionTargetsImport  = "targets_imported"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	OwnerID       *uuid.UUID
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
