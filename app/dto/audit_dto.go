package dto

import (
	"time"

	"github.com/google/uuid"
)

// ListAuditLogsRequest selects a page of the caller's action history
type ListAuditLogsRequest struct {
	OwnerID    uuid.UUID `json:"-"`
	FailedOnly bool      `json:"failed_only"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}

// AuditLogDTO represents one recorded action
type AuditLogDTO struct {
	ID           uint       `json:"id"`
	Action       string     `json:"action"`
	CampaignUUID *uuid.UUID `json:"campaign_uuid,omitempty"`
	Description  *string    `json:"description,omitempty"`
	RequestID    *string    `json:"request_id,omitempty"`
	Success      bool       `json:"success"`
	ErrorCode    *string    `json:"error_code,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ListAuditLogsResponse represents a page of recorded actions
type ListAuditLogsResponse struct {
	Items    []AuditLogDTO `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}
