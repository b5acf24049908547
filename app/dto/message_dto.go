package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ListMessagesRequest selects a page of a campaign's queue
type ListMessagesRequest struct {
	OwnerID      uuid.UUID `json:"-"`
	CampaignUUID string    `json:"-"`
	Status       *string   `json:"status,omitempty" validate:"omitempty,oneof=pending processing sent failed cancelled"`
	Page         int       `json:"page"`
	PageSize     int       `json:"page_size"`
}

// QueuedMessageDTO represents one queue row in responses
type QueuedMessageDTO struct {
	UUID            string          `json:"uuid"`
	TargetUsername  string          `json:"target_username"`
	MessageContent  string          `json:"message_content"`
	Status          string          `json:"status"`
	ScheduledAt     time.Time       `json:"scheduled_at"`
	SentAt          *time.Time      `json:"sent_at,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	WebhookResponse json.RawMessage `json:"webhook_response,omitempty"`
	Attempt         int             `json:"attempt"`
}

// ListMessagesResponse represents a page of queue rows
type ListMessagesResponse struct {
	Items    []QueuedMessageDTO `json:"items"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// ExportMessagesResponse carries a rendered workbook
type ExportMessagesResponse struct {
	Filename string
	Content  []byte
}
