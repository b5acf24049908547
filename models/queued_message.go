package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageStatus represents the delivery state of a queued message
type MessageStatus string

const (
	MessageStatusPending    MessageStatus = "pending"
	MessageStatusProcessing MessageStatus = "processing"
	MessageStatusSent       MessageStatus = "sent"
	MessageStatusFailed     MessageStatus = "failed"
	MessageStatusCancelled  MessageStatus = "cancelled"
)

// AllMessageStatuses lists every message status in display order
var AllMessageStatuses = []MessageStatus{
	MessageStatusPending,
	MessageStatusProcessing,
	MessageStatusSent,
	MessageStatusFailed,
	MessageStatusCancelled,
}

// String returns the string representation of the status
func (s MessageStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusPending, MessageStatusProcessing, MessageStatusSent,
		MessageStatusFailed, MessageStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition may leave this status
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed || s == MessageStatusCancelled
}

// CanTransitionTo checks the queued message state machine
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	switch s {
	case MessageStatusPending:
		return next == MessageStatusProcessing || next == MessageStatusCancelled
	case MessageStatusProcessing:
		return next == MessageStatusSent || next == MessageStatusFailed
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for MessageStatus
func (s *MessageStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = MessageStatus(v)
	case []byte:
		*s = MessageStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MessageStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MessageStatus
func (s MessageStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid MessageStatus: %s", s)
	}
	return string(s), nil
}

// QueuedMessage is one scheduled delivery attempt for one target
type QueuedMessage struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_message_queue_uuid" json:"uuid"`
	OwnerID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_message_queue_due,priority:1" json:"owner_id"`
	CampaignID      uint            `gorm:"not null;index:idx_message_queue_campaign_status" json:"campaign_id"`
	TargetID        uint            `gorm:"not null;index:idx_message_queue_target" json:"target_id"`
	MessageContent  string          `gorm:"type:text;not null" json:"message_content"`
	Status          MessageStatus   `gorm:"type:varchar(20);not null;default:'pending';index:idx_message_queue_due,priority:2;index:idx_message_queue_campaign_status" json:"status"`
	ScheduledAt     time.Time       `gorm:"not null;index:idx_message_queue_due,priority:3" json:"scheduled_at"`
	SentAt          *time.Time      `json:"sent_at,omitempty"`
	ErrorMessage    *string         `gorm:"type:text" json:"error_message,omitempty"`
	WebhookResponse json.RawMessage `gorm:"type:jsonb" json:"webhook_response,omitempty"`
	Attempt         int             `gorm:"not null;default:1" json:"attempt"`
	CreatedAt       time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
	Target   *Target   `gorm:"foreignKey:TargetID;references:ID" json:"target,omitempty"`
}

// TableName returns the table name for the model
func (QueuedMessage) TableName() string {
	return "message_queue"
}

// BeforeCreate is called before creating a new record
func (m *QueuedMessage) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	if m.Status == "" {
		m.Status = MessageStatusPending
	}
	if m.Attempt == 0 {
		m.Attempt = 1
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.UTCNow()
	}
	return nil
}

// QueuedMessageFilter represents filter criteria for queued messages
type QueuedMessageFilter struct {
	ID              *uint          `json:"id,omitempty"`
	UUID            *uuid.UUID     `json:"uuid,omitempty"`
	OwnerID         *uuid.UUID     `json:"owner_id,omitempty"`
	CampaignID      *uint          `json:"campaign_id,omitempty"`
	TargetID        *uint          `json:"target_id,omitempty"`
	Status          *MessageStatus `json:"status,omitempty"`
	ScheduledBefore *time.Time     `json:"scheduled_before,omitempty"`
	SentAfter       *time.Time     `json:"sent_after,omitempty"`
}

// MessageStats holds per-status counts for one campaign
type MessageStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	Total      int64 `json:"total"`
}

// Add folds a status count into the stats
func (s *MessageStats) Add(status MessageStatus, count int64) {
	switch status {
	case MessageStatusPending:
		s.Pending += count
	case MessageStatusProcessing:
		s.Processing += count
	case MessageStatusSent:
		s.Sent += count
	case MessageStatusFailed:
		s.Failed += count
	case MessageStatusCancelled:
		s.Cancelled += count
	default:
		return
	}
	s.Total += count
}
