package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TargetStatus represents the denormalized delivery status of a target
type TargetStatus string

const (
	TargetStatusPending  TargetStatus = "pending"
	TargetStatusMessaged TargetStatus = "messaged"
	TargetStatusFailed   TargetStatus = "failed"
	TargetStatusReplied  TargetStatus = "replied"
)

// String returns the string representation of the status
func (s TargetStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s TargetStatus) Valid() bool {
	switch s {
	case TargetStatusPending, TargetStatusMessaged, TargetStatusFailed, TargetStatusReplied:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TargetStatus
func (s *TargetStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = TargetStatus(v)
	case []byte:
		*s = TargetStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TargetStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TargetStatus
func (s TargetStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid TargetStatus: %s", s)
	}
	return string(s), nil
}

// Target is a recipient identified by username
type Target struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uk_targets_uuid" json:"uuid"`
	OwnerID       uuid.UUID    `gorm:"type:uuid;not null;index:idx_targets_owner_id" json:"owner_id"`
	Username      string       `gorm:"type:varchar(255);not null" json:"username"`
	CampaignID    *uint        `gorm:"index:idx_targets_campaign_status" json:"campaign_id,omitempty"`
	ListName      *string      `gorm:"type:varchar(255)" json:"list_name,omitempty"`
	Status        TargetStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_targets_campaign_status" json:"status"`
	LastMessageAt *time.Time   `json:"last_message_at,omitempty"`
	ErrorMessage  *string      `gorm:"type:text" json:"error_message,omitempty"`
	FailureCount  int          `gorm:"not null;default:0" json:"failure_count"`
	CreatedAt     time.Time    `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     *time.Time   `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Target) TableName() string {
	return "targets"
}

// BeforeCreate is called before creating a new record
func (t *Target) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TargetStatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utils.UTCNow()
	}
	return nil
}

// TargetFilter represents filter criteria for targets
type TargetFilter struct {
	ID         *uint         `json:"id,omitempty"`
	UUID       *uuid.UUID    `json:"uuid,omitempty"`
	OwnerID    *uuid.UUID    `json:"owner_id,omitempty"`
	CampaignID *uint         `json:"campaign_id,omitempty"`
	ListName   *string       `json:"list_name,omitempty"`
	Username   *string       `json:"username,omitempty"`
	Status     *TargetStatus `json:"status,omitempty"`
}
