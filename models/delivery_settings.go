package models

import (
	"strings"
	"time"

	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultMaxRetries applies when an owner never saved settings
const DefaultMaxRetries = 3

// DeliverySettings holds the per-owner webhook configuration
type DeliverySettings struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OwnerID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_delivery_settings_owner" json:"owner_id"`
	WebhookURL    *string    `gorm:"type:text" json:"webhook_url,omitempty"`
	WebhookSecret *string    `gorm:"type:text" json:"-"`
	SignPayloads  bool       `gorm:"not null;default:false" json:"sign_payloads"`
	AutoRetry     bool       `gorm:"not null;default:false" json:"auto_retry"`
	MaxRetries    int        `gorm:"not null;default:3" json:"max_retries"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (DeliverySettings) TableName() string {
	return "delivery_settings"
}

// BeforeCreate is called before creating a new record
func (s *DeliverySettings) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// HasWebhook reports whether a real delivery endpoint is configured
func (s *DeliverySettings) HasWebhook() bool {
	return s != nil && s.WebhookURL != nil && strings.TrimSpace(*s.WebhookURL) != ""
}

// Secret returns the shared secret or an empty string
func (s *DeliverySettings) Secret() string {
	if s == nil || s.WebhookSecret == nil {
		return ""
	}
	return *s.WebhookSecret
}
