package models

import (
	"time"

	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sequence is an ordered message template belonging to a campaign
type Sequence struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_sequences_uuid" json:"uuid"`
	CampaignID   uint      `gorm:"not null;index:idx_sequences_campaign_order" json:"campaign_id"`
	Message      string    `gorm:"type:text;not null" json:"message"`
	MessageOrder int       `gorm:"not null;default:1;index:idx_sequences_campaign_order" json:"message_order"`
	DelayHours   int       `gorm:"not null;default:0" json:"delay_hours"`
	Variant      *int      `json:"variant,omitempty"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (Sequence) TableName() string {
	return "sequences"
}

// BeforeCreate is called before creating a new record
func (s *Sequence) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// SequenceFilter represents filter criteria for sequences
type SequenceFilter struct {
	ID           *uint `json:"id,omitempty"`
	CampaignID   *uint `json:"campaign_id,omitempty"`
	MessageOrder *int  `json:"message_order,omitempty"`
}
