package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "draft"
	CampaignStatusActive CampaignStatus = "active"
	CampaignStatusPaused CampaignStatus = "paused"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

const (
	// DefaultMessageInterval spaces queued messages when nothing else is configured
	DefaultMessageInterval = 60 * time.Second

	// FallbackTemplate is used when a campaign has no message sequence
	FallbackTemplate = "Hello {{username}}!"
)

// Campaign represents an outreach campaign owned by a single user
type Campaign struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	UUID                   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	OwnerID                uuid.UUID      `gorm:"type:uuid;not null;index:idx_campaigns_owner_id" json:"owner_id"`
	Name                   string         `gorm:"type:varchar(255);not null" json:"name"`
	Description            *string        `gorm:"type:text" json:"description,omitempty"`
	Status                 CampaignStatus `gorm:"type:varchar(20);not null;default:'draft';index:idx_campaigns_status" json:"status"`
	WorkingHoursStart      int            `gorm:"not null;default:0" json:"working_hours_start"`
	WorkingHoursEnd        int            `gorm:"not null;default:24" json:"working_hours_end"`
	MessagesPerDay         int            `gorm:"not null;default:0" json:"messages_per_day"`
	MessageIntervalSeconds *int           `json:"message_interval_seconds,omitempty"`
	Timezone               string         `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	CreatedAt              time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt              *time.Time     `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusActive || newStatus == CampaignStatusPaused
	case CampaignStatusActive:
		return newStatus == CampaignStatusActive || newStatus == CampaignStatusPaused
	case CampaignStatusPaused:
		return newStatus == CampaignStatusActive || newStatus == CampaignStatusPaused
	default:
		return false
	}
}

// Location resolves the campaign timezone, falling back to UTC
func (c *Campaign) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AlwaysOpen reports whether the working window covers the whole day
func (c *Campaign) AlwaysOpen() bool {
	return c.WorkingHoursStart == c.WorkingHoursEnd ||
		(c.WorkingHoursStart <= 0 && c.WorkingHoursEnd >= 24)
}

// WindowDuration returns the length of the daily working window
func (c *Campaign) WindowDuration() time.Duration {
	if c.AlwaysOpen() {
		return 24 * time.Hour
	}
	hours := c.WorkingHoursEnd - c.WorkingHoursStart
	if hours < 0 {
		hours += 24
	}
	return time.Duration(hours) * time.Hour
}

// InWorkingHours reports whether t falls inside [start,end) in the campaign timezone.
// Windows that wrap midnight (e.g. 22..6) are supported.
func (c *Campaign) InWorkingHours(t time.Time) bool {
	if c.AlwaysOpen() {
		return true
	}
	hour := t.In(c.Location()).Hour()
	if c.WorkingHoursStart < c.WorkingHoursEnd {
		return hour >= c.WorkingHoursStart && hour < c.WorkingHoursEnd
	}
	return hour >= c.WorkingHoursStart || hour < c.WorkingHoursEnd
}

// NextWindowOpen returns the earliest instant at or after t when the window is open
func (c *Campaign) NextWindowOpen(t time.Time) time.Time {
	if c.InWorkingHours(t) {
		return t
	}
	local := t.In(c.Location())
	open := time.Date(local.Year(), local.Month(), local.Day(), c.WorkingHoursStart, 0, 0, 0, local.Location())
	if !open.After(local) {
		open = open.AddDate(0, 0, 1)
	}
	return open.UTC()
}

// NextDayWindowOpen returns the window opening on the calendar day after t
func (c *Campaign) NextDayWindowOpen(t time.Time) time.Time {
	local := t.In(c.Location())
	start := c.WorkingHoursStart
	if c.AlwaysOpen() {
		start = 0
	}
	next := time.Date(local.Year(), local.Month(), local.Day()+1, start, 0, 0, 0, local.Location())
	return next.UTC()
}

// MessageInterval returns the spacing between consecutive queued messages.
// An explicit interval wins; otherwise messages-per-day is spread across the window.
func (c *Campaign) MessageInterval() time.Duration {
	if c.MessageIntervalSeconds != nil && *c.MessageIntervalSeconds > 0 {
		return time.Duration(*c.MessageIntervalSeconds) * time.Second
	}
	if c.MessagesPerDay > 0 {
		interval := c.WindowDuration() / time.Duration(c.MessagesPerDay)
		if interval < time.Second {
			interval = time.Second
		}
		return interval.Truncate(time.Second)
	}
	return DefaultMessageInterval
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	OwnerID       *uuid.UUID      `json:"owner_id,omitempty"`
	Status        *CampaignStatus `json:"status,omitempty"`
	Name          *string         `json:"name,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}

// CampaignWithCount pairs a campaign with the number of targets linked to it
type CampaignWithCount struct {
	Campaign
	TargetsCount int64 `json:"targets_count"`
}
