package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	OwnerID                uuid.UUID `json:"-"`
	Name                   string    `json:"name" validate:"required,min=1,max=255"`
	Description            *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	WorkingHoursStart      *int      `json:"working_hours_start,omitempty" validate:"omitempty,min=0,max=24"`
	WorkingHoursEnd        *int      `json:"working_hours_end,omitempty" validate:"omitempty,min=0,max=24"`
	MessagesPerDay         *int      `json:"messages_per_day,omitempty" validate:"omitempty,min=0"`
	MessageIntervalSeconds *int      `json:"message_interval_seconds,omitempty" validate:"omitempty,min=1,max=86400"`
	Timezone               *string   `json:"timezone,omitempty" validate:"omitempty,max=64"`
}

// CampaignDTO represents a campaign in responses
type CampaignDTO struct {
	UUID                   string     `json:"uuid"`
	Name                   string     `json:"name"`
	Description            *string    `json:"description,omitempty"`
	Status                 string     `json:"status"`
	WorkingHoursStart      int        `json:"working_hours_start"`
	WorkingHoursEnd        int        `json:"working_hours_end"`
	MessagesPerDay         int        `json:"messages_per_day"`
	MessageIntervalSeconds *int       `json:"message_interval_seconds,omitempty"`
	Timezone               string     `json:"timezone"`
	TargetsCount           *int64     `json:"targets_count,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              *time.Time `json:"updated_at,omitempty"`
}

// ListCampaignsRequest represents pagination for the campaign list
type ListCampaignsRequest struct {
	OwnerID  uuid.UUID `json:"-"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// ListCampaignsResponse represents a page of campaigns
type ListCampaignsResponse struct {
	Items    []CampaignDTO `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// StartCampaignResponse is returned after a campaign has been expanded into the queue
type StartCampaignResponse struct {
	Message string `json:"message"`
	Queued  int    `json:"queued"`
}

// PauseCampaignResponse is returned after a campaign has been paused
type PauseCampaignResponse struct {
	Message   string `json:"message"`
	Cancelled int64  `json:"cancelled"`
}

// CampaignStatsDTO holds message counts per status for one campaign
type CampaignStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	Total      int64 `json:"total"`
}

// CreateSequenceRequest adds a message template to a campaign
type CreateSequenceRequest struct {
	Message      string `json:"message" validate:"required,min=1,max=4096"`
	MessageOrder *int   `json:"message_order,omitempty" validate:"omitempty,min=1"`
	DelayHours   int    `json:"delay_hours" validate:"min=0"`
	Variant      *int   `json:"variant,omitempty"`
}

// SequenceDTO represents a message template in responses
type SequenceDTO struct {
	UUID         string    `json:"uuid"`
	Message      string    `json:"message"`
	MessageOrder int       `json:"message_order"`
	DelayHours   int       `json:"delay_hours"`
	Variant      *int      `json:"variant,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
