package dto

import (
	"time"

	"github.com/google/uuid"
)

// ImportTargetsRequest bulk-adds usernames to a campaign
type ImportTargetsRequest struct {
	OwnerID      uuid.UUID `json:"-"`
	CampaignUUID string    `json:"-"`
	Usernames    []string  `json:"usernames" validate:"required,min=1,max=10000,dive,required,max=255"`
	ListName     *string   `json:"list_name,omitempty" validate:"omitempty,max=255"`
}

// ImportTargetsResponse reports how many usernames were stored
type ImportTargetsResponse struct {
	Message  string `json:"message"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

// UpdateTargetStatusRequest records a manual outcome on a target
type UpdateTargetStatusRequest struct {
	OwnerID    uuid.UUID `json:"-"`
	TargetUUID string    `json:"-"`
	Status     string    `json:"status" validate:"required,oneof=pending messaged failed replied"`
}

// TargetDTO represents a target in responses
type TargetDTO struct {
	UUID          string     `json:"uuid"`
	Username      string     `json:"username"`
	ListName      *string    `json:"list_name,omitempty"`
	Status        string     `json:"status"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	FailureCount  int        `json:"failure_count"`
}
