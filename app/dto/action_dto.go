package dto

import "github.com/google/uuid"

// ActionRequest is the body of the action trigger endpoint
type ActionRequest struct {
	Action     string    `json:"action" validate:"required,max=64"`
	CampaignID *string   `json:"campaign_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	OwnerID    uuid.UUID `json:"-"`
}

// ActionResponse is the union of the per-action results
type ActionResponse struct {
	Action    string            `json:"action"`
	Message   string            `json:"message,omitempty"`
	Queued    *int              `json:"queued,omitempty"`
	Cancelled *int64            `json:"cancelled,omitempty"`
	Process   *ProcessResultDTO `json:"process,omitempty"`
	Stats     *CampaignStatsDTO `json:"stats,omitempty"`
}

// ProcessResultDTO reports what a single processing step did
type ProcessResultDTO struct {
	Processed bool   `json:"processed"`
	MessageID string `json:"message_id,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Error     string `json:"error,omitempty"`
}
