package dto

import "github.com/google/uuid"

// DeliverySettingsDTO represents the owner's webhook configuration. The secret is never echoed.
type DeliverySettingsDTO struct {
	WebhookURL   *string `json:"webhook_url,omitempty"`
	HasSecret    bool    `json:"has_secret"`
	SignPayloads bool    `json:"sign_payloads"`
	AutoRetry    bool    `json:"auto_retry"`
	MaxRetries   int     `json:"max_retries"`
}

// UpdateDeliverySettingsRequest replaces the fields that are present
type UpdateDeliverySettingsRequest struct {
	OwnerID       uuid.UUID `json:"-"`
	WebhookURL    *string   `json:"webhook_url,omitempty" validate:"omitempty,max=2048"`
	WebhookSecret *string   `json:"webhook_secret,omitempty" validate:"omitempty,max=255"`
	SignPayloads  *bool     `json:"sign_payloads,omitempty"`
	AutoRetry     *bool     `json:"auto_retry,omitempty"`
	MaxRetries    *int      `json:"max_retries,omitempty" validate:"omitempty,min=0,max=100"`
}
