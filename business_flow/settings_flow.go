package businessflow

import (
	"context"
	"net/url"
	"strings"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/google/uuid"
)

// SettingsFlow reads and writes per-owner delivery settings
type SettingsFlow interface {
	GetSettings(ctx context.Context, ownerID uuid.UUID) (*dto.DeliverySettingsDTO, error)
	UpdateSettings(ctx context.Context, req *dto.UpdateDeliverySettingsRequest, metadata *ClientMetadata) (*dto.DeliverySettingsDTO, error)
}

// SettingsFlowImpl implements SettingsFlow
type SettingsFlowImpl struct {
	settingsRepo repository.DeliverySettingsRepository
	audit        auditRecorder
}

// NewSettingsFlow creates a new settings flow
func NewSettingsFlow(settingsRepo repository.DeliverySettingsRepository, auditRepo repository.AuditLogRepository) *SettingsFlowImpl {
	return &SettingsFlowImpl{
		settingsRepo: settingsRepo,
		audit:        auditRecorder{repo: auditRepo},
	}
}

// GetSettings returns the stored settings or the defaults
func (f *SettingsFlowImpl) GetSettings(ctx context.Context, ownerID uuid.UUID) (*dto.DeliverySettingsDTO, error) {
	settings, err := f.settingsRepo.ByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeError("Failed to load delivery settings", err)
	}
	out := ToDeliverySettingsDTO(settings)
	return &out, nil
}

// UpdateSettings merges the provided fields into the stored settings.
// An empty webhook url clears it and switches the owner back to simulated delivery.
func (f *SettingsFlowImpl) UpdateSettings(ctx context.Context, req *dto.UpdateDeliverySettingsRequest, metadata *ClientMetadata) (*dto.DeliverySettingsDTO, error) {
	settings, err := f.settingsRepo.ByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, storeError("Failed to load delivery settings", err)
	}
	if settings == nil {
		settings = &models.DeliverySettings{OwnerID: req.OwnerID, MaxRetries: models.DefaultMaxRetries}
	}

	if req.WebhookURL != nil {
		raw := strings.TrimSpace(*req.WebhookURL)
		if raw == "" {
			settings.WebhookURL = nil
		} else {
			if err := validateWebhookURL(raw); err != nil {
				return nil, NewBusinessError(CodeValidation, "Settings validation failed", err)
			}
			settings.WebhookURL = &raw
		}
	}
	if req.WebhookSecret != nil {
		if *req.WebhookSecret == "" {
			settings.WebhookSecret = nil
		} else {
			secret := *req.WebhookSecret
			settings.WebhookSecret = &secret
		}
	}
	if req.SignPayloads != nil {
		settings.SignPayloads = *req.SignPayloads
	}
	if req.AutoRetry != nil {
		settings.AutoRetry = *req.AutoRetry
	}
	if req.MaxRetries != nil {
		settings.MaxRetries = *req.MaxRetries
	}

	if err := f.settingsRepo.Upsert(ctx, settings); err != nil {
		return nil, storeError("Failed to save delivery settings", err)
	}
	_ = f.audit.record(ctx, req.OwnerID, models.AuditActionSettingsUpdate, nil, "Delivery settings updated", nil, metadata)

	out := ToDeliverySettingsDTO(settings)
	return &out, nil
}

func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidWebhookURL
	}
	return nil
}
