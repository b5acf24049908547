// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"errors"
	"strings"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ParseCampaignID parses an external campaign identifier
func ParseCampaignID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, ErrCampaignIDRequired
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidCampaignID
	}
	return id, nil
}

// loadCampaign resolves an owner's campaign by its external id.
// A campaign belonging to a different owner is reported as not found.
func loadCampaign(ctx context.Context, repo repository.CampaignRepository, ownerID, campaignUUID uuid.UUID) (*models.Campaign, error) {
	campaign, err := repo.ByUUID(ctx, ownerID, campaignUUID)
	if err != nil {
		return nil, storeError("Failed to load campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError(CodeNotFound, "Campaign not found", ErrCampaignNotFound)
	}
	return campaign, nil
}

// loadCampaignByRaw parses and resolves a campaign id taken from a request path
func loadCampaignByRaw(ctx context.Context, repo repository.CampaignRepository, ownerID uuid.UUID, raw string) (*models.Campaign, error) {
	campaignUUID, err := ParseCampaignID(raw)
	if err != nil {
		// a path id that does not parse can never match a stored campaign
		if errors.Is(err, ErrInvalidCampaignID) {
			return nil, NewBusinessError(CodeNotFound, "Campaign not found", ErrCampaignNotFound)
		}
		return nil, NewBusinessError(CodeInvalidAction, "Campaign id is required", err)
	}
	return loadCampaign(ctx, repo, ownerID, campaignUUID)
}

// normalizePagination applies defaults and validates page bounds
func normalizePagination(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}

// auditRecorder writes action_audit_log rows
type auditRecorder struct {
	repo repository.AuditLogRepository
}

func (a auditRecorder) record(ctx context.Context, ownerID uuid.UUID, action string, campaignUUID *uuid.UUID, description string, actionErr error, metadata *ClientMetadata) error {
	if a.repo == nil {
		return nil
	}

	audit := &models.AuditLog{
		OwnerID:      ownerID,
		Action:       action,
		CampaignUUID: campaignUUID,
		Description:  &description,
		Success:      utils.ToPtr(actionErr == nil),
		CreatedAt:    utils.UTCNow(),
	}
	if actionErr != nil {
		audit.ErrorCode = utils.ToPtr(ErrorCode(actionErr))
		audit.ErrorMessage = utils.ToPtr(actionErr.Error())
	}
	if metadata != nil {
		audit.IPAddress = &metadata.IPAddress
		audit.UserAgent = &metadata.UserAgent
		if metadata.RequestID != "" {
			audit.RequestID = &metadata.RequestID
		}
	}
	if audit.RequestID == nil {
		if requestID := utils.RequestIDFrom(ctx); requestID != "" {
			audit.RequestID = &requestID
		}
	}

	return a.repo.Save(ctx, audit)
}

// ToCampaignDTO converts a campaign model for responses
func ToCampaignDTO(c models.Campaign) dto.CampaignDTO {
	return dto.CampaignDTO{
		UUID:                   c.UUID.String(),
		Name:                   c.Name,
		Description:            c.Description,
		Status:                 c.Status.String(),
		WorkingHoursStart:      c.WorkingHoursStart,
		WorkingHoursEnd:        c.WorkingHoursEnd,
		MessagesPerDay:         c.MessagesPerDay,
		MessageIntervalSeconds: c.MessageIntervalSeconds,
		Timezone:               c.Timezone,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}
}

// ToSequenceDTO converts a sequence model for responses
func ToSequenceDTO(s models.Sequence) dto.SequenceDTO {
	return dto.SequenceDTO{
		UUID:         s.UUID.String(),
		Message:      s.Message,
		MessageOrder: s.MessageOrder,
		DelayHours:   s.DelayHours,
		Variant:      s.Variant,
		CreatedAt:    s.CreatedAt,
	}
}

// ToTargetDTO converts a target model for responses
func ToTargetDTO(t models.Target) dto.TargetDTO {
	return dto.TargetDTO{
		UUID:          t.UUID.String(),
		Username:      t.Username,
		ListName:      t.ListName,
		Status:        t.Status.String(),
		LastMessageAt: t.LastMessageAt,
		ErrorMessage:  t.ErrorMessage,
		FailureCount:  t.FailureCount,
	}
}

// ToQueuedMessageDTO converts a queue row for responses
func ToQueuedMessageDTO(m models.QueuedMessage) dto.QueuedMessageDTO {
	out := dto.QueuedMessageDTO{
		UUID:            m.UUID.String(),
		MessageContent:  m.MessageContent,
		Status:          m.Status.String(),
		ScheduledAt:     m.ScheduledAt,
		SentAt:          m.SentAt,
		ErrorMessage:    m.ErrorMessage,
		WebhookResponse: m.WebhookResponse,
		Attempt:         m.Attempt,
	}
	if m.Target != nil {
		out.TargetUsername = m.Target.Username
	}
	return out
}

// ToAuditLogDTO converts an audit row for responses
func ToAuditLogDTO(a models.AuditLog) dto.AuditLogDTO {
	return dto.AuditLogDTO{
		ID:           a.ID,
		Action:       a.Action,
		CampaignUUID: a.CampaignUUID,
		Description:  a.Description,
		RequestID:    a.RequestID,
		Success:      !a.IsFailed(),
		ErrorCode:    a.ErrorCode,
		ErrorMessage: a.ErrorMessage,
		CreatedAt:    a.CreatedAt,
	}
}

// ToStatsDTO converts aggregated counts for responses
func ToStatsDTO(s models.MessageStats) dto.CampaignStatsDTO {
	return dto.CampaignStatsDTO{
		Pending:    s.Pending,
		Processing: s.Processing,
		Sent:       s.Sent,
		Failed:     s.Failed,
		Cancelled:  s.Cancelled,
		Total:      s.Total,
	}
}

// ToDeliverySettingsDTO converts settings for responses; nil yields the defaults
func ToDeliverySettingsDTO(s *models.DeliverySettings) dto.DeliverySettingsDTO {
	if s == nil {
		return dto.DeliverySettingsDTO{MaxRetries: models.DefaultMaxRetries}
	}
	return dto.DeliverySettingsDTO{
		WebhookURL:   s.WebhookURL,
		HasSecret:    s.Secret() != "",
		SignPayloads: s.SignPayloads,
		AutoRetry:    s.AutoRetry,
		MaxRetries:   s.MaxRetries,
	}
}
