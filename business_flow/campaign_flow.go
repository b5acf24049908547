// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
)

// CampaignFlow handles campaign definition: campaigns and their message sequences
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CampaignDTO, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	GetCampaign(ctx context.Context, ownerID uuid.UUID, campaignUUID string) (*dto.CampaignDTO, error)
	AddSequence(ctx context.Context, ownerID uuid.UUID, campaignUUID string, req *dto.CreateSequenceRequest) (*dto.SequenceDTO, error)
	ListSequences(ctx context.Context, ownerID uuid.UUID, campaignUUID string) ([]dto.SequenceDTO, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	sequenceRepo repository.SequenceRepository
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(campaignRepo repository.CampaignRepository, sequenceRepo repository.SequenceRepository) *CampaignFlowImpl {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		sequenceRepo: sequenceRepo,
	}
}

// CreateCampaign stores a new draft campaign
func (f *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CampaignDTO, error) {
	if err := validateCreateCampaignRequest(req); err != nil {
		return nil, NewBusinessError(CodeValidation, "Campaign validation failed", err)
	}

	campaign := &models.Campaign{
		UUID:                   uuid.New(),
		OwnerID:                req.OwnerID,
		Name:                   strings.TrimSpace(req.Name),
		Description:            req.Description,
		Status:                 models.CampaignStatusDraft,
		WorkingHoursStart:      0,
		WorkingHoursEnd:        24,
		MessageIntervalSeconds: req.MessageIntervalSeconds,
		Timezone:               "UTC",
	}
	if req.WorkingHoursStart != nil {
		campaign.WorkingHoursStart = *req.WorkingHoursStart
	}
	if req.WorkingHoursEnd != nil {
		campaign.WorkingHoursEnd = *req.WorkingHoursEnd
	}
	if req.MessagesPerDay != nil {
		campaign.MessagesPerDay = *req.MessagesPerDay
	}
	if req.Timezone != nil && strings.TrimSpace(*req.Timezone) != "" {
		campaign.Timezone = strings.TrimSpace(*req.Timezone)
	}

	if err := f.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, storeError("Failed to create campaign", err)
	}

	out := ToCampaignDTO(*campaign)
	out.TargetsCount = utils.ToPtr(int64(0))
	return &out, nil
}

// ListCampaigns returns the owner's campaigns newest first with their target counts
func (f *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError(CodeValidation, "Invalid pagination", err)
	}

	rows, err := f.campaignRepo.ListWithTargetCounts(ctx, req.OwnerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, storeError("Failed to list campaigns", err)
	}

	items := make([]dto.CampaignDTO, 0, len(rows))
	for _, row := range rows {
		item := ToCampaignDTO(row.Campaign)
		item.TargetsCount = utils.ToPtr(row.TargetsCount)
		items = append(items, item)
	}
	return &dto.ListCampaignsResponse{Items: items, Page: page, PageSize: pageSize}, nil
}

// GetCampaign returns one campaign of the owner
func (f *CampaignFlowImpl) GetCampaign(ctx context.Context, ownerID uuid.UUID, campaignUUID string) (*dto.CampaignDTO, error) {
	campaign, err := loadCampaignByRaw(ctx, f.campaignRepo, ownerID, campaignUUID)
	if err != nil {
		return nil, err
	}
	out := ToCampaignDTO(*campaign)
	return &out, nil
}

// AddSequence appends a message template; without an explicit order it goes last
func (f *CampaignFlowImpl) AddSequence(ctx context.Context, ownerID uuid.UUID, campaignUUID string, req *dto.CreateSequenceRequest) (*dto.SequenceDTO, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, NewBusinessError(CodeValidation, "Sequence validation failed", ErrSequenceMessageMissing)
	}

	campaign, err := loadCampaignByRaw(ctx, f.campaignRepo, ownerID, campaignUUID)
	if err != nil {
		return nil, err
	}

	order := 1
	if req.MessageOrder != nil {
		order = *req.MessageOrder
	} else {
		existing, err := f.sequenceRepo.ListByCampaign(ctx, campaign.ID)
		if err != nil {
			return nil, storeError("Failed to load message sequence", err)
		}
		for _, s := range existing {
			if s.MessageOrder >= order {
				order = s.MessageOrder + 1
			}
		}
	}

	seq := &models.Sequence{
		UUID:         uuid.New(),
		CampaignID:   campaign.ID,
		Message:      req.Message,
		MessageOrder: order,
		DelayHours:   req.DelayHours,
		Variant:      req.Variant,
	}
	if err := f.sequenceRepo.Save(ctx, seq); err != nil {
		return nil, storeError("Failed to save message sequence", err)
	}

	out := ToSequenceDTO(*seq)
	return &out, nil
}

// ListSequences returns the campaign's templates in send order
func (f *CampaignFlowImpl) ListSequences(ctx context.Context, ownerID uuid.UUID, campaignUUID string) ([]dto.SequenceDTO, error) {
	campaign, err := loadCampaignByRaw(ctx, f.campaignRepo, ownerID, campaignUUID)
	if err != nil {
		return nil, err
	}

	sequences, err := f.sequenceRepo.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, storeError("Failed to load message sequence", err)
	}

	out := make([]dto.SequenceDTO, 0, len(sequences))
	for _, s := range sequences {
		out = append(out, ToSequenceDTO(*s))
	}
	return out, nil
}

func validateCreateCampaignRequest(req *dto.CreateCampaignRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return ErrCampaignNameRequired
	}
	for _, h := range []*int{req.WorkingHoursStart, req.WorkingHoursEnd} {
		if h != nil && (*h < 0 || *h > 24) {
			return ErrInvalidWorkingHours
		}
	}
	if req.MessagesPerDay != nil && *req.MessagesPerDay < 0 {
		return ErrInvalidMessagesPerDay
	}
	if req.Timezone != nil && strings.TrimSpace(*req.Timezone) != "" {
		if _, err := time.LoadLocation(strings.TrimSpace(*req.Timezone)); err != nil {
			return ErrInvalidTimezone
		}
	}
	return nil
}
