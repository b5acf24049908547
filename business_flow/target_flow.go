package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
)

// TargetFlow manages a campaign's recipients
type TargetFlow interface {
	ImportTargets(ctx context.Context, req *dto.ImportTargetsRequest, metadata *ClientMetadata) (*dto.ImportTargetsResponse, error)
	UpdateTargetStatus(ctx context.Context, req *dto.UpdateTargetStatusRequest) (*dto.TargetDTO, error)
}

// TargetFlowImpl implements TargetFlow
type TargetFlowImpl struct {
	campaignRepo repository.CampaignRepository
	targetRepo   repository.TargetRepository
	audit        auditRecorder
}

// NewTargetFlow creates a new target flow
func NewTargetFlow(campaignRepo repository.CampaignRepository, targetRepo repository.TargetRepository, auditRepo repository.AuditLogRepository) *TargetFlowImpl {
	return &TargetFlowImpl{
		campaignRepo: campaignRepo,
		targetRepo:   targetRepo,
		audit:        auditRecorder{repo: auditRepo},
	}
}

// ImportTargets normalizes usernames and stores the ones the campaign does not know yet.
// Duplicates inside the request and against stored targets are skipped case-insensitively.
func (f *TargetFlowImpl) ImportTargets(ctx context.Context, req *dto.ImportTargetsRequest, metadata *ClientMetadata) (*dto.ImportTargetsResponse, error) {
	campaign, err := loadCampaignByRaw(ctx, f.campaignRepo, req.OwnerID, req.CampaignUUID)
	if err != nil {
		return nil, err
	}

	existing, err := f.targetRepo.ExistingUsernames(ctx, req.OwnerID, &campaign.ID)
	if err != nil {
		return nil, storeError("Failed to load existing targets", err)
	}

	targets := make([]*models.Target, 0, len(req.Usernames))
	skipped := 0
	for _, raw := range req.Usernames {
		username := utils.NormalizeUsername(raw)
		key := utils.UsernameKey(username)
		if key == "" {
			skipped++
			continue
		}
		if _, dup := existing[key]; dup {
			skipped++
			continue
		}
		existing[key] = struct{}{}

		targets = append(targets, &models.Target{
			UUID:       uuid.New(),
			OwnerID:    req.OwnerID,
			Username:   username,
			CampaignID: &campaign.ID,
			ListName:   req.ListName,
			Status:     models.TargetStatusPending,
		})
	}
	if len(targets) == 0 && skipped == 0 {
		return nil, NewBusinessError(CodeValidation, "Target import failed", ErrNoUsernames)
	}

	if err := f.targetRepo.SaveBatch(ctx, targets); err != nil {
		return nil, storeError("Failed to save targets", err)
	}

	msg := fmt.Sprintf("Imported %d targets, skipped %d", len(targets), skipped)
	_ = f.audit.record(ctx, req.OwnerID, models.AuditActionTargetsImport, &campaign.UUID, msg, nil, metadata)

	return &dto.ImportTargetsResponse{Message: msg, Imported: len(targets), Skipped: skipped}, nil
}

// UpdateTargetStatus records a manual outcome such as a reply
func (f *TargetFlowImpl) UpdateTargetStatus(ctx context.Context, req *dto.UpdateTargetStatusRequest) (*dto.TargetDTO, error) {
	status := models.TargetStatus(req.Status)
	if !status.Valid() {
		return nil, NewBusinessError(CodeValidation, "Target validation failed", ErrInvalidTargetStatus)
	}

	targetUUID, err := uuid.Parse(req.TargetUUID)
	if err != nil {
		return nil, NewBusinessError(CodeNotFound, "Target not found", ErrTargetNotFound)
	}

	target, err := f.targetRepo.ByUUID(ctx, req.OwnerID, targetUUID)
	if err != nil {
		return nil, storeError("Failed to load target", err)
	}
	if target == nil {
		return nil, NewBusinessError(CodeNotFound, "Target not found", ErrTargetNotFound)
	}

	if err := f.targetRepo.UpdateStatus(ctx, target.ID, status); err != nil {
		return nil, storeError("Failed to update target", err)
	}
	target.Status = status

	out := ToTargetDTO(*target)
	return &out, nil
}
