package businessflow

import (
	"context"

	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PauseResult reports what a pause cancelled
type PauseResult struct {
	Campaign  *models.Campaign
	Cancelled int64
}

// CampaignController owns campaign lifecycle transitions
type CampaignController interface {
	Start(ctx context.Context, ownerID, campaignUUID uuid.UUID) (*StartResult, error)
	Pause(ctx context.Context, ownerID, campaignUUID uuid.UUID) (*PauseResult, error)
}

// CampaignControllerImpl implements CampaignController
type CampaignControllerImpl struct {
	expander     QueueExpander
	campaignRepo repository.CampaignRepository
	queueRepo    repository.QueuedMessageRepository
	runTx        TxRunner
	logger       zerolog.Logger
}

// NewCampaignController creates a new campaign controller
func NewCampaignController(
	expander QueueExpander,
	campaignRepo repository.CampaignRepository,
	queueRepo repository.QueuedMessageRepository,
	runTx TxRunner,
	logger zerolog.Logger,
) *CampaignControllerImpl {
	return &CampaignControllerImpl{
		expander:     expander,
		campaignRepo: campaignRepo,
		queueRepo:    queueRepo,
		runTx:        runTx,
		logger:       logger.With().Str("component", "campaign_controller").Logger(),
	}
}

// Start expands the campaign into the queue
func (c *CampaignControllerImpl) Start(ctx context.Context, ownerID, campaignUUID uuid.UUID) (*StartResult, error) {
	return c.expander.StartCampaign(ctx, ownerID, campaignUUID)
}

// Pause cancels every pending message of the campaign and marks it paused, atomically.
// Messages already processing are left to finish.
func (c *CampaignControllerImpl) Pause(ctx context.Context, ownerID, campaignUUID uuid.UUID) (*PauseResult, error) {
	campaign, err := loadCampaign(ctx, c.campaignRepo, ownerID, campaignUUID)
	if err != nil {
		return nil, err
	}

	var cancelled int64
	err = c.runTx(ctx, func(txCtx context.Context) error {
		n, err := c.queueRepo.CancelPending(txCtx, campaign.ID)
		if err != nil {
			return err
		}
		cancelled = n
		return c.campaignRepo.UpdateStatus(txCtx, campaign.ID, models.CampaignStatusPaused)
	})
	if err != nil {
		return nil, storeError("Failed to pause campaign", err)
	}

	campaign.Status = models.CampaignStatusPaused
	queueCancelledTotal.Add(float64(cancelled))
	c.logger.Info().Str("campaign", campaign.UUID.String()).Int64("cancelled", cancelled).Msg("campaign paused")

	return &PauseResult{Campaign: campaign, Cancelled: cancelled}, nil
}
