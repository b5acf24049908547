package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// TxRunner runs fn inside one store transaction carried by the context
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// GormTxRunner runs transactions on db through repository.WithTransaction
func GormTxRunner(db *gorm.DB) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return repository.WithTransaction(ctx, db, fn)
	}
}

// StartResult reports what a campaign start enqueued
type StartResult struct {
	Campaign *models.Campaign
	Queued   int
}

// Message returns the human readable summary of the start
func (r *StartResult) Message() string {
	return fmt.Sprintf("Queued %d messages for processing", r.Queued)
}

// QueueExpander turns a campaign's eligible targets into scheduled queue entries
type QueueExpander interface {
	StartCampaign(ctx context.Context, ownerID, campaignUUID uuid.UUID) (*StartResult, error)
}

// QueueExpanderImpl implements QueueExpander
type QueueExpanderImpl struct {
	campaignRepo repository.CampaignRepository
	targetRepo   repository.TargetRepository
	sequenceRepo repository.SequenceRepository
	queueRepo    repository.QueuedMessageRepository
	settingsRepo repository.DeliverySettingsRepository
	runTx        TxRunner
	clock        utils.Clock
	logger       zerolog.Logger
}

// NewQueueExpander creates a new queue expander
func NewQueueExpander(
	campaignRepo repository.CampaignRepository,
	targetRepo repository.TargetRepository,
	sequenceRepo repository.SequenceRepository,
	queueRepo repository.QueuedMessageRepository,
	settingsRepo repository.DeliverySettingsRepository,
	runTx TxRunner,
	clock utils.Clock,
	logger zerolog.Logger,
) *QueueExpanderImpl {
	return &QueueExpanderImpl{
		campaignRepo: campaignRepo,
		targetRepo:   targetRepo,
		sequenceRepo: sequenceRepo,
		queueRepo:    queueRepo,
		settingsRepo: settingsRepo,
		runTx:        runTx,
		clock:        clock,
		logger:       logger.With().Str("component", "queue_expander").Logger(),
	}
}

// StartCampaign schedules one message per eligible target, spaced by the campaign interval.
// Entries are written in one transaction before the campaign is flipped to active; when no
// target is eligible the campaign status is left alone.
func (e *QueueExpanderImpl) StartCampaign(ctx context.Context, ownerID, campaignUUID uuid.UUID) (*StartResult, error) {
	campaign, err := loadCampaign(ctx, e.campaignRepo, ownerID, campaignUUID)
	if err != nil {
		return nil, err
	}

	settings, err := e.settingsRepo.ByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeError("Failed to load delivery settings", err)
	}
	includeFailed := settings != nil && settings.AutoRetry
	maxRetries := models.DefaultMaxRetries
	if settings != nil {
		maxRetries = settings.MaxRetries
	}

	targets, err := e.targetRepo.ListEligible(ctx, campaign.ID, includeFailed, maxRetries)
	if err != nil {
		return nil, storeError("Failed to load campaign targets", err)
	}
	if len(targets) == 0 {
		e.logger.Info().Str("campaign", campaign.UUID.String()).Msg("no eligible targets, campaign left unchanged")
		return &StartResult{Campaign: campaign, Queued: 0}, nil
	}

	template := models.FallbackTemplate
	first, err := e.sequenceRepo.FirstByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, storeError("Failed to load message sequence", err)
	}
	if first != nil && first.Message != "" {
		template = first.Message
	}

	messages := buildSchedule(campaign, targets, template, e.clock.Now(), campaign.MessageInterval())

	err = e.runTx(ctx, func(txCtx context.Context) error {
		return e.queueRepo.SaveBatch(txCtx, messages)
	})
	if err != nil {
		e.logger.Error().Err(err).Str("campaign", campaign.UUID.String()).Int("messages", len(messages)).Msg("queue batch write failed")
		return nil, NewBusinessError(CodeQueueWriteError, "Failed to queue campaign messages", fmt.Errorf("%w: %w", ErrQueueWrite, err))
	}
	queueEnqueuedTotal.Add(float64(len(messages)))

	// queue rows are committed; only now may a processor observe the campaign as active
	if campaign.Status != models.CampaignStatusActive {
		if err := e.campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusActive); err != nil {
			return nil, storeError("Failed to activate campaign", err)
		}
		campaign.Status = models.CampaignStatusActive
	}

	e.logger.Info().
		Str("campaign", campaign.UUID.String()).
		Int("queued", len(messages)).
		Dur("interval", campaign.MessageInterval()).
		Msg("campaign started")

	return &StartResult{Campaign: campaign, Queued: len(messages)}, nil
}

// buildSchedule renders one pending message per target at now + i*interval
func buildSchedule(campaign *models.Campaign, targets []*models.Target, template string, now time.Time, interval time.Duration) []*models.QueuedMessage {
	messages := make([]*models.QueuedMessage, 0, len(targets))
	for i, target := range targets {
		messages = append(messages, &models.QueuedMessage{
			UUID:           uuid.New(),
			OwnerID:        campaign.OwnerID,
			CampaignID:     campaign.ID,
			TargetID:       target.ID,
			MessageContent: utils.RenderTemplate(template, target.Username),
			Status:         models.MessageStatusPending,
			ScheduledAt:    now.Add(time.Duration(i) * interval),
			Attempt:        target.FailureCount + 1,
			CreatedAt:      now,
		})
	}
	return messages
}
