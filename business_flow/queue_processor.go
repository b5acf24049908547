package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/campaign-dispatcher/app/services"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	dispatcherSimulated = "simulated"
	dispatcherWebhook   = "webhook"

	deferReasonWorkingHours = "working_hours"
	deferReasonDailyLimit   = "daily_limit"
)

// DispatcherSource picks the delivery strategy for a webhook URL; an empty URL selects simulation
type DispatcherSource interface {
	For(url string) services.WebhookDispatcher
}

// ProcessResult reports what one ProcessOne call did
type ProcessResult struct {
	Processed   bool
	MessageUUID uuid.UUID
	Outcome     models.MessageStatus
	// Reason is the stored failure text when Outcome is failed
	Reason    string
	Simulated bool
	Deferred  int
	// Err wraps ErrDelivery for failed deliveries; it is informational and never returned
	Err error
}

// QueueProcessor advances at most one due message per call
type QueueProcessor interface {
	ProcessOne(ctx context.Context, ownerID uuid.UUID) (*ProcessResult, error)
}

// QueueProcessorImpl implements QueueProcessor
type QueueProcessorImpl struct {
	queueRepo    repository.QueuedMessageRepository
	targetRepo   repository.TargetRepository
	settingsRepo repository.DeliverySettingsRepository
	dispatchers  DispatcherSource
	budget       services.SendBudget
	publisher    services.OutcomePublisher
	clock        utils.Clock
	logger       zerolog.Logger
}

// NewQueueProcessor creates a new queue processor
func NewQueueProcessor(
	queueRepo repository.QueuedMessageRepository,
	targetRepo repository.TargetRepository,
	settingsRepo repository.DeliverySettingsRepository,
	dispatchers DispatcherSource,
	budget services.SendBudget,
	publisher services.OutcomePublisher,
	clock utils.Clock,
	logger zerolog.Logger,
) *QueueProcessorImpl {
	if publisher == nil {
		publisher = services.NoopOutcomePublisher{}
	}
	return &QueueProcessorImpl{
		queueRepo:    queueRepo,
		targetRepo:   targetRepo,
		settingsRepo: settingsRepo,
		dispatchers:  dispatchers,
		budget:       budget,
		publisher:    publisher,
		clock:        clock,
		logger:       logger.With().Str("component", "queue_processor").Logger(),
	}
}

// ProcessOne selects the owner's most overdue pending message, claims it and delivers it once.
// An empty queue, or a queue whose candidates were all lost to other callers, yields
// Processed=false with a nil error.
func (p *QueueProcessorImpl) ProcessOne(ctx context.Context, ownerID uuid.UUID) (*ProcessResult, error) {
	now := p.clock.Now()
	result := &ProcessResult{}

	var skip []uint
	claimFailures := 0
	for claimFailures < utils.MaxClaimAttempts {
		msg, err := p.queueRepo.NextDue(ctx, ownerID, now, skip)
		if err != nil {
			return nil, storeError("Failed to select due message", err)
		}
		if msg == nil {
			return result, nil
		}
		skip = append(skip, msg.ID)

		if deferred, err := p.deferIfThrottled(ctx, msg, now); err != nil || deferred {
			if err != nil {
				p.logger.Warn().Err(err).Uint("message_id", msg.ID).Msg("failed to defer message")
			} else {
				result.Deferred++
			}
			if result.Deferred >= utils.MaxDeferralsPerCall {
				return result, nil
			}
			continue
		}

		reserved := false
		if msg.Campaign != nil && p.budget != nil {
			ok, err := p.budget.Reserve(ctx, msg.Campaign, now)
			switch {
			case err != nil:
				// fail open: a broken counter must not stall the queue
				p.logger.Warn().Err(err).Str("campaign", msg.Campaign.UUID.String()).Msg("send budget unavailable")
			case !ok:
				if p.deferTo(ctx, msg, msg.Campaign.NextWindowOpen(msg.Campaign.NextDayWindowOpen(now)), deferReasonDailyLimit) {
					result.Deferred++
				}
				if result.Deferred >= utils.MaxDeferralsPerCall {
					return result, nil
				}
				continue
			default:
				reserved = true
			}
		}

		claimed, err := p.queueRepo.TryClaim(ctx, msg.ID, models.MessageStatusPending)
		if err != nil || !claimed {
			if err != nil {
				p.logger.Warn().Err(err).Uint("message_id", msg.ID).Msg("claim failed, treating as unavailable")
			} else {
				queueClaimConflictsTotal.Inc()
			}
			if reserved {
				p.releaseBudget(ctx, msg.Campaign, now)
			}
			claimFailures++
			continue
		}

		// outcome writes must finish even if the caller goes away
		return p.resolve(context.WithoutCancel(ctx), msg, reserved, now, result.Deferred)
	}

	return result, nil
}

// deferIfThrottled pushes a message outside its campaign's working window to the next opening
func (p *QueueProcessorImpl) deferIfThrottled(ctx context.Context, msg *models.QueuedMessage, now time.Time) (bool, error) {
	campaign := msg.Campaign
	if campaign == nil || campaign.InWorkingHours(now) {
		return false, nil
	}
	next := campaign.NextWindowOpen(now)
	ok, err := p.queueRepo.Reschedule(ctx, msg.ID, next)
	if err != nil {
		return false, err
	}
	if ok {
		queueDeferralsTotal.WithLabelValues(deferReasonWorkingHours).Inc()
		p.logger.Debug().Uint("message_id", msg.ID).Time("next", next).Msg("deferred outside working hours")
	}
	return ok, nil
}

func (p *QueueProcessorImpl) deferTo(ctx context.Context, msg *models.QueuedMessage, at time.Time, reason string) bool {
	ok, err := p.queueRepo.Reschedule(ctx, msg.ID, at)
	if err != nil {
		p.logger.Warn().Err(err).Uint("message_id", msg.ID).Str("reason", reason).Msg("failed to defer message")
		return false
	}
	if ok {
		queueDeferralsTotal.WithLabelValues(reason).Inc()
	}
	return ok
}

func (p *QueueProcessorImpl) releaseBudget(ctx context.Context, campaign *models.Campaign, now time.Time) {
	if err := p.budget.Release(ctx, campaign, now); err != nil {
		p.logger.Warn().Err(err).Str("campaign", campaign.UUID.String()).Msg("failed to release send budget")
	}
}

// resolve delivers a claimed message and drives it to sent or failed
func (p *QueueProcessorImpl) resolve(ctx context.Context, msg *models.QueuedMessage, reserved bool, claimedAt time.Time, deferred int) (*ProcessResult, error) {
	delivery, kind := p.deliver(ctx, msg)
	doneAt := p.clock.Now()

	result := &ProcessResult{
		Processed:   true,
		MessageUUID: msg.UUID,
		Simulated:   delivery.Simulated,
		Deferred:    deferred,
	}

	var writeErr error
	if delivery.Success {
		writeErr = p.recordSent(ctx, msg, doneAt, delivery.Body)
		if writeErr != nil && !errors.Is(writeErr, repository.ErrStatusConflict) {
			// the message must not stay in processing
			p.logger.Error().Err(writeErr).Uint("message_id", msg.ID).Msg("failed to record delivery")
			delivery = &services.DeliveryResult{
				HTTPStatus: delivery.HTTPStatus,
				Simulated:  delivery.Simulated,
				Error:      fmt.Sprintf("Failed to record delivery: %v", writeErr),
			}
			writeErr = nil
		}
	}

	if delivery.Success {
		result.Outcome = models.MessageStatusSent
	} else {
		result.Outcome = models.MessageStatusFailed
		result.Reason = delivery.Error
		result.Err = fmt.Errorf("%w: %s", ErrDelivery, delivery.Error)
		writeErr = p.recordFailed(ctx, msg, delivery.Error, delivery.Body)
	}

	if reserved && (!delivery.Success || writeErr != nil) {
		p.releaseBudget(ctx, msg.Campaign, claimedAt)
	}
	if writeErr != nil {
		return nil, storeError("Failed to record delivery outcome", writeErr)
	}

	queueProcessedTotal.WithLabelValues(result.Outcome.String(), kind).Inc()
	p.publish(ctx, msg, result, delivery, doneAt)

	event := p.logger.Info()
	if !delivery.Success {
		event = p.logger.Warn().Str("reason", delivery.Error)
	}
	event.Str("message", msg.UUID.String()).
		Str("outcome", result.Outcome.String()).
		Str("dispatcher", kind).
		Int("http_status", delivery.HTTPStatus).
		Msg("message processed")

	return result, nil
}

// deliver runs exactly one dispatch. Settings errors, dispatcher errors and panics all
// become failed results so the claimed message can still be resolved.
func (p *QueueProcessorImpl) deliver(ctx context.Context, msg *models.QueuedMessage) (result *services.DeliveryResult, kind string) {
	kind = dispatcherSimulated
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Uint("message_id", msg.ID).Msg("dispatcher panicked")
			result = &services.DeliveryResult{Success: false, Error: fmt.Sprintf("Unexpected delivery error: %v", r)}
		}
	}()

	if msg.Target == nil {
		return &services.DeliveryResult{Success: false, Error: "Target no longer exists"}, kind
	}

	settings, err := p.settingsRepo.ByOwner(ctx, msg.OwnerID)
	if err != nil {
		return &services.DeliveryResult{Success: false, Error: fmt.Sprintf("Failed to load delivery settings: %v", err)}, kind
	}

	endpoint := services.Endpoint{}
	if settings.HasWebhook() {
		kind = dispatcherWebhook
		endpoint = services.Endpoint{
			URL:    *settings.WebhookURL,
			Secret: settings.Secret(),
			Sign:   settings.SignPayloads,
		}
	}

	payload := services.DeliveryPayload{
		TargetUsername: msg.Target.Username,
		MessageContent: msg.MessageContent,
		MessageID:      msg.UUID.String(),
	}
	if msg.Campaign != nil {
		payload.CampaignName = msg.Campaign.Name
	}

	start := time.Now()
	result, err = p.dispatchers.For(endpoint.URL).Deliver(ctx, endpoint, payload)
	dispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		return &services.DeliveryResult{Success: false, Error: fmt.Sprintf("Unexpected delivery error: %v", err)}, kind
	}
	if result == nil {
		return &services.DeliveryResult{Success: false, Error: "Unexpected delivery error: empty result"}, kind
	}
	return result, kind
}

func (p *QueueProcessorImpl) recordSent(ctx context.Context, msg *models.QueuedMessage, at time.Time, body json.RawMessage) error {
	if err := p.queueRepo.MarkSent(ctx, msg.ID, at, body); err != nil {
		return err
	}
	if err := p.targetRepo.MarkMessaged(ctx, msg.TargetID, at); err != nil {
		p.logger.Error().Err(err).Uint("target_id", msg.TargetID).Msg("failed to update target after delivery")
	}
	return nil
}

func (p *QueueProcessorImpl) recordFailed(ctx context.Context, msg *models.QueuedMessage, reason string, body json.RawMessage) error {
	err := p.queueRepo.MarkFailed(ctx, msg.ID, reason, body)
	if err != nil && body != nil && !errors.Is(err, repository.ErrStatusConflict) {
		// the stored response is optional, the failed status is not
		p.logger.Warn().Err(err).Uint("message_id", msg.ID).Msg("retrying failure without webhook response")
		err = p.queueRepo.MarkFailed(ctx, msg.ID, reason, nil)
	}
	if err != nil {
		if !errors.Is(err, repository.ErrStatusConflict) {
			p.logger.Error().Err(err).Uint("message_id", msg.ID).Msg("message left in processing")
		}
		return err
	}
	if msg.Target == nil {
		return nil
	}
	if err := p.targetRepo.MarkFailed(ctx, msg.TargetID, reason); err != nil {
		p.logger.Error().Err(err).Uint("target_id", msg.TargetID).Msg("failed to update target after failure")
	}
	return nil
}

func (p *QueueProcessorImpl) publish(ctx context.Context, msg *models.QueuedMessage, result *ProcessResult, delivery *services.DeliveryResult, at time.Time) {
	event := services.OutcomeEvent{
		Type:        services.EventMessageSent,
		MessageUUID: msg.UUID,
		OwnerID:     msg.OwnerID,
		HTTPStatus:  delivery.HTTPStatus,
		Simulated:   delivery.Simulated,
		OccurredAt:  at,
	}
	if result.Outcome == models.MessageStatusFailed {
		event.Type = services.EventMessageFailed
		event.Error = result.Reason
	}
	if msg.Campaign != nil {
		event.CampaignUUID = msg.Campaign.UUID
	}
	if msg.Target != nil {
		event.Target = msg.Target.Username
	}

	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("message", msg.UUID.String()).Msg("failed to publish outcome event")
	}
}
