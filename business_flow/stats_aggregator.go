package businessflow

import (
	"context"

	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/google/uuid"
)

// StatsAggregator folds a campaign's queue into per-status counts
type StatsAggregator interface {
	GetStats(ctx context.Context, ownerID, campaignUUID uuid.UUID) (*models.MessageStats, error)
}

// StatsAggregatorImpl implements StatsAggregator
type StatsAggregatorImpl struct {
	campaignRepo repository.CampaignRepository
	queueRepo    repository.QueuedMessageRepository
}

// NewStatsAggregator creates a new stats aggregator
func NewStatsAggregator(campaignRepo repository.CampaignRepository, queueRepo repository.QueuedMessageRepository) *StatsAggregatorImpl {
	return &StatsAggregatorImpl{campaignRepo: campaignRepo, queueRepo: queueRepo}
}

// GetStats returns zero counts for a campaign with an empty queue
func (s *StatsAggregatorImpl) GetStats(ctx context.Context, ownerID, campaignUUID uuid.UUID) (*models.MessageStats, error) {
	campaign, err := loadCampaign(ctx, s.campaignRepo, ownerID, campaignUUID)
	if err != nil {
		return nil, err
	}

	counts, err := s.queueRepo.CountByStatus(ctx, campaign.ID)
	if err != nil {
		return nil, storeError("Failed to aggregate campaign stats", err)
	}

	stats := &models.MessageStats{}
	for _, status := range models.AllMessageStatuses {
		stats.Add(status, counts[status])
	}
	return stats, nil
}
