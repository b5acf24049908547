package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/campaign-dispatcher/models"
	"gorm.io/gorm"
)

// SequenceRepositoryImpl implements the SequenceRepository interface
type SequenceRepositoryImpl struct {
	*BaseRepository[models.Sequence, models.SequenceFilter]
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &SequenceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Sequence, models.SequenceFilter](db),
	}
}

// FirstByCampaign returns the template with the lowest message_order, or nil
func (r *SequenceRepositoryImpl) FirstByCampaign(ctx context.Context, campaignID uint) (*models.Sequence, error) {
	var seq models.Sequence
	err := r.getDB(ctx).
		Where("campaign_id = ?", campaignID).
		Order("message_order ASC, id ASC").
		First(&seq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find first sequence: %w", err)
	}
	return &seq, nil
}

// ListByCampaign returns all templates of a campaign in order
func (r *SequenceRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.Sequence, error) {
	filter := models.SequenceFilter{CampaignID: &campaignID}
	return r.ByFilter(ctx, filter, "message_order ASC, id ASC", 0, 0)
}

// ByFilter retrieves sequences based on filter criteria
func (r *SequenceRepositoryImpl) ByFilter(ctx context.Context, filter models.SequenceFilter, orderBy string, limit, offset int) ([]*models.Sequence, error) {
	var sequences []*models.Sequence
	query := r.applyFilter(r.getDB(ctx), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&sequences).Error; err != nil {
		return nil, err
	}
	return sequences, nil
}

// Count returns the number of sequences matching the filter
func (r *SequenceRepositoryImpl) Count(ctx context.Context, filter models.SequenceFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.getDB(ctx).Model(&models.Sequence{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any sequence matching the filter exists
func (r *SequenceRepositoryImpl) Exists(ctx context.Context, filter models.SequenceFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SequenceRepositoryImpl) applyFilter(db *gorm.DB, filter models.SequenceFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.MessageOrder != nil {
		db = db.Where("message_order = ?", *filter.MessageOrder)
	}
	return db
}
