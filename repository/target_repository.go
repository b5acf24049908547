package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TargetRepositoryImpl implements the TargetRepository interface
type TargetRepositoryImpl struct {
	*BaseRepository[models.Target, models.TargetFilter]
}

// NewTargetRepository creates a new target repository
func NewTargetRepository(db *gorm.DB) TargetRepository {
	return &TargetRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Target, models.TargetFilter](db),
	}
}

// ByUUID retrieves an owner's target by UUID
func (r *TargetRepositoryImpl) ByUUID(ctx context.Context, ownerID uuid.UUID, targetUUID uuid.UUID) (*models.Target, error) {
	db := r.getDB(ctx)

	var target models.Target
	err := db.Where("uuid = ? AND owner_id = ?", targetUUID, ownerID).First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find target by uuid: %w", err)
	}

	return &target, nil
}

// ListEligible returns the targets the expander may enqueue, in arrival order
func (r *TargetRepositoryImpl) ListEligible(ctx context.Context, campaignID uint, includeFailed bool, maxFailures int) ([]*models.Target, error) {
	db := r.getDB(ctx)

	query := db.Where("targets.campaign_id = ?", campaignID)
	if includeFailed {
		query = query.Where("(targets.status = ? OR (targets.status = ? AND targets.failure_count <= ?))",
			models.TargetStatusPending, models.TargetStatusFailed, maxFailures)
	} else {
		query = query.Where("targets.status = ?", models.TargetStatusPending)
	}

	query = query.Where(`NOT EXISTS (
		SELECT 1 FROM message_queue mq
		WHERE mq.target_id = targets.id AND mq.campaign_id = targets.campaign_id
		AND mq.status IN ?)`,
		[]models.MessageStatus{models.MessageStatusPending, models.MessageStatusProcessing})

	var targets []*models.Target
	if err := query.Order("targets.created_at ASC, targets.id ASC").Find(&targets).Error; err != nil {
		return nil, fmt.Errorf("failed to list eligible targets: %w", err)
	}
	return targets, nil
}

// ExistingUsernames returns the lower-cased usernames already stored for the owner and campaign
func (r *TargetRepositoryImpl) ExistingUsernames(ctx context.Context, ownerID uuid.UUID, campaignID *uint) (map[string]struct{}, error) {
	db := r.getDB(ctx).Model(&models.Target{}).Where("owner_id = ?", ownerID)
	if campaignID != nil {
		db = db.Where("campaign_id = ?", *campaignID)
	} else {
		db = db.Where("campaign_id IS NULL")
	}

	var usernames []string
	if err := db.Pluck("username", &usernames).Error; err != nil {
		return nil, fmt.Errorf("failed to load usernames: %w", err)
	}

	out := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		out[strings.ToLower(u)] = struct{}{}
	}
	return out, nil
}

// MarkMessaged records a successful delivery on the target
func (r *TargetRepositoryImpl) MarkMessaged(ctx context.Context, id uint, at time.Time) error {
	return r.getDB(ctx).Model(&models.Target{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          models.TargetStatusMessaged,
			"last_message_at": at,
			"error_message":   nil,
			"updated_at":      utils.UTCNow(),
		}).Error
}

// MarkFailed records a failed delivery; last_message_at is left untouched
func (r *TargetRepositoryImpl) MarkFailed(ctx context.Context, id uint, reason string) error {
	return r.getDB(ctx).Model(&models.Target{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        models.TargetStatusFailed,
			"error_message": reason,
			"failure_count": gorm.Expr("failure_count + 1"),
			"updated_at":    utils.UTCNow(),
		}).Error
}

// UpdateStatus sets the target status directly
func (r *TargetRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.TargetStatus) error {
	return r.getDB(ctx).Model(&models.Target{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
}

// ByFilter retrieves targets based on filter criteria
func (r *TargetRepositoryImpl) ByFilter(ctx context.Context, filter models.TargetFilter, orderBy string, limit, offset int) ([]*models.Target, error) {
	db := r.getDB(ctx)

	var targets []*models.Target
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&targets).Error; err != nil {
		return nil, err
	}
	return targets, nil
}

// Count returns the number of targets matching the filter
func (r *TargetRepositoryImpl) Count(ctx context.Context, filter models.TargetFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.getDB(ctx).Model(&models.Target{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any target matching the filter exists
func (r *TargetRepositoryImpl) Exists(ctx context.Context, filter models.TargetFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TargetRepositoryImpl) applyFilter(db *gorm.DB, filter models.TargetFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerID != nil {
		db = db.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.ListName != nil {
		db = db.Where("list_name = ?", *filter.ListName)
	}
	if filter.Username != nil {
		db = db.Where("LOWER(username) = LOWER(?)", *filter.Username)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	return db
}
