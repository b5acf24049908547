package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStatusConflict is returned when a conditional status write matched no row
var ErrStatusConflict = errors.New("message status changed concurrently")

// StaleClaimReason is recorded on processing messages whose outcome was never written
const StaleClaimReason = "Delivery outcome was not recorded before the claim expired"

// QueuedMessageRepositoryImpl implements the QueuedMessageRepository interface
type QueuedMessageRepositoryImpl struct {
	*BaseRepository[models.QueuedMessage, models.QueuedMessageFilter]
}

// NewQueuedMessageRepository creates a new message queue repository
func NewQueuedMessageRepository(db *gorm.DB) QueuedMessageRepository {
	return &QueuedMessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.QueuedMessage, models.QueuedMessageFilter](db),
	}
}

// NextDue selects the oldest-scheduled pending message for the owner that is due at now.
// Rows whose IDs are in skip are ignored. Returns nil when the queue is empty.
func (r *QueuedMessageRepositoryImpl) NextDue(ctx context.Context, ownerID uuid.UUID, now time.Time, skip []uint) (*models.QueuedMessage, error) {
	query := r.getDB(ctx).
		Where("owner_id = ? AND status = ? AND scheduled_at <= ?", ownerID, models.MessageStatusPending, now)
	if len(skip) > 0 {
		query = query.Where("id NOT IN ?", skip)
	}

	var msg models.QueuedMessage
	err := query.Order("scheduled_at ASC, id ASC").
		Preload("Campaign").
		Preload("Target").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select next due message: %w", err)
	}
	return &msg, nil
}

// TryClaim moves the message to processing only if it is still in the expected status.
// Exactly one concurrent caller observes true.
func (r *QueuedMessageRepositoryImpl) TryClaim(ctx context.Context, id uint, expected models.MessageStatus) (bool, error) {
	result := r.getDB(ctx).Model(&models.QueuedMessage{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]any{
			"status":     models.MessageStatusProcessing,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim message %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Reschedule moves a still-pending message to a later time
func (r *QueuedMessageRepositoryImpl) Reschedule(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.getDB(ctx).Model(&models.QueuedMessage{}).
		Where("id = ? AND status = ?", id, models.MessageStatusPending).
		Updates(map[string]any{
			"scheduled_at": at,
			"updated_at":   utils.UTCNow(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to reschedule message %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkSent resolves a processing message as delivered
func (r *QueuedMessageRepositoryImpl) MarkSent(ctx context.Context, id uint, at time.Time, response json.RawMessage) error {
	return r.resolve(ctx, id, map[string]any{
		"status":           models.MessageStatusSent,
		"sent_at":          at,
		"error_message":    nil,
		"webhook_response": jsonOrNil(response),
		"updated_at":       utils.UTCNow(),
	})
}

// MarkFailed resolves a processing message as failed
func (r *QueuedMessageRepositoryImpl) MarkFailed(ctx context.Context, id uint, reason string, response json.RawMessage) error {
	return r.resolve(ctx, id, map[string]any{
		"status":           models.MessageStatusFailed,
		"error_message":    reason,
		"webhook_response": jsonOrNil(response),
		"updated_at":       utils.UTCNow(),
	})
}

func (r *QueuedMessageRepositoryImpl) resolve(ctx context.Context, id uint, updates map[string]any) error {
	result := r.getDB(ctx).Model(&models.QueuedMessage{}).
		Where("id = ? AND status = ?", id, models.MessageStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to resolve message %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// FailStaleProcessing fails messages left in processing since before olderThan,
// e.g. by a worker that died between claim and resolve
func (r *QueuedMessageRepositoryImpl) FailStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.getDB(ctx).Model(&models.QueuedMessage{}).
		Where("status = ? AND COALESCE(updated_at, created_at) < ?", models.MessageStatusProcessing, olderThan).
		Updates(map[string]any{
			"status":        models.MessageStatusFailed,
			"error_message": StaleClaimReason,
			"updated_at":    utils.UTCNow(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to fail stale messages: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CancelPending bulk-cancels the campaign's not-yet-claimed messages
func (r *QueuedMessageRepositoryImpl) CancelPending(ctx context.Context, campaignID uint) (int64, error) {
	result := r.getDB(ctx).Model(&models.QueuedMessage{}).
		Where("campaign_id = ? AND status = ?", campaignID, models.MessageStatusPending).
		Updates(map[string]any{
			"status":     models.MessageStatusCancelled,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cancel pending messages: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountByStatus groups the campaign's messages by status
func (r *QueuedMessageRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint) (map[models.MessageStatus]int64, error) {
	type row struct {
		Status models.MessageStatus
		Count  int64
	}
	var rows []row
	err := r.getDB(ctx).Model(&models.QueuedMessage{}).
		Select("status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count messages by status: %w", err)
	}

	out := make(map[models.MessageStatus]int64, len(rows))
	for _, rr := range rows {
		out[rr.Status] = rr.Count
	}
	return out, nil
}

// CountSentSince counts messages of the campaign delivered at or after since
func (r *QueuedMessageRepositoryImpl) CountSentSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.QueuedMessage{}).
		Where("campaign_id = ? AND status = ? AND sent_at >= ?", campaignID, models.MessageStatusSent, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count sent messages: %w", err)
	}
	return count, nil
}

// OwnersWithDue lists owners that have at least one due pending message
func (r *QueuedMessageRepositoryImpl) OwnersWithDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := r.getDB(ctx).Model(&models.QueuedMessage{}).
		Distinct("owner_id").
		Where("status = ? AND scheduled_at <= ?", models.MessageStatusPending, now)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var owners []uuid.UUID
	if err := query.Pluck("owner_id", &owners).Error; err != nil {
		return nil, fmt.Errorf("failed to list owners with due messages: %w", err)
	}
	return owners, nil
}

// ListByCampaign lists the campaign's queue newest-scheduled first
func (r *QueuedMessageRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, status *models.MessageStatus, limit, offset int) ([]*models.QueuedMessage, error) {
	filter := models.QueuedMessageFilter{CampaignID: &campaignID, Status: status}

	var messages []*models.QueuedMessage
	query := r.applyFilter(r.getDB(ctx), filter).
		Preload("Target").
		Order("scheduled_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaign messages: %w", err)
	}
	return messages, nil
}

// ByFilter retrieves messages based on filter criteria
func (r *QueuedMessageRepositoryImpl) ByFilter(ctx context.Context, filter models.QueuedMessageFilter, orderBy string, limit, offset int) ([]*models.QueuedMessage, error) {
	var messages []*models.QueuedMessage
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

	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// Count returns the number of messages matching the filter
func (r *QueuedMessageRepositoryImpl) Count(ctx context.Context, filter models.QueuedMessageFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.getDB(ctx).Model(&models.QueuedMessage{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any message matching the filter exists
func (r *QueuedMessageRepositoryImpl) Exists(ctx context.Context, filter models.QueuedMessageFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *QueuedMessageRepositoryImpl) applyFilter(db *gorm.DB, filter models.QueuedMessageFilter) *gorm.DB {
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
	if filter.TargetID != nil {
		db = db.Where("target_id = ?", *filter.TargetID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.ScheduledBefore != nil {
		db = db.Where("scheduled_at <= ?", *filter.ScheduledBefore)
	}
	if filter.SentAfter != nil {
		db = db.Where("sent_at >= ?", *filter.SentAfter)
	}
	return db
}

// jsonOrNil keeps empty payloads as SQL NULL instead of invalid jsonb
func jsonOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
