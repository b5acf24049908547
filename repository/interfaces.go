// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, ownerID uuid.UUID, campaignUUID uuid.UUID) (*models.Campaign, error)
	ListWithTargetCounts(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.CampaignWithCount, error)
	UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error
}

// TargetRepository defines operations for targets
type TargetRepository interface {
	Repository[models.Target, models.TargetFilter]
	ByUUID(ctx context.Context, ownerID uuid.UUID, targetUUID uuid.UUID) (*models.Target, error)
	// ListEligible returns campaign targets that may be enqueued: pending ones, plus failed ones
	// with failure_count <= maxFailures when includeFailed is set. Targets that already own a
	// pending or processing queue entry are excluded.
	ListEligible(ctx context.Context, campaignID uint, includeFailed bool, maxFailures int) ([]*models.Target, error)
	ExistingUsernames(ctx context.Context, ownerID uuid.UUID, campaignID *uint) (map[string]struct{}, error)
	MarkMessaged(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	UpdateStatus(ctx context.Context, id uint, status models.TargetStatus) error
}

// SequenceRepository defines operations for message sequence templates
type SequenceRepository interface {
	Repository[models.Sequence, models.SequenceFilter]
	FirstByCampaign(ctx context.Context, campaignID uint) (*models.Sequence, error)
	ListByCampaign(ctx context.Context, campaignID uint) ([]*models.Sequence, error)
}

// QueuedMessageRepository defines operations for the message queue
type QueuedMessageRepository interface {
	Repository[models.QueuedMessage, models.QueuedMessageFilter]
	NextDue(ctx context.Context, ownerID uuid.UUID, now time.Time, skip []uint) (*models.QueuedMessage, error)
	// TryClaim atomically moves a message from expected to processing and reports whether
	// this caller won the transition.
	TryClaim(ctx context.Context, id uint, expected models.MessageStatus) (bool, error)
	Reschedule(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkSent(ctx context.Context, id uint, at time.Time, response json.RawMessage) error
	MarkFailed(ctx context.Context, id uint, reason string, response json.RawMessage) error
	FailStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error)
	CancelPending(ctx context.Context, campaignID uint) (int64, error)
	CountByStatus(ctx context.Context, campaignID uint) (map[models.MessageStatus]int64, error)
	CountSentSince(ctx context.Context, campaignID uint, since time.Time) (int64, error)
	OwnersWithDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListByCampaign(ctx context.Context, campaignID uint, status *models.MessageStatus, limit, offset int) ([]*models.QueuedMessage, error)
}

// DeliverySettingsRepository defines operations for per-owner delivery settings
type DeliverySettingsRepository interface {
	ByOwner(ctx context.Context, ownerID uuid.UUID) (*models.DeliverySettings, error)
	Upsert(ctx context.Context, settings *models.DeliverySettings) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
	ListFailedByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}
