package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliverySettingsRepositoryImpl implements the DeliverySettingsRepository interface
type DeliverySettingsRepositoryImpl struct {
	db *gorm.DB
}

// NewDeliverySettingsRepository creates a new delivery settings repository
func NewDeliverySettingsRepository(db *gorm.DB) DeliverySettingsRepository {
	return &DeliverySettingsRepositoryImpl{db: db}
}

func (r *DeliverySettingsRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// ByOwner returns the owner's settings or nil when none were saved
func (r *DeliverySettingsRepositoryImpl) ByOwner(ctx context.Context, ownerID uuid.UUID) (*models.DeliverySettings, error) {
	var settings models.DeliverySettings
	err := r.getDB(ctx).Where("owner_id = ?", ownerID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load delivery settings: %w", err)
	}
	return &settings, nil
}

// Upsert inserts or replaces the owner's settings
func (r *DeliverySettingsRepositoryImpl) Upsert(ctx context.Context, settings *models.DeliverySettings) error {
	now := utils.UTCNow()
	settings.UpdatedAt = &now

	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"webhook_url", "webhook_secret", "sign_payloads", "auto_retry", "max_retries", "updated_at",
		}),
	}).Create(settings).Error
	if err != nil {
		return fmt.Errorf("failed to upsert delivery settings: %w", err)
	}
	return nil
}
