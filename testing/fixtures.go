package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCampaign creates an always-open campaign in the given status
func (tf *TestFixtures) CreateTestCampaign(ownerID uuid.UUID, status models.CampaignStatus) (*models.Campaign, error) {
	campaign := &models.Campaign{
		OwnerID:           ownerID,
		Name:              fmt.Sprintf("campaign-%d", rand.Intn(1000000)),
		Status:            status,
		WorkingHoursStart: 0,
		WorkingHoursEnd:   24,
		Timezone:          "UTC",
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestTarget creates a target attached to the campaign
func (tf *TestFixtures) CreateTestTarget(campaign *models.Campaign, username string, status models.TargetStatus) (*models.Target, error) {
	target := &models.Target{
		OwnerID:    campaign.OwnerID,
		Username:   username,
		CampaignID: utils.ToPtr(campaign.ID),
		Status:     status,
	}
	if status == models.TargetStatusFailed {
		target.FailureCount = 1
		target.ErrorMessage = utils.ToPtr("webhook returned 500")
	}

	if err := tf.DB.DB.Create(target).Error; err != nil {
		return nil, fmt.Errorf("failed to create test target %s: %w", username, err)
	}
	return target, nil
}

// CreateTestSequence creates a sequence step for the campaign
func (tf *TestFixtures) CreateTestSequence(campaignID uint, order int, message string) (*models.Sequence, error) {
	seq := &models.Sequence{
		CampaignID:   campaignID,
		Message:      message,
		MessageOrder: order,
	}

	if err := tf.DB.DB.Create(seq).Error; err != nil {
		return nil, fmt.Errorf("failed to create test sequence: %w", err)
	}
	return seq, nil
}

// CreateTestMessage queues a message for the target
func (tf *TestFixtures) CreateTestMessage(target *models.Target, status models.MessageStatus, scheduledAt time.Time) (*models.QueuedMessage, error) {
	if target.CampaignID == nil {
		return nil, fmt.Errorf("target %d has no campaign", target.ID)
	}

	msg := &models.QueuedMessage{
		OwnerID:        target.OwnerID,
		CampaignID:     *target.CampaignID,
		TargetID:       target.ID,
		MessageContent: fmt.Sprintf("Hello %s!", target.Username),
		Status:         status,
		ScheduledAt:    scheduledAt.UTC(),
	}
	if status == models.MessageStatusSent {
		msg.SentAt = utils.ToPtr(scheduledAt.UTC())
	}

	if err := tf.DB.DB.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create test message: %w", err)
	}
	return msg, nil
}

// CreateTestSettings stores delivery settings for the owner
func (tf *TestFixtures) CreateTestSettings(ownerID uuid.UUID, webhookURL string, autoRetry bool) (*models.DeliverySettings, error) {
	settings := &models.DeliverySettings{
		OwnerID:    ownerID,
		AutoRetry:  autoRetry,
		MaxRetries: models.DefaultMaxRetries,
	}
	if webhookURL != "" {
		settings.WebhookURL = utils.ToPtr(webhookURL)
	}

	if err := tf.DB.DB.Create(settings).Error; err != nil {
		return nil, fmt.Errorf("failed to create test settings: %w", err)
	}
	return settings, nil
}

// CreateTestAuditLog records an action audit entry for the owner
func (tf *TestFixtures) CreateTestAuditLog(ownerID uuid.UUID, action string, success bool) (*models.AuditLog, error) {
	entry := &models.AuditLog{
		OwnerID:     ownerID,
		Action:      action,
		Description: utils.ToPtr("Test audit log entry"),
		Success:     utils.ToPtr(success),
		RequestID:   utils.ToPtr(uuid.NewString()),
		CreatedAt:   utils.UTCNow(),
	}
	if !success {
		entry.ErrorCode = utils.ToPtr("CAMPAIGN_NOT_FOUND")
	}

	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}
	return entry, nil
}
