package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_DefaultsWhenMissing(t *testing.T) {
	h := newHarness()
	flow := NewSettingsFlow(h.settings, h.audits)

	got, err := flow.GetSettings(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got.WebhookURL)
	assert.False(t, got.HasSecret)
	assert.Equal(t, models.DefaultMaxRetries, got.MaxRetries)
}

func TestSettings_UpdateMergesFields(t *testing.T) {
	h := newHarness()
	flow := NewSettingsFlow(h.settings, h.audits)
	owner := uuid.New()
	ctx := context.Background()

	got, err := flow.UpdateSettings(ctx, &dto.UpdateDeliverySettingsRequest{
		OwnerID:       owner,
		WebhookURL:    utils.ToPtr("https://hooks.example.com/deliver"),
		WebhookSecret: utils.ToPtr("s3cret"),
		AutoRetry:     utils.ToPtr(true),
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, got.WebhookURL)
	assert.True(t, got.HasSecret)
	assert.True(t, got.AutoRetry)
	assert.Equal(t, models.DefaultMaxRetries, got.MaxRetries)

	got, err = flow.UpdateSettings(ctx, &dto.UpdateDeliverySettingsRequest{
		OwnerID:    owner,
		MaxRetries: utils.ToPtr(5),
	}, nil)
	require.NoError(t, err)
	assert.True(t, got.HasSecret)
	assert.True(t, got.AutoRetry)
	assert.Equal(t, 5, got.MaxRetries)

	// an empty url switches back to simulated delivery
	got, err = flow.UpdateSettings(ctx, &dto.UpdateDeliverySettingsRequest{OwnerID: owner, WebhookURL: utils.ToPtr("")}, nil)
	require.NoError(t, err)
	assert.Nil(t, got.WebhookURL)
	assert.False(t, h.store.settings[owner].HasWebhook())

	assert.Len(t, h.store.audits, 3)
}

func TestSettings_RejectsBadWebhookURL(t *testing.T) {
	h := newHarness()
	flow := NewSettingsFlow(h.settings, h.audits)

	for _, raw := range []string{"ftp://example.com", "example.com/hook", "http://"} {
		_, err := flow.UpdateSettings(context.Background(), &dto.UpdateDeliverySettingsRequest{
			OwnerID:    uuid.New(),
			WebhookURL: utils.ToPtr(raw),
		}, nil)
		assert.ErrorIs(t, err, ErrInvalidWebhookURL, raw)
	}
	assert.Empty(t, h.store.settings)
}
