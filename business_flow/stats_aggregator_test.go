package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStats_CountsEveryStatus(t *testing.T) {
	h := newHarness()
	c := h.newCampaign()
	target := h.store.addTarget(c, "a", models.TargetStatusPending, t0)
	counts := map[models.MessageStatus]int{
		models.MessageStatusPending:    3,
		models.MessageStatusProcessing: 1,
		models.MessageStatusSent:       4,
		models.MessageStatusFailed:     2,
		models.MessageStatusCancelled:  5,
	}
	for status, n := range counts {
		for i := 0; i < n; i++ {
			h.store.addMessage(c, target, status, t0)
		}
	}

	first, err := h.stats.GetStats(context.Background(), c.OwnerID, c.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStats{Pending: 3, Processing: 1, Sent: 4, Failed: 2, Cancelled: 5, Total: 15}, *first)
	assert.Equal(t, first.Total, first.Pending+first.Processing+first.Sent+first.Failed+first.Cancelled)

	second, err := h.stats.GetStats(context.Background(), c.OwnerID, c.UUID)
	require.NoError(t, err)
	assert.Equal(t, *first, *second)
}

func TestGetStats_EmptyQueue(t *testing.T) {
	h := newHarness()
	c := h.newCampaign()

	stats, err := h.stats.GetStats(context.Background(), c.OwnerID, c.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStats{}, *stats)
}

func TestGetStats_ForeignCampaign(t *testing.T) {
	h := newHarness()
	c := h.newCampaign()

	_, err := h.stats.GetStats(context.Background(), uuid.New(), c.UUID)
	assert.True(t, IsCampaignNotFound(err))
}
