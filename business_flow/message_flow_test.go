package businessflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestListMessages_FiltersByStatus(t *testing.T) {
	h := newHarness()
	flow := NewMessageFlow(h.campaigns, h.queue)
	c := h.newCampaign()
	target := h.store.addTarget(c, "alice", models.TargetStatusPending, t0)
	h.store.addMessage(c, target, models.MessageStatusPending, t0)
	h.store.addMessage(c, target, models.MessageStatusSent, t0.Add(-time.Hour))
	h.store.addMessage(c, target, models.MessageStatusSent, t0.Add(-2*time.Hour))

	resp, err := flow.ListMessages(context.Background(), &dto.ListMessagesRequest{
		OwnerID:      c.OwnerID,
		CampaignUUID: c.UUID.String(),
		Status:       utils.ToPtr("sent"),
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	for _, m := range resp.Items {
		assert.Equal(t, "sent", m.Status)
		assert.Equal(t, "alice", m.TargetUsername)
	}

	_, err = flow.ListMessages(context.Background(), &dto.ListMessagesRequest{
		OwnerID:      c.OwnerID,
		CampaignUUID: c.UUID.String(),
		Status:       utils.ToPtr("lost"),
	})
	assert.ErrorIs(t, err, ErrInvalidMessageStatus)
}

func TestExportMessages_WritesWorkbook(t *testing.T) {
	h := newHarness()
	flow := NewMessageFlow(h.campaigns, h.queue)
	c := h.newCampaign()
	target := h.store.addTarget(c, "bob", models.TargetStatusPending, t0)
	msg := h.store.addMessage(c, target, models.MessageStatusPending, t0)

	resp, err := flow.ExportMessages(context.Background(), c.OwnerID, c.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, "campaign_"+c.UUID.String()+"_messages.xlsx", resp.Filename)

	xl, err := excelize.OpenReader(bytes.NewReader(resp.Content))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("messages")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "uuid", rows[0][0])
	assert.Equal(t, msg.UUID.String(), rows[1][0])
	assert.Equal(t, "bob", rows[1][1])
	assert.Equal(t, "pending", rows[1][2])
}
