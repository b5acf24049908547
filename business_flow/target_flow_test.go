package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportTargets_DedupesCaseInsensitively(t *testing.T) {
	h := newHarness()
	flow := NewTargetFlow(h.campaigns, h.targets, h.audits)
	c := h.newCampaign()
	h.store.addTarget(c, "Existing", models.TargetStatusMessaged, t0)

	resp, err := flow.ImportTargets(context.Background(), &dto.ImportTargetsRequest{
		OwnerID:      c.OwnerID,
		CampaignUUID: c.UUID.String(),
		Usernames:    []string{"@alice", "ALICE", " bob ", "existing", "", "@"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Imported)
	assert.Equal(t, 4, resp.Skipped)
	assert.Equal(t, "Imported 2 targets, skipped 4", resp.Message)

	names := map[string]bool{}
	for _, tg := range h.store.targets {
		names[tg.Username] = true
	}
	assert.True(t, names["alice"])
	assert.True(t, names["bob"])

	require.Len(t, h.store.audits, 1)
	assert.Equal(t, models.AuditActionTargetsImport, h.store.audits[0].Action)
}

func TestImportTargets_UnknownCampaign(t *testing.T) {
	h := newHarness()
	flow := NewTargetFlow(h.campaigns, h.targets, h.audits)

	_, err := flow.ImportTargets(context.Background(), &dto.ImportTargetsRequest{
		OwnerID:      uuid.New(),
		CampaignUUID: uuid.NewString(),
		Usernames:    []string{"a"},
	}, nil)
	assert.True(t, IsNotFound(err))
}

func TestUpdateTargetStatus(t *testing.T) {
	h := newHarness()
	flow := NewTargetFlow(h.campaigns, h.targets, h.audits)
	c := h.newCampaign()
	target := h.store.addTarget(c, "a", models.TargetStatusMessaged, t0)

	got, err := flow.UpdateTargetStatus(context.Background(), &dto.UpdateTargetStatusRequest{
		OwnerID:    c.OwnerID,
		TargetUUID: target.UUID.String(),
		Status:     "replied",
	})
	require.NoError(t, err)
	assert.Equal(t, "replied", got.Status)
	assert.Equal(t, models.TargetStatusReplied, h.store.target(target.ID).Status)

	_, err = flow.UpdateTargetStatus(context.Background(), &dto.UpdateTargetStatusRequest{
		OwnerID:    c.OwnerID,
		TargetUUID: target.UUID.String(),
		Status:     "ghosted",
	})
	assert.ErrorIs(t, err, ErrInvalidTargetStatus)

	_, err = flow.UpdateTargetStatus(context.Background(), &dto.UpdateTargetStatusRequest{
		OwnerID:    uuid.New(),
		TargetUUID: target.UUID.String(),
		Status:     "replied",
	})
	assert.True(t, IsTargetNotFound(err))
}
