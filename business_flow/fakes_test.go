package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/campaign-dispatcher/app/services"
	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type transition struct {
	ID   uint
	From models.MessageStatus
	To   models.MessageStatus
}

// memStore is an in-memory stand-in for the relational store shared by all fake repositories
type memStore struct {
	mu sync.Mutex

	nextID    uint
	campaigns map[uint]*models.Campaign
	targets   map[uint]*models.Target
	sequences map[uint]*models.Sequence
	messages  map[uint]*models.QueuedMessage
	settings  map[uuid.UUID]*models.DeliverySettings
	audits    []*models.AuditLog

	transitions []transition

	// failure injection
	saveBatchErr   error
	claimErr       error
	settingsErr    error
	responseErr    error
	nextDueHook    func()
	campaignStatus []models.CampaignStatus
}

func newMemStore() *memStore {
	return &memStore{
		campaigns: map[uint]*models.Campaign{},
		targets:   map[uint]*models.Target{},
		sequences: map[uint]*models.Sequence{},
		messages:  map[uint]*models.QueuedMessage{},
		settings:  map[uuid.UUID]*models.DeliverySettings{},
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *memStore) setStatus(m *models.QueuedMessage, to models.MessageStatus) {
	s.transitions = append(s.transitions, transition{ID: m.ID, From: m.Status, To: to})
	m.Status = to
}

// seeding helpers

func (s *memStore) addCampaign(c *models.Campaign) *models.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.WorkingHoursEnd == 0 && c.WorkingHoursStart == 0 {
		c.WorkingHoursEnd = 24
	}
	s.campaigns[c.ID] = c
	return c
}

func (s *memStore) addTarget(c *models.Campaign, username string, status models.TargetStatus, createdAt time.Time) *models.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.Target{
		ID:         s.id(),
		UUID:       uuid.New(),
		OwnerID:    c.OwnerID,
		Username:   username,
		CampaignID: &c.ID,
		Status:     status,
		CreatedAt:  createdAt,
	}
	s.targets[t.ID] = t
	return t
}

func (s *memStore) addMessage(c *models.Campaign, t *models.Target, status models.MessageStatus, scheduledAt time.Time) *models.QueuedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &models.QueuedMessage{
		ID:             s.id(),
		UUID:           uuid.New(),
		OwnerID:        c.OwnerID,
		CampaignID:     c.ID,
		TargetID:       t.ID,
		MessageContent: "Hi " + t.Username,
		Status:         status,
		ScheduledAt:    scheduledAt,
		Attempt:        1,
	}
	s.messages[m.ID] = m
	return m
}

func (s *memStore) message(id uint) models.QueuedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.messages[id]
}

func (s *memStore) target(id uint) models.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.targets[id]
}

func (s *memStore) campaign(id uint) models.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.campaigns[id]
}

func (s *memStore) messagesOf(campaignID uint) []models.QueuedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueuedMessage
	for _, m := range s.messages {
		if m.CampaignID == campaignID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func passthroughTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// --- campaigns ---

type fakeCampaignRepo struct{ s *memStore }

func (r fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.campaigns[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r fakeCampaignRepo) ByFilter(ctx context.Context, f models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.s.campaigns {
		if f.OwnerID != nil && c.OwnerID != *f.OwnerID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r fakeCampaignRepo) Save(ctx context.Context, c *models.Campaign) error {
	r.s.addCampaign(c)
	return nil
}

func (r fakeCampaignRepo) SaveBatch(ctx context.Context, cs []*models.Campaign) error {
	for _, c := range cs {
		r.s.addCampaign(c)
	}
	return nil
}

func (r fakeCampaignRepo) Count(ctx context.Context, f models.CampaignFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(out)), nil
}

func (r fakeCampaignRepo) Exists(ctx context.Context, f models.CampaignFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r fakeCampaignRepo) ByUUID(ctx context.Context, ownerID, campaignUUID uuid.UUID) (*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.campaigns {
		if c.UUID == campaignUUID && c.OwnerID == ownerID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeCampaignRepo) ListWithTargetCounts(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.CampaignWithCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.CampaignWithCount
	for _, c := range r.s.campaigns {
		if c.OwnerID != ownerID {
			continue
		}
		var n int64
		for _, t := range r.s.targets {
			if t.CampaignID != nil && *t.CampaignID == c.ID {
				n++
			}
		}
		out = append(out, &models.CampaignWithCount{Campaign: *c, TargetsCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fakeCampaignRepo) UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.campaigns[id].Status = status
	r.s.campaignStatus = append(r.s.campaignStatus, status)
	return nil
}

// --- targets ---

type fakeTargetRepo struct{ s *memStore }

func (r fakeTargetRepo) ByID(ctx context.Context, id uint) (*models.Target, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.targets[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r fakeTargetRepo) ByFilter(ctx context.Context, f models.TargetFilter, orderBy string, limit, offset int) ([]*models.Target, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Target
	for _, t := range r.s.targets {
		if f.CampaignID != nil && (t.CampaignID == nil || *t.CampaignID != *f.CampaignID) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r fakeTargetRepo) Save(ctx context.Context, t *models.Target) error {
	return r.SaveBatch(ctx, []*models.Target{t})
}

func (r fakeTargetRepo) SaveBatch(ctx context.Context, ts []*models.Target) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range ts {
		t.ID = r.s.id()
		cp := *t
		r.s.targets[t.ID] = &cp
	}
	return nil
}

func (r fakeTargetRepo) Count(ctx context.Context, f models.TargetFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(out)), nil
}

func (r fakeTargetRepo) Exists(ctx context.Context, f models.TargetFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r fakeTargetRepo) ByUUID(ctx context.Context, ownerID, targetUUID uuid.UUID) (*models.Target, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.targets {
		if t.UUID == targetUUID && t.OwnerID == ownerID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeTargetRepo) ListEligible(ctx context.Context, campaignID uint, includeFailed bool, maxFailures int) ([]*models.Target, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	outstanding := map[uint]bool{}
	for _, m := range r.s.messages {
		if m.CampaignID == campaignID && (m.Status == models.MessageStatusPending || m.Status == models.MessageStatusProcessing) {
			outstanding[m.TargetID] = true
		}
	}
	var out []*models.Target
	for _, t := range r.s.targets {
		if t.CampaignID == nil || *t.CampaignID != campaignID || outstanding[t.ID] {
			continue
		}
		eligible := t.Status == models.TargetStatusPending ||
			(includeFailed && t.Status == models.TargetStatusFailed && t.FailureCount <= maxFailures)
		if eligible {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r fakeTargetRepo) ExistingUsernames(ctx context.Context, ownerID uuid.UUID, campaignID *uint) (map[string]struct{}, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]struct{}{}
	for _, t := range r.s.targets {
		if t.OwnerID != ownerID {
			continue
		}
		if (campaignID == nil) != (t.CampaignID == nil) {
			continue
		}
		if campaignID != nil && *campaignID != *t.CampaignID {
			continue
		}
		out[strings.ToLower(t.Username)] = struct{}{}
	}
	return out, nil
}

func (r fakeTargetRepo) MarkMessaged(ctx context.Context, id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.s.targets[id]
	t.Status = models.TargetStatusMessaged
	t.LastMessageAt = &at
	t.ErrorMessage = nil
	return nil
}

func (r fakeTargetRepo) MarkFailed(ctx context.Context, id uint, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.s.targets[id]
	t.Status = models.TargetStatusFailed
	t.ErrorMessage = &reason
	t.FailureCount++
	return nil
}

func (r fakeTargetRepo) UpdateStatus(ctx context.Context, id uint, status models.TargetStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.targets[id].Status = status
	return nil
}

// --- sequences ---

type fakeSequenceRepo struct{ s *memStore }

func (r fakeSequenceRepo) ByID(ctx context.Context, id uint) (*models.Sequence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if q, ok := r.s.sequences[id]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, nil
}

func (r fakeSequenceRepo) ByFilter(ctx context.Context, f models.SequenceFilter, orderBy string, limit, offset int) ([]*models.Sequence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Sequence
	for _, q := range r.s.sequences {
		if f.CampaignID != nil && q.CampaignID != *f.CampaignID {
			continue
		}
		cp := *q
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MessageOrder != out[j].MessageOrder {
			return out[i].MessageOrder < out[j].MessageOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r fakeSequenceRepo) Save(ctx context.Context, q *models.Sequence) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q.ID = r.s.id()
	cp := *q
	r.s.sequences[q.ID] = &cp
	return nil
}

func (r fakeSequenceRepo) SaveBatch(ctx context.Context, qs []*models.Sequence) error {
	for _, q := range qs {
		_ = r.Save(ctx, q)
	}
	return nil
}

func (r fakeSequenceRepo) Count(ctx context.Context, f models.SequenceFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(out)), nil
}

func (r fakeSequenceRepo) Exists(ctx context.Context, f models.SequenceFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r fakeSequenceRepo) FirstByCampaign(ctx context.Context, campaignID uint) (*models.Sequence, error) {
	out, _ := r.ListByCampaign(ctx, campaignID)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r fakeSequenceRepo) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.Sequence, error) {
	return r.ByFilter(ctx, models.SequenceFilter{CampaignID: &campaignID}, "", 0, 0)
}

// --- message queue ---

type fakeQueueRepo struct{ s *memStore }

func (r fakeQueueRepo) ByID(ctx context.Context, id uint) (*models.QueuedMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.messages[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r fakeQueueRepo) ByFilter(ctx context.Context, f models.QueuedMessageFilter, orderBy string, limit, offset int) ([]*models.QueuedMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.QueuedMessage
	for _, m := range r.s.messages {
		if f.CampaignID != nil && m.CampaignID != *f.CampaignID {
			continue
		}
		if f.Status != nil && m.Status != *f.Status {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r fakeQueueRepo) Save(ctx context.Context, m *models.QueuedMessage) error {
	return r.SaveBatch(ctx, []*models.QueuedMessage{m})
}

// SaveBatch is all-or-nothing
func (r fakeQueueRepo) SaveBatch(ctx context.Context, ms []*models.QueuedMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.saveBatchErr != nil {
		return r.s.saveBatchErr
	}
	for _, m := range ms {
		m.ID = r.s.id()
		cp := *m
		r.s.messages[m.ID] = &cp
	}
	return nil
}

func (r fakeQueueRepo) Count(ctx context.Context, f models.QueuedMessageFilter) (int64, error) {
	out, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(out)), nil
}

func (r fakeQueueRepo) Exists(ctx context.Context, f models.QueuedMessageFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r fakeQueueRepo) NextDue(ctx context.Context, ownerID uuid.UUID, now time.Time, skip []uint) (*models.QueuedMessage, error) {
	r.s.mu.Lock()
	skipped := map[uint]bool{}
	for _, id := range skip {
		skipped[id] = true
	}
	var best *models.QueuedMessage
	for _, m := range r.s.messages {
		if m.OwnerID != ownerID || m.Status != models.MessageStatusPending || m.ScheduledAt.After(now) || skipped[m.ID] {
			continue
		}
		if best == nil || m.ScheduledAt.Before(best.ScheduledAt) || (m.ScheduledAt.Equal(best.ScheduledAt) && m.ID < best.ID) {
			best = m
		}
	}
	if best == nil {
		r.s.mu.Unlock()
		return nil, nil
	}
	cp := *best
	if c, ok := r.s.campaigns[cp.CampaignID]; ok {
		cc := *c
		cp.Campaign = &cc
	}
	if t, ok := r.s.targets[cp.TargetID]; ok {
		tc := *t
		cp.Target = &tc
	}
	hook := r.s.nextDueHook
	r.s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &cp, nil
}

// TryClaim is the compare-and-swap on status
func (r fakeQueueRepo) TryClaim(ctx context.Context, id uint, expected models.MessageStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.claimErr != nil {
		return false, r.s.claimErr
	}
	m, ok := r.s.messages[id]
	if !ok || m.Status != expected {
		return false, nil
	}
	r.s.setStatus(m, models.MessageStatusProcessing)
	return true, nil
}

func (r fakeQueueRepo) Reschedule(ctx context.Context, id uint, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.Status != models.MessageStatusPending {
		return false, nil
	}
	m.ScheduledAt = at
	return true, nil
}

func (r fakeQueueRepo) MarkSent(ctx context.Context, id uint, at time.Time, response json.RawMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.responseErr != nil && len(response) > 0 {
		return r.s.responseErr
	}
	m, ok := r.s.messages[id]
	if !ok || m.Status != models.MessageStatusProcessing {
		return repository.ErrStatusConflict
	}
	r.s.setStatus(m, models.MessageStatusSent)
	m.SentAt = &at
	m.ErrorMessage = nil
	m.WebhookResponse = response
	return nil
}

func (r fakeQueueRepo) MarkFailed(ctx context.Context, id uint, reason string, response json.RawMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.responseErr != nil && len(response) > 0 {
		return r.s.responseErr
	}
	m, ok := r.s.messages[id]
	if !ok || m.Status != models.MessageStatusProcessing {
		return repository.ErrStatusConflict
	}
	r.s.setStatus(m, models.MessageStatusFailed)
	m.ErrorMessage = &reason
	m.WebhookResponse = response
	return nil
}

func (r fakeQueueRepo) FailStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.messages {
		touched := m.CreatedAt
		if m.UpdatedAt != nil {
			touched = *m.UpdatedAt
		}
		if m.Status == models.MessageStatusProcessing && touched.Before(olderThan) {
			reason := repository.StaleClaimReason
			r.s.setStatus(m, models.MessageStatusFailed)
			m.ErrorMessage = &reason
			n++
		}
	}
	return n, nil
}

func (r fakeQueueRepo) CancelPending(ctx context.Context, campaignID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.messages {
		if m.CampaignID == campaignID && m.Status == models.MessageStatusPending {
			r.s.setStatus(m, models.MessageStatusCancelled)
			n++
		}
	}
	return n, nil
}

func (r fakeQueueRepo) CountByStatus(ctx context.Context, campaignID uint) (map[models.MessageStatus]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[models.MessageStatus]int64{}
	for _, m := range r.s.messages {
		if m.CampaignID == campaignID {
			out[m.Status]++
		}
	}
	return out, nil
}

func (r fakeQueueRepo) CountSentSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.messages {
		if m.CampaignID == campaignID && m.Status == models.MessageStatusSent && m.SentAt != nil && !m.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r fakeQueueRepo) OwnersWithDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, m := range r.s.messages {
		if m.Status == models.MessageStatusPending && !m.ScheduledAt.After(now) && !seen[m.OwnerID] {
			seen[m.OwnerID] = true
			out = append(out, m.OwnerID)
		}
	}
	return out, nil
}

func (r fakeQueueRepo) ListByCampaign(ctx context.Context, campaignID uint, status *models.MessageStatus, limit, offset int) ([]*models.QueuedMessage, error) {
	out, _ := r.ByFilter(ctx, models.QueuedMessageFilter{CampaignID: &campaignID, Status: status}, "", 0, 0)
	r.s.mu.Lock()
	for _, m := range out {
		if t, ok := r.s.targets[m.TargetID]; ok {
			tc := *t
			m.Target = &tc
		}
	}
	r.s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- delivery settings ---

type fakeSettingsRepo struct{ s *memStore }

func (r fakeSettingsRepo) ByOwner(ctx context.Context, ownerID uuid.UUID) (*models.DeliverySettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.settingsErr != nil {
		return nil, r.s.settingsErr
	}
	if st, ok := r.s.settings[ownerID]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, nil
}

func (r fakeSettingsRepo) Upsert(ctx context.Context, st *models.DeliverySettings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *st
	r.s.settings[st.OwnerID] = &cp
	return nil
}

// --- audit log ---

type fakeAuditRepo struct{ s *memStore }

func (r fakeAuditRepo) ByID(ctx context.Context, id uint) (*models.AuditLog, error) { return nil, nil }

func (r fakeAuditRepo) ByFilter(ctx context.Context, f models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AuditLog
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		a := r.s.audits[i]
		if f.OwnerID != nil && a.OwnerID != *f.OwnerID {
			continue
		}
		if f.Success != nil && (a.Success == nil || *a.Success != *f.Success) {
			continue
		}
		out = append(out, a)
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeAuditRepo) Save(ctx context.Context, a *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, a)
	return nil
}

func (r fakeAuditRepo) SaveBatch(ctx context.Context, as []*models.AuditLog) error {
	for _, a := range as {
		_ = r.Save(ctx, a)
	}
	return nil
}

func (r fakeAuditRepo) Count(ctx context.Context, f models.AuditLogFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.audits)), nil
}

func (r fakeAuditRepo) Exists(ctx context.Context, f models.AuditLogFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r fakeAuditRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{OwnerID: &ownerID}, "", limit, offset)
}

func (r fakeAuditRepo) ListFailedByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	failed := false
	return r.ByFilter(ctx, models.AuditLogFilter{OwnerID: &ownerID, Success: &failed}, "", limit, offset)
}

// --- outcome publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []services.OutcomeEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e services.OutcomeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// --- dispatchers ---

type panickingDispatcher struct{}

func (panickingDispatcher) Deliver(ctx context.Context, e services.Endpoint, p services.DeliveryPayload) (*services.DeliveryResult, error) {
	panic("boom")
}

type erroringDispatcher struct{}

func (erroringDispatcher) Deliver(ctx context.Context, e services.Endpoint, p services.DeliveryPayload) (*services.DeliveryResult, error) {
	return nil, errors.New("encoder exploded")
}

type fixedSource struct{ d services.WebhookDispatcher }

func (f fixedSource) For(url string) services.WebhookDispatcher { return f.d }

// harness wires every component against one memStore
type harness struct {
	store     *memStore
	clock     *utils.FixedClock
	publisher *recordingPublisher

	campaigns fakeCampaignRepo
	targets   fakeTargetRepo
	sequences fakeSequenceRepo
	queue     fakeQueueRepo
	settings  fakeSettingsRepo
	audits    fakeAuditRepo

	expander   *QueueExpanderImpl
	processor  *QueueProcessorImpl
	controller *CampaignControllerImpl
	stats      *StatsAggregatorImpl
}

var t0 = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

func newHarness() *harness {
	return newHarnessWithSource(services.NewDispatcherSelector(services.NewNullDispatcher(), services.NewHTTPDispatcher(2*time.Second)))
}

func newHarnessWithSource(source DispatcherSource) *harness {
	s := newMemStore()
	h := &harness{
		store:     s,
		clock:     utils.NewFixedClock(t0),
		publisher: &recordingPublisher{},
		campaigns: fakeCampaignRepo{s},
		targets:   fakeTargetRepo{s},
		sequences: fakeSequenceRepo{s},
		queue:     fakeQueueRepo{s},
		settings:  fakeSettingsRepo{s},
		audits:    fakeAuditRepo{s},
	}
	logger := zerolog.Nop()
	h.expander = NewQueueExpander(h.campaigns, h.targets, h.sequences, h.queue, h.settings, passthroughTx, h.clock, logger)
	h.processor = NewQueueProcessor(h.queue, h.targets, h.settings, source, services.NewStoreSendBudget(h.queue), h.publisher, h.clock, logger)
	h.controller = NewCampaignController(h.expander, h.campaigns, h.queue, passthroughTx, logger)
	h.stats = NewStatsAggregator(h.campaigns, h.queue)
	return h
}

func (h *harness) newCampaign(mutate ...func(c *models.Campaign)) *models.Campaign {
	c := &models.Campaign{OwnerID: uuid.New(), Name: "Launch"}
	for _, m := range mutate {
		m(c)
	}
	return h.store.addCampaign(c)
}
