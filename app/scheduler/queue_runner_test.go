package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	businessflow "github.com/amirphl/campaign-dispatcher/business_flow"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	owners []uuid.UUID
	err    error
	limit  int
	now    time.Time

	stale       int64
	staleErr    error
	staleBefore time.Time
}

func (s *stubLister) OwnersWithDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.limit = limit
	s.now = now
	return s.owners, s.err
}

func (s *stubLister) FailStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error) {
	s.staleBefore = olderThan
	return s.stale, s.staleErr
}

type stubProcessor struct {
	mu      sync.Mutex
	calls   []uuid.UUID
	results map[uuid.UUID]*businessflow.ProcessResult
	errs    map[uuid.UUID]error
}

func (s *stubProcessor) ProcessOne(ctx context.Context, ownerID uuid.UUID) (*businessflow.ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ownerID)
	if err := s.errs[ownerID]; err != nil {
		return nil, err
	}
	if r, ok := s.results[ownerID]; ok {
		return r, nil
	}
	return &businessflow.ProcessResult{}, nil
}

func newRunner(lister QueueSource, proc businessflow.QueueProcessor) *QueueRunner {
	clock := utils.NewFixedClock(time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))
	return NewQueueRunner(lister, proc, clock, RunnerConfig{
		Interval:      time.Second,
		OwnerBatch:    10,
		RatePerSecond: 1000,
		Burst:         10,
		StaleAfter:    2 * time.Minute,
	}, zerolog.Nop())
}

func TestRunOnce_ProcessesEachOwnerOnce(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	lister := &stubLister{owners: []uuid.UUID{a, b, c}}
	proc := &stubProcessor{
		results: map[uuid.UUID]*businessflow.ProcessResult{
			a: {Processed: true},
			b: {Processed: true, Err: businessflow.ErrDelivery},
		},
		errs: map[uuid.UUID]error{},
	}

	res := newRunner(lister, proc).RunOnce(context.Background())

	assert.Equal(t, []uuid.UUID{a, b, c}, proc.calls)
	assert.Equal(t, TickResult{Owners: 3, Processed: 2, Failed: 1}, res)
	assert.Equal(t, 10, lister.limit)
	assert.Equal(t, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), lister.now)
}

func TestRunOnce_ProcessorErrorDoesNotStopTick(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	proc := &stubProcessor{
		results: map[uuid.UUID]*businessflow.ProcessResult{b: {Processed: true}},
		errs:    map[uuid.UUID]error{a: errors.New("db down")},
	}

	res := newRunner(&stubLister{owners: []uuid.UUID{a, b}}, proc).RunOnce(context.Background())

	assert.Len(t, proc.calls, 2)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, res.Processed)
}

func TestRunOnce_ListerError(t *testing.T) {
	proc := &stubProcessor{}
	res := newRunner(&stubLister{err: errors.New("boom")}, proc).RunOnce(context.Background())

	assert.Equal(t, 1, res.Errors)
	assert.Empty(t, proc.calls)
}

func TestRunOnce_Idle(t *testing.T) {
	proc := &stubProcessor{}
	res := newRunner(&stubLister{}, proc).RunOnce(context.Background())

	assert.Equal(t, TickResult{}, res)
	assert.Empty(t, proc.calls)
}

func TestRunOnce_FailsStaleClaimsFirst(t *testing.T) {
	a := uuid.New()
	lister := &stubLister{owners: []uuid.UUID{a}, stale: 2}
	proc := &stubProcessor{results: map[uuid.UUID]*businessflow.ProcessResult{a: {Processed: true}}}

	res := newRunner(lister, proc).RunOnce(context.Background())

	assert.Equal(t, TickResult{Owners: 1, Processed: 1, Recovered: 2}, res)
	assert.Equal(t, time.Date(2025, 1, 6, 9, 58, 0, 0, time.UTC), lister.staleBefore)
}

func TestRunOnce_StaleSweepErrorDoesNotStopTick(t *testing.T) {
	a := uuid.New()
	lister := &stubLister{owners: []uuid.UUID{a}, staleErr: errors.New("timeout")}
	proc := &stubProcessor{results: map[uuid.UUID]*businessflow.ProcessResult{a: {Processed: true}}}

	res := newRunner(lister, proc).RunOnce(context.Background())

	assert.Equal(t, TickResult{Owners: 1, Processed: 1, Errors: 1}, res)
	assert.Equal(t, []uuid.UUID{a}, proc.calls)
}

func TestRunOnce_CancelledContextStopsBeforeProcessing(t *testing.T) {
	proc := &stubProcessor{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newRunner(&stubLister{owners: []uuid.UUID{uuid.New()}}, proc).RunOnce(ctx)

	assert.Equal(t, 1, res.Owners)
	assert.Empty(t, proc.calls)
}

func TestNewQueueRunner_Defaults(t *testing.T) {
	r := NewQueueRunner(&stubLister{}, &stubProcessor{}, utils.SystemClock{}, RunnerConfig{}, zerolog.Nop())

	assert.Equal(t, utils.DefaultRunnerInterval, r.cfg.Interval)
	assert.Equal(t, 100, r.cfg.OwnerBatch)
	assert.Equal(t, 1, r.limiter.Burst())
	assert.Equal(t, utils.MaxWebhookTimeout+utils.StaleClaimMargin, r.cfg.StaleAfter)
}

func TestStart_StopWaitsAndReturns(t *testing.T) {
	r := newRunner(&stubLister{}, &stubProcessor{})
	stop := r.Start(context.Background())
	require.NotNil(t, stop)

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
}
