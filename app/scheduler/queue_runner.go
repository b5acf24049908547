// Package scheduler runs background queue processing
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	businessflow "github.com/amirphl/campaign-dispatcher/business_flow"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var runnerTicksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dispatcher_runner_ticks_total",
		Help: "Queue runner ticks partitioned by result",
	},
	[]string{"result"},
)

// QueueSource lists owners with at least one due pending message and fails
// claims that were never resolved
type QueueSource interface {
	OwnersWithDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	FailStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error)
}

// RunnerConfig tunes the queue runner
type RunnerConfig struct {
	Interval      time.Duration
	OwnerBatch    int
	RatePerSecond float64
	Burst         int
	// StaleAfter is how long a message may stay in processing before it is failed
	StaleAfter time.Duration
}

// TickResult summarizes one runner tick
type TickResult struct {
	Owners    int
	Processed int
	Failed    int
	Recovered int
	Errors    int
}

// QueueRunner periodically advances every owner's queue by one message
type QueueRunner struct {
	source    QueueSource
	processor businessflow.QueueProcessor
	clock     utils.Clock
	limiter   *rate.Limiter
	cfg       RunnerConfig
	logger    zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewQueueRunner creates a runner; zero config values select the defaults
func NewQueueRunner(source QueueSource, processor businessflow.QueueProcessor, clock utils.Clock, cfg RunnerConfig, logger zerolog.Logger) *QueueRunner {
	if cfg.Interval < time.Second {
		cfg.Interval = utils.DefaultRunnerInterval
	}
	if cfg.OwnerBatch <= 0 {
		cfg.OwnerBatch = 100
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = utils.MaxWebhookTimeout + utils.StaleClaimMargin
	}

	return &QueueRunner{
		source:    source,
		processor: processor,
		clock:     clock,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cfg:       cfg,
		logger:    logger.With().Str("component", "queue_runner").Logger(),
	}
}

// Start schedules RunOnce every interval and returns a stop function.
// Overlapping ticks are skipped; stop waits for a running tick to finish.
func (r *QueueRunner) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	cl := cronLogger{r.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	spec := fmt.Sprintf("@every %s", r.cfg.Interval)
	if _, err := c.AddFunc(spec, func() { r.RunOnce(ctx) }); err != nil {
		// the schedule is built from a validated duration
		r.logger.Error().Err(err).Str("spec", spec).Msg("failed to schedule queue runner")
		cancel()
		return func() {}
	}

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()

	c.Start()
	r.logger.Info().Dur("interval", r.cfg.Interval).Int("owner_batch", r.cfg.OwnerBatch).Msg("queue runner started")

	return func() {
		cancel()
		<-c.Stop().Done()
		r.logger.Info().Msg("queue runner stopped")
	}
}

// RunOnce processes at most one message for each owner that has due work
func (r *QueueRunner) RunOnce(ctx context.Context) TickResult {
	var res TickResult

	recovered, err := r.source.FailStaleProcessing(ctx, r.clock.Now().Add(-r.cfg.StaleAfter))
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to fail stale processing messages")
		res.Errors++
	} else if recovered > 0 {
		res.Recovered = int(recovered)
		r.logger.Warn().Int64("count", recovered).Dur("stale_after", r.cfg.StaleAfter).Msg("failed messages stuck in processing")
	}

	owners, err := r.source.OwnersWithDue(ctx, r.clock.Now(), r.cfg.OwnerBatch)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list owners with due messages")
		runnerTicksTotal.WithLabelValues("error").Inc()
		res.Errors++
		return res
	}
	res.Owners = len(owners)
	if len(owners) == 0 {
		runnerTicksTotal.WithLabelValues("idle").Inc()
		return res
	}

	for _, ownerID := range owners {
		if err := r.limiter.Wait(ctx); err != nil {
			// context cancelled while waiting for a token
			break
		}

		out, err := r.processor.ProcessOne(ctx, ownerID)
		if err != nil {
			res.Errors++
			r.logger.Error().Err(err).Str("owner_id", ownerID.String()).Msg("queue processing failed")
			continue
		}
		if !out.Processed {
			continue
		}
		res.Processed++
		if out.Err != nil {
			res.Failed++
		}
	}

	runnerTicksTotal.WithLabelValues("processed").Inc()
	r.logger.Debug().
		Int("owners", res.Owners).
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Int("recovered", res.Recovered).
		Int("errors", res.Errors).
		Msg("queue runner tick")

	return res
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
