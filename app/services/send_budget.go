package services

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/campaign-dispatcher/models"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/redis/go-redis/v9"
)

// SendBudget enforces a campaign's messages-per-day limit.
// Reserve takes one slot from the campaign's budget for the calendar day containing now
// (in the campaign timezone) and reports whether one was available. Release returns a
// slot taken by a delivery that did not succeed.
type SendBudget interface {
	Reserve(ctx context.Context, campaign *models.Campaign, now time.Time) (bool, error)
	Release(ctx context.Context, campaign *models.Campaign, now time.Time) error
}

// SentCounter counts a campaign's successful deliveries since a point in time
type SentCounter interface {
	CountSentSince(ctx context.Context, campaignID uint, since time.Time) (int64, error)
}

// RedisSendBudget keeps one counter per campaign per local day
type RedisSendBudget struct {
	rc     *redis.Client
	prefix string
}

// NewRedisSendBudget creates a Redis-backed budget
func NewRedisSendBudget(rc *redis.Client, prefix string) *RedisSendBudget {
	return &RedisSendBudget{rc: rc, prefix: prefix}
}

func (b *RedisSendBudget) key(campaign *models.Campaign, now time.Time) string {
	day := now.In(campaign.Location()).Format("2006-01-02")
	return fmt.Sprintf("%ssend_budget:%s:%s", b.prefix, campaign.UUID.String(), day)
}

// Reserve increments the day counter and rolls back when the limit is exceeded
func (b *RedisSendBudget) Reserve(ctx context.Context, campaign *models.Campaign, now time.Time) (bool, error) {
	if campaign.MessagesPerDay <= 0 {
		return true, nil
	}

	key := b.key(campaign, now)
	count, err := b.rc.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve send budget: %w", err)
	}
	if count == 1 {
		// the key outlives the local day by a margin for DST shifts
		if err := b.rc.Expire(ctx, key, 26*time.Hour).Err(); err != nil {
			return false, fmt.Errorf("failed to set send budget expiry: %w", err)
		}
	}

	if count > int64(campaign.MessagesPerDay) {
		if err := b.rc.Decr(ctx, key).Err(); err != nil {
			return false, fmt.Errorf("failed to roll back send budget: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// Release gives back one slot
func (b *RedisSendBudget) Release(ctx context.Context, campaign *models.Campaign, now time.Time) error {
	if campaign.MessagesPerDay <= 0 {
		return nil
	}
	if err := b.rc.Decr(ctx, b.key(campaign, now)).Err(); err != nil {
		return fmt.Errorf("failed to release send budget: %w", err)
	}
	return nil
}

// StoreSendBudget derives the budget from messages already sent today.
// It is only consistent with a single scheduler instance.
type StoreSendBudget struct {
	counter SentCounter
}

// NewStoreSendBudget creates a budget backed by the message store
func NewStoreSendBudget(counter SentCounter) *StoreSendBudget {
	return &StoreSendBudget{counter: counter}
}

// Reserve reports whether fewer than messages_per_day were sent since local midnight
func (b *StoreSendBudget) Reserve(ctx context.Context, campaign *models.Campaign, now time.Time) (bool, error) {
	if campaign.MessagesPerDay <= 0 {
		return true, nil
	}

	since := utils.StartOfDay(now, campaign.Location()).UTC()
	sent, err := b.counter.CountSentSince(ctx, campaign.ID, since)
	if err != nil {
		return false, err
	}
	return sent < int64(campaign.MessagesPerDay), nil
}

// Release is a no-op: failed deliveries never count as sent
func (b *StoreSendBudget) Release(ctx context.Context, campaign *models.Campaign, now time.Time) error {
	return nil
}
