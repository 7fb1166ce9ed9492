package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/fittrack/internal/domain"
)

const keyPrefix = "fittrack"

// redisClient is the subset of *redis.Client used by ActivityCache.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// ActivityCache is a read-through cache for date lookups. Every write bumps a per-user generation
// counter so stale entries are never read again and simply expire.
type ActivityCache struct {
	domain.ActivityRepository
	client redisClient
	ttl    time.Duration
	logger *slog.Logger
}

var _ domain.ActivityRepository = (*ActivityCache)(nil)
var _ Invalidator = (*ActivityCache)(nil)

// NewActivityCache wraps next with a Redis cache.
func NewActivityCache(next domain.ActivityRepository, client redisClient, ttl time.Duration, logger *slog.Logger) *ActivityCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityCache{ActivityRepository: next, client: client, ttl: ttl, logger: logger}
}

// FindActivityByDate serves the aggregate from Redis when present. Cache failures fall back to the backend.
func (c *ActivityCache) FindActivityByDate(ctx context.Context, userID, date string) (*domain.DailyActivity, error) {
	key, err := c.activityKey(ctx, userID, date)
	if err != nil {
		c.logger.Warn("activity cache unavailable", "user_id", userID, "error", err)
		return c.ActivityRepository.FindActivityByDate(ctx, userID, date)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached domain.DailyActivity
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			cacheHits.Inc()
			return &cached, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("activity cache read failed", "key", key, "error", err)
	}
	cacheMisses.Inc()

	activity, err := c.ActivityRepository.FindActivityByDate(ctx, userID, date)
	if err != nil || activity == nil {
		return activity, err
	}
	if body, jsonErr := json.Marshal(activity); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, body, c.ttl).Err(); setErr != nil {
			c.logger.Warn("activity cache write failed", "key", key, "error", setErr)
		}
	}
	return activity, nil
}

// Invalidate implements Invalidator.
func (c *ActivityCache) Invalidate(ctx context.Context, userID string) error {
	return NewGenerationInvalidator(c.client).Invalidate(ctx, userID)
}

// CreateActivity implements domain.ActivityRepository.
func (c *ActivityCache) CreateActivity(ctx context.Context, activity domain.DailyActivity) (domain.DailyActivity, error) {
	created, err := c.ActivityRepository.CreateActivity(ctx, activity)
	c.afterWrite(ctx, activity.UserID)
	return created, err
}

// UpdateActivity implements domain.ActivityRepository.
func (c *ActivityCache) UpdateActivity(ctx context.Context, userID, activityID string, patch domain.ActivityPatch) (domain.DailyActivity, error) {
	updated, err := c.ActivityRepository.UpdateActivity(ctx, userID, activityID, patch)
	c.afterWrite(ctx, userID)
	return updated, err
}

// DeleteActivity implements domain.ActivityRepository.
func (c *ActivityCache) DeleteActivity(ctx context.Context, userID, activityID string) error {
	err := c.ActivityRepository.DeleteActivity(ctx, userID, activityID)
	c.afterWrite(ctx, userID)
	return err
}

// CreateManualEntry implements domain.ActivityRepository.
func (c *ActivityCache) CreateManualEntry(ctx context.Context, userID string, entry domain.ManualEntry) (domain.ManualEntry, error) {
	created, err := c.ActivityRepository.CreateManualEntry(ctx, userID, entry)
	c.afterWrite(ctx, userID)
	return created, err
}

// UpdateManualEntry implements domain.ActivityRepository.
func (c *ActivityCache) UpdateManualEntry(ctx context.Context, userID, entryID string, patch domain.EntryPatch) (domain.ManualEntry, error) {
	updated, err := c.ActivityRepository.UpdateManualEntry(ctx, userID, entryID, patch)
	c.afterWrite(ctx, userID)
	return updated, err
}

// DeleteManualEntry implements domain.ActivityRepository.
func (c *ActivityCache) DeleteManualEntry(ctx context.Context, userID, entryID string) error {
	err := c.ActivityRepository.DeleteManualEntry(ctx, userID, entryID)
	c.afterWrite(ctx, userID)
	return err
}

// ClearUserData implements domain.ActivityRepository.
func (c *ActivityCache) ClearUserData(ctx context.Context, userID string) error {
	err := c.ActivityRepository.ClearUserData(ctx, userID)
	c.afterWrite(ctx, userID)
	return err
}

// afterWrite invalidates even when the write failed; a partial write may have landed.
func (c *ActivityCache) afterWrite(ctx context.Context, userID string) {
	if err := c.Invalidate(ctx, userID); err != nil {
		c.logger.Warn("activity cache invalidation failed", "user_id", userID, "error", err)
	}
}

func (c *ActivityCache) activityKey(ctx context.Context, userID, date string) (string, error) {
	gen, err := c.client.Get(ctx, generationKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s:activity:%s:v%d:%s", keyPrefix, userID, gen, date), nil
}

func generationKey(userID string) string {
	return fmt.Sprintf("%s:gen:%s", keyPrefix, userID)
}
