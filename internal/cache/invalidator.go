// Package cache keeps hot daily aggregates in Redis in front of the persistence backend.
package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Invalidator drops every cached aggregate of a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// NoopInvalidator is a no-op implementation.
type NoopInvalidator struct{}

// Invalidate performs no action.
func (NoopInvalidator) Invalidate(context.Context, string) error { return nil }

type incrementer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// GenerationInvalidator bumps the per-user generation counter read by ActivityCache. Processes
// that only observe writes, such as event consumers, use it without wrapping a repository.
type GenerationInvalidator struct {
	client incrementer
}

// NewGenerationInvalidator returns an Invalidator backed by client.
func NewGenerationInvalidator(client incrementer) GenerationInvalidator {
	return GenerationInvalidator{client: client}
}

// Invalidate implements Invalidator.
func (g GenerationInvalidator) Invalidate(ctx context.Context, userID string) error {
	return g.client.Incr(ctx, generationKey(userID)).Err()
}
