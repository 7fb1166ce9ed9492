package consumer

import (
	"context"

	"example.com/fittrack/internal/cache"
)

// InvalidationHandler drops cached aggregates of the user named by each event.
type InvalidationHandler struct {
	invalidator cache.Invalidator
}

// NewInvalidationHandler wraps an invalidator. A nil invalidator disables the handler.
func NewInvalidationHandler(invalidator cache.Invalidator) *InvalidationHandler {
	if invalidator == nil {
		invalidator = cache.NoopInvalidator{}
	}
	return &InvalidationHandler{invalidator: invalidator}
}

// Handle invalidates the event's user. Events without a user are ignored.
func (h *InvalidationHandler) Handle(ctx context.Context, msg Message) error {
	if msg.UserID == "" {
		return nil
	}
	return h.invalidator.Invalidate(ctx, msg.UserID)
}
