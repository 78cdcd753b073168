package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const reconcileKeyPrefix = "reconcile:message:"

// ReconcileMarker remembers which messages a sweep already re-enqueued so the
// next ticks skip them until the marker expires.
type ReconcileMarker struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewReconcileMarker(client *goredis.Client, ttl time.Duration) *ReconcileMarker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ReconcileMarker{client: client, ttl: ttl}
}

// Mark reports true when the marker was newly set.
func (m *ReconcileMarker) Mark(ctx context.Context, messageID string) (bool, error) {
	ok, err := m.client.SetNX(ctx, reconcileKeyPrefix+messageID, 1, m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set reconcile marker: %w", err)
	}
	return ok, nil
}

// Clear drops the marker, e.g. after a publish failed.
func (m *ReconcileMarker) Clear(ctx context.Context, messageID string) error {
	if err := m.client.Del(ctx, reconcileKeyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("failed to clear reconcile marker: %w", err)
	}
	return nil
}
