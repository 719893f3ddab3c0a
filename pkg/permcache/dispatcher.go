package permcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/canopyhq/canopy/pkg/observability"
)

// Dispatcher is notified after every membership mutation so downstream
// consumers can drop stale permission state. Implementations must be
// best-effort: a failed dispatch is logged, never surfaced to the caller
// of the mutation.
type Dispatcher interface {
	NotifyPermissionsChanged(ctx context.Context, userID int64) error
}

// NoopDispatcher is the default dispatcher when no cache/push backend is
// configured. All calls succeed without doing anything.
type NoopDispatcher struct{}

// NewNoopDispatcher creates a dispatcher that does nothing
func NewNoopDispatcher() *NoopDispatcher {
	return &NoopDispatcher{}
}

// NotifyPermissionsChanged is a no-op
func (d *NoopDispatcher) NotifyPermissionsChanged(ctx context.Context, userID int64) error {
	return nil
}

// ChangeEvent is the payload published on the push channel when a user's
// permissions change
type ChangeEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPermissionsChanged is the type carried by ChangeEvent
const EventPermissionsChanged = "permissions_changed"

// RedisDispatcher busts cached permission snapshots and publishes a
// change event for the user's live sessions.
type RedisDispatcher struct {
	client  *redis.Client
	channel string
	local   *Cache
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRedisDispatcher creates a redis-backed dispatcher. local may be nil
// when no in-process snapshot cache is wired; metrics may be nil in tests.
func NewRedisDispatcher(client *redis.Client, channel string, local *Cache, logger *observability.Logger, metrics *observability.Metrics) *RedisDispatcher {
	return &RedisDispatcher{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger,
		metrics: metrics,
	}
}

// NotifyPermissionsChanged drops the user's cached snapshots and publishes
// a change event. The two effects are independent; a failure in one does
// not stop the other.
func (d *RedisDispatcher) NotifyPermissionsChanged(ctx context.Context, userID int64) error {
	var firstErr error

	if d.local != nil {
		d.local.invalidateLocal(userID)
	}

	if err := d.deleteSnapshots(ctx, userID); err != nil {
		d.logger.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate permission snapshots")
		firstErr = err
	}

	if err := d.publish(ctx, userID); err != nil {
		d.logger.WithError(err).WithField("user_id", userID).Warn("Failed to publish permissions changed event")
		if firstErr == nil {
			firstErr = err
		}
	}

	if d.metrics != nil {
		status := "ok"
		if firstErr != nil {
			status = "error"
		}
		d.metrics.InvalidationDispatchTotal.WithLabelValues(status).Inc()
	}

	return firstErr
}

func (d *RedisDispatcher) deleteSnapshots(ctx context.Context, userID int64) error {
	pattern := userKeyPattern(userID)
	iter := d.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan snapshot keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := d.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot keys: %w", err)
	}
	return nil
}

func (d *RedisDispatcher) publish(ctx context.Context, userID int64) error {
	event := ChangeEvent{
		EventID:    uuid.New().String(),
		Type:       EventPermissionsChanged,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := d.client.Publish(ctx, d.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}
