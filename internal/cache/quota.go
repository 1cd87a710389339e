package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Counter counts a child's turns since a point in time.
type Counter interface {
	CountSince(ctx context.Context, childID string, since time.Time) (int, error)
}

// QuotaCounter caches Counter results in Redis for a short TTL. Redis errors
// fall through to the source so the quota check never depends on the cache.
type QuotaCounter struct {
	client *Client
	source Counter
	ttl    time.Duration
	logger *slog.Logger
}

// NewQuotaCounter wraps source with a Redis cache.
func NewQuotaCounter(client *Client, source Counter, ttl time.Duration, logger *slog.Logger) *QuotaCounter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &QuotaCounter{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger.With("component", "quota_cache"),
	}
}

func quotaKey(childID string, since time.Time) string {
	return fmt.Sprintf("mascotchat:quota:%s:%d", childID, since.Unix())
}

// CountSince returns the cached count, or asks the source and caches it.
func (q *QuotaCounter) CountSince(ctx context.Context, childID string, since time.Time) (int, error) {
	key := quotaKey(childID, since)

	n, err := q.client.GetInt(ctx, key)
	switch {
	case err == nil:
		return n, nil
	case !errors.Is(err, ErrCacheMiss):
		q.logger.WarnContext(ctx, "Quota cache read failed, using database", "child_id", childID, "error", err)
	}

	n, err = q.source.CountSince(ctx, childID, since)
	if err != nil {
		return 0, err
	}

	if err := q.client.Set(ctx, key, n, q.ttl); err != nil {
		q.logger.WarnContext(ctx, "Quota cache write failed", "child_id", childID, "error", err)
	}
	return n, nil
}

// Record bumps a cached count after a turn is logged so the cache does not
// lag behind the database within its TTL.
func (q *QuotaCounter) Record(ctx context.Context, childID string, since time.Time) {
	if _, err := q.client.Incr(ctx, quotaKey(childID, since)); err != nil {
		q.logger.WarnContext(ctx, "Quota cache increment failed", "child_id", childID, "error", err)
	}
}
