package cache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnylearn/mascotchat/internal/cache"
)

type countingSource struct {
	calls atomic.Int32
	count int
	err   error
}

func (s *countingSource) CountSince(context.Context, string, time.Time) (int, error) {
	s.calls.Add(1)
	return s.count, s.err
}

func newClient(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := cache.NewClient(context.Background(), cache.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient_RequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := cache.NewClient(context.Background(), cache.Options{})
	require.Error(t, err)
}

func TestQuotaCounter_CachesUntilTTL(t *testing.T) {
	t.Parallel()

	client, mr := newClient(t)
	source := &countingSource{count: 7}
	q := cache.NewQuotaCounter(client, source, 30*time.Second, nil)
	ctx := context.Background()
	since := time.Date(2026, 10, 18, 0, 0, 0, 0, time.Local)

	for range 3 {
		n, err := q.CountSince(ctx, "child-1", since)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	}
	assert.Equal(t, int32(1), source.calls.Load())

	q.Record(ctx, "child-1", since)
	n, err := q.CountSince(ctx, "child-1", since)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	mr.FastForward(31 * time.Second)
	source.count = 9
	n, err = q.CountSince(ctx, "child-1", since)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestQuotaCounter_RecordWithoutCachedValue(t *testing.T) {
	t.Parallel()

	client, mr := newClient(t)
	q := cache.NewQuotaCounter(client, &countingSource{}, time.Minute, nil)

	q.Record(context.Background(), "child-1", time.Unix(0, 0))
	assert.Empty(t, mr.Keys())
}

func TestQuotaCounter_FallsBackWhenRedisDown(t *testing.T) {
	t.Parallel()

	client, mr := newClient(t)
	source := &countingSource{count: 3}
	q := cache.NewQuotaCounter(client, source, time.Minute, nil)
	mr.Close()

	n, err := q.CountSince(context.Background(), "child-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestQuotaCounter_SourceError(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t)
	q := cache.NewQuotaCounter(client, &countingSource{err: errors.New("db down")}, time.Minute, nil)

	_, err := q.CountSince(context.Background(), "child-1", time.Now())
	require.Error(t, err)
}
