package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeql/storeql/logger"
)

func newTestLimiter(requests int, window time.Duration) (*Limiter, *MemoryStore, *time.Time) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return NewLimiter(store, logger.NewNop(), requests, window), store, &now
}

func TestLimiterAdmitsUnderThreshold(t *testing.T) {
	l, _, _ := newTestLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(ctx, "store-a"))
	}
}

func TestLimiterRejectsOverThreshold(t *testing.T) {
	l, _, _ := newTestLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(ctx, "store-a"))
	}

	err := l.Allow(ctx, "store-a")
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.LessOrEqual(t, rle.RetryAfter, time.Minute)
	assert.GreaterOrEqual(t, rle.RetryAfterSeconds(), 1)
}

func TestLimiterRecoversAfterWindow(t *testing.T) {
	l, _, now := newTestLimiter(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "store-a"))
	require.NoError(t, l.Allow(ctx, "store-a"))
	require.Error(t, l.Allow(ctx, "store-a"))

	*now = now.Add(61 * time.Second)
	assert.NoError(t, l.Allow(ctx, "store-a"))
}

func TestLimiterIsolatesStores(t *testing.T) {
	l, _, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "store-a"))
	require.Error(t, l.Allow(ctx, "store-a"))

	// A different store's window is untouched.
	assert.NoError(t, l.Allow(ctx, "store-b"))
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingStore) TTL(context.Context, string) (time.Duration, error) {
	return 0, errors.New("connection refused")
}

func TestLimiterFailsOpenOnStoreOutage(t *testing.T) {
	l := NewLimiter(failingStore{}, logger.NewNop(), 1, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		assert.NoError(t, l.Allow(ctx, "store-a"))
	}
}

type noTTLStore struct{ *MemoryStore }

func (s *noTTLStore) TTL(context.Context, string) (time.Duration, error) {
	return 0, errors.New("ttl unavailable")
}

func TestLimiterFallsBackToWindowWhenTTLUnreadable(t *testing.T) {
	store := &noTTLStore{MemoryStore: NewMemoryStore()}
	l := NewLimiter(store, logger.NewNop(), 1, 45*time.Second)
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "store-a"))
	err := l.Allow(ctx, "store-a")
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 45*time.Second, rle.RetryAfter)
}

func TestMemoryStoreTTLCountsDown(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(40 * time.Second)
	ttl, err := store.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, ttl)
}
