// Package ratelimit gates chat requests per store before any expensive
// work (AI call, query execution) is attempted.
//
// Design decisions:
//   - The limiter counts attempts, not successes: admission is charged
//     even when a later pipeline stage fails. Nothing is rolled back.
//   - Counter storage sits behind the narrow CounterStore interface so
//     the atomic increment-with-expiry requirement can be met by a
//     Redis script in production and an in-process map in tests or
//     single-node deployments.
//   - If the counter store is unreachable the limiter fails open:
//     keeping the chat feature available outranks strict quota
//     enforcement during an outage.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/storeql/storeql/logger"
)

// CounterStore is the primitive the limiter needs: an increment that
// atomically starts the expiry window when the counter is created, and
// a TTL read for computing retry-after.
type CounterStore interface {
	// Incr increments key and, only when the counter transitions from
	// absent to 1, sets its expiry to ttl. The increment and the expiry
	// set must be a single atomic operation: a counter that exists
	// without an expiry would wedge its tenant's quota forever.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TTL reports the remaining lifetime of key.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// RateLimitError reports an exceeded quota and when to retry.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %ds", e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for use in a
// Retry-After header.
func (e *RateLimitError) RetryAfterSeconds() int {
	s := int(math.Ceil(e.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// Limiter admits or rejects requests per store over a fixed window.
type Limiter struct {
	store    CounterStore
	log      *logger.Logger
	requests int64
	window   time.Duration
}

// NewLimiter creates a limiter allowing requests per window for each store.
func NewLimiter(store CounterStore, log *logger.Logger, requests int, window time.Duration) *Limiter {
	return &Limiter{
		store:    store,
		log:      log.With("component", "ratelimit"),
		requests: int64(requests),
		window:   window,
	}
}

// Allow charges one request against storeID's window. It returns nil on
// admission, a *RateLimitError when the quota is exhausted, and nil
// (fail open) when the counter store itself is unavailable.
func (l *Limiter) Allow(ctx context.Context, storeID string) error {
	key := "ratelimit:store:" + storeID

	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		l.log.Warn("counter store unavailable, failing open", "store_id", storeID, "error", err)
		return nil
	}
	if count <= l.requests {
		return nil
	}

	retryAfter := l.window
	if ttl, err := l.store.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = ttl
	}
	return &RateLimitError{RetryAfter: retryAfter}
}
