package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
)

// Locker adapts the distributed lock to the application-layer Locker port.
// Every concurrency-sensitive escrow mutation runs under a per-key lock; the
// conditional writes in the repositories remain the hard guarantee, the lock
// keeps the common case free of optimistic-lock retries.
type Locker struct {
	client     *redis.Client
	ttl        time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewLocker creates a redis-backed Locker.
func NewLocker(client *redis.Client, ttl time.Duration, maxRetries int, retryDelay time.Duration, logger zerolog.Logger) *Locker {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = 100 * time.Millisecond
	}
	return &Locker{
		client:     client,
		ttl:        ttl,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// WithLock runs fn while holding the lock for key. Failure to acquire within
// the retry budget returns ErrLockAcquisitionFailed without running fn.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock := NewDistributedLock(l.client, key, l.ttl)

	if err := lock.AcquireWithRetry(ctx, l.maxRetries, l.retryDelay); err != nil {
		return domainErrors.ErrLockAcquisitionFailed
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("failed to release lock")
		}
	}()

	return fn(ctx)
}
