// Package redislock provides a redis-backed mutual exclusion lock used to
// keep two workers from running the same sweep kind concurrently.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only when the stored token matches, so a
// lock that expired and was re-acquired elsewhere is never released by the
// previous holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker acquires named locks against a redis instance.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewLocker creates a Locker with the given lock time-to-live.
func NewLocker(client redis.UniversalClient, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Locker{client: client, ttl: ttl}
}

// Lock represents a held lock.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Acquire attempts to take the named lock. It does not block: if the lock is
// held elsewhere, ErrNotAcquired is returned immediately.
func (l *Locker) Acquire(ctx context.Context, name string) (*Lock, error) {
	key := "arrears:lock:" + name
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release frees the lock if it is still owned by this holder.
func (lk *Lock) Release(ctx context.Context) error {
	return lk.client.Eval(ctx, releaseScript, []string{lk.key}, lk.token).Err()
}

// WithLock runs fn while holding the named lock. If the lock is held by
// another process, fn is skipped and ErrNotAcquired is returned.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	lock, err := l.Acquire(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}()

	return fn(ctx)
}
