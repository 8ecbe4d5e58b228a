// Package distlock provides a redis-backed distributed lock. The scheduler
// uses it as a leader lock so that running several cmd/server instances does
// not double-fire periodic jobs; the import worker does NOT use it (profile
// exclusion is a store-level document with its own semantics).
package distlock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLock is a TTL-based lock. The token guards against releasing or
// extending a lock that has expired and been re-acquired elsewhere.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLock creates a lock on the given key. The instance is owned by a
// single goroutine; share keys, not instances.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		token:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire tries to take the lock. Returns true on success, false when
// another holder is alive.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

// releaseScript deletes the key only while we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release gives the lock up if we still own it. Releasing an expired lock
// is not an error.
func (l *RedisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// extendScript refreshes the TTL only while we still own the key.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Extend refreshes the TTL. Call it at a fraction of the TTL from the
// holding goroutine.
func (l *RedisLock) Extend(ctx context.Context) error {
	return extendScript.Run(ctx, l.client,
		[]string{l.key}, l.token, l.ttl.Milliseconds()).Err()
}

// KeepAlive extends the lock every ttl/3 until the context ends, then
// releases it. Intended to run as a goroutine next to the protected work.
func (l *RedisLock) KeepAlive(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			l.Release(releaseCtx)
			cancel()
			return
		case <-ticker.C:
			l.Extend(ctx)
		}
	}
}
