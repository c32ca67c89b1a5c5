package consecutive

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisLock implements Lock on top of go-redis, using SET NX PX for
// acquisition and a value check before DEL so a lock owner never releases
// a lock it does not hold (e.g. after its own TTL already expired and
// another caller acquired it).
type RedisLock struct {
	client *redis.Client
	owner  string
}

var _ Lock = (*RedisLock)(nil)

// NewRedisLock builds a RedisLock whose releases are scoped to owner — pass
// a unique value per process (e.g. a uuid) so Unlock never clears a lock
// someone else now holds.
func NewRedisLock(client *redis.Client, owner string) *RedisLock {
	return &RedisLock{client: client, owner: owner}
}

func (l *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(key), l.owner, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis lock acquire failed")
	}
	return ok, nil
}

func (l *RedisLock) Unlock(ctx context.Context, key string) error {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)
	if err := script.Run(ctx, l.client, []string{lockKey(key)}, l.owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrap(err, "redis lock release failed")
	}
	return nil
}

func lockKey(key string) string { return "docxfer:lock:" + key }
