package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisFactory mints distributed locks backed by SET NX EX.
type RedisFactory struct {
	client        *redis.Client
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisFactory(client *redis.Client) *RedisFactory {
	return &RedisFactory{
		client:        client,
		expiration:    30 * time.Second,
		retryInterval: 100 * time.Millisecond,
		maxRetries:    30,
	}
}

func (f *RedisFactory) NewLock(key, token string) AccountLock {
	return &DistributedLock{
		client:        f.client,
		key:           key,
		value:         token,
		expiration:    f.expiration,
		retryInterval: f.retryInterval,
		maxRetries:    f.maxRetries,
	}
}

// DistributedLock is a Redis SetNX lock with an expiry so a crashed holder
// cannot deadlock the account, and a holder token so an expired holder
// cannot release its successor's lock.
type DistributedLock struct {
	client        *redis.Client
	key           string
	value         string
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

// TryLock attempts the SET NX once.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock acquires with retries.
func (l *DistributedLock) Lock(ctx context.Context) error {
	return retryLoop(ctx, l.retryInterval, l.maxRetries, l.TryLock)
}

// Unlock releases the lock only if we still hold it. The check and delete
// run in one Lua script so they cannot interleave with another acquirer.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}
