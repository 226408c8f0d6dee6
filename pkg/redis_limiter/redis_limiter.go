package redis_limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ErrLimitReached is returned by Acquire when every slot is taken.
var ErrLimitReached = errors.New("concurrency limit reached")

// acquireScript increments the counter unless it already reached ARGV[1].
// It returns the would-be count, so a value above the limit means failure.
var acquireScript = redis.NewScript(`local current = redis.call('GET', KEYS[1])
if current == false then
	current = 0
else
	current = tonumber(current)
end

if current >= tonumber(ARGV[1]) then
	return current + 1
end

local newCount = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
return newCount`)

// releaseScript decrements the counter and removes it at zero.
var releaseScript = redis.NewScript(`local count = redis.call('DECR', KEYS[1])
if tonumber(count) <= 0 then
	redis.call('DEL', KEYS[1])
	return 0
else
	redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
	return count
end`)

// RedisLimiter is a concurrency limiter shared by every replica through Redis.
type RedisLimiter struct {
	client        *redis.Client
	maxConcurrent int
	keyPrefix     string
	ttl           time.Duration
	log           logrus.FieldLogger
}

// NewRedisLimiter creates a limiter. ttl bounds how long a slot leaked by a
// crashed replica stays held.
func NewRedisLimiter(client *redis.Client, maxConcurrent int, keyPrefix string, ttl time.Duration, log logrus.FieldLogger) *RedisLimiter {
	return &RedisLimiter{
		client:        client,
		maxConcurrent: maxConcurrent,
		keyPrefix:     keyPrefix,
		ttl:           ttl,
		log:           log.WithField("component", "redis_limiter"),
	}
}

// Acquire takes a slot for key or fails with ErrLimitReached.
func (rl *RedisLimiter) Acquire(ctx context.Context, key string) error {
	redisKey := rl.keyPrefix + key

	result, err := acquireScript.Run(ctx, rl.client, []string{redisKey}, rl.maxConcurrent, ttlSeconds(rl.ttl)).Int()
	if err != nil {
		return fmt.Errorf("run acquire script: %w", err)
	}

	if result > rl.maxConcurrent {
		rl.log.WithFields(logrus.Fields{
			"key":     key,
			"current": result - 1,
			"max":     rl.maxConcurrent,
		}).Warn("slots exhausted")
		return fmt.Errorf("%w: %d", ErrLimitReached, rl.maxConcurrent)
	}

	rl.log.WithFields(logrus.Fields{"key": key, "current": result}).Debug("slot acquired")
	return nil
}

// Release frees a slot for key. Errors are logged, the slot then expires with the TTL.
func (rl *RedisLimiter) Release(ctx context.Context, key string) {
	redisKey := rl.keyPrefix + key

	// the request context may already be canceled here
	ctx = context.WithoutCancel(ctx)

	remaining, err := releaseScript.Run(ctx, rl.client, []string{redisKey}, ttlSeconds(rl.ttl)).Int()
	if err != nil {
		rl.log.WithError(err).WithField("key", key).Error("run release script")
		return
	}

	rl.log.WithFields(logrus.Fields{"key": key, "current": remaining}).Debug("slot released")
}

// GetCurrent returns the number of held slots for key.
func (rl *RedisLimiter) GetCurrent(ctx context.Context, key string) (int, error) {
	current, err := rl.client.Get(ctx, rl.keyPrefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read slot count: %w", err)
	}
	return current, nil
}

// GetMaxConcurrent returns the configured limit.
func (rl *RedisLimiter) GetMaxConcurrent() int {
	return rl.maxConcurrent
}

func ttlSeconds(d time.Duration) int {
	s := int(d.Seconds())
	if s < 1 {
		return 1
	}
	return s
}
