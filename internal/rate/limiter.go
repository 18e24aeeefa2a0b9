package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Well-known bucket names. Buckets are independent: a lockout in one never
// affects the attempt window of another.
const (
	BucketAuthCode   = "auth_code"
	BucketLoginCheck = "login_check"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Threshold       int
	Window          time.Duration
	LockoutDuration time.Duration
}

// Limiter enforces a sliding-window failed-attempt budget per
// (identifier, bucket) pair using Redis counters, with a separate lockout
// flag once the threshold is reached.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	if prefix == "" {
		prefix = "tfl"
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

func hashedIdentity(bucket, identifier string) string {
	sum := sha256.Sum256([]byte(bucket + identifier))
	return hex.EncodeToString(sum[:16])
}

func (l *Limiter) counterKey(identifier, bucket string) string {
	return l.prefix + ":n:" + bucket + ":" + hashedIdentity(bucket, identifier)
}

func (l *Limiter) lockoutKey(identifier, bucket string) string {
	return l.prefix + ":lo:" + bucket + ":" + hashedIdentity(bucket, identifier)
}

// IsLockedOut reports whether the pair is currently locked out. It must be
// consulted before any verification attempt; polling it never extends the
// lockout.
func (l *Limiter) IsLockedOut(ctx context.Context, identifier, bucket string) (bool, error) {
	n, err := l.redis.Exists(ctx, l.lockoutKey(identifier, bucket)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// RecordFailure counts one failed attempt and reports whether this failure
// tripped the lockout. Each failure refreshes the window TTL (sliding-window
// approximation). When the threshold is reached the counter is deleted so a
// post-lockout window always starts fresh.
func (l *Limiter) RecordFailure(ctx context.Context, identifier, bucket string) (bool, error) {
	key := l.counterKey(identifier, bucket)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count < int64(l.config.Threshold) {
		return false, nil
	}

	pipe := l.redis.TxPipeline()
	pipe.Set(ctx, l.lockoutKey(identifier, bucket), "1", l.config.LockoutDuration)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return true, nil
}

// Clear removes the attempt counter and any lockout flag for the pair.
// Called after a successful verification.
func (l *Limiter) Clear(ctx context.Context, identifier, bucket string) error {
	keys := []string{
		l.counterKey(identifier, bucket),
		l.lockoutKey(identifier, bucket),
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LockoutRemaining returns how long the pair stays locked out, or zero when
// no lockout is active.
func (l *Limiter) LockoutRemaining(ctx context.Context, identifier, bucket string) (time.Duration, error) {
	ttl, err := l.redis.TTL(ctx, l.lockoutKey(identifier, bucket)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// FailureCount returns the live attempt counter for the pair. Missing keys
// return zero and do not reveal account existence.
func (l *Limiter) FailureCount(ctx context.Context, identifier, bucket string) (int, error) {
	count, err := l.redis.Get(ctx, l.counterKey(identifier, bucket)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}
