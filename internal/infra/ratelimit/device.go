package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"pushdesk/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

var _ notification.TestSendLimiter = (*RedisDeviceLimiter)(nil)

// RedisDeviceLimiter caps test-send pushes per device token using Redis
// sorted sets. Sliding window: each push is a member scored by its
// timestamp.
type RedisDeviceLimiter struct {
	client     *redis.Client
	maxPerHour int
	window     time.Duration
}

// NewRedisDeviceLimiter creates a new Redis-based per-device limiter.
func NewRedisDeviceLimiter(redisAddr, password string, db int, maxPerHour int) *RedisDeviceLimiter {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	return &RedisDeviceLimiter{
		client:     client,
		maxPerHour: maxPerHour,
		window:     time.Hour,
	}
}

// Allow reports whether a test send to the given token may proceed.
func (r *RedisDeviceLimiter) Allow(ctx context.Context, token string) (bool, error) {
	key := fmt.Sprintf("pushdesk:testsend:%s", token)
	now := time.Now()
	windowStart := now.Add(-r.window)

	pipe := r.client.Pipeline()

	// Drop entries outside the sliding window, then count what remains.
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("checking test-send limit: %w", err)
	}

	if countCmd.Val() >= int64(r.maxPerHour) {
		return false, nil
	}

	// Unique member so concurrent sends don't collide.
	randBytes := make([]byte, 4)
	_, _ = rand.Read(randBytes)
	member := redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), hex.EncodeToString(randBytes)),
	}

	pipe2 := r.client.Pipeline()
	pipe2.ZAdd(ctx, key, member)
	pipe2.Expire(ctx, key, r.window+time.Minute)

	if _, err := pipe2.Exec(ctx); err != nil {
		return false, fmt.Errorf("recording test-send entry: %w", err)
	}

	return true, nil
}

// Close closes the Redis connection.
func (r *RedisDeviceLimiter) Close() error {
	return r.client.Close()
}
