package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// RedisLimiter shares the sliding window between instances. Each bucket is a
// sorted set of request ids scored by their unix time in milliseconds.
type RedisLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, rule Rule, key string) (Decision, error) {
	bucket := bucketKey(rule, key)
	now := l.now()
	member := strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()

	var card *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, bucket, "-inf", strconv.FormatInt(now.Add(-rule.Window).UnixMilli(), 10))
		pipe.ZAdd(ctx, bucket, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		card = pipe.ZCard(ctx, bucket)
		pipe.PExpire(ctx, bucket, rule.Window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to record request: %w", err)
	}

	if card.Val() <= int64(rule.Limit) {
		return Decision{Allowed: true}, nil
	}

	// Refused requests do not count against the window.
	if err := l.rdb.ZRem(ctx, bucket, member).Err(); err != nil {
		return Decision{}, fmt.Errorf("failed to drop refused request: %w", err)
	}

	oldest, err := l.rdb.ZRangeWithScores(ctx, bucket, 0, 0).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read window start: %w", err)
	}
	retryAfter := rule.Window
	if len(oldest) > 0 {
		start := time.UnixMilli(int64(oldest[0].Score))
		retryAfter = start.Add(rule.Window).Sub(now)
	}
	return Decision{RetryAfter: retryAfter}, nil
}
