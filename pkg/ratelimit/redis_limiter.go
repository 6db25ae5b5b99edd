package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisConfig defines the API-tier limits
type RedisConfig struct {
	IPLimit    int64
	IPWindow   time.Duration
	UserLimit  int64
	UserWindow time.Duration
}

// RedisLimiter is a sliding-window limiter shared across instances via
// redis sorted sets. It fronts the HTTP API; failures fail open so a
// redis outage does not take the platform down with it.
type RedisLimiter struct {
	client *redis.Client
	config RedisConfig
	logger *zap.Logger
}

// NewRedisLimiter creates a redis-backed API limiter
func NewRedisLimiter(client *redis.Client, config RedisConfig, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, config: config, logger: logger}
}

// Result is the outcome of a limit check
type Result struct {
	Allowed    bool
	LimitedBy  string
	RetryAfter time.Duration
}

// Check runs the IP tier then the user tier
func (l *RedisLimiter) Check(ctx context.Context, ip, userID string) (*Result, error) {
	if l.config.IPLimit > 0 && ip != "" {
		ok, err := l.check(ctx, "ip:"+ip, l.config.IPLimit, l.config.IPWindow)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &Result{LimitedBy: "ip", RetryAfter: l.config.IPWindow}, nil
		}
	}
	if l.config.UserLimit > 0 && userID != "" {
		ok, err := l.check(ctx, "user:"+userID, l.config.UserLimit, l.config.UserWindow)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &Result{LimitedBy: "user", RetryAfter: l.config.UserWindow}, nil
		}
	}
	return &Result{Allowed: true}, nil
}

func (l *RedisLimiter) check(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	redisKey := "ratelimit:" + key
	now := time.Now()
	windowStart := now.Add(-window)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, &redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, redisKey, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
		return true, nil
	}
	return countCmd.Val() < limit, nil
}
