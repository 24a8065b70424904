// Package ratelimit 基于 Redis 的 GCRA 限流，用于登录与注册等匿名入口
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "jipate:ratelimit"

// RateLimiter 按 key 判断请求是否放行，规则在构造时确定
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Config 每秒 QPS 次，允许 Burst 突发；Burst 小于 QPS 时按 QPS 处理
type Config struct {
	QPS    int
	Burst  int
	Prefix string
}

// Result 限流判定结果
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter 使用 redis_rate 实现 RateLimiter
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisRateLimiter 创建限流器
func NewRedisRateLimiter(rdb *redis.Client, cfg Config) (*RedisRateLimiter, error) {
	if cfg.QPS <= 0 {
		return nil, fmt.Errorf("rate limit qps must be positive, got %d", cfg.QPS)
	}
	burst := max(cfg.Burst, cfg.QPS)
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   redis_rate.Limit{Rate: cfg.QPS, Period: time.Second, Burst: burst},
		prefix:  prefix,
	}, nil
}

// Allow 判定 key 的请求是否放行
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	res, err := r.limiter.Allow(ctx, r.prefix+":"+key, r.limit)
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed for %s: %w", key, err)
	}
	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      r.limit.Burst,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}
