package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/lgndcraft2/giving-tree/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyInitializeClient = "givingtree:ratelimit:initialize:"

// NewRedisClient returns nil when REDIS_ADDR is unset. Locks and rate limits
// are then disabled.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("redis not configured, rate limiting and replay lock disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

// InitializeLimiter throttles payment initialization per client address.
// INIT_RATE_LIMIT is the number of requests allowed per minute.
type InitializeLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewInitializeLimiter(client *redis.Client, cfg config.Config) *InitializeLimiter {
	if client == nil || cfg.InitRateLimit <= 0 {
		return nil
	}
	return &InitializeLimiter{
		bucket: NewTokenBucket(client),
		rate:   float64(cfg.InitRateLimit) / time.Minute.Seconds(),
		burst:  cfg.InitRateLimit,
	}
}

func (l *InitializeLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow always permits when the limiter is disabled.
func (l *InitializeLimiter) Allow(ctx context.Context, clientKey string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, keyInitializeClient+strings.TrimSpace(clientKey), l.rate, l.burst)
}
