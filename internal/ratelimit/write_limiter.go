package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rentbook/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyWriteClient = "rentbook:ratelimit:write:%s"

// WriteLimiter throttles mutating API requests per client key. A nil
// *WriteLimiter allows everything.
type WriteLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewWriteLimiter returns nil unless rate limiting is enabled and Redis is
// configured.
func NewWriteLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*WriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if !cfg.Redis.Enabled() {
		log.Warn("rate limiting requested without REDIS_ADDR; write requests are not throttled")
		return nil, nil
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		return nil, fmt.Errorf("write rate limit: %w", ErrInvalidRate)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return newWriteLimiter(client, limitCfg.WriteRate, limitCfg.WriteBurst), nil
}

func newWriteLimiter(client redis.Scripter, rate float64, burst int) *WriteLimiter {
	return &WriteLimiter{
		bucket: NewTokenBucket(client),
		rate:   rate,
		burst:  burst,
	}
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WriteLimiter) Allow(ctx context.Context, clientKey string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "anonymous"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWriteClient, clientKey), l.rate, l.burst)
}
