package ratelimit

import (
	"context"

	"github.com/cardlens/creditd/internal/config"
	"github.com/cardlens/creditd/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DeductLimiter sits in front of the spend path. A nil limiter, a
// disabled config or a redis outage all fail open: credit accounting is
// the real guard, the limiter only smooths bursts.
type DeductLimiter struct {
	bucket  *TokenBucket
	rate    float64
	burst   int
	log     *zap.Logger
	metrics *metrics.Metrics
}

type LimiterParam struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewDeductLimiter(p LimiterParam) *DeductLimiter {
	cfg := p.Config.RateLimit
	if !cfg.Enabled || cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &DeductLimiter{
		bucket:  NewTokenBucket(client),
		rate:    cfg.DeductRate,
		burst:   cfg.DeductBurst,
		log:     p.Log.Named("ratelimit"),
		metrics: p.Metrics,
	}
}

// Allow reports whether the identity may attempt a deduction now.
func (l *DeductLimiter) Allow(ctx context.Context, identityKey string) (*RateLimitResult, bool) {
	if l == nil || l.bucket == nil {
		return nil, true
	}

	res, err := l.bucket.Allow(ctx, "creditd:deduct:"+identityKey, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		return nil, true
	}
	if !res.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, "deduct")
	}
	return res, res.Allowed
}

var Module = fx.Module("ratelimit",
	fx.Provide(NewDeductLimiter),
)
