package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"moff.io/moff-connect/pkg/errors"
)

// RateLimiter 基于redis的GCRA限流器，按key限制每分钟请求次数
type RateLimiter struct {
	limiter   *redis_rate.Limiter
	perMinute int
}

func NewRateLimiter(client redis.UniversalClient, perMinute int) *RateLimiter {
	return &RateLimiter{limiter: redis_rate.NewLimiter(client), perMinute: perMinute}
}

// Allow reports whether key may proceed and, if not, how long to wait.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := l.limiter.Allow(ctx, "moff-connect:rate:"+key, redis_rate.PerMinute(l.perMinute))
	if err != nil {
		return false, 0, errors.WrapAndReport(err, "redis rate limit")
	}
	return res.Allowed > 0, res.RetryAfter, nil
}
