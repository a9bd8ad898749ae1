package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// fixedWindowScript increments the window counter and starts its expiry on
// the first hit, in one round trip.
//
// KEYS[1]: counter key
// ARGV[1]: window in milliseconds
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

const (
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
	redisCallTimeout        = 100 * time.Millisecond
)

// RedisLimiter is a fixed-window limiter shared by every instance through
// Redis. While Redis is failing the circuit breaker opens and requests are
// allowed.
type RedisLimiter struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[int64]
	rate    int
	window  time.Duration
	prefix  string
	logger  *zap.Logger
}

func NewRedisLimiter(client *redis.Client, prefix string, requestsPerWindow int, window time.Duration) *RedisLimiter {
	l := &RedisLimiter{
		client: client,
		rate:   requestsPerWindow,
		window: window,
		prefix: prefix,
		logger: zap.L().With(zap.String("component", "RedisLimiter")),
	}

	l.breaker = gobreaker.NewCircuitBreaker[int64](gobreaker.Settings{
		Name:    "redis-rate-limit:" + prefix,
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.logger.Warn("Rate limiter circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return l
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.breaker.Execute(func() (int64, error) {
		ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
		defer cancel()
		return fixedWindowScript.Run(ctx, l.client, []string{l.key(key)}, l.window.Milliseconds()).Int64()
	})
	if err != nil {
		return true, fmt.Errorf("rate limit check failed: %w", err)
	}
	return count <= int64(l.rate), nil
}

func (l *RedisLimiter) key(client string) string {
	return fmt.Sprintf("ratelimit:%s:%s", l.prefix, client)
}

func (l *RedisLimiter) Limit() int            { return l.rate }
func (l *RedisLimiter) Window() time.Duration { return l.window }
func (l *RedisLimiter) Name() string          { return "redis" }
