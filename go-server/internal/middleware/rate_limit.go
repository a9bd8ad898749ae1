package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/metrics"
)

// Limiter decides whether the client identified by key may make one more request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
	Window() time.Duration
	Name() string
}

// RateLimit rejects clients over the limiter's budget with 429. Limiter
// errors are logged and the request is let through.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		allowed, err := limiter.Allow(c.Request.Context(), clientIP)
		if err != nil {
			zap.L().Warn("Rate limiter unavailable, allowing request",
				zap.String("limiter", limiter.Name()),
				zap.Error(err),
			)
		}

		if !allowed {
			zap.L().Warn("Rate limit exceeded",
				zap.String("ip", clientIP),
				zap.String("path", c.Request.URL.Path),
			)
			metrics.RecordRateLimited(limiter.Name())

			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.Limit()))
			c.Header("X-RateLimit-Window", limiter.Window().String())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"code":        "RATE_LIMIT_EXCEEDED",
				"retry_after": limiter.Window().Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RateLimiter is a fixed-window limiter kept in process memory.
type RateLimiter struct {
	requests map[string]*clientBucket
	mutex    sync.RWMutex
	rate     int
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

type clientBucket struct {
	count     int
	resetTime time.Time
}

func NewRateLimiter(requestsPerWindow int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string]*clientBucket),
		rate:     requestsPerWindow,
		window:   window,
		done:     make(chan struct{}),
	}

	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	return rl.allow(key), nil
}

func (rl *RateLimiter) Limit() int            { return rl.rate }
func (rl *RateLimiter) Window() time.Duration { return rl.window }
func (rl *RateLimiter) Name() string          { return "memory" }

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) allow(clientIP string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	bucket, exists := rl.requests[clientIP]

	if !exists || now.After(bucket.resetTime) {
		rl.requests[clientIP] = &clientBucket{
			count:     1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	if bucket.count >= rl.rate {
		return false
	}

	bucket.count++
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}

		rl.mutex.Lock()
		now := time.Now()
		for ip, bucket := range rl.requests {
			if now.After(bucket.resetTime) {
				delete(rl.requests, ip)
			}
		}
		rl.mutex.Unlock()
	}
}
