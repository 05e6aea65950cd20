package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Suhaibinator/SOnion/pkg/common"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Unique identifier for this rate limit bucket
	// If several middlewares share the same BucketName and limiter, they share the same rate limit
	BucketName string

	// Maximum number of requests allowed in the time window
	Limit int

	// Time window for the rate limit (e.g., 1 minute, 1 hour)
	Window time.Duration

	// Strategy for identifying clients
	// - "ip": Use client IP address (default)
	// - "custom": Use KeyExtractor
	Strategy string

	// Custom key extractor function (used when Strategy is "custom")
	KeyExtractor func(*common.Context) (string, error)
}

// RateLimiter defines the interface for rate limiting algorithms
type RateLimiter interface {
	// Allow reports whether a request for key is allowed, the number of
	// remaining requests and the time until the window resets.
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

type window struct {
	start time.Time
	count int
}

// FixedWindowLimiter counts requests per key in fixed time windows.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewFixedWindowLimiter creates a new FixedWindowLimiter
func NewFixedWindowLimiter() *FixedWindowLimiter {
	return &FixedWindowLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow implements RateLimiter. A non-positive window defaults to one second
// and a non-positive limit is treated as 1.
func (l *FixedWindowLimiter) Allow(key string, limit int, win time.Duration) (bool, int, time.Duration) {
	if win <= 0 {
		win = time.Second
	}
	if limit <= 0 {
		limit = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= win {
		w = &window{start: now}
		l.windows[key] = w
	}

	reset := w.start.Add(win).Sub(now)
	if w.count >= limit {
		return false, 0, reset
	}

	w.count++
	return true, limit - w.count, reset
}

// RateLimit creates a middleware that enforces rate limits.
// Rejected requests short-circuit the chain with a 429 *common.HTTPError.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *common.Context, next common.Next) error {
		// Skip rate limiting if config is nil
		if config == nil {
			return next()
		}

		var key string
		switch config.Strategy {
		case "custom":
			if config.KeyExtractor != nil {
				k, err := config.KeyExtractor(c)
				if err != nil {
					logger.Error("Failed to extract rate limit key",
						zap.Error(err),
						zap.String("method", c.Method()),
						zap.String("path", c.URL()),
					)
					return &common.HTTPError{
						StatusCode: http.StatusInternalServerError,
						Message:    http.StatusText(http.StatusInternalServerError),
						Err:        err,
					}
				}
				key = k
				break
			}
			key = clientKey(c)
		default:
			key = clientKey(c)
		}

		bucketKey := config.BucketName + ":" + key
		allowed, remaining, reset := limiter.Allow(bucketKey, config.Limit, config.Window)

		c.Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if !allowed {
			retryAfter := int64(reset / time.Second)
			if reset%time.Second != 0 {
				retryAfter++
			}
			c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

			logger.Warn("Rate limit exceeded",
				zap.String("method", c.Method()),
				zap.String("path", c.URL()),
				zap.String("key", key),
				zap.Int("limit", config.Limit),
			)
			return common.NewHTTPError(http.StatusTooManyRequests, "")
		}

		return next()
	}
}

// clientKey prefers the IP resolved by ClientIPMiddleware.
func clientKey(c *common.Context) string {
	if ip := ClientIP(c); ip != "" {
		return ip
	}
	return extractClientIP(c.Request, DefaultIPConfig())
}

// Throttle paces requests to at most rps per second using Uber's leaky-bucket limiter.
// Unlike RateLimit it never rejects: each request suspends until its slot comes up.
// The wait is abandoned with a 503 if the request context ends first.
func Throttle(rps int, opts ...ratelimit.Option) Middleware {
	limiter := ratelimit.New(rps, opts...)

	return func(c *common.Context, next common.Next) error {
		ready := make(chan struct{})
		go func() {
			limiter.Take()
			close(ready)
		}()

		select {
		case <-ready:
			return next()
		case <-c.Context().Done():
			return &common.HTTPError{
				StatusCode: http.StatusServiceUnavailable,
				Message:    http.StatusText(http.StatusServiceUnavailable),
				Err:        c.Context().Err(),
			}
		}
	}
}
