package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how often one client may call the AI-backed
// endpoints. A zero RequestsPerMinute disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute float64
	Burst             int
}

// DefaultRateLimitConfig allows a short burst of consultations per client.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 30, Burst: 10}
}

type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      RateLimitConfig
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerMinute/60), s.cfg.Burst)
		s.limiters[key] = l
	}
	return l
}

// take consumes one token. When none is left it returns the whole seconds
// until the next one and leaves the bucket untouched.
func take(l *rate.Limiter, now time.Time) (bool, int) {
	r := l.ReserveN(now, 1)
	if !r.OK() {
		return false, 1
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, int(math.Ceil(d.Seconds()))
	}
	return true, 0
}

// RateLimit limits requests per client IP with one token bucket each.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	store := &limiterStore{limiters: make(map[string]*rate.Limiter), cfg: cfg}
	limit := strconv.FormatFloat(cfg.RequestsPerMinute, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.RequestsPerMinute <= 0 {
				return next(c)
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			ok, wait := take(store.get(c.RealIP()), time.Now())
			if !ok {
				h.Set("Retry-After", strconv.Itoa(wait))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
