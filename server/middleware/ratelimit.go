package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/lexstream/errors"
	"github.com/kbukum/lexstream/resilience"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate allowed per key.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	// Burst is the bucket size per key.
	Burst int `yaml:"burst" mapstructure:"burst"`
	// IdleTTL evicts buckets not used for this long. Defaults to 5m.
	IdleTTL time.Duration `yaml:"idle_ttl" mapstructure:"idle_ttl"`
	// KeyFunc extracts the rate limit key from a request. Defaults to client IP.
	KeyFunc func(*gin.Context) string `yaml:"-" mapstructure:"-"`
}

// RateLimit returns a Gin middleware that gives every key its own token
// bucket. Over-limit requests get 429 with Retry-After before any stream
// is opened.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPBasedKey
	}

	buckets := &keyedLimiters{cfg: cfg, entries: make(map[string]*keyedEntry)}

	return func(c *gin.Context) {
		bucket := buckets.get(cfg.KeyFunc(c))
		if !bucket.Allow() {
			delay := bucket.Delay()
			c.Header("Retry-After", strconv.Itoa(max(int(math.Ceil(delay.Seconds())), 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apperrors.RateLimited(delay).ToResponse())
			return
		}
		c.Next()
	}
}

// IPBasedKey extracts the client IP for use as a rate limit key.
func IPBasedKey(c *gin.Context) string {
	return c.ClientIP()
}

// SubjectBasedKey uses the token subject when Auth ran first, else the client IP.
func SubjectBasedKey(c *gin.Context) string {
	if sub, ok := c.Get("sub"); ok {
		if s, ok := sub.(string); ok && s != "" {
			return s
		}
	}
	return c.ClientIP()
}

type keyedEntry struct {
	limiter  *resilience.RateLimiter
	lastSeen time.Time
}

type keyedLimiters struct {
	cfg       RateLimitConfig
	mu        sync.Mutex
	entries   map[string]*keyedEntry
	lastSweep time.Time
}

func (k *keyedLimiters) get(key string) *resilience.RateLimiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	if now.Sub(k.lastSweep) > k.cfg.IdleTTL {
		for name, e := range k.entries {
			if now.Sub(e.lastSeen) > k.cfg.IdleTTL {
				delete(k.entries, name)
			}
		}
		k.lastSweep = now
	}

	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{limiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  "http:" + key,
			Rate:  k.cfg.RequestsPerSecond,
			Burst: k.cfg.Burst,
		})}
		k.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}
