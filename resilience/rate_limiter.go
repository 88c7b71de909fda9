package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited matches every rejection by a rate limiter.
var ErrRateLimited = errors.New("rate limit exceeded")

// LimitedError is returned when a limiter will not hand out a token soon enough.
type LimitedError struct {
	Name string
	// RetryAfter is how long until the next token is available.
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited, retry after %s", e.Name, e.RetryAfter.Round(time.Millisecond))
}

// Is makes errors.Is(err, ErrRateLimited) hold.
func (e *LimitedError) Is(target error) bool { return target == ErrRateLimited }

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	// Rate is tokens added per second.
	Rate float64 `yaml:"rate" mapstructure:"rate"`
	// Burst is the bucket size. Zero means ceil(Rate), at least 1.
	Burst int `yaml:"burst" mapstructure:"burst"`
	// MaxWait bounds how long Wait queues for a token. Zero waits as long as
	// the context allows.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
}

// DefaultRateLimiterConfig allows 10 stream opens per second, bursting to 20.
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{Name: name, Rate: 10, Burst: 20}
}

// RateLimiter is a token bucket. Wait reserves its token up front, so
// concurrent waiters are served in arrival order.
type RateLimiter struct {
	cfg RateLimiterConfig
	now func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRateLimiterConfig("").Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(int(cfg.Rate+0.999), 1)
	}
	rl := &RateLimiter{cfg: cfg, now: time.Now, tokens: float64(cfg.Burst)}
	rl.last = rl.now()
	return rl
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

// Delay reports how long until a token is available. Zero means now.
func (rl *RateLimiter) Delay() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.deficit(1)
}

// Wait blocks until a token is available. It returns a *LimitedError
// without waiting when the token is further out than MaxWait, and the
// context error when ctx ends first; the reserved token is returned then.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	rl.refill()
	delay := rl.deficit(1)
	if rl.cfg.MaxWait > 0 && delay > rl.cfg.MaxWait {
		rl.mu.Unlock()
		return &LimitedError{Name: rl.cfg.Name, RetryAfter: delay}
	}
	if deadline, ok := ctx.Deadline(); ok && delay > 0 && rl.now().Add(delay).After(deadline) {
		rl.mu.Unlock()
		return context.DeadlineExceeded
	}
	rl.tokens--
	rl.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		rl.mu.Lock()
		rl.tokens++
		rl.mu.Unlock()
		return ctx.Err()
	}
}

// refill adds tokens for the time since the last call. Callers hold mu.
func (rl *RateLimiter) refill() {
	now := rl.now()
	rl.tokens = min(rl.tokens+now.Sub(rl.last).Seconds()*rl.cfg.Rate, float64(rl.cfg.Burst))
	rl.last = now
}

func (rl *RateLimiter) deficit(n float64) time.Duration {
	if rl.tokens >= n {
		return 0
	}
	return time.Duration((n - rl.tokens) / rl.cfg.Rate * float64(time.Second))
}
