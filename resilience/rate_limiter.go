package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures a token-bucket RateLimiter.
type RateLimiterConfig struct {
	// Rate is the sustained number of calls per second.
	Rate float64 `yaml:"rate" mapstructure:"rate" validate:"gte=0"`
	// Burst is the bucket size. Zero means one second's worth of Rate, at least 1.
	Burst int `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
}

// RateLimiter is a token bucket shared by every request of one client.
type RateLimiter struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter returns a full bucket. A non-positive Rate defaults to 10.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.Rate))
	}
	rl := &RateLimiter{rate: cfg.Rate, burst: float64(cfg.Burst), now: time.Now}
	rl.tokens = rl.burst
	rl.last = rl.now()
	return rl
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	_, ok := rl.take()
	return ok
}

// Wait blocks until a token is taken or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := rl.take()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// take consumes one token, or reports how long until one is available.
func (rl *RateLimiter) take() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	return time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second)), false
}

func (rl *RateLimiter) refill() {
	now := rl.now()
	rl.tokens = min(rl.burst, rl.tokens+now.Sub(rl.last).Seconds()*rl.rate)
	rl.last = now
}
