package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestLimiter(clock *fakeClock, cfg RateLimiterConfig) *RateLimiter {
	rl := NewRateLimiter(cfg)
	rl.now = clock.now
	rl.last = clock.now()
	return rl
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := newFakeClock()
	rl := newTestLimiter(clock, RateLimiterConfig{Rate: 2, Burst: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("call %d rejected within burst", i)
		}
	}
	if rl.Allow() {
		t.Fatal("call past burst allowed")
	}

	clock.add(500 * time.Millisecond)
	if !rl.Allow() {
		t.Error("token not refilled after 1/rate")
	}

	clock.add(time.Hour)
	if got := rl.Tokens(); got != 3 {
		t.Errorf("got %v tokens, want 3 (capped at burst)", got)
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	tests := []struct {
		name string
		cfg  RateLimiterConfig
		want float64
	}{
		{"zero config", RateLimiterConfig{}, 10},
		{"fractional rate", RateLimiterConfig{Rate: 0.5}, 1},
		{"explicit burst", RateLimiterConfig{Rate: 5, Burst: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewRateLimiter(tt.cfg).Tokens(); got < tt.want || got > tt.want+0.5 {
				t.Errorf("got %v tokens, want %v", got, tt.want)
			}
		})
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 100, Burst: 1})
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error: %v", err)
	}
	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("second Wait() returned after %v, want about 10ms", elapsed)
	}
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.01, Burst: 1})
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}
