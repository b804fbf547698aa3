package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces outgoing API requests with a token bucket. The backend
// can also pause it outright after a 429. A nil *RateLimiter never blocks.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration // time to earn one token
	burst    int
	tokens   float64
	last     time.Time
	until    time.Time // no tokens are handed out before this
	now      func() time.Time
}

// NewRateLimiter allows perMinute requests per minute with bursts of up to
// burst requests. perMinute below 1 returns nil, which disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute < 1 {
		return nil
	}
	burst = max(burst, 1)
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		burst:    burst,
		tokens:   float64(burst),
		last:     time.Now(),
		now:      time.Now,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}
	for {
		delay := rl.reserve()
		if delay == 0 {
			return nil
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Pause holds every request back for d, as asked by a retry_after hint.
// The bucket is emptied so requests resume one interval apart.
func (rl *RateLimiter) Pause(d time.Duration) {
	if rl == nil || d <= 0 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if until := rl.now().Add(d); until.After(rl.until) {
		rl.until = until
	}
	rl.tokens = 0
}

// reserve takes a token and returns 0, or returns how long to wait before
// trying again.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Before(rl.until) {
		rl.last = rl.until
		return rl.until.Sub(now)
	}
	if elapsed := now.Sub(rl.last); elapsed > 0 {
		rl.tokens += float64(elapsed) / float64(rl.interval)
		if rl.tokens > float64(rl.burst) {
			rl.tokens = float64(rl.burst)
		}
		rl.last = now
	}
	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	return time.Duration((1 - rl.tokens) * float64(rl.interval))
}
