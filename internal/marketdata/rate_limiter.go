package marketdata

import (
	"context"
	"sync"
	"time"
)

// RateLimiter caps outbound FMP requests inside a sliding one-minute window.
// FMP's starter tier enforces a per-minute quota; exceeding it returns 429s
// for the rest of the window, so we throttle proactively.
type RateLimiter struct {
	mu       sync.Mutex
	requests []time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 300
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		requests: make([]time.Time, 0, limit),
		limit:    limit,
		window:   window,
	}
}

// Wait blocks until a request slot is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		windowStart := now.Add(-r.window)

		recent := r.requests[:0]
		for _, t := range r.requests {
			if t.After(windowStart) {
				recent = append(recent, t)
			}
		}
		r.requests = recent

		if len(r.requests) < r.limit {
			r.requests = append(r.requests, now)
			r.mu.Unlock()
			return nil
		}

		wait := r.requests[0].Add(r.window).Sub(now)
		r.mu.Unlock()

		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
