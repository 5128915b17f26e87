// Package ratelimit paces transaction submission for a benchmark round.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxWaitSlice bounds how long Wait sleeps on one reservation. Longer waits
// are re-planned so a rate raised by SetRate reaches workers already waiting.
const maxWaitSlice = 10 * time.Millisecond

// RateLimiter is shared by all workers of a round. A rate of 0 disables it.
type RateLimiter struct {
	limiter *rate.Limiter
	mu      sync.RWMutex
}

// NewRateLimiter creates a limiter sending tps transactions per second.
// Burst is 1 so sends are spaced evenly rather than front-loaded.
func NewRateLimiter(tps float64) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(tps), 1),
	}
}

// Wait blocks until the next send is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.RLock()
		limiter := r.limiter
		r.mu.RUnlock()

		if limiter.Limit() == 0 {
			return nil
		}

		now := time.Now()
		res := limiter.ReserveN(now, 1)
		delay := res.DelayFrom(now)
		if delay == 0 {
			return nil
		}

		keep := delay <= maxWaitSlice
		if !keep {
			res.CancelAt(now)
			delay = maxWaitSlice
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			if keep {
				res.Cancel()
			}
			return ctx.Err()
		case <-timer.C:
			if keep {
				return nil
			}
		}
	}
}

func (r *RateLimiter) SetRate(tps float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter.SetLimit(rate.Limit(tps))
}

// Rate returns the current limit in transactions per second.
func (r *RateLimiter) Rate() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return float64(r.limiter.Limit())
}
