package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a key exceeds its allowance.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter is a sliding-window limiter keyed by an arbitrary string,
// typically a client address. A limit of zero disables limiting.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]time.Time
	now     func() time.Time
}

// NewRateLimiter allows at most limit events per key within window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records an event for key, or returns ErrRateLimited if the key
// already used its allowance in the current window.
func (rl *RateLimiter) Allow(key string) error {
	if rl == nil || rl.limit <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	events := evict(rl.buckets[key], now.Add(-rl.window))
	if len(events) >= rl.limit {
		rl.buckets[key] = events
		return ErrRateLimited
	}
	rl.buckets[key] = append(events, now)
	rl.sweep(now)
	return nil
}

// Exceeded reports whether key has used its allowance in the current
// window, without recording an event.
func (rl *RateLimiter) Exceeded(key string) bool {
	if rl == nil || rl.limit <= 0 {
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	events := evict(rl.buckets[key], rl.now().Add(-rl.window))
	rl.buckets[key] = events
	return len(events) >= rl.limit
}

// sweep drops keys with no event left in the window so idle clients do
// not accumulate.
func (rl *RateLimiter) sweep(now time.Time) {
	if len(rl.buckets) < 256 {
		return
	}
	cutoff := now.Add(-rl.window)
	for k, events := range rl.buckets {
		if len(evict(events, cutoff)) == 0 {
			delete(rl.buckets, k)
		}
	}
}

// evict drops events older than cutoff. Events are chronological.
func evict(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	return events[i:]
}
