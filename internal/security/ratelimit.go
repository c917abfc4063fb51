package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a client exceeds its request rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// rateWindow is the sliding window over which requests are counted.
const rateWindow = time.Minute

// RateLimiter enforces a per-client sliding window limit on requests per
// minute. Each client key tracks timestamps of its recent requests.
// Safe for concurrent use.
type RateLimiter struct {
	mu        sync.Mutex
	rpm       int
	clients   map[string][]time.Time
	now       func() time.Time
	lastSweep time.Time
}

// NewRateLimiter creates a rate limiter allowing rpm requests per minute
// per client. rpm <= 0 disables limiting.
func NewRateLimiter(rpm int) *RateLimiter {
	return &RateLimiter{
		rpm:     rpm,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow checks whether a request from clientKey is allowed right now.
// Returns nil and records the request if allowed, ErrRateLimited otherwise.
// Rejected requests are not recorded against the window.
func (rl *RateLimiter) Allow(clientKey string) error {
	if rl.rpm <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rateWindow)
	rl.sweep(now, cutoff)

	events := rl.clients[clientKey]
	// Events are chronologically ordered; drop everything before the window.
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		events = events[i:]
	}

	if len(events) >= rl.rpm {
		rl.clients[clientKey] = events
		return ErrRateLimited
	}

	rl.clients[clientKey] = append(events, now)
	return nil
}

// sweep drops clients whose whole window has expired, at most once per
// window, so the map does not keep an entry per client forever. Caller
// holds the mutex.
func (rl *RateLimiter) sweep(now, cutoff time.Time) {
	if now.Sub(rl.lastSweep) < rateWindow {
		return
	}
	rl.lastSweep = now
	for key, events := range rl.clients {
		if len(events) == 0 || events[len(events)-1].Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}
