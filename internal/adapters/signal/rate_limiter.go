package signal

import (
	"sync"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	l    *rate.Limiter
	refs int
}

// RateLimiter is a token bucket per client token, shared by all of that
// client's open connections. A bucket lives while at least one connection
// holds it.
type RateLimiter struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   rate.Limit
	burst int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		m:     make(map[string]*limiterEntry),
		rps:   rate.Limit(rps),
		burst: burst,
	}
}

func (rl *RateLimiter) Acquire(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	e, ok := rl.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(rl.rps, rl.burst)}
		rl.m[key] = e
	}
	e.refs++
}

func (rl *RateLimiter) Release(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	e, ok := rl.m[key]
	if !ok {
		return
	}
	if e.refs--; e.refs <= 0 {
		delete(rl.m, key)
	}
}

// Allow reports whether one more frame from key fits the bucket. Unknown
// keys are allowed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	e, ok := rl.m[key]
	rl.mu.Unlock()
	if !ok {
		return true
	}
	return e.l.Allow()
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.m)
}
