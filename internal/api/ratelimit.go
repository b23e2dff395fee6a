package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newClientLimiter(rps, burst int) *clientLimiter {
	return &clientLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (cl *clientLimiter) allow(key string) bool {
	cl.mu.Lock()
	// Crude bound on the map: drop everything rather than track LRU.
	if len(cl.limiters) > 10_000 {
		cl.limiters = make(map[string]*rate.Limiter)
	}
	lim, ok := cl.limiters[key]
	if !ok {
		lim = rate.NewLimiter(cl.rate, cl.burst)
		cl.limiters[key] = lim
	}
	cl.mu.Unlock()
	return lim.Allow()
}
