package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// LoginLimiter throttles login attempts per remote address so team
// passwords can't be brute-forced through the API.
type LoginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewLoginLimiter allows an initial burst and then one attempt per
// perAttempt interval, tracked per address.
func NewLoginLimiter(r rate.Limit, burst int) *LoginLimiter {
	return &LoginLimiter{
		limiters: map[string]*rate.Limiter{},
		rate:     r,
		burst:    burst,
	}
}

// Allow reports whether the address may attempt a login now.
func (l *LoginLimiter) Allow(addr string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[addr]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[addr] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
