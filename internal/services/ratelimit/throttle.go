package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds the throttle map; beyond it the map is reset
const maxTrackedKeys = 10000

// Throttle is a per-key token bucket, used to slow down registrations from
// a single remote address
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewThrottle creates a throttle refilling rps tokens per second up to burst
func NewThrottle(rps float64, burst int) *Throttle {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &Throttle{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether key may proceed now, consuming a token if so
func (t *Throttle) Allow(key string) bool {
	return t.limiter(key).Allow()
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	limiter, ok := t.limiters[key]
	if !ok {
		if len(t.limiters) >= maxTrackedKeys {
			t.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(t.rate, t.burst)
		t.limiters[key] = limiter
	}
	return limiter
}
