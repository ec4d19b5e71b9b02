// Package ratelimit bounds how often a caller may attempt a mutating action.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/mcoot/boulder/internal/dependencies/clock"
)

// Limiter admits or rejects an attempt identified by key
type Limiter interface {
	// Allow records the attempt and reports whether it is admitted.
	// Rejected attempts are not recorded.
	Allow(ctx context.Context, key string) (bool, error)
}

// Config holds the sliding window parameters
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultConfig returns the default push window: 10 attempts per minute
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 10,
		Window:      60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	return c
}

// MemoryLimiter is a process-local sliding window limiter
type MemoryLimiter struct {
	cfg   Config
	clock clock.Clock

	mu        sync.Mutex
	attempts  map[string][]time.Time
	lastSweep time.Time
}

// Ensure MemoryLimiter implements Limiter
var _ Limiter = (*MemoryLimiter)(nil)

// NewMemory creates a MemoryLimiter
func NewMemory(cfg Config, clock clock.Clock) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:      cfg.withDefaults(),
		clock:    clock,
		attempts: make(map[string][]time.Time),
	}
}

// Allow prunes attempts older than the window, then admits the attempt if
// fewer than MaxAttempts remain
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.clock.Now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cfg.Window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	recent := l.attempts[key][:0]
	for _, at := range l.attempts[key] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}

	if len(recent) >= l.cfg.MaxAttempts {
		l.attempts[key] = recent
		return false, nil
	}

	l.attempts[key] = append(recent, now)
	return true, nil
}

// sweep drops keys whose newest attempt has left the window; requires l.mu held
func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for key, attempts := range l.attempts {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(cutoff) {
			delete(l.attempts, key)
		}
	}
}

// tracked reports how many keys currently hold attempts
func (l *MemoryLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// Reset forgets every recorded attempt
func (l *MemoryLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = make(map[string][]time.Time)
}
