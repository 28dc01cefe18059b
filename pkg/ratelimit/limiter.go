// Package ratelimit keeps one token bucket per key, so a commander can be
// limited on each command independently.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds the fallback bucket shape used when a caller does not pass
// its own.
type Config struct {
	Enabled bool
	Every   time.Duration
	Burst   int
}

// DefaultConfig returns the default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Every:   3 * time.Second,
		Burst:   1,
	}
}

// Limiter implements keyed token buckets.
type Limiter struct {
	mu      sync.RWMutex
	config  Config
	buckets sync.Map // map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

func (b *bucket) touch(now time.Time) {
	b.mu.Lock()
	b.lastSeen = now
	b.mu.Unlock()
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config Config) *Limiter {
	return &Limiter{config: config}
}

// Shape fills zero fields of every and burst from the configured defaults.
func (l *Limiter) Shape(every time.Duration, burst int) (time.Duration, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if every <= 0 {
		every = l.config.Every
	}
	if burst <= 0 {
		burst = l.config.Burst
	}
	if burst <= 0 {
		burst = 1
	}
	return every, burst
}

func (l *Limiter) getBucket(key string, every time.Duration, burst int) *bucket {
	if cached, ok := l.buckets.Load(key); ok {
		return cached.(*bucket)
	}

	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	newB := &bucket{limiter: rate.NewLimiter(limit, burst), lastSeen: time.Now()}

	actual, _ := l.buckets.LoadOrStore(key, newB)
	return actual.(*bucket)
}

// Allow takes one token from the bucket for key. When the bucket is empty it
// returns false and the time until the next token.
func (l *Limiter) Allow(key string, every time.Duration, burst int) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	every, burst = l.Shape(every, burst)
	b := l.getBucket(key, every, burst)

	now := time.Now()
	b.touch(now)
	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, every
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *Limiter) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config.Enabled
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	n := 0
	l.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Reset drops every bucket.
func (l *Limiter) Reset() {
	l.buckets.Range(func(key, _ any) bool {
		l.buckets.Delete(key)
		return true
	})
}

// Cleanup removes buckets not used for longer than maxAge.
func (l *Limiter) Cleanup(maxAge time.Duration) int {
	now := time.Now()
	removed := 0

	l.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if now.Sub(b.lastSeen) > maxAge {
			l.buckets.Delete(key)
			removed++
		}
		b.mu.Unlock()
		return true
	})
	return removed
}

// RunCleanup drops buckets idle for longer than maxAge every interval
// until ctx is done.
func (l *Limiter) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup(maxAge)
		}
	}
}

// Key joins a command path and a commander name into a bucket key.
func Key(path, commander string) string {
	return path + "\x00" + commander
}
