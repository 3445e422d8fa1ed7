package auth

import (
	"math"
	"sync"
	"time"
)

// Limiter is a per-key token bucket. The basic-auth guard charges one token
// per failed attempt, so a client may fail Burst times in a row and then
// once every 1/Rate.
type Limiter struct {
	perMinute float64
	burst     float64
	idleTTL   time.Duration
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewLimiter allows burst attempts, refilled at perMinute tokens a minute.
// Non-positive arguments fall back to 10 per minute with a burst of 5.
func NewLimiter(perMinute, burst int) *Limiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 5
	}
	return &Limiter{
		perMinute: float64(perMinute),
		burst:     float64(burst),
		idleTTL:   10 * time.Minute,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// Blocked reports whether key has no tokens left, and if so how long until
// the next one.
func (l *Limiter) Blocked(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens >= 1 {
		return false, 0
	}
	return true, l.wait(b)
}

// Charge consumes one token for key.
func (l *Limiter) Charge(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	b.tokens = math.Max(0, b.tokens-1)
	l.sweep()
}

// Reset forgets key, e.g. after a successful attempt.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

func (l *Limiter) refill(key string) *bucket {
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastRefill: now}
		l.buckets[key] = b
		return b
	}
	elapsed := now.Sub(b.lastRefill)
	b.lastRefill = now
	b.tokens = math.Min(l.burst, b.tokens+elapsed.Minutes()*l.perMinute)
	return b
}

func (l *Limiter) wait(b *bucket) time.Duration {
	missing := 1 - b.tokens
	return time.Duration(math.Ceil(missing / l.perMinute * float64(time.Minute)))
}

// sweep drops buckets idle long enough to have refilled completely.
func (l *Limiter) sweep() {
	cutoff := l.now().Add(-l.idleTTL)
	for k, b := range l.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}
