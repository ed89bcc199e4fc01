// Package ratelimit implements the token-bucket TX/RX limiting spec
// §4.5 requires. No pack example imports a rate-limiting library
// (golang.org/x/time/rate included) for this kind of single-session
// byte budget, so this is a direct stdlib implementation — the
// algorithm itself, not an external dependency, is the grounded part.
package ratelimit

import (
	"sync"
	"time"

	"sslvpnworker/domain/session"
)

// TokenBucket implements application.RateLimiter over a
// session.RateBucket storage cell, so the bucket's state lives with
// the Session it belongs to rather than inside this type.
type TokenBucket struct {
	mu     sync.Mutex
	bucket *session.RateBucket
	now    func() time.Time
}

// NewTokenBucket wires a limiter to the given storage cell. capacity
// and refillRate are in bytes and bytes/second respectively.
func NewTokenBucket(bucket *session.RateBucket, capacity, refillRate float64) *TokenBucket {
	bucket.Capacity = capacity
	bucket.RefillRate = refillRate
	bucket.Tokens = capacity
	bucket.LastRefill = time.Now()
	return &TokenBucket{bucket: bucket, now: time.Now}
}

// Allow reports whether n bytes may pass right now, consuming tokens
// on success. A denial is a silent drop at the call site (spec §4.5);
// Allow never returns an error.
func (t *TokenBucket) Allow(n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	elapsed := now.Sub(t.bucket.LastRefill).Seconds()
	if elapsed > 0 {
		t.bucket.Tokens += elapsed * t.bucket.RefillRate
		if t.bucket.Tokens > t.bucket.Capacity {
			t.bucket.Tokens = t.bucket.Capacity
		}
		t.bucket.LastRefill = now
	}

	need := float64(n)
	if t.bucket.Tokens < need {
		return false
	}
	t.bucket.Tokens -= need
	return true
}
