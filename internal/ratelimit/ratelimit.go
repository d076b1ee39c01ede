// Package ratelimit provides per-credential rate limiting using token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// KeyLimiter holds one token bucket per credential slot, so a slow key never
// throttles another. A nil *KeyLimiter allows everything.
type KeyLimiter struct {
	buckets []*rate.Limiter
}

// NewKeyLimiter creates buckets for slots credentials, each refilling perMinute tokens
// per minute with the given burst capacity. perMinute <= 0 disables limiting.
func NewKeyLimiter(slots int, perMinute float64, burst int) (*KeyLimiter, error) {
	if slots <= 0 {
		return nil, fmt.Errorf("ratelimit: need at least one slot, got %d", slots)
	}
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Inf
	if perMinute > 0 {
		// Refill rate = limit / window duration in seconds
		limit = rate.Limit(perMinute / time.Minute.Seconds())
	}

	l := &KeyLimiter{buckets: make([]*rate.Limiter, slots)}
	for i := range l.buckets {
		l.buckets[i] = rate.NewLimiter(limit, burst)
	}
	return l, nil
}

// Wait blocks until slot may send one request or ctx is done.
func (l *KeyLimiter) Wait(ctx context.Context, slot int) error {
	if l == nil {
		return ctx.Err()
	}
	bucket, err := l.bucket(slot)
	if err != nil {
		return err
	}
	return bucket.Wait(ctx)
}

func (l *KeyLimiter) bucket(slot int) (*rate.Limiter, error) {
	if slot < 0 || slot >= len(l.buckets) {
		return nil, fmt.Errorf("ratelimit: slot %d out of range [0,%d)", slot, len(l.buckets))
	}
	return l.buckets[slot], nil
}
