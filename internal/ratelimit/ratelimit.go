// Package ratelimit enforces a minimum spacing between outbound requests
// to the same logical domain. One bucket per domain, created lazily and
// shared across all callers — mirrors the per-key map-plus-mutex shape
// used for per-user state elsewhere in this codebase's ancestry, with
// golang.org/x/time/rate doing the actual waiting.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per domain, sized to allow one request
// per Acquire and to refill at exactly 1/minInterval.
type Limiter struct {
	mu              sync.Mutex
	buckets         map[string]*rate.Limiter
	defaultInterval func(domain string) rate.Limit
}

// New creates a Limiter. limitFor maps a domain to its rate (one request per
// minimum interval); callers typically build it with PerDomain over a small
// set of known hosts plus a fallback interval. Buckets are keyed by domain
// only, so every endpoint on one host shares one interval.
func New(limitFor func(domain string) rate.Limit) *Limiter {
	return &Limiter{
		buckets:         make(map[string]*rate.Limiter),
		defaultInterval: limitFor,
	}
}

// Acquire blocks until the minimum interval has elapsed since the last
// request to domain, then records this call as the new last-request time.
func (l *Limiter) Acquire(ctx context.Context, domain string) error {
	b := l.bucketFor(domain)
	return b.Wait(ctx)
}

func (l *Limiter) bucketFor(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[domain]; ok {
		return b
	}
	lim := l.defaultInterval(domain)
	b := rate.NewLimiter(lim, 1)
	l.buckets[domain] = b
	return b
}
