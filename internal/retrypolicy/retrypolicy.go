// Package retrypolicy computes exponential backoff delays with jitter and
// classifies which HTTP statuses and transport errors are worth retrying.
package retrypolicy

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/url"
	"time"
)

// Policy is an immutable retry configuration.
type Policy struct {
	Base       time.Duration
	Multiplier float64
	Cap        time.Duration
	MaxRetries int
	Jitter     bool
}

// Default is the generic retry policy (spec §4.2).
var Default = Policy{
	Base:       1 * time.Second,
	Multiplier: 2.0,
	Cap:        60 * time.Second,
	MaxRetries: 3,
	Jitter:     true,
}

// XBRLDocuments is the stricter 429 policy applied at XBRL document
// endpoints, which are unusually punitive about rate limiting.
var XBRLDocuments = Policy{
	Base:       5 * time.Second,
	Multiplier: 2.0,
	Cap:        60 * time.Second,
	MaxRetries: 3,
	Jitter:     true,
}

var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// Delay returns the backoff delay before attempt k (0-indexed), including
// jitter if enabled: min(base*mul^k, cap) + U(0, 0.5*delay).
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.Base) * pow(p.Multiplier, attempt)
	cap := float64(p.Cap)
	if d > cap {
		d = cap
	}
	if p.Jitter {
		d += rand.Float64() * 0.5 * d
	}
	return time.Duration(d)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// ShouldRetry reports whether a response with the given status, at the
// given 0-indexed attempt number, should be retried under this policy.
func (p Policy) ShouldRetry(status int, attempt int) bool {
	return retryableStatuses[status] && attempt < p.MaxRetries
}

// IsRetryableErr classifies transport-level errors: connection errors,
// read errors, and timeouts are retryable; everything else propagates.
func IsRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true // any net.Error (timeout, connection refused, ...) is transport-level
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return IsRetryableErr(urlErr.Err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return false
}

// Sleep waits for the attempt's backoff delay or until ctx is done,
// whichever comes first.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.Delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
