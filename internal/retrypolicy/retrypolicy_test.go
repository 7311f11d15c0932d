package retrypolicy

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status  int
		attempt int
		want    bool
	}{
		{429, 0, true},
		{500, 2, true},
		{500, 3, false}, // attempt == MaxRetries, stop
		{200, 0, false},
		{404, 0, false},
		{400, 0, false},
	}

	for _, tc := range cases {
		if got := Default.ShouldRetry(tc.status, tc.attempt); got != tc.want {
			t.Errorf("ShouldRetry(%d, %d) = %v, want %v", tc.status, tc.attempt, got, tc.want)
		}
	}
}

func TestDelayIsBoundedByCap(t *testing.T) {
	t.Parallel()

	p := Policy{Base: 1 * time.Second, Multiplier: 2, Cap: 10 * time.Second, MaxRetries: 10, Jitter: false}
	d := p.Delay(20) // would be huge without the cap
	if d > 10*time.Second {
		t.Fatalf("Delay(20) = %s, want <= cap (10s)", d)
	}
}

func TestDelayGrowsExponentiallyWithoutJitter(t *testing.T) {
	t.Parallel()

	p := Policy{Base: 1 * time.Second, Multiplier: 2, Cap: 1 * time.Minute, MaxRetries: 5, Jitter: false}
	if got, want := p.Delay(0), 1*time.Second; got != want {
		t.Errorf("Delay(0) = %s, want %s", got, want)
	}
	if got, want := p.Delay(1), 2*time.Second; got != want {
		t.Errorf("Delay(1) = %s, want %s", got, want)
	}
	if got, want := p.Delay(2), 4*time.Second; got != want {
		t.Errorf("Delay(2) = %s, want %s", got, want)
	}
}

func TestIsRetryableErr(t *testing.T) {
	t.Parallel()

	if IsRetryableErr(nil) {
		t.Fatalf("nil error should not be retryable")
	}
	if !IsRetryableErr(context.DeadlineExceeded) {
		t.Fatalf("context.DeadlineExceeded should be retryable")
	}
	netErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	if !IsRetryableErr(netErr) {
		t.Fatalf("net.OpError should be retryable")
	}
	if IsRetryableErr(errors.New("some parse error")) {
		t.Fatalf("plain error should not be retryable")
	}
}

func TestXBRLDocumentsPolicyOverride(t *testing.T) {
	t.Parallel()

	if XBRLDocuments.Base != 5*time.Second {
		t.Fatalf("XBRLDocuments.Base = %s, want 5s", XBRLDocuments.Base)
	}
	if XBRLDocuments.MaxRetries != 3 {
		t.Fatalf("XBRLDocuments.MaxRetries = %d, want 3", XBRLDocuments.MaxRetries)
	}
}
