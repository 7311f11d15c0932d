package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAcquireEnforcesMinimumSpacing(t *testing.T) {
	t.Parallel()

	l := New(PerDomain(nil, 50*time.Millisecond))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx, "example.com"); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 2*50*time.Millisecond {
		t.Fatalf("expected at least 100ms between 3 calls, got %s", elapsed)
	}
}

func TestAcquireIsPerDomain(t *testing.T) {
	t.Parallel()

	l := New(PerDomain(nil, 100*time.Millisecond))
	ctx := context.Background()

	if err := l.Acquire(ctx, "a.example.com"); err != nil {
		t.Fatalf("Acquire a: %v", err)
	}

	start := time.Now()
	if err := l.Acquire(ctx, "b.example.com"); err != nil {
		t.Fatalf("Acquire b: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("second domain should not wait on first domain's bucket, waited %s", elapsed)
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	l := New(PerDomain(nil, time.Hour))
	ctx := context.Background()
	if err := l.Acquire(ctx, "slow.example.com"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	if err := l.Acquire(cctx, "slow.example.com"); err == nil {
		t.Fatalf("expected context deadline error, got nil")
	}
}
