package security

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRateLimiter_PerKeyWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for i := range 2 {
		if err := rl.Allow("10.0.0.1"); err != nil {
			t.Fatalf("Allow #%d: %v", i, err)
		}
	}
	if err := rl.Allow("10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third Allow = %v, want ErrRateLimited", err)
	}
	if !rl.Exceeded("10.0.0.1") {
		t.Error("Exceeded = false after allowance used")
	}
	if err := rl.Allow("10.0.0.2"); err != nil {
		t.Fatalf("other key limited: %v", err)
	}

	now = now.Add(61 * time.Second)
	if rl.Exceeded("10.0.0.1") {
		t.Error("Exceeded = true after window")
	}
	if err := rl.Allow("10.0.0.1"); err != nil {
		t.Fatalf("Allow after window: %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, time.Minute)
	if rl.Exceeded("k") {
		t.Fatal("disabled limiter reports exceeded")
	}
	for range 100 {
		if err := rl.Allow("k"); err != nil {
			t.Fatalf("disabled limiter returned %v", err)
		}
	}

	var nilLimiter *RateLimiter
	if err := nilLimiter.Allow("k"); err != nil {
		t.Fatalf("nil limiter returned %v", err)
	}
}

func TestRateLimiter_SweepsIdleKeys(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Second)
	rl.now = func() time.Time { return now }

	for i := range 300 {
		_ = rl.Allow(fmt.Sprintf("client-%d", i))
	}
	now = now.Add(2 * time.Second)
	_ = rl.Allow("fresh")

	if len(rl.buckets) != 1 {
		t.Errorf("buckets = %d, want 1 after sweep", len(rl.buckets))
	}
}
