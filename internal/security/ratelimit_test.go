package security

import (
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_AllowWithinLimit(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3)
	for i := 0; i < 3; i++ {
		if err := rl.Allow("client-a"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := rl.Allow("client-a"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("4th request: err = %v, want ErrRateLimited", err)
	}
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1)
	if err := rl.Allow("client-a"); err != nil {
		t.Fatalf("client-a: %v", err)
	}
	if err := rl.Allow("client-b"); err != nil {
		t.Errorf("client-b should have its own window: %v", err)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base

	rl := NewRateLimiter(2)
	rl.now = func() time.Time { return current }

	if err := rl.Allow("c"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Allow("c"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Allow("c"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}

	// After the window slides past the first two events, requests pass again.
	current = base.Add(61 * time.Second)
	if err := rl.Allow("c"); err != nil {
		t.Errorf("after window slide: %v", err)
	}
}

func TestRateLimiter_RejectedNotCounted(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base

	rl := NewRateLimiter(1)
	rl.now = func() time.Time { return current }

	if err := rl.Allow("c"); err != nil {
		t.Fatal(err)
	}
	// Hammering while limited must not extend the block.
	for i := 0; i < 10; i++ {
		current = current.Add(time.Second)
		if err := rl.Allow("c"); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	current = base.Add(61 * time.Second)
	if err := rl.Allow("c"); err != nil {
		t.Errorf("after original event expired: %v", err)
	}
}

func TestRateLimiter_PrunesStaleClients(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base

	rl := NewRateLimiter(5)
	rl.now = func() time.Time { return current }

	if err := rl.Allow("gone"); err != nil {
		t.Fatal(err)
	}

	// Long after "gone"'s window has expired, another client's request
	// must reclaim the stale entry.
	current = base.Add(3 * time.Minute)
	if err := rl.Allow("active"); err != nil {
		t.Fatal(err)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.clients["gone"]; ok {
		t.Error("stale client entry not pruned")
	}
	if _, ok := rl.clients["active"]; !ok {
		t.Error("active client entry missing")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if err := rl.Allow("c"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
}
