package security

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/giantswarm/formguard/cache"
	"github.com/giantswarm/formguard/cache/memory"
	"github.com/giantswarm/formguard/cache/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateLimiter_EnforcesActionLimit(t *testing.T) {
	rl := NewRateLimiter(mock.New(), testLogger())
	ctx := context.Background()

	for i := 0; i < DefaultFormSubmitLimit; i++ {
		if !rl.Check(ctx, "ip:203.0.113.10", ActionFormSubmit) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if rl.Check(ctx, "ip:203.0.113.10", ActionFormSubmit) {
		t.Errorf("request %d should be denied", DefaultFormSubmitLimit+1)
	}
}

func TestRateLimiter_DeniedRequestsDoNotConsumeBudget(t *testing.T) {
	c := mock.New()
	rl := NewRateLimiter(c, testLogger())
	ctx := context.Background()

	for i := 0; i < DefaultFormSubmitLimit; i++ {
		rl.Check(ctx, "ip:203.0.113.10", ActionFormSubmit)
	}
	increments := c.CallCounts["Increment"]

	// Denied attempts must not touch the counter.
	for i := 0; i < 3; i++ {
		if rl.Check(ctx, "ip:203.0.113.10", ActionFormSubmit) {
			t.Fatal("saturated client should stay denied")
		}
	}

	if got := c.CallCounts["Increment"]; got != increments {
		t.Errorf("denied requests incremented counter: %d -> %d", increments, got)
	}
}

func TestRateLimiter_ClientsAndActionsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(mock.New(), testLogger())
	ctx := context.Background()

	for i := 0; i < DefaultFormSubmitLimit; i++ {
		rl.Check(ctx, "ip:203.0.113.10", ActionFormSubmit)
	}
	if rl.Check(ctx, "ip:203.0.113.10", ActionFormSubmit) {
		t.Fatal("saturated client should be denied")
	}

	if !rl.Check(ctx, "ip:203.0.113.11", ActionFormSubmit) {
		t.Error("a different client should not share the exhausted budget")
	}
	if !rl.Check(ctx, "ip:203.0.113.10", ActionFormView) {
		t.Error("a different action should not share the exhausted budget")
	}
}

func TestRateLimiter_UnknownActionUsesDefaultLimit(t *testing.T) {
	rl := NewRateLimiter(mock.New(), testLogger())
	ctx := context.Background()

	for i := 0; i < DefaultActionLimit; i++ {
		if !rl.Check(ctx, "ip:203.0.113.10", "export_csv") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Check(ctx, "ip:203.0.113.10", "export_csv") {
		t.Error("unknown action should be capped at the default limit")
	}
}

func TestRateLimiter_WindowSlidesFromLastAllowedRequest(t *testing.T) {
	store := memory.NewWithInterval(time.Hour)
	defer store.Stop()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	rl := NewRateLimiter(store, testLogger(), WithWindow(time.Minute))
	ctx := context.Background()

	for i := 0; i < DefaultFormSubmitLimit; i++ {
		rl.Check(ctx, "ip:203.0.113.10", ActionFormSubmit)
	}
	if rl.Check(ctx, "ip:203.0.113.10", ActionFormSubmit) {
		t.Fatal("saturated client should be denied")
	}

	// Denied attempts do not refresh the TTL, so one window after the
	// last allowed request the counter expires and the budget resets.
	now = now.Add(time.Minute + time.Second)

	if !rl.Check(ctx, "ip:203.0.113.10", ActionFormSubmit) {
		t.Error("budget should reset after the window elapses")
	}
}

func TestRateLimiter_FailsOpenOnCacheErrors(t *testing.T) {
	c := mock.New()
	c.FailAll(errors.New("connection refused"))

	var failedComponents []string
	rl := NewRateLimiter(c, testLogger(),
		WithCacheErrorHook(func(component string) {
			failedComponents = append(failedComponents, component)
		}))

	for i := 0; i < DefaultFormSubmitLimit*2; i++ {
		if !rl.Check(context.Background(), "ip:203.0.113.10", ActionFormSubmit) {
			t.Fatal("rate limiter must fail open when the cache is down")
		}
	}

	if len(failedComponents) == 0 {
		t.Error("cache error hook was never invoked")
	}
	for _, component := range failedComponents {
		if component != "rate_limiter" {
			t.Errorf("hook component = %q, want %q", component, "rate_limiter")
		}
	}
}

func TestRateLimiter_CorruptCounterStartsFreshWindow(t *testing.T) {
	c := mock.New()
	if err := c.Set(context.Background(), cache.NamespaceCounters, rateLimitKey(ActionFormSubmit, "ip:203.0.113.10"), []byte("not-a-number"), 0); err != nil {
		t.Fatal(err)
	}

	rl := NewRateLimiter(c, testLogger())
	if !rl.Check(context.Background(), "ip:203.0.113.10", ActionFormSubmit) {
		t.Error("corrupt counter should be treated as zero, not as a denial")
	}
}

func TestRateLimiter_BurstGuard(t *testing.T) {
	rl := NewRateLimiter(mock.New(), testLogger(), WithBurstGuard(1, 1, 100))
	ctx := context.Background()

	if !rl.Check(ctx, "ip:203.0.113.10", ActionFormView) {
		t.Fatal("first request should pass the burst guard")
	}
	if rl.Check(ctx, "ip:203.0.113.10", ActionFormView) {
		t.Error("immediate second request should be absorbed by the burst guard")
	}
	if !rl.Check(ctx, "ip:203.0.113.11", ActionFormView) {
		t.Error("burst guard buckets must be per identity")
	}
}

func TestBurstGuard_LRUEviction(t *testing.T) {
	bg := newBurstGuard(1, 1, 2)

	bg.allow("a")
	bg.allow("b")
	bg.allow("c") // evicts "a"

	if len(bg.limiters) != 2 {
		t.Fatalf("len(limiters) = %d, want 2", len(bg.limiters))
	}
	if _, exists := bg.limiters["a"]; exists {
		t.Error("least recently used entry should have been evicted")
	}

	// "a" comes back with a fresh bucket and is allowed again.
	if !bg.allow("a") {
		t.Error("re-added identity should start with a full bucket")
	}
}
