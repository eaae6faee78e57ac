package security

import (
	"context"
	"errors"
	"testing"

	"github.com/giantswarm/formguard/cache"
	"github.com/giantswarm/formguard/cache/mock"
)

func TestBlocklist_AddContainsRemove(t *testing.T) {
	bl := NewBlocklist(mock.New(), testLogger())
	ctx := context.Background()

	if err := bl.Add(ctx, "203.0.113.50", "credential stuffing"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	entry, blocked, err := bl.Contains(ctx, "203.0.113.50")
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if !blocked {
		t.Fatal("added IP should be blocked")
	}
	if entry.Reason != "credential stuffing" {
		t.Errorf("entry.Reason = %q, want %q", entry.Reason, "credential stuffing")
	}
	if entry.BlockedAt.IsZero() {
		t.Error("entry.BlockedAt should be set")
	}

	if err := bl.Remove(ctx, "203.0.113.50"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, blocked, _ := bl.Contains(ctx, "203.0.113.50"); blocked {
		t.Error("removed IP should no longer be blocked")
	}
}

func TestBlocklist_RejectsMalformedIPs(t *testing.T) {
	bl := NewBlocklist(mock.New(), testLogger())
	ctx := context.Background()

	for _, ip := range []string{"", "not-an-ip", "203.0.113", "203.0.113.50:80"} {
		if err := bl.Add(ctx, ip, "x"); err == nil {
			t.Errorf("Add(%q) should fail", ip)
		}
		if err := bl.Remove(ctx, ip); err == nil {
			t.Errorf("Remove(%q) should fail", ip)
		}
	}
}

func TestBlocklist_OperationsAreIdempotent(t *testing.T) {
	bl := NewBlocklist(mock.New(), testLogger())
	ctx := context.Background()

	if err := bl.Add(ctx, "203.0.113.50", "first"); err != nil {
		t.Fatal(err)
	}
	if err := bl.Add(ctx, "203.0.113.50", "second"); err != nil {
		t.Fatalf("re-adding a blocked IP should succeed, got %v", err)
	}

	entry, _, _ := bl.Contains(ctx, "203.0.113.50")
	if entry.Reason != "second" {
		t.Errorf("re-add should refresh the entry, reason = %q", entry.Reason)
	}

	if err := bl.Remove(ctx, "203.0.113.50"); err != nil {
		t.Fatal(err)
	}
	if err := bl.Remove(ctx, "203.0.113.50"); err != nil {
		t.Errorf("removing an absent IP should succeed, got %v", err)
	}
}

func TestBlocklist_Count(t *testing.T) {
	bl := NewBlocklist(mock.New(), testLogger())
	ctx := context.Background()

	if n, err := bl.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count() = %d, %v; want 0, nil", n, err)
	}

	bl.Add(ctx, "203.0.113.50", "a")
	bl.Add(ctx, "203.0.113.51", "b")
	bl.Add(ctx, "203.0.113.50", "a again")

	if n, _ := bl.Count(ctx); n != 2 {
		t.Errorf("Count() after adds = %d, want 2", n)
	}

	bl.Remove(ctx, "203.0.113.51")
	if n, _ := bl.Count(ctx); n != 1 {
		t.Errorf("Count() after remove = %d, want 1", n)
	}
}

func TestBlocklist_CorruptEntryStillBlocks(t *testing.T) {
	c := mock.New()
	bl := NewBlocklist(c, testLogger())
	ctx := context.Background()

	if err := c.Set(ctx, cache.NamespaceBlocklist, blockedIPKey("203.0.113.50"), []byte("{garbage"), 0); err != nil {
		t.Fatal(err)
	}

	entry, blocked, err := bl.Contains(ctx, "203.0.113.50")
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if !blocked {
		t.Error("a corrupt entry is still an explicit block")
	}
	if entry == nil {
		t.Error("Contains() should return a placeholder entry")
	}
}

func TestBlocklist_ContainsSurfacesCacheErrors(t *testing.T) {
	c := mock.New()
	c.FailAll(errors.New("connection refused"))
	bl := NewBlocklist(c, testLogger())

	_, blocked, err := bl.Contains(context.Background(), "203.0.113.50")
	if err == nil {
		t.Error("Contains() should surface the cache error to the caller")
	}
	if blocked {
		t.Error("an unconfirmable block must not deny")
	}
}
