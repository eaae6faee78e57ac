package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/giantswarm/formguard/cache"
	"github.com/giantswarm/formguard/cache/mock"
)

func TestCSRFTokenManager_GenerateValidateRoundTrip(t *testing.T) {
	m := NewCSRFTokenManager(mock.New(), testLogger())
	ctx := context.Background()

	token := m.Generate(ctx, "user:alice")
	if token == "" {
		t.Fatal("Generate() returned an empty token")
	}

	if !m.Validate(ctx, "user:alice", token) {
		t.Error("freshly issued token should validate for its client")
	}
}

func TestCSRFTokenManager_TokensAreSingleUse(t *testing.T) {
	m := NewCSRFTokenManager(mock.New(), testLogger())
	ctx := context.Background()

	token := m.Generate(ctx, "user:alice")
	if !m.Validate(ctx, "user:alice", token) {
		t.Fatal("first validation should succeed")
	}
	if m.Validate(ctx, "user:alice", token) {
		t.Error("replayed token should be rejected")
	}
}

func TestCSRFTokenManager_ClientBinding(t *testing.T) {
	m := NewCSRFTokenManager(mock.New(), testLogger())
	ctx := context.Background()

	token := m.Generate(ctx, "user:alice")
	if m.Validate(ctx, "user:bob", token) {
		t.Fatal("token issued to one client should not validate for another")
	}

	// The mismatch must not have consumed the token.
	if !m.Validate(ctx, "user:alice", token) {
		t.Error("token should still validate for the client it was issued to")
	}
}

func TestCSRFTokenManager_RejectsUnknownAndEmptyTokens(t *testing.T) {
	m := NewCSRFTokenManager(mock.New(), testLogger())
	ctx := context.Background()

	if m.Validate(ctx, "user:alice", "") {
		t.Error("empty token should be rejected")
	}
	if m.Validate(ctx, "user:alice", "never-issued") {
		t.Error("unknown token should be rejected")
	}
}

func TestCSRFTokenManager_TokensAreUnique(t *testing.T) {
	m := NewCSRFTokenManager(mock.New(), testLogger())
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := m.Generate(ctx, "user:alice")
		if seen[token] {
			t.Fatalf("duplicate token issued: %q", token)
		}
		seen[token] = true
	}
}

func TestCSRFTokenManager_GenerationFailsOpenOnPersistError(t *testing.T) {
	c := mock.New()
	c.SetFunc = func(string, string, []byte, time.Duration) error {
		return errors.New("connection refused")
	}

	var persistFailures int
	m := NewCSRFTokenManager(c, testLogger())
	m.SetPersistFailureHook(func() { persistFailures++ })

	token := m.Generate(context.Background(), "user:alice")
	if token == "" {
		t.Fatal("Generate() must return a token even when persistence fails")
	}
	if persistFailures != 1 {
		t.Errorf("persist failure hook calls = %d, want 1", persistFailures)
	}

	// The unpersisted token cannot validate later; that is the accepted
	// trade-off of failing open on the issuing side.
	c.SetFunc = nil
	if m.Validate(context.Background(), "user:alice", token) {
		t.Error("unpersisted token should not validate")
	}
}

func TestCSRFTokenManager_ValidationFailsClosedOnCacheErrors(t *testing.T) {
	c := mock.New()
	m := NewCSRFTokenManager(c, testLogger())
	ctx := context.Background()

	token := m.Generate(ctx, "user:alice")

	c.GetFunc = func(string, string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	if m.Validate(ctx, "user:alice", token) {
		t.Error("validation must fail closed when the token cannot be read")
	}
	c.GetFunc = nil

	c.DeleteFunc = func(string, string) error {
		return errors.New("connection refused")
	}
	if m.Validate(ctx, "user:alice", token) {
		t.Error("validation must fail closed when the token cannot be consumed")
	}
}

func TestCSRFTokenManager_RejectsCorruptRecord(t *testing.T) {
	c := mock.New()
	m := NewCSRFTokenManager(c, testLogger())
	ctx := context.Background()

	if err := c.Set(ctx, cache.NamespaceCounters, csrfKey("tampered"), []byte("{not json"), 0); err != nil {
		t.Fatal(err)
	}
	if m.Validate(ctx, "user:alice", "tampered") {
		t.Error("corrupt token record should be rejected")
	}
}
