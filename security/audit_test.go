package security

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestAuditorHashesClientIdentity(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), true)

	auditor.LogViolation(ViolationRateLimitExceeded, "user:alice", "req-1", "limit exceeded")

	out := buf.String()
	if strings.Contains(out, "user:alice") {
		t.Error("audit log must not contain the raw client identity")
	}

	var logged map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logged); err != nil {
		t.Fatalf("audit output is not JSON: %v", err)
	}
	hash, _ := logged["client_id_hash"].(string)
	if len(hash) != 16 {
		t.Errorf("client_id_hash = %q, want 16 hex characters", hash)
	}
	if logged["event_type"] != ViolationRateLimitExceeded {
		t.Errorf("event_type = %v", logged["event_type"])
	}
	if logged["request_id"] != "req-1" {
		t.Errorf("request_id = %v", logged["request_id"])
	}
}

func TestAuditorDisabled(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), false)

	auditor.LogViolation(ViolationRateLimitExceeded, "user:alice", "req-1", "limit exceeded")
	auditor.LogCSRFTokenIssued("user:alice")

	if buf.Len() != 0 {
		t.Errorf("disabled auditor wrote output: %s", buf.String())
	}
}

func TestAuditorNilSafe(t *testing.T) {
	var auditor *Auditor
	auditor.LogViolation(ViolationBlockedIP, "ip:203.0.113.10", "", "blocked")
	auditor.LogIPBlocked("203.0.113.10", "abuse")
	auditor.LogIPUnblocked("203.0.113.10")
}

func TestHashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q, want %q", got, "<empty>")
	}

	a := hashForLogging("user:alice")
	if len(a) != 16 {
		t.Errorf("len(hash) = %d, want 16", len(a))
	}
	if a != hashForLogging("user:alice") {
		t.Error("hash must be deterministic")
	}
	if a == hashForLogging("user:bob") {
		t.Error("different identities must hash differently")
	}
}
