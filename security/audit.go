package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
// Client identities may embed user ids or IP addresses, so they are
// logged as short hashes.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event.
type Event struct {
	Type      string
	ClientID  string
	IPAddress string
	RequestID string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed client identity.
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"client_id_hash", hashForLogging(event.ClientID),
		"ip_address", event.IPAddress,
		"request_id", event.RequestID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogViolation logs a request denial.
func (a *Auditor) LogViolation(violationType, clientID, requestID, details string) {
	a.LogEvent(Event{
		Type:      violationType,
		ClientID:  clientID,
		RequestID: requestID,
		Details: map[string]any{
			"details": details,
		},
	})
}

// LogCSRFTokenIssued logs a token issuance.
func (a *Auditor) LogCSRFTokenIssued(clientID string) {
	a.LogEvent(Event{
		Type:     EventCSRFTokenIssued,
		ClientID: clientID,
	})
}

// LogIPBlocked logs an administrative block.
func (a *Auditor) LogIPBlocked(ip, reason string) {
	a.LogEvent(Event{
		Type:      EventIPBlocked,
		IPAddress: ip,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogIPUnblocked logs an administrative unblock.
func (a *Auditor) LogIPUnblocked(ip string) {
	a.LogEvent(Event{
		Type:      EventIPUnblocked,
		IPAddress: ip,
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging.
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
