package security

// Violation type constants used in violation records, audit events, and
// metrics. These constants ensure consistency across the codebase and
// prevent typos when recording security-relevant denials.
const (
	// ViolationRateLimitExceeded is recorded when a client exceeds the
	// per-action request limit within the current window
	ViolationRateLimitExceeded = "rate_limit_exceeded"

	// ViolationInvalidOrigin is recorded when a browser-supplied Origin or
	// Referer is not on the configured allow-list
	ViolationInvalidOrigin = "invalid_origin"

	// ViolationBlockedIP is recorded when a request arrives from an
	// administratively blocked IP address
	ViolationBlockedIP = "blocked_ip"

	// ViolationPrivateNetwork is recorded when a request presents a
	// private or loopback source address as an external client
	ViolationPrivateNetwork = "private_network"

	// ViolationSuspiciousActivity is recorded when repeated suspicion
	// signals from one identity reach the escalation threshold
	ViolationSuspiciousActivity = "suspicious_activity"

	// ViolationMaliciousPayload is recorded when submitted form data
	// matches an injection, XSS, or traversal pattern
	ViolationMaliciousPayload = "malicious_payload"

	// ViolationInvalidCSRFToken is recorded when CSRF token validation
	// fails: unknown token, client mismatch, or replay of a consumed token
	ViolationInvalidCSRFToken = "invalid_csrf_token"
)

// Operational event constants for audit logging that do not correspond to
// a request denial.
const (
	// EventCSRFTokenIssued is logged when a CSRF token is generated
	EventCSRFTokenIssued = "csrf_token_issued"

	// EventCSRFPersistFailed is logged when a generated token could not be
	// persisted; issuance still succeeds (fail-open generation)
	EventCSRFPersistFailed = "csrf_persist_failed"

	// EventIPBlocked is logged when an IP is added to the blocklist
	EventIPBlocked = "ip_blocked"

	// EventIPUnblocked is logged when an IP is removed from the blocklist
	EventIPUnblocked = "ip_unblocked"

	// EventCacheFailure is logged when a fail-open check swallowed a cache
	// error and allowed the request
	EventCacheFailure = "cache_failure"
)
