package formguard

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/formguard/instrumentation"
	"github.com/giantswarm/formguard/security"
)

// Config holds the form security service configuration.
// The zero value is usable: every field has a secure default.
type Config struct {
	// AllowedOrigins is the browser-origin allow-list for the origin
	// validator. The wildcard "*" allows any origin. An empty list
	// rejects every browser-supplied origin (non-browser requests,
	// which carry no Origin/Referer, still pass).
	AllowedOrigins []string

	// RateLimit configures per-client-per-action throttling.
	RateLimit RateLimitConfig

	// Reputation configures IP reputation and suspicion escalation.
	Reputation ReputationConfig

	// CSRF configures one-time token issuance.
	CSRF CSRFConfig

	// AdminKeyHash is a bcrypt hash protecting blocklist administration.
	// Empty disables the guard. Generate with security.HashAdminKey.
	AdminKeyHash string

	// EnableAuditLogging enables security audit logging (sensitive
	// identities hashed).
	EnableAuditLogging bool

	// CheckTimeout bounds each cache-touching check so a slow cache falls
	// into the documented fail-open or fail-closed path instead of
	// hanging the request. Default: 2 seconds.
	CheckTimeout time.Duration

	// Logger for structured logging (optional, uses slog.Default if not
	// provided).
	Logger *slog.Logger

	// Instrumentation provides OpenTelemetry metrics (optional; a
	// disabled no-op instance is created if not provided).
	Instrumentation *instrumentation.Instrumentation
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// Window is the counter TTL. The TTL refreshes on every allowed
	// request, so the window slides rather than resetting on a fixed
	// calendar boundary. Default: 5 minutes.
	Window time.Duration

	// ActionLimits overrides the per-action request budget. Unknown
	// actions use a conservative default of 10 per window.
	// Default table: form_submit=5, form_view=50, file_upload=10.
	ActionLimits map[string]int

	// BurstRate enables a process-local token bucket in front of the
	// shared counter when > 0 (requests per second per identity).
	BurstRate int

	// Burst is the local bucket size; defaults to BurstRate.
	Burst int
}

// ReputationConfig holds IP reputation configuration.
type ReputationConfig struct {
	// SuspicionThreshold is the number of suspicion signals within one
	// window that escalates an identity to blocked. Default: 5.
	SuspicionThreshold int

	// SuspicionWindow is the suspicious-activity counter TTL, and thus
	// the duration of an escalated block. Default: 1 hour.
	SuspicionWindow time.Duration

	// BlockTTL is how long an administrative IP block lasts.
	// Default: 7 days.
	BlockTTL time.Duration
}

// CSRFConfig holds CSRF token configuration.
type CSRFConfig struct {
	// TokenTTL is how long an unused token stays valid. Default: 1 hour.
	TokenTTL time.Duration
}

// Validate checks the configuration for values that would weaken the
// service in ways a typo could plausibly cause.
func (c *Config) Validate() error {
	if c.CheckTimeout < 0 {
		return fmt.Errorf("CheckTimeout must not be negative")
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("RateLimit.Window must not be negative")
	}
	for action, limit := range c.RateLimit.ActionLimits {
		if limit <= 0 {
			return fmt.Errorf("RateLimit.ActionLimits[%q] must be positive, got %d", action, limit)
		}
	}
	if c.Reputation.SuspicionThreshold < 0 {
		return fmt.Errorf("Reputation.SuspicionThreshold must not be negative")
	}
	return nil
}

// DefaultCheckTimeout bounds each cache-touching check.
const DefaultCheckTimeout = 2 * time.Second

// applyDefaults fills zero values with secure defaults.
func (c *Config) applyDefaults() {
	if c.CheckTimeout == 0 {
		c.CheckTimeout = DefaultCheckTimeout
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = security.DefaultRateLimitWindow
	}
	if c.Reputation.SuspicionThreshold == 0 {
		c.Reputation.SuspicionThreshold = security.DefaultSuspicionThreshold
	}
	if c.Reputation.SuspicionWindow == 0 {
		c.Reputation.SuspicionWindow = security.DefaultSuspicionWindow
	}
	if c.Reputation.BlockTTL == 0 {
		c.Reputation.BlockTTL = security.DefaultBlockTTL
	}
	if c.CSRF.TokenTTL == 0 {
		c.CSRF.TokenTTL = security.DefaultCSRFTokenTTL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
