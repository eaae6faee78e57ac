package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/formguard/cache"
)

const (
	// DefaultCSRFTokenTTL is how long an unused token stays valid.
	DefaultCSRFTokenTTL = time.Hour

	// csrfTokenBytes is the token entropy (256 bits).
	csrfTokenBytes = 32
)

// csrfRecord is the stored state of an issued token.
type csrfRecord struct {
	ClientID  string    `json:"client_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CSRFTokenManager issues and validates one-time-use CSRF tokens bound to
// a client identity.
//
// Failure policies are split: generation is fail-open (a token is always
// returned even when persistence fails, favoring availability of the
// issuing flow), while validation is fail-closed (an unknown token,
// client mismatch, replay, or cache error at validation time is a final
// denial).
type CSRFTokenManager struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger

	// onPersistFailure is invoked when a generated token could not be
	// stored, for metrics.
	onPersistFailure func()
}

// NewCSRFTokenManager creates a token manager with the default 1 hour TTL.
func NewCSRFTokenManager(c cache.Cache, logger *slog.Logger) *CSRFTokenManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSRFTokenManager{
		cache:  c,
		ttl:    DefaultCSRFTokenTTL,
		logger: logger,
	}
}

// SetTokenTTL overrides the token TTL. Intended for configuration at
// construction time.
func (m *CSRFTokenManager) SetTokenTTL(ttl time.Duration) {
	if ttl > 0 {
		m.ttl = ttl
	}
}

// SetPersistFailureHook registers a callback invoked when token
// persistence fails during generation.
func (m *CSRFTokenManager) SetPersistFailureHook(hook func()) {
	m.onPersistFailure = hook
}

func csrfKey(token string) string {
	return "csrf:" + token
}

// Generate produces a cryptographically strong one-time token bound to
// the client identity and persists it with the configured TTL.
//
// Generation never fails the caller: if persistence errors, the token is
// still returned. Such a token will not validate later, which the issuing
// flow tolerates; refusing to render the form at all would not.
func (m *CSRFTokenManager) Generate(ctx context.Context, clientID string) string {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process cannot produce secure
		// randomness at all; there is no meaningful degraded mode.
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	record := csrfRecord{ClientID: clientID, CreatedAt: time.Now()}
	data, err := json.Marshal(record)
	if err == nil {
		err = m.cache.Set(ctx, cache.NamespaceCounters, csrfKey(token), data, m.ttl)
	}
	if err != nil {
		m.logger.Warn("Failed to persist CSRF token, issuing best-effort token",
			"client_id", clientID,
			"error", err)
		if m.onPersistFailure != nil {
			m.onPersistFailure()
		}
	}

	return token
}

// Validate checks a presented token for the given client identity and
// consumes it. The token record transitions Issued -> Consumed exactly
// once: the delete must succeed before the token is accepted, so a
// replayed token fails its second validation regardless of storage
// timing.
func (m *CSRFTokenManager) Validate(ctx context.Context, clientID, token string) bool {
	if token == "" {
		return false
	}

	data, err := m.cache.Get(ctx, cache.NamespaceCounters, csrfKey(token))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			m.logger.Warn("CSRF token lookup failed, failing closed", "error", err)
		}
		return false
	}

	var record csrfRecord
	if err := json.Unmarshal(data, &record); err != nil {
		m.logger.Warn("Corrupt CSRF token record, failing closed", "error", err)
		return false
	}

	if subtle.ConstantTimeCompare([]byte(record.ClientID), []byte(clientID)) != 1 {
		m.logger.Warn("CSRF token client mismatch",
			"expected_hash", hashForLogging(record.ClientID),
			"got_hash", hashForLogging(clientID))
		return false
	}

	// Consume before accepting. If the delete fails we cannot guarantee
	// the one-time property, so the validation fails closed.
	if err := m.cache.Delete(ctx, cache.NamespaceCounters, csrfKey(token)); err != nil {
		m.logger.Warn("Failed to consume CSRF token, failing closed", "error", err)
		return false
	}

	return true
}
