package security

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// WildcardOrigin allows any origin when present in the allow-list.
const WildcardOrigin = "*"

// OriginValidator checks browser-supplied Origin/Referer headers against
// a configured allow-list. It defends browser-context CSRF and
// exfiltration vectors; requests carrying neither header (typical of
// non-browser API clients) pass, because those vectors require a browser
// to begin with.
//
// Failure policy: fail-open on malformed input. The validator touches no
// shared state and cannot error.
type OriginValidator struct {
	allowed  map[string]struct{}
	wildcard bool
	logger   *slog.Logger
}

// NewOriginValidator creates a validator for the given allow-list.
// Origins are compared case-insensitively with trailing slashes stripped,
// e.g. "https://forms.example.com".
func NewOriginValidator(allowedOrigins []string, logger *slog.Logger) *OriginValidator {
	if logger == nil {
		logger = slog.Default()
	}

	v := &OriginValidator{
		allowed: make(map[string]struct{}, len(allowedOrigins)),
		logger:  logger,
	}
	for _, origin := range allowedOrigins {
		if origin == WildcardOrigin {
			v.wildcard = true
			continue
		}
		v.allowed[normalizeOrigin(origin)] = struct{}{}
	}
	return v
}

// Validate reports whether the request's browser origin is acceptable.
func (v *OriginValidator) Validate(r *http.Request) bool {
	if v.wildcard {
		return true
	}
	if r == nil {
		return true
	}

	if origin := r.Header.Get("Origin"); origin != "" {
		ok := v.contains(origin)
		if !ok {
			v.logger.Warn("Request origin not on allow-list", "origin", origin)
		}
		return ok
	}

	if referer := r.Header.Get("Referer"); referer != "" {
		origin, ok := refererOrigin(referer)
		if !ok {
			// An unparseable Referer carries no usable origin signal;
			// treat like a missing header.
			return true
		}
		allowed := v.contains(origin)
		if !allowed {
			v.logger.Warn("Referer origin not on allow-list", "origin", origin)
		}
		return allowed
	}

	// No browser-supplied origin at all: non-browser client.
	return true
}

func (v *OriginValidator) contains(origin string) bool {
	_, ok := v.allowed[normalizeOrigin(origin)]
	return ok
}

// refererOrigin extracts the scheme://host[:port] component of a Referer URL.
func refererOrigin(referer string) (string, bool) {
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
}
