package formguard

import (
	"context"
	"net/http"

	"github.com/giantswarm/formguard/security"
)

// CheckRequest runs the per-request pipeline in the documented order —
// origin validation, IP reputation, rate limiting — short-circuiting on
// the first denial. Returns nil when the request is allowed, or the
// SecurityViolation describing the denial (already recorded for audit
// and metrics).
func (s *Service) CheckRequest(r *http.Request, action string) *SecurityViolation {
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}

	if !s.ValidateRequestOrigin(r) {
		return NewSecurityViolation(security.ViolationInvalidOrigin,
			"request origin not allowed")
	}

	if decision := s.evaluateReputation(ctx, r); !decision.Allowed {
		return NewSecurityViolation(decision.Violation, decision.Details)
	}

	clientID := security.ResolveClientIdentity(r)
	if !s.CheckRateLimit(ctx, clientID, action) {
		return NewSecurityViolation(security.ViolationRateLimitExceeded,
			"rate limit exceeded for action "+action)
	}

	return nil
}

// CheckSubmission runs the submission-time checks: payload injection
// scanning, then CSRF validation, short-circuiting on the first denial.
// data is the parsed form payload; csrfToken is the token presented by
// the client. Both checks are fail-closed.
func (s *Service) CheckSubmission(ctx context.Context, r *http.Request, data map[string]any, csrfToken string) *SecurityViolation {
	if !s.ValidateFormDataSecurity(ctx, data) {
		return NewSecurityViolation(security.ViolationMaliciousPayload,
			"form data contains a blocked pattern")
	}

	clientID := security.ResolveClientIdentity(r)
	if !s.ValidateCSRFToken(ctx, clientID, csrfToken) {
		return NewSecurityViolation(security.ViolationInvalidCSRFToken,
			"CSRF token validation failed")
	}

	return nil
}

// actionForRequest maps an HTTP method to the default rate-limit action.
// Applications with finer-grained actions call CheckRequest directly.
func actionForRequest(r *http.Request) string {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ActionFormSubmit
	default:
		return ActionFormView
	}
}

// Middleware wraps an http.Handler with the per-request security
// pipeline. Security headers are attached to every response regardless
// of outcome, a request ID is generated (or adopted from a valid
// X-Request-ID header) and propagated via the context, and denied
// requests receive 403 (or 429 for rate limiting) without reaching the
// wrapped handler.
//
// Payload and CSRF validation are not run here: they need the parsed
// form body, which belongs to the application's submission handler (see
// CheckSubmission).
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		security.ApplySecurityHeaders(w)

		requestID := security.RequestIDFromRequest(r)
		w.Header().Set(security.RequestIDHeader, requestID)
		r = r.WithContext(security.WithRequestID(r.Context(), requestID))

		if violation := s.CheckRequest(r, actionForRequest(r)); violation != nil {
			status := http.StatusForbidden
			if violation.ViolationType == security.ViolationRateLimitExceeded {
				status = http.StatusTooManyRequests
			}
			http.Error(w, violation.Error(), status)
			return
		}

		next.ServeHTTP(w, r)
	})
}
