package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
)

// requestIDContextKey is the context key for storing request IDs
type requestIDContextKey struct{}

// RequestIDHeader is the HTTP header for request IDs
const RequestIDHeader = "X-Request-ID"

// requestIDPattern validates request IDs to prevent header injection.
// Allows: alphanumeric, hyphens, underscores (1-128 chars), which accepts
// common request ID formats from upstream proxies.
var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// GenerateRequestID generates a cryptographically secure random request
// ID: 16 bytes (128 bits) of entropy encoded as a 22-character base64url
// string. Request IDs correlate violation records and audit events for
// one request across log streams.
//
// Panics if the system RNG fails, which indicates a critical
// system-level security failure.
func GenerateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// RequestIDFromRequest returns the request's ID: a valid incoming
// X-Request-ID header if present, otherwise a freshly generated one.
func RequestIDFromRequest(r *http.Request) string {
	if r != nil {
		if id := r.Header.Get(RequestIDHeader); id != "" && requestIDPattern.MatchString(id) {
			return id
		}
	}
	return GenerateRequestID()
}

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request ID attached to the context,
// or "" if absent.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey{}).(string); ok {
		return id
	}
	return ""
}
