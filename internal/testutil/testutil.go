package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/giantswarm/formguard/security"
)

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// RequestOption customizes a test request
type RequestOption func(*http.Request)

// WithRemoteAddr sets the direct connection address
func WithRemoteAddr(addr string) RequestOption {
	return func(r *http.Request) {
		r.RemoteAddr = addr
	}
}

// WithForwardedFor sets the X-Forwarded-For header
func WithForwardedFor(xff string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", xff)
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("User-Agent", ua)
	}
}

// WithOrigin sets the Origin header
func WithOrigin(origin string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("Origin", origin)
	}
}

// WithReferer sets the Referer header
func WithReferer(referer string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("Referer", referer)
	}
}

// WithUserID attaches an authenticated user identity to the request
// context, the way the invoking framework would after authentication
func WithUserID(userID string) RequestOption {
	return func(r *http.Request) {
		*r = *r.WithContext(security.WithUserID(r.Context(), userID))
	}
}

// NewRequest builds a test request with a sane browser-like default:
// GET from a public address with no forwarding headers.
func NewRequest(method, target string, opts ...RequestOption) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.RemoteAddr = "203.0.113.10:44321"
	for _, opt := range opts {
		opt(r)
	}
	return r
}
