package security

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// userIDContextKey is the context key under which the invoking framework
// attaches an authenticated user identity.
type userIDContextKey struct{}

// WithUserID returns a context carrying the authenticated user identity.
// The invoking framework calls this after its own authentication step;
// this library only consumes the resolved identity, it never produces one.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the authenticated user identity attached to
// the context, or "" if the request is anonymous.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDContextKey{}).(string); ok {
		return id
	}
	return ""
}

// UnknownClientIdentity is the identity used when neither a user nor an
// IP address can be resolved from the request.
const UnknownClientIdentity = "ip:unknown"

// ResolveClientIdentity derives the stable key that partitions all
// per-requester security state: rate-limit counters, suspicion counters,
// and CSRF tokens.
//
// Precedence: authenticated user id ("user:<id>") > first hop of
// X-Forwarded-For ("ip:<addr>") > direct peer address > "ip:unknown".
//
// This is a pure function of the request and never fails; malformed or
// absent fields degrade to "ip:unknown" rather than erroring.
func ResolveClientIdentity(r *http.Request) string {
	if r == nil {
		return UnknownClientIdentity
	}

	if userID := UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}

	if ip := ClientIP(r); ip != "" {
		return "ip:" + ip
	}

	return UnknownClientIdentity
}

// ClientIP extracts the client IP address from the request.
// Supports X-Forwarded-For and X-Real-IP headers when behind a proxy;
// falls back to the direct connection address. Returns "" when no
// address is resolvable.
//
// The first X-Forwarded-For hop is taken at face value. When the service
// is not behind a trusted proxy this header is spoofable, which is why
// the reputation engine independently rejects private-range addresses
// presenting as external clients.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}

	if ip := firstForwardedFor(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	return remoteAddrHost(r.RemoteAddr)
}

// firstForwardedFor returns the first (client) hop of an X-Forwarded-For
// header, or "" if the header is absent or not a valid address.
func firstForwardedFor(xff string) string {
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	first = strings.TrimSpace(first)
	if net.ParseIP(first) != nil {
		return first
	}
	return ""
}

// remoteAddrHost extracts the host part of a RemoteAddr value, tolerating
// addresses without a port.
func remoteAddrHost(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
