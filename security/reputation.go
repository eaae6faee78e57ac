package security

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/giantswarm/formguard/cache"
)

const (
	// DefaultSuspicionThreshold is the number of suspicion signals within
	// one window that converts an identity from watched to blocked.
	// A single anomalous signal never blocks; repeated anomalies do.
	DefaultSuspicionThreshold = 5

	// DefaultSuspicionWindow is the TTL of the suspicious-activity
	// counter, and therefore the duration of an escalated block.
	DefaultSuspicionWindow = time.Hour
)

// staticBlockedCIDRs are the private and loopback ranges that must never
// appear as an external client address. A request presenting one of these
// as its source indicates proxy misconfiguration or spoofed forwarding
// headers. Compiled once at init; never mutated at runtime.
var staticBlockedCIDRs = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"::1/128",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("security: invalid static CIDR " + cidr + ": " + err.Error())
		}
		nets = append(nets, n)
	}
	return nets
}

// StaticBlockedNetworkCount reports the size of the compiled-in
// private/loopback range list, for the metrics aggregator.
func StaticBlockedNetworkCount() int {
	return len(staticBlockedCIDRs)
}

// ReputationDecision is the outcome of an IP reputation check. When the
// request is denied, Violation and Details describe why for violation
// records and audit logging.
type ReputationDecision struct {
	Allowed   bool
	Violation string
	Details   string
}

var reputationAllowed = ReputationDecision{Allowed: true}

// ReputationEngine combines the administrative blocklist, the static
// private-range check, and graduated suspicion scoring into a single
// per-request reputation verdict.
//
// Failure policy: fail-open. Cache errors and missing request data count
// as "no signal" and the request is allowed.
type ReputationEngine struct {
	cache     cache.Cache
	blocklist *Blocklist
	patterns  *PatternSet
	threshold int64
	window    time.Duration
	logger    *slog.Logger
	onError   func(component string)

	// onEscalation is invoked when a suspicion counter crosses the
	// threshold, for metrics.
	onEscalation func(clientID string)
}

// ReputationOption configures a ReputationEngine.
type ReputationOption func(*ReputationEngine)

// WithSuspicionThreshold overrides the escalation threshold.
func WithSuspicionThreshold(threshold int) ReputationOption {
	return func(e *ReputationEngine) {
		if threshold > 0 {
			e.threshold = int64(threshold)
		}
	}
}

// WithSuspicionWindow overrides the suspicion counter TTL.
func WithSuspicionWindow(window time.Duration) ReputationOption {
	return func(e *ReputationEngine) {
		if window > 0 {
			e.window = window
		}
	}
}

// WithReputationCacheErrorHook registers a callback invoked when a cache
// error is swallowed on the fail-open path.
func WithReputationCacheErrorHook(hook func(component string)) ReputationOption {
	return func(e *ReputationEngine) {
		e.onError = hook
	}
}

// WithEscalationHook registers a callback invoked when an identity
// crosses the suspicion threshold.
func WithEscalationHook(hook func(clientID string)) ReputationOption {
	return func(e *ReputationEngine) {
		e.onEscalation = hook
	}
}

// NewReputationEngine creates a reputation engine. patterns may be nil to
// use the built-in signature tables.
func NewReputationEngine(c cache.Cache, blocklist *Blocklist, patterns *PatternSet, logger *slog.Logger, opts ...ReputationOption) *ReputationEngine {
	if patterns == nil {
		patterns = DefaultPatternSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &ReputationEngine{
		cache:     c,
		blocklist: blocklist,
		patterns:  patterns,
		threshold: DefaultSuspicionThreshold,
		window:    DefaultSuspicionWindow,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check reports whether the request passes IP reputation.
func (e *ReputationEngine) Check(ctx context.Context, r *http.Request) bool {
	return e.Evaluate(ctx, r).Allowed
}

// Evaluate runs the reputation algorithm and returns the full decision:
//
//  1. Resolve the client IP (forwarded-for first hop, else peer address).
//  2. Administratively blocked IP: deny.
//  3. IP inside a static private/loopback range: deny.
//  4. Compute suspicion signals (automation User-Agent, injection or
//     traversal pattern in the URL); a signal increments the
//     suspicious-activity counter, and crossing the threshold denies for
//     the remainder of the counter window.
//  5. Otherwise allow.
//
// A request with no resolvable IP or headers yields no signal and is
// allowed; this check never panics on partial request data.
func (e *ReputationEngine) Evaluate(ctx context.Context, r *http.Request) ReputationDecision {
	if r == nil {
		return reputationAllowed
	}

	ip := ClientIP(r)
	if ip == "" {
		return reputationAllowed
	}

	// Step 2: administrative blocklist.
	entry, blocked, err := e.blocklist.Contains(ctx, ip)
	if err != nil {
		e.failOpen("blocklist lookup", err)
	} else if blocked {
		e.logger.Warn("Request from blocked IP denied", "ip", ip, "reason", entry.Reason)
		return ReputationDecision{
			Violation: ViolationBlockedIP,
			Details:   fmt.Sprintf("IP %s is blocked: %s", ip, entry.Reason),
		}
	}

	// Step 3: static private/loopback ranges.
	if parsed := net.ParseIP(ip); parsed != nil {
		for _, network := range staticBlockedCIDRs {
			if network.Contains(parsed) {
				e.logger.Warn("Request from private network range denied",
					"ip", ip,
					"network", network.String())
				return ReputationDecision{
					Violation: ViolationPrivateNetwork,
					Details:   fmt.Sprintf("IP %s is in blocked network %s", ip, network),
				}
			}
		}
	}

	// Step 4: suspicion signals.
	signal, detail := e.suspicionSignal(r)
	if !signal {
		return reputationAllowed
	}

	clientID := ResolveClientIdentity(r)
	count, err := e.cache.Increment(ctx, cache.NamespaceCounters, suspicionKey(clientID), e.window)
	if err != nil {
		e.failOpen("suspicion counter", err)
		return reputationAllowed
	}

	e.logger.Info("Suspicion signal recorded",
		"client_id", clientID,
		"signal", detail,
		"count", count,
		"threshold", e.threshold)

	if count >= e.threshold {
		if e.onEscalation != nil {
			e.onEscalation(clientID)
		}
		e.logger.Warn("Suspicious activity threshold reached, client blocked",
			"client_id", clientID,
			"count", count,
			"window", e.window)
		return ReputationDecision{
			Violation: ViolationSuspiciousActivity,
			Details:   fmt.Sprintf("suspicious activity threshold reached (%d signals): %s", count, detail),
		}
	}

	// Below threshold: tolerated anomaly.
	return reputationAllowed
}

// suspicionSignal computes the per-request suspicion signals: a flagged
// User-Agent or an injection/traversal pattern in the request path+query.
func (e *ReputationEngine) suspicionSignal(r *http.Request) (bool, string) {
	if e.patterns.MatchesUserAgent(r.Header.Get("User-Agent")) {
		return true, "automation user agent"
	}

	if r.URL != nil {
		target := r.URL.Path
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		if group, matched := e.patterns.Scan(target); matched {
			return true, "suspicious URL pattern (" + string(group) + ")"
		}
	}

	return false, ""
}

func suspicionKey(clientID string) string {
	return "suspicion:" + clientID
}

func (e *ReputationEngine) failOpen(op string, err error) {
	e.logger.Warn("Reputation cache unavailable, failing open",
		"op", op,
		"error", err)
	if e.onError != nil {
		e.onError("reputation")
	}
}
