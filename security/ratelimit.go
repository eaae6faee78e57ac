package security

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/giantswarm/formguard/cache"
)

// Default per-action request limits per window. Unknown actions use
// DefaultActionLimit, which is deliberately conservative.
const (
	DefaultFormSubmitLimit = 5
	DefaultFormViewLimit   = 50
	DefaultFileUploadLimit = 10
	DefaultActionLimit     = 10

	// DefaultRateLimitWindow is the counter TTL. The TTL is refreshed on
	// every allowed request, so after saturation the block lasts one full
	// window from the last allowed request (sliding, not fixed calendar
	// window).
	DefaultRateLimitWindow = 5 * time.Minute
)

// Well-known action names.
const (
	ActionFormSubmit = "form_submit"
	ActionFormView   = "form_view"
	ActionFileUpload = "file_upload"
)

// DefaultActionLimits returns the built-in per-action limit table.
func DefaultActionLimits() map[string]int {
	return map[string]int{
		ActionFormSubmit: DefaultFormSubmitLimit,
		ActionFormView:   DefaultFormViewLimit,
		ActionFileUpload: DefaultFileUploadLimit,
	}
}

// RateLimiter throttles requests per (action, client identity) using
// counters in the shared cache, so all replicas enforce one budget.
// An optional process-local token bucket guard sits in front of the
// cache counter to absorb bursts without a cache round trip per attempt.
//
// Failure policy: fail-open. A cache error on read or write is swallowed
// and the request is allowed; this is the only place a cache failure
// must not surface as a denial.
type RateLimiter struct {
	cache   cache.Cache
	limits  map[string]int
	window  time.Duration
	logger  *slog.Logger
	onError func(component string)

	burst *burstGuard
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithActionLimits replaces the per-action limit table.
func WithActionLimits(limits map[string]int) RateLimiterOption {
	return func(rl *RateLimiter) {
		if len(limits) > 0 {
			rl.limits = limits
		}
	}
}

// WithWindow sets the counter TTL.
func WithWindow(window time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		if window > 0 {
			rl.window = window
		}
	}
}

// WithBurstGuard enables the process-local token bucket in front of the
// shared counter. requestsPerSecond and burst follow x/time/rate
// semantics; maxEntries bounds the number of tracked identities with LRU
// eviction.
func WithBurstGuard(requestsPerSecond, burst, maxEntries int) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.burst = newBurstGuard(requestsPerSecond, burst, maxEntries)
	}
}

// WithCacheErrorHook registers a callback invoked when a cache error is
// swallowed on the fail-open path, so the service can count it.
func WithCacheErrorHook(hook func(component string)) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.onError = hook
	}
}

// NewRateLimiter creates a rate limiter backed by the given cache.
func NewRateLimiter(c cache.Cache, logger *slog.Logger, opts ...RateLimiterOption) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	rl := &RateLimiter{
		cache:  c,
		limits: DefaultActionLimits(),
		window: DefaultRateLimitWindow,
		logger: logger,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Limit returns the request budget for an action.
func (rl *RateLimiter) Limit(action string) int {
	if limit, ok := rl.limits[action]; ok {
		return limit
	}
	return DefaultActionLimit
}

func rateLimitKey(action, clientID string) string {
	return "ratelimit:" + action + ":" + clientID
}

// Check reports whether a request for the given action from the given
// client identity is within budget. Allowed requests increment the shared
// counter and refresh its TTL; denied requests leave the counter
// untouched, so the window keeps sliding from the last allowed request.
func (rl *RateLimiter) Check(ctx context.Context, clientID, action string) bool {
	if rl.burst != nil && !rl.burst.allow(clientID) {
		rl.logger.Warn("Request denied by local burst guard",
			"client_id", clientID,
			"action", action)
		return false
	}

	limit := rl.Limit(action)
	key := rateLimitKey(action, clientID)

	count, err := rl.currentCount(ctx, key)
	if err != nil {
		rl.failOpen("read", action, err)
		return true
	}

	if count >= int64(limit) {
		rl.logger.Warn("Rate limit exceeded",
			"client_id", clientID,
			"action", action,
			"count", count,
			"limit", limit)
		return false
	}

	if _, err := rl.cache.Increment(ctx, cache.NamespaceCounters, key, rl.window); err != nil {
		rl.failOpen("write", action, err)
	}
	return true
}

// currentCount reads the counter, treating a missing key as zero.
func (rl *RateLimiter) currentCount(ctx context.Context, key string) (int64, error) {
	data, err := rl.cache.Get(ctx, cache.NamespaceCounters, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	count, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		// A corrupt counter is indistinguishable from no counter; start a
		// fresh window rather than deny.
		return 0, nil
	}
	return count, nil
}

func (rl *RateLimiter) failOpen(op, action string, err error) {
	rl.logger.Warn("Rate limit cache unavailable, failing open",
		"op", op,
		"action", action,
		"error", err)
	if rl.onError != nil {
		rl.onError("rate_limiter")
	}
}

// burstGuard is a bounded map of per-identity token buckets with LRU
// eviction, serving as a local shock absorber in front of the shared
// counter.
type burstGuard struct {
	mu         sync.Mutex
	limiters   map[string]*list.Element
	lruList    *list.List
	rps        int
	burst      int
	maxEntries int
}

type burstEntry struct {
	identity string
	limiter  *rate.Limiter
}

func newBurstGuard(rps, burst, maxEntries int) *burstGuard {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = rps
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &burstGuard{
		limiters:   make(map[string]*list.Element),
		lruList:    list.New(),
		rps:        rps,
		burst:      burst,
		maxEntries: maxEntries,
	}
}

func (bg *burstGuard) allow(identity string) bool {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	if elem, exists := bg.limiters[identity]; exists {
		bg.lruList.MoveToFront(elem)
		return elem.Value.(*burstEntry).limiter.Allow()
	}

	if len(bg.limiters) >= bg.maxEntries {
		bg.evictLRU()
	}

	entry := &burstEntry{
		identity: identity,
		limiter:  rate.NewLimiter(rate.Limit(bg.rps), bg.burst),
	}
	bg.limiters[identity] = bg.lruList.PushFront(entry)
	return entry.limiter.Allow()
}

// evictLRU removes the least recently used entry. Must be called with the
// mutex held.
func (bg *burstGuard) evictLRU() {
	elem := bg.lruList.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*burstEntry)
	delete(bg.limiters, entry.identity)
	bg.lruList.Remove(elem)
}
