package formguard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/giantswarm/formguard/cache"
	"github.com/giantswarm/formguard/instrumentation"
	"github.com/giantswarm/formguard/security"
)

// Action names understood by the rate limiter's default table,
// re-exported for callers.
const (
	ActionFormSubmit = security.ActionFormSubmit
	ActionFormView   = security.ActionFormView
	ActionFileUpload = security.ActionFileUpload
)

// Service is the form security decision engine. It owns no cross-request
// state in process; every counter, token, and blocklist entry lives in
// the shared cache, so replicas of the embedding service can run any
// number of Service instances against one cache.
type Service struct {
	cfg     Config
	cache   cache.Cache
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	rateLimiter *security.RateLimiter
	origin      *security.OriginValidator
	reputation  *security.ReputationEngine
	payload     *security.PayloadValidator
	csrf        *security.CSRFTokenManager
	blocklist   *security.Blocklist
	violations  *security.ViolationStore
	auditor     *security.Auditor
	adminGuard  *security.AdminGuard
}

// New creates a form security service backed by the given cache.
func New(cfg Config, c cache.Cache) (*Service, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.applyDefaults()

	inst := cfg.Instrumentation
	if inst == nil {
		var err error
		inst, err = instrumentation.New(instrumentation.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to create instrumentation: %w", err)
		}
	}
	metrics := inst.Metrics()

	s := &Service{
		cfg:     cfg,
		cache:   c,
		logger:  cfg.Logger,
		metrics: metrics,
	}

	cacheFailureHook := func(component string) {
		metrics.RecordCacheFailure(context.Background(), component)
	}

	rateLimitOpts := []security.RateLimiterOption{
		security.WithWindow(cfg.RateLimit.Window),
		security.WithCacheErrorHook(cacheFailureHook),
	}
	if len(cfg.RateLimit.ActionLimits) > 0 {
		rateLimitOpts = append(rateLimitOpts, security.WithActionLimits(cfg.RateLimit.ActionLimits))
	}
	if cfg.RateLimit.BurstRate > 0 {
		rateLimitOpts = append(rateLimitOpts,
			security.WithBurstGuard(cfg.RateLimit.BurstRate, cfg.RateLimit.Burst, 0))
	}
	s.rateLimiter = security.NewRateLimiter(c, cfg.Logger, rateLimitOpts...)

	s.origin = security.NewOriginValidator(cfg.AllowedOrigins, cfg.Logger)

	s.blocklist = security.NewBlocklist(c, cfg.Logger)
	s.blocklist.SetBlockTTL(cfg.Reputation.BlockTTL)

	patterns := security.DefaultPatternSet()
	s.reputation = security.NewReputationEngine(c, s.blocklist, patterns, cfg.Logger,
		security.WithSuspicionThreshold(cfg.Reputation.SuspicionThreshold),
		security.WithSuspicionWindow(cfg.Reputation.SuspicionWindow),
		security.WithReputationCacheErrorHook(cacheFailureHook),
		security.WithEscalationHook(func(clientID string) {
			metrics.SuspicionEscalationsTotal.Add(context.Background(), 1)
		}),
	)

	s.payload = security.NewPayloadValidator(patterns, cfg.Logger)

	s.csrf = security.NewCSRFTokenManager(c, cfg.Logger)
	s.csrf.SetTokenTTL(cfg.CSRF.TokenTTL)
	s.csrf.SetPersistFailureHook(func() {
		metrics.CSRFPersistFailuresTotal.Add(context.Background(), 1)
	})

	s.violations = security.NewViolationStore(c, cfg.Logger)
	s.auditor = security.NewAuditor(cfg.Logger, cfg.EnableAuditLogging)
	s.adminGuard = security.NewAdminGuard(cfg.AdminKeyHash)

	return s, nil
}

// withTimeout bounds a cache-touching check so a slow cache falls into
// the component's documented failure path instead of hanging the request.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.CheckTimeout)
}

// recordViolation writes the violation record, audit event, and denial
// metric that accompany every denial path.
func (s *Service) recordViolation(ctx context.Context, violationType, details, clientID string) {
	s.violations.Record(ctx, violationType, details, clientID)
	s.auditor.LogViolation(violationType, clientID, security.RequestIDFromContext(ctx), details)
	s.metrics.RecordDenial(ctx, violationType)
}

// ResolveClientIdentity derives the partition key for all per-requester
// state: "user:<id>" for authenticated requests, "ip:<addr>" otherwise,
// "ip:unknown" when nothing is resolvable. Pure; never fails.
func (s *Service) ResolveClientIdentity(r *http.Request) string {
	return security.ResolveClientIdentity(r)
}

// CheckRateLimit reports whether the client is within its request budget
// for the action. Fail-open: cache errors allow the request.
func (s *Service) CheckRateLimit(ctx context.Context, clientID, action string) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	allowed := s.rateLimiter.Check(ctx, clientID, action)
	s.metrics.RecordCheck(ctx, "rate_limit", allowed)
	if !allowed {
		s.recordViolation(ctx, security.ViolationRateLimitExceeded,
			fmt.Sprintf("rate limit exceeded for action %q", action), clientID)
	}
	return allowed
}

// ValidateRequestOrigin reports whether the request's browser origin is
// on the allow-list. Requests without Origin and Referer headers pass;
// a wildcard allow-list passes everything.
func (s *Service) ValidateRequestOrigin(r *http.Request) bool {
	allowed := s.origin.Validate(r)

	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.metrics.RecordCheck(ctx, "origin", allowed)
	if !allowed {
		s.recordViolation(ctx, security.ViolationInvalidOrigin,
			fmt.Sprintf("origin %q not allowed", r.Header.Get("Origin")),
			security.ResolveClientIdentity(r))
	}
	return allowed
}

// CheckIPReputation reports whether the request passes the blocklist,
// static private-range, and suspicion checks. Fail-open on cache errors
// and missing request data.
func (s *Service) CheckIPReputation(ctx context.Context, r *http.Request) bool {
	return s.evaluateReputation(ctx, r).Allowed
}

// evaluateReputation runs the reputation engine and handles the denial
// bookkeeping, returning the full decision for callers that need the
// violation type.
func (s *Service) evaluateReputation(ctx context.Context, r *http.Request) security.ReputationDecision {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	decision := s.reputation.Evaluate(ctx, r)
	s.metrics.RecordCheck(ctx, "ip_reputation", decision.Allowed)
	if !decision.Allowed {
		s.recordViolation(ctx, decision.Violation, decision.Details,
			security.ResolveClientIdentity(r))
	}
	return decision
}

// ValidateFormDataSecurity reports whether submitted form data is free of
// injection patterns. Fail-closed: the decision never touches the cache,
// and any single match anywhere in the structure denies the whole
// payload.
func (s *Service) ValidateFormDataSecurity(ctx context.Context, data map[string]any) bool {
	field, group, ok := s.payload.Inspect(data)
	s.metrics.RecordCheck(ctx, "payload", ok)
	if !ok {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		s.recordViolation(ctx, security.ViolationMaliciousPayload,
			fmt.Sprintf("%s pattern in field %q", group, field), "")
	}
	return ok
}

// GenerateCSRFToken issues a one-time token bound to the client identity.
// Never fails the caller: if persistence errors the token is still
// returned best-effort.
func (s *Service) GenerateCSRFToken(ctx context.Context, clientID string) string {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	token := s.csrf.Generate(ctx, clientID)
	s.metrics.CSRFTokensIssuedTotal.Add(ctx, 1)
	s.auditor.LogCSRFTokenIssued(clientID)
	return token
}

// ValidateCSRFToken checks and consumes a one-time token. Fail-closed:
// unknown token, client mismatch, replay, and cache errors all deny.
func (s *Service) ValidateCSRFToken(ctx context.Context, clientID, token string) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok := s.csrf.Validate(ctx, clientID, token)
	s.metrics.RecordCheck(ctx, "csrf", ok)
	if !ok {
		s.metrics.CSRFValidationDenialsTotal.Add(ctx, 1)
		s.recordViolation(ctx, security.ViolationInvalidCSRFToken,
			"CSRF token validation failed", clientID)
	}
	return ok
}

// SecurityHeaders returns the fixed response header set attached to every
// response regardless of outcome.
func (s *Service) SecurityHeaders() map[string]string {
	return security.SecurityHeaders()
}

// AuthorizeAdmin validates a presented admin key for blocklist
// administration. Always succeeds when no admin key hash is configured.
func (s *Service) AuthorizeAdmin(key string) error {
	return s.adminGuard.Authorize(key)
}

// AddBlockedIP blocks an IP for the configured TTL. Administrative
// operation, not part of the per-request hot path. Idempotent.
func (s *Service) AddBlockedIP(ctx context.Context, ip, reason string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.blocklist.Add(ctx, ip, reason); err != nil {
		return err
	}
	s.auditor.LogIPBlocked(ip, reason)
	return nil
}

// RemoveBlockedIP unblocks an IP before its entry expires. Idempotent.
func (s *Service) RemoveBlockedIP(ctx context.Context, ip string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.blocklist.Remove(ctx, ip); err != nil {
		return err
	}
	s.auditor.LogIPUnblocked(ip)
	return nil
}

// SecurityMetrics returns operational counts for dashboards: blocked IP
// count, static blocked-network list size, and rolling 24 hour violation
// counts per type.
//
// Never fails the caller: this feeds a dashboard that must stay
// responsive under partial failure, so internal faults are reported
// inside the result under an "error" key.
func (s *Service) SecurityMetrics(ctx context.Context) map[string]any {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result := map[string]any{
		"static_blocked_networks": security.StaticBlockedNetworkCount(),
	}

	blockedCount, err := s.blocklist.Count(ctx)
	if err != nil {
		s.logger.Warn("Failed to count blocked IPs for metrics", "error", err)
		result["error"] = err.Error()
		return result
	}
	result["blocked_ips"] = blockedCount

	counts, err := s.violations.Counts24h(ctx)
	if err != nil {
		s.logger.Warn("Failed to aggregate violation counts for metrics", "error", err)
		result["error"] = err.Error()
		return result
	}
	result["violations_24h"] = counts

	return result
}
