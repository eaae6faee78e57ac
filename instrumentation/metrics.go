package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the form security service
type Metrics struct {
	// Request decision metrics
	ChecksTotal  metric.Int64Counter
	DenialsTotal metric.Int64Counter

	// Failure policy metrics
	CacheFailuresTotal metric.Int64Counter

	// Reputation metrics
	SuspicionSignalsTotal     metric.Int64Counter
	SuspicionEscalationsTotal metric.Int64Counter

	// CSRF metrics
	CSRFTokensIssuedTotal      metric.Int64Counter
	CSRFPersistFailuresTotal   metric.Int64Counter
	CSRFValidationDenialsTotal metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	meter := inst.Meter("security")
	m := &Metrics{}

	var err error
	m.ChecksTotal, err = meter.Int64Counter(
		"formguard.checks.total",
		metric.WithDescription("Total number of security checks performed"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create checks.total counter: %w", err)
	}

	m.DenialsTotal, err = meter.Int64Counter(
		"formguard.denials.total",
		metric.WithDescription("Total number of requests denied, by violation type"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create denials.total counter: %w", err)
	}

	m.CacheFailuresTotal, err = meter.Int64Counter(
		"formguard.cache.failures.total",
		metric.WithDescription("Cache errors swallowed on fail-open paths, by component"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.failures.total counter: %w", err)
	}

	m.SuspicionSignalsTotal, err = meter.Int64Counter(
		"formguard.suspicion.signals.total",
		metric.WithDescription("Suspicion signals recorded against client identities"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create suspicion.signals.total counter: %w", err)
	}

	m.SuspicionEscalationsTotal, err = meter.Int64Counter(
		"formguard.suspicion.escalations.total",
		metric.WithDescription("Client identities escalated to blocked after repeated suspicion signals"),
		metric.WithUnit("{escalation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create suspicion.escalations.total counter: %w", err)
	}

	m.CSRFTokensIssuedTotal, err = meter.Int64Counter(
		"formguard.csrf.tokens.issued.total",
		metric.WithDescription("CSRF tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create csrf.tokens.issued.total counter: %w", err)
	}

	m.CSRFPersistFailuresTotal, err = meter.Int64Counter(
		"formguard.csrf.persist.failures.total",
		metric.WithDescription("CSRF tokens issued best-effort after a persistence failure"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create csrf.persist.failures.total counter: %w", err)
	}

	m.CSRFValidationDenialsTotal, err = meter.Int64Counter(
		"formguard.csrf.validation.denials.total",
		metric.WithDescription("CSRF token validations that failed"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create csrf.validation.denials.total counter: %w", err)
	}

	return m, nil
}

// RecordCheck records one executed security check.
func (m *Metrics) RecordCheck(ctx context.Context, check string, allowed bool) {
	if m == nil {
		return
	}
	m.ChecksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.Bool("allowed", allowed),
	))
}

// RecordDenial records one denied request with its violation type.
func (m *Metrics) RecordDenial(ctx context.Context, violationType string) {
	if m == nil {
		return
	}
	m.DenialsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("violation_type", violationType),
	))
}

// RecordCacheFailure records a swallowed cache error on a fail-open path.
func (m *Metrics) RecordCacheFailure(ctx context.Context, component string) {
	if m == nil {
		return
	}
	m.CacheFailuresTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
	))
}
