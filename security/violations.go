package security

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/giantswarm/formguard/cache"
)

const (
	// violationRecordTTL is how long individual violation records are
	// retained; the metrics aggregator reports over the same window.
	violationRecordTTL = 24 * time.Hour

	// violationCounterTTL keeps hourly counters alive slightly longer
	// than the reporting window so the oldest bucket is never cut short.
	violationCounterTTL = 25 * time.Hour

	// violationWindowHours is the reporting window in hourly buckets.
	violationWindowHours = 24
)

// ViolationRecord is the append-only audit entry written on every denial
// path. Records expire naturally via cache TTL; there is no update or
// delete.
type ViolationRecord struct {
	ViolationType string    `json:"violation_type"`
	Details       string    `json:"details"`
	ClientID      string    `json:"client_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// knownViolationTypes enumerates the types the aggregator reports on.
var knownViolationTypes = []string{
	ViolationRateLimitExceeded,
	ViolationInvalidOrigin,
	ViolationBlockedIP,
	ViolationPrivateNetwork,
	ViolationSuspiciousActivity,
	ViolationMaliciousPayload,
	ViolationInvalidCSRFToken,
}

// ViolationStore appends violation records and derives rolling 24 hour
// counts per violation type. Alongside each full record it increments an
// hourly per-type counter, so aggregation is a bounded set of counter
// reads instead of a keyspace scan.
type ViolationStore struct {
	cache  cache.Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewViolationStore creates a violation store.
func NewViolationStore(c cache.Cache, logger *slog.Logger) *ViolationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViolationStore{
		cache:  c,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source for deterministic tests.
func (s *ViolationStore) SetClock(now func() time.Time) {
	s.now = now
}

// Record appends a violation record. Best-effort: recording failures are
// logged and swallowed, since telemetry must never turn a denial into an
// error for the caller.
func (s *ViolationStore) Record(ctx context.Context, violationType, details, clientID string) {
	now := s.now()
	record := ViolationRecord{
		ViolationType: violationType,
		Details:       details,
		ClientID:      clientID,
		Timestamp:     now,
	}

	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn("Failed to marshal violation record", "error", err)
		return
	}

	key := violationRecordKey(now)
	if err := s.cache.Set(ctx, cache.NamespaceBlocklist, key, data, violationRecordTTL); err != nil {
		s.logger.Warn("Failed to store violation record",
			"violation_type", violationType,
			"error", err)
	}

	counterKey := violationCounterKey(violationType, now)
	if _, err := s.cache.Increment(ctx, cache.NamespaceBlocklist, counterKey, violationCounterTTL); err != nil {
		s.logger.Warn("Failed to increment violation counter",
			"violation_type", violationType,
			"error", err)
	}
}

// Counts24h returns the number of violations per type over the rolling
// 24 hour window.
func (s *ViolationStore) Counts24h(ctx context.Context) (map[string]int64, error) {
	now := s.now()
	counts := make(map[string]int64, len(knownViolationTypes))

	for _, violationType := range knownViolationTypes {
		var total int64
		for hour := 0; hour < violationWindowHours; hour++ {
			bucket := now.Add(-time.Duration(hour) * time.Hour)
			key := violationCounterKey(violationType, bucket)

			data, err := s.cache.Get(ctx, cache.NamespaceBlocklist, key)
			if err != nil {
				if errors.Is(err, cache.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("failed to read violation counter %s: %w", key, err)
			}
			if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
				total += n
			}
		}
		counts[violationType] = total
	}

	return counts, nil
}

// violationRecordKey builds a unique key per record: nanosecond timestamp
// plus a random suffix so concurrent denials never collide.
func violationRecordKey(now time.Time) string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return "violation:" + strconv.FormatInt(now.UnixNano(), 10) + ":" + hex.EncodeToString(suffix[:])
}

// violationCounterKey buckets counters by hour.
func violationCounterKey(violationType string, t time.Time) string {
	return "violations:" + violationType + ":" + strconv.FormatInt(t.Truncate(time.Hour).Unix(), 10)
}
