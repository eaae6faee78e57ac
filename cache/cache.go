package cache

import (
	"context"
	"errors"
	"time"
)

// Namespaces partition the keyspace so counters and blocklist entries
// cannot collide. Backends must keep namespaces isolated from each other.
const (
	// NamespaceCounters holds rate-limit counters, suspicious-activity
	// counters, and CSRF token records.
	NamespaceCounters = "counters"

	// NamespaceBlocklist holds blocked-IP entries and security violation
	// records.
	NamespaceBlocklist = "blocklist"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("cache: key not found")

// Cache is the shared TTL key-value store backing all cross-request
// security state. The service holds no long-lived in-process state beyond
// compiled statics, so any number of replicas can share one Cache.
//
// All methods accept context.Context so callers can bound cache latency;
// a slow or failed call must surface as an error, never hang.
type Cache interface {
	// Get returns the value stored under (namespace, key), or ErrNotFound
	// if the key does not exist or its TTL has elapsed.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Set stores value under (namespace, key) with the given TTL.
	// A ttl of zero or less means the backend default (never for memory,
	// no expiry for Valkey is not allowed; callers always pass a TTL).
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// Increment atomically increments the integer stored under
	// (namespace, key), creating it at 1 if absent, and refreshes the TTL
	// on every call. Returns the post-increment value.
	//
	// Atomicity here is what keeps rate-limit and suspicion counters
	// correct under concurrent requests from one client; backends that
	// cannot increment natively must serialize per key.
	Increment(ctx context.Context, namespace, key string, ttl time.Duration) (int64, error)
}
