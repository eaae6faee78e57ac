// Package cache defines the namespaced TTL cache interface that backs all
// cross-request security state: rate-limit counters, suspicion counters,
// CSRF tokens, blocked-IP entries, and violation records.
// It supports various backend implementations including in-memory and Valkey.
package cache
