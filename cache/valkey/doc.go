// Package valkey provides a Valkey-backed implementation of the cache
// interface for multi-instance deployments. TTL handling and atomic
// increments are delegated to the server (SET EX, INCR + EXPIRE), so all
// replicas sharing one Valkey see the same counters, tokens, and
// blocklist entries.
package valkey
