// Package memory provides an in-memory implementation of the cache
// interface. It is suitable for development, testing, and single-instance
// deployments; multi-instance deployments need a shared backend such as
// the Valkey one.
package memory
