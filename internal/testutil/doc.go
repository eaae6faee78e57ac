// Package testutil provides testing utilities and helpers for the
// formguard library.
package testutil
