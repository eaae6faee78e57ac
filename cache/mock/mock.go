// Package mock provides a mock cache implementation for testing,
// including per-method failure injection used to verify the documented
// fail-open and fail-closed behavior of each security check.
package mock

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/giantswarm/formguard/cache"
)

// Cache is a mock implementation of cache.Cache for testing.
// Default behavior is a plain in-memory map without expiry; individual
// methods can be overridden via the *Func fields to inject errors.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]byte

	GetFunc       func(namespace, key string) ([]byte, error)
	SetFunc       func(namespace, key string, value []byte, ttl time.Duration) error
	DeleteFunc    func(namespace, key string) error
	IncrementFunc func(namespace, key string, ttl time.Duration) (int64, error)

	// CallCounts tracks invocations per method name
	CallCounts map[string]int
}

// Compile-time interface check
var _ cache.Cache = (*Cache)(nil)

// New creates a new mock cache.
func New() *Cache {
	return &Cache{
		entries:    make(map[string][]byte),
		CallCounts: make(map[string]int),
	}
}

// FailAll makes every method return the given error.
func (c *Cache) FailAll(err error) {
	c.GetFunc = func(string, string) ([]byte, error) { return nil, err }
	c.SetFunc = func(string, string, []byte, time.Duration) error { return err }
	c.DeleteFunc = func(string, string) error { return err }
	c.IncrementFunc = func(string, string, time.Duration) (int64, error) { return 0, err }
}

func (c *Cache) count(method string) {
	c.CallCounts[method]++
}

func mockKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Get returns the stored value or cache.ErrNotFound.
func (c *Cache) Get(_ context.Context, namespace, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("Get")

	if c.GetFunc != nil {
		return c.GetFunc(namespace, key)
	}

	v, ok := c.entries[mockKey(namespace, key)]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return v, nil
}

// Set stores the value. TTLs are ignored; mock entries never expire.
func (c *Cache) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("Set")

	if c.SetFunc != nil {
		return c.SetFunc(namespace, key, value, ttl)
	}

	c.entries[mockKey(namespace, key)] = value
	return nil
}

// Delete removes the key.
func (c *Cache) Delete(_ context.Context, namespace, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("Delete")

	if c.DeleteFunc != nil {
		return c.DeleteFunc(namespace, key)
	}

	delete(c.entries, mockKey(namespace, key))
	return nil
}

// Increment increments the counter under the key, creating it at 1.
func (c *Cache) Increment(_ context.Context, namespace, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("Increment")

	if c.IncrementFunc != nil {
		return c.IncrementFunc(namespace, key, ttl)
	}

	k := mockKey(namespace, key)
	var count int64
	if v, ok := c.entries[k]; ok {
		if parsed, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			count = parsed
		}
	}
	count++
	c.entries[k] = []byte(strconv.FormatInt(count, 10))
	return count, nil
}

// Range calls fn for every stored entry. Keys carry the internal
// namespace prefix; callers usually only inspect values.
func (c *Cache) Range(fn func(key string, value []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.entries {
		fn(k, v)
	}
}

// Entry returns the raw stored value for assertions in tests.
func (c *Cache) Entry(namespace, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[mockKey(namespace, key)]
	return v, ok
}
