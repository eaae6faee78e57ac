package memory

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/giantswarm/formguard/cache"
)

// entry is a stored value with its expiry deadline.
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store is an in-memory implementation of cache.Cache.
// All operations are guarded by a single mutex, which also gives
// Increment its read-modify-write atomicity.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger

	// now is swappable for deterministic expiry tests
	now func() time.Time
}

// Compile-time interface check
var _ cache.Cache = (*Store)(nil)

// New creates a new in-memory store with the default cleanup interval
// (1 minute).
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom cleanup
// interval. If cleanupInterval is 0 or negative, uses the 1 minute default.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		entries:         make(map[string]entry),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
		now:             time.Now,
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetClock overrides the time source. Intended for tests that need to
// advance past TTLs without sleeping.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func storeKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Get returns the value for (namespace, key) or cache.ErrNotFound.
func (s *Store) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := storeKey(namespace, key)
	e, ok := s.entries[k]
	if !ok {
		return nil, cache.ErrNotFound
	}
	if e.expired(s.now()) {
		delete(s.entries, k)
		return nil, cache.ErrNotFound
	}

	// Copy so callers cannot mutate stored state
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value under (namespace, key) with the given TTL.
func (s *Store) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.entries[storeKey(namespace, key)] = entry{value: v, expiresAt: expiresAt}
	return nil
}

// Delete removes the key. Missing keys are not an error.
func (s *Store) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, storeKey(namespace, key))
	return nil
}

// Increment atomically increments the counter under (namespace, key),
// creating it at 1, and refreshes the TTL on every call.
func (s *Store) Increment(_ context.Context, namespace, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := storeKey(namespace, key)

	var count int64
	if e, ok := s.entries[k]; ok && !e.expired(now) {
		parsed, err := strconv.ParseInt(string(e.value), 10, 64)
		if err == nil {
			count = parsed
		}
		// A non-numeric value is treated as 0 and overwritten; counters
		// and opaque values never share a key.
	}
	count++

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	s.entries[k] = entry{
		value:     []byte(strconv.FormatInt(count, 10)),
		expiresAt: expiresAt,
	}
	return count, nil
}

// Len reports the number of live entries. Used by tests and metrics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// cleanupLoop periodically removes expired entries to prevent memory
// growth between reads.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("Memory cache cleanup completed",
			"removed", removed,
			"remaining", len(s.entries))
	}
}

// Stop gracefully stops the cleanup goroutine. Safe to call multiple times.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}
