package valkey

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/giantswarm/formguard/cache"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys
	DefaultKeyPrefix = "formguard:"

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second
)

// Config holds configuration for the Valkey cache backend.
type Config struct {
	// Address is the Valkey server address (required), e.g., "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "formguard:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is a Valkey-backed implementation of cache.Cache.
type Store struct {
	client valkeygo.Client
	prefix string
	logger *slog.Logger
}

// Compile-time interface check
var _ cache.Cache = (*Store)(nil)

// New creates a new Valkey-backed cache instance.
// Returns an error if the connection cannot be established.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey cache",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey cache connection closed")
}

func (s *Store) key(namespace, key string) string {
	return s.prefix + namespace + ":" + key
}

// Get returns the value for (namespace, key) or cache.ErrNotFound.
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(namespace, key)).Build()).AsBytes()
	if err != nil {
		if isNilError(err) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return data, nil
}

// Set stores value under (namespace, key) with the given TTL.
func (s *Store) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(s.key(namespace, key)).Value(string(value)).Ex(ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(namespace, key)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Increment atomically increments the counter via INCR and refreshes the
// TTL. INCR is atomic server-side, so concurrent requests from one client
// never undercount.
func (s *Store) Increment(ctx context.Context, namespace, key string, ttl time.Duration) (int64, error) {
	k := s.key(namespace, key)

	count, err := s.client.Do(ctx, s.client.B().Incr().Key(k).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment key: %w", err)
	}

	// TTL refresh on every allowed call gives the sliding window the rate
	// limiter documents. A failure here leaves the previous TTL in place,
	// which only shortens the window, so it is logged rather than fatal.
	expireCmd := s.client.B().Expire().Key(k).Seconds(int64(ttl.Seconds())).Build()
	if err := s.client.Do(ctx, expireCmd).Error(); err != nil {
		s.logger.Warn("Failed to refresh counter TTL",
			"key", k,
			"error", err)
	}

	return count, nil
}

// isNilError checks if the error indicates a nil/not-found result from Valkey.
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}
