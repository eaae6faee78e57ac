package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"time"

	"github.com/giantswarm/formguard/cache"
)

const (
	// DefaultBlockTTL is how long an administrative IP block lasts.
	DefaultBlockTTL = 7 * 24 * time.Hour

	// blocklistIndexKey holds the set of currently blocked IPs so the
	// metrics aggregator can count them without scanning the keyspace.
	blocklistIndexKey = "blocked_ips"
)

// BlockedIPEntry is the stored record for an administratively blocked IP.
type BlockedIPEntry struct {
	Reason    string    `json:"reason"`
	BlockedAt time.Time `json:"blocked_at"`
}

// Blocklist manages administrative IP blocks in the shared cache.
// Add and Remove are intended for manual/administrative invocation, not
// the per-request hot path; only Contains runs per request.
type Blocklist struct {
	cache    cache.Cache
	blockTTL time.Duration
	logger   *slog.Logger
}

// NewBlocklist creates a blocklist with the default 7 day block TTL.
func NewBlocklist(c cache.Cache, logger *slog.Logger) *Blocklist {
	if logger == nil {
		logger = slog.Default()
	}
	return &Blocklist{
		cache:    c,
		blockTTL: DefaultBlockTTL,
		logger:   logger,
	}
}

// SetBlockTTL overrides the block duration. Intended for configuration
// at construction time, before the blocklist is shared across goroutines.
func (b *Blocklist) SetBlockTTL(ttl time.Duration) {
	if ttl > 0 {
		b.blockTTL = ttl
	}
}

func blockedIPKey(ip string) string {
	return "blocked_ip:" + ip
}

// Add blocks an IP for the configured TTL. Idempotent; re-adding an
// already blocked IP refreshes its entry. The only validation is
// well-formedness of the IP string.
func (b *Blocklist) Add(ctx context.Context, ip, reason string) error {
	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid IP address: %q", ip)
	}

	entry := BlockedIPEntry{Reason: reason, BlockedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal blocked IP entry: %w", err)
	}

	if err := b.cache.Set(ctx, cache.NamespaceBlocklist, blockedIPKey(ip), data, b.blockTTL); err != nil {
		return fmt.Errorf("failed to store blocked IP entry: %w", err)
	}

	b.updateIndex(ctx, ip, true)
	b.logger.Info("IP added to blocklist", "ip", ip, "reason", reason)
	return nil
}

// Remove unblocks an IP before its entry expires. Idempotent.
func (b *Blocklist) Remove(ctx context.Context, ip string) error {
	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid IP address: %q", ip)
	}

	if err := b.cache.Delete(ctx, cache.NamespaceBlocklist, blockedIPKey(ip)); err != nil {
		return fmt.Errorf("failed to delete blocked IP entry: %w", err)
	}

	b.updateIndex(ctx, ip, false)
	b.logger.Info("IP removed from blocklist", "ip", ip)
	return nil
}

// Contains reports whether the IP is currently blocked, returning the
// stored entry when it is.
//
// Failure policy: fail-open. A cache error means the block cannot be
// confirmed, and the caller treats the IP as not blocked.
func (b *Blocklist) Contains(ctx context.Context, ip string) (*BlockedIPEntry, bool, error) {
	data, err := b.cache.Get(ctx, cache.NamespaceBlocklist, blockedIPKey(ip))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry BlockedIPEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry still represents an explicit administrative
		// block; honor it without details.
		return &BlockedIPEntry{}, true, nil
	}
	return &entry, true, nil
}

// Count returns the number of IPs on the blocklist index.
// The index is maintained best-effort on Add/Remove; entries that expired
// naturally remain counted until the next administrative operation, which
// is acceptable for dashboard purposes.
func (b *Blocklist) Count(ctx context.Context) (int, error) {
	ips, err := b.readIndex(ctx)
	if err != nil {
		return 0, err
	}
	return len(ips), nil
}

// updateIndex maintains the blocked-IP index best-effort. Admin
// operations are rare and manual, so a read-modify-write without a lock
// is an accepted race; the authoritative state is always the individual
// entry.
func (b *Blocklist) updateIndex(ctx context.Context, ip string, add bool) {
	ips, err := b.readIndex(ctx)
	if err != nil {
		b.logger.Warn("Failed to read blocklist index", "error", err)
		ips = nil
	}

	set := make(map[string]struct{}, len(ips)+1)
	for _, existing := range ips {
		set[existing] = struct{}{}
	}
	if add {
		set[ip] = struct{}{}
	} else {
		delete(set, ip)
	}

	updated := make([]string, 0, len(set))
	for existing := range set {
		updated = append(updated, existing)
	}
	sort.Strings(updated)

	data, err := json.Marshal(updated)
	if err != nil {
		b.logger.Warn("Failed to marshal blocklist index", "error", err)
		return
	}
	if err := b.cache.Set(ctx, cache.NamespaceBlocklist, blocklistIndexKey, data, b.blockTTL); err != nil {
		b.logger.Warn("Failed to store blocklist index", "error", err)
	}
}

func (b *Blocklist) readIndex(ctx context.Context) ([]string, error) {
	data, err := b.cache.Get(ctx, cache.NamespaceBlocklist, blocklistIndexKey)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var ips []string
	if err := json.Unmarshal(data, &ips); err != nil {
		return nil, fmt.Errorf("corrupt blocklist index: %w", err)
	}
	return ips, nil
}
