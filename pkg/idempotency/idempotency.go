// Package idempotency provides at-most-once admission for inbound events.
// Keys derive from (tenant, platform, chat_id, msg_id); an entry lives for a
// TTL window in a create-only KV store.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store is the create-only KV primitive behind the guard. Create returns
// false when the key already exists within its TTL window.
type Store interface {
	Create(ctx context.Context, key string) (created bool, err error)
}

// Key builds the idempotency key for an inbound event.
func Key(tenant, platform, chatID, msgID string) string {
	sum := sha256.Sum256([]byte(tenant + "|" + platform + "|" + chatID + "|" + msgID))
	return hex.EncodeToString(sum[:])
}

// Guard answers "have we admitted this event already?". Transient store
// errors fail open: the event is treated as unseen and a metric is recorded,
// trading strict global dedup for availability.
type Guard struct {
	store    Store
	logger   *slog.Logger
	failOpen prometheus.Counter
}

// NewGuard creates a Guard over the given store. failOpen may be nil.
func NewGuard(store Store, logger *slog.Logger, failOpen prometheus.Counter) *Guard {
	return &Guard{store: store, logger: logger, failOpen: failOpen}
}

// SeenOrMark returns true iff an entry for the key already exists within its
// TTL window; otherwise it atomically inserts the key and returns false.
func (g *Guard) SeenOrMark(ctx context.Context, tenant, platform, chatID, msgID string) bool {
	key := Key(tenant, platform, chatID, msgID)
	created, err := g.store.Create(ctx, key)
	if err != nil {
		g.logger.Warn("idempotency store error, failing open", "error", err)
		if g.failOpen != nil {
			g.failOpen.Inc()
		}
		return false
	}
	return !created
}

// MemoryStore is a process-local fallback store with timestamped eviction.
// It serves a single process only; cross-instance dedup needs the KV store.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store evicting entries after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Create inserts the key unless a live entry exists. Expired entries are
// garbage-collected on each call.
func (s *MemoryStore) Create(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, at := range s.entries {
		if now.Sub(at) > s.ttl {
			delete(s.entries, k)
		}
	}

	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	s.entries[key] = now
	return true, nil
}
