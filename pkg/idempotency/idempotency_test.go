package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("acme", "telegram", "c1", "m1")
	b := Key("acme", "telegram", "c1", "m1")
	if a != b {
		t.Errorf("Key not deterministic: %q vs %q", a, b)
	}

	c := Key("acme", "telegram", "c1", "m2")
	if a == c {
		t.Error("different msg ids should produce different keys")
	}

	d := Key("other", "telegram", "c1", "m1")
	if a == d {
		t.Error("different tenants should produce different keys")
	}
}

func TestMemoryStoreCreate(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	created, err := s.Create(ctx, "k1")
	if err != nil || !created {
		t.Fatalf("first Create = (%v, %v), want (true, nil)", created, err)
	}

	created, err = s.Create(ctx, "k1")
	if err != nil || created {
		t.Fatalf("second Create = (%v, %v), want (false, nil)", created, err)
	}
}

func TestMemoryStoreEviction(t *testing.T) {
	s := NewMemoryStore(50 * time.Millisecond)
	now := time.Now()
	s.now = func() time.Time { return now }

	if created, _ := s.Create(context.Background(), "k1"); !created {
		t.Fatal("first sighting should create")
	}

	// Advance past the TTL; the entry must be evicted and recreatable.
	now = now.Add(100 * time.Millisecond)
	if created, _ := s.Create(context.Background(), "k1"); !created {
		t.Error("expired entry should be recreatable")
	}
}

type failingStore struct{ err error }

func (s failingStore) Create(context.Context, string) (bool, error) { return false, s.err }

func TestGuardSeenOrMark(t *testing.T) {
	logger := slog.Default()
	g := NewGuard(NewMemoryStore(time.Minute), logger, nil)
	ctx := context.Background()

	if g.SeenOrMark(ctx, "acme", "telegram", "c1", "m1") {
		t.Error("first sighting should not be seen")
	}
	if !g.SeenOrMark(ctx, "acme", "telegram", "c1", "m1") {
		t.Error("second sighting should be seen")
	}
	if g.SeenOrMark(ctx, "acme", "telegram", "c1", "m2") {
		t.Error("different msg id should not be seen")
	}
}

func TestGuardFailsOpen(t *testing.T) {
	g := NewGuard(failingStore{err: errors.New("kv down")}, slog.Default(), nil)

	if g.SeenOrMark(context.Background(), "acme", "slack", "c1", "m1") {
		t.Error("store errors must fail open (treated as unseen)")
	}
}
