package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// NatsKVStore backs the guard with a JetStream KV bucket. The bucket TTL
// expires entries, so the create-only semantics hold per TTL window across
// every ingress instance.
type NatsKVStore struct {
	kv jetstream.KeyValue
}

// NewNatsKVStore creates (or binds to) the idempotency bucket.
func NewNatsKVStore(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (*NatsKVStore, error) {
	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure idempotency bucket %s: %w", bucket, err)
	}
	return &NatsKVStore{kv: kv}, nil
}

// Create inserts the key; a conflict on create means a duplicate.
func (s *NatsKVStore) Create(ctx context.Context, key string) (bool, error) {
	_, err := s.kv.Create(ctx, key, []byte("1"))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return false, nil
		}
		return false, fmt.Errorf("kv create: %w", err)
	}
	return true, nil
}
