package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// casRetries bounds optimistic concurrency retries per reservation.
const casRetries = 3

// kvState is the persisted global bucket state for one rate-limit key.
type kvState struct {
	Tokens float64 `json:"tokens"`
	LastMS int64   `json:"last_ms"`
}

// NatsKVStore is a GlobalStore on a JetStream KV bucket using
// compare-and-swap on entry revisions.
type NatsKVStore struct {
	kv    jetstream.KeyValue
	limit Limit
	now   func() time.Time
}

// NewNatsKVStore creates (or binds to) the rate-limit bucket.
func NewNatsKVStore(ctx context.Context, js jetstream.JetStream, bucket string, limit Limit) (*NatsKVStore, error) {
	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, fmt.Errorf("ensure rate-limit bucket %s: %w", bucket, err)
	}
	return &NatsKVStore{kv: kv, limit: limit, now: time.Now}, nil
}

// Reserve claims up to n tokens for key via bounded CAS retries. A partial
// grant is possible when fewer tokens are available.
func (s *NatsKVStore) Reserve(ctx context.Context, key string, n int) (int, error) {
	var lastErr error
	for range casRetries {
		granted, err := s.tryReserve(ctx, key, n)
		if err == nil {
			return granted, nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) && !isWrongRevision(err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("rate-limit reservation contention for %s: %w", key, lastErr)
}

func (s *NatsKVStore) tryReserve(ctx context.Context, key string, n int) (int, error) {
	now := s.now()

	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		// First sighting: seed a full bucket and take from it.
		state := kvState{Tokens: float64(s.limit.Cap), LastMS: now.UnixMilli()}
		granted := grantFrom(&state, n)
		data, merr := json.Marshal(state)
		if merr != nil {
			return 0, merr
		}
		if _, cerr := s.kv.Create(ctx, key, data); cerr != nil {
			return 0, cerr
		}
		return granted, nil
	}
	if err != nil {
		return 0, fmt.Errorf("kv get: %w", err)
	}

	var state kvState
	if uerr := json.Unmarshal(entry.Value(), &state); uerr != nil {
		return 0, fmt.Errorf("decoding rate-limit state for %s: %w", key, uerr)
	}

	elapsed := float64(now.UnixMilli()-state.LastMS) / 1000
	if elapsed > 0 {
		state.Tokens += elapsed * s.limit.RefillPerSec
		if state.Tokens > float64(s.limit.Cap) {
			state.Tokens = float64(s.limit.Cap)
		}
		state.LastMS = now.UnixMilli()
	}

	granted := grantFrom(&state, n)
	data, merr := json.Marshal(state)
	if merr != nil {
		return 0, merr
	}
	if _, uerr := s.kv.Update(ctx, key, data, entry.Revision()); uerr != nil {
		return 0, uerr
	}
	return granted, nil
}

// grantFrom takes up to n whole tokens out of state.
func grantFrom(state *kvState, n int) int {
	granted := n
	if float64(granted) > state.Tokens {
		granted = int(state.Tokens)
	}
	if granted < 0 {
		granted = 0
	}
	state.Tokens -= float64(granted)
	return granted
}

func isWrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
