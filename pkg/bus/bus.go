// Package bus wraps the durable JetStream bus: publishing envelopes to
// canonical subjects and bootstrapping the work-queue streams and consumers
// used by the ingress and egress pipelines.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Publisher publishes a JSON-encodable payload to a bus subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Published is a captured (subject, payload) pair from the in-memory bus.
type Published struct {
	Subject string
	Payload json.RawMessage
}

// InMemory is a Publisher that records publishes instead of sending them.
// It stands in for JetStream in tests.
type InMemory struct {
	mu        sync.Mutex
	published []Published
	failNext  error
}

// NewInMemory creates an empty in-memory bus.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Publish records the subject and the JSON encoding of payload.
func (b *InMemory) Publish(_ context.Context, subject string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	b.published = append(b.published, Published{Subject: subject, Payload: data})
	return nil
}

// FailNext makes the next Publish call return err.
func (b *InMemory) FailNext(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = err
}

// TakePublished returns and clears the captured publishes.
func (b *InMemory) TakePublished() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.published
	b.published = nil
	return out
}
