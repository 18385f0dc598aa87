package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/greentic/messaging/pkg/subject"
)

const (
	// IngressStream holds inbound envelopes until the flow runner consumes them.
	IngressStream = "GSM-INGRESS"
	// EgressStreamPrefix prefixes the per-tenant/platform egress work streams.
	EgressStreamPrefix = "gsm-egress"
	// DLQStream retains dead-lettered deliveries for inspection and replay.
	DLQStream = "GSM-DLQ"

	// MaxAckPending bounds unacknowledged deliveries per egress consumer.
	MaxAckPending = 256
)

// JetStreamBus publishes to JetStream with bounded retry.
type JetStreamBus struct {
	js jetstream.JetStream
}

// NewJetStreamBus wraps a JetStream context as a Publisher.
func NewJetStreamBus(js jetstream.JetStream) *JetStreamBus {
	return &JetStreamBus{js: js}
}

// Publish JSON-encodes payload and publishes it, retrying transient failures
// with exponential backoff.
func (b *JetStreamBus) Publish(ctx context.Context, subj string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload for %s: %w", subj, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second

	_, err = backoff.Retry(ctx, func() (*jetstream.PubAck, error) {
		return b.js.Publish(ctx, subj, data)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(4))
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subj, err)
	}
	return nil
}

// EnsureIngressStream creates (or updates) the work-queue stream capturing
// every ingress subject.
func EnsureIngressStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      IngressStream,
		Subjects:  []string{subject.IngressPrefix + ".>"},
		Retention: jetstream.WorkQueuePolicy,
		MaxMsgs:   -1,
		MaxBytes:  -1,
	})
}

// EgressStreamName returns the per-tenant/platform egress stream name.
func EgressStreamName(tenant, platform string) string {
	return fmt.Sprintf("%s-%s-%s", EgressStreamPrefix, subject.Normalize(tenant), subject.Normalize(platform))
}

// EnsureEgressConsumer creates the work-queue stream and durable consumer for
// a (tenant, platform) egress worker. Workers sharing the durable consumer
// form the queue group: each message is delivered to exactly one of them.
func EnsureEgressConsumer(ctx context.Context, js jetstream.JetStream, tenant, platform string) (jetstream.Consumer, error) {
	subj := subject.Egress(tenant, platform)
	name := EgressStreamName(tenant, platform)

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{subj},
		Retention: jetstream.WorkQueuePolicy,
		MaxMsgs:   -1,
		MaxBytes:  -1,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", name, err)
	}

	durable := fmt.Sprintf("egress-%s-%s", subject.Normalize(tenant), subject.Normalize(platform))
	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subj,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: MaxAckPending,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure consumer %s: %w", durable, err)
	}
	return cons, nil
}

// EnsureDLQStream creates (or updates) the dead-letter stream. Retention is
// unlimited; operators truncate it explicitly.
func EnsureDLQStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      DLQStream,
		Subjects:  []string{subject.DLQPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxMsgs:   -1,
		MaxBytes:  -1,
	})
}
