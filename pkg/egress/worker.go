package egress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/greentic/messaging/internal/telemetry"
	"github.com/greentic/messaging/pkg/adapters"
	"github.com/greentic/messaging/pkg/cards"
	"github.com/greentic/messaging/pkg/dlq"
	"github.com/greentic/messaging/pkg/message"
	"github.com/greentic/messaging/pkg/ratelimit"
)

// defaultRetryDelay backs the redelivery delay when a 429 carries no usable
// Retry-After.
const defaultRetryDelay = 5 * time.Second

// Worker consumes one (tenant, platform) egress work queue.
type Worker struct {
	Tenant   string
	Platform message.Platform

	consumer   jetstream.Consumer
	limiter    *ratelimit.Hybrid
	registry   *adapters.Registry
	engine     *cards.Engine
	deliverer  Deliverer
	dlqStore   dlq.Store
	logger     *slog.Logger
	maxRetries int
}

// NewWorker wires an egress worker.
func NewWorker(
	tenant string,
	platform message.Platform,
	consumer jetstream.Consumer,
	limiter *ratelimit.Hybrid,
	registry *adapters.Registry,
	engine *cards.Engine,
	deliverer Deliverer,
	dlqStore dlq.Store,
	logger *slog.Logger,
	maxRetries int,
) *Worker {
	return &Worker{
		Tenant:     tenant,
		Platform:   platform,
		consumer:   consumer,
		limiter:    limiter,
		registry:   registry,
		engine:     engine,
		deliverer:  deliverer,
		dlqStore:   dlqStore,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Run consumes until the context is cancelled, then drains in-flight
// messages. Un-acked messages are redelivered by the bus.
func (w *Worker) Run(ctx context.Context) error {
	cc, err := w.consumer.Consume(func(msg jetstream.Msg) {
		w.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("starting egress consumer: %w", err)
	}

	w.logger.Info("egress worker started", "tenant", w.Tenant, "platform", w.Platform)
	<-ctx.Done()
	cc.Drain()
	return nil
}

// handle runs one delivery: decode → permit → adapter → translate → deliver
// → classify, ending in ack, delayed nack, or DLQ.
func (w *Worker) handle(ctx context.Context, msg jetstream.Msg) {
	var out message.OutMessage
	if err := json.Unmarshal(msg.Data(), &out); err != nil {
		w.deadLetter(ctx, msg, nil, CodeDecode, err)
		return
	}
	if err := out.Validate(); err != nil {
		w.deadLetter(ctx, msg, &out, CodeDecode, err)
		return
	}

	key := w.Tenant + "." + string(w.Platform)
	decision := w.limiter.Acquire(ctx, key, 1)
	if !decision.Allowed && decision.RetryAfter <= ratelimit.SleepCap {
		// Short waits are cheaper in-process than a bus round trip.
		time.Sleep(decision.RetryAfter)
		decision = w.limiter.Acquire(ctx, key, 1)
	}
	if !decision.Allowed {
		telemetry.RateLimitRejectionsTotal.WithLabelValues("egress").Inc()
		w.nakWithDelay(msg, decision.RetryAfter)
		return
	}

	desc, err := w.adapter(&out)
	if err != nil {
		w.deadLetter(ctx, msg, &out, CodeAdapter, err)
		return
	}

	rendered, err := w.engine.Render(ctx, &out, cards.Tier(out.Meta["tier"]))
	if err != nil {
		w.deadLetter(ctx, msg, &out, CodeDecode, err)
		return
	}

	start := time.Now()
	err = w.deliver(ctx, &out, rendered.Payload, desc)
	telemetry.EgressDeliveryDuration.WithLabelValues(string(w.Platform)).Observe(time.Since(start).Seconds())

	if err == nil {
		telemetry.EgressDeliveriesTotal.WithLabelValues(string(w.Platform), "ok").Inc()
		if aerr := msg.Ack(); aerr != nil {
			w.logger.Warn("ack failed", "error", aerr)
		}
		return
	}

	var derr *DeliveryError
	if !errors.As(err, &derr) {
		derr = &DeliveryError{Code: CodeTransport, Body: err.Error()}
	}

	switch derr.Code {
	case CodeRateLimited:
		telemetry.EgressDeliveriesTotal.WithLabelValues(string(w.Platform), "rate_limited").Inc()
		delay := derr.RetryAfter
		if delay <= 0 {
			delay = defaultRetryDelay
		}
		w.nakWithDelay(msg, delay)
	default:
		telemetry.EgressDeliveriesTotal.WithLabelValues(string(w.Platform), derr.Code).Inc()
		w.deadLetter(ctx, msg, &out, derr.Code, derr)
	}
}

// adapter resolves the egress descriptor: an explicit override by name, or
// the platform default.
func (w *Worker) adapter(out *message.OutMessage) (*adapters.Descriptor, error) {
	if name := out.Meta["adapter"]; name != "" {
		return w.registry.Egress(name)
	}
	return w.registry.DefaultForPlatform(out.Platform)
}

// deliver retries transient failures with exponential backoff and jitter.
// Rate-limited and permanent failures stop immediately.
func (w *Worker) deliver(ctx context.Context, out *message.OutMessage, payload json.RawMessage, desc *adapters.Descriptor) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	tries := w.maxRetries
	if tries < 1 {
		tries = 1
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := w.deliverer.Deliver(ctx, out, payload, desc)
		if err == nil {
			return struct{}{}, nil
		}
		var derr *DeliveryError
		if errors.As(err, &derr) && !derr.Retryable() {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(tries)))
	return err
}

// deadLetter persists the failed delivery and removes the message from the
// work queue.
func (w *Worker) deadLetter(ctx context.Context, msg jetstream.Msg, out *message.OutMessage, code string, cause error) {
	retries := 0
	if meta, err := msg.Metadata(); err == nil {
		retries = int(meta.NumDelivered) - 1
	}

	rec := dlq.Record{
		Tenant:    w.Tenant,
		Stage:     string(w.Platform),
		Platform:  string(w.Platform),
		Direction: "out",
		Envelope:  json.RawMessage(msg.Data()),
		Error:     dlq.ErrorInfo{Code: code, Message: cause.Error()},
		Retries:   retries,
		TS:        time.Now().UTC().Format(time.RFC3339),
	}
	if out != nil {
		rec.MsgID = out.MessageID()
	}

	if err := w.dlqStore.Append(ctx, rec); err != nil {
		// Keep the message redeliverable rather than losing it.
		w.logger.Error("dlq append failed", "error", err, "code", code)
		w.nakWithDelay(msg, defaultRetryDelay)
		return
	}

	telemetry.DLQRecordsTotal.WithLabelValues(rec.Stage, code).Inc()
	w.logger.Warn("delivery dead-lettered",
		"tenant", w.Tenant, "platform", w.Platform, "code", code, "error", cause)
	if err := msg.Term(); err != nil {
		w.logger.Warn("term failed", "error", err)
	}
}

func (w *Worker) nakWithDelay(msg jetstream.Msg, delay time.Duration) {
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	if err := msg.NakWithDelay(delay); err != nil {
		w.logger.Warn("nak failed", "error", err)
	}
}
