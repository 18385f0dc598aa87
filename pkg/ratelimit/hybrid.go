package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// GlobalStore reserves tokens from a shared cross-process counter. Reserve
// returns how many of the n requested tokens were granted (possibly zero).
type GlobalStore interface {
	Reserve(ctx context.Context, key string, n int) (int, error)
}

// Hybrid layers a global token reservation over the local bucket. Local
// decrements cost no I/O; once the local bucket drops below the low
// watermark, a batch of tokens is claimed from the global store.
type Hybrid struct {
	local  *Limiter
	global GlobalStore
	logger *slog.Logger

	lowWatermark float64
	reserveBatch int
}

// NewHybrid creates a hybrid limiter. global may be nil, in which case only
// the local tier applies.
func NewHybrid(limit Limit, global GlobalStore, logger *slog.Logger) *Hybrid {
	low := float64(limit.Cap) / 4
	if low < 1 {
		low = 1
	}
	batch := limit.Cap / 2
	if batch < 1 {
		batch = 1
	}
	return &Hybrid{
		local:        NewLimiter(limit),
		global:       global,
		logger:       logger,
		lowWatermark: low,
		reserveBatch: batch,
	}
}

// Acquire attempts to take cost tokens for key. It never blocks: callers
// receiving a RetryAfter decision may sleep and retry or ack+requeue.
func (h *Hybrid) Acquire(ctx context.Context, key string, cost int) Decision {
	d := h.local.Take(key, cost)
	if d.Allowed {
		h.replenishIfLow(ctx, key)
		return d
	}

	// Local bucket dry; try claiming straight from the global tier.
	if h.global != nil {
		granted, err := h.global.Reserve(ctx, key, cost)
		if err != nil {
			h.logger.Warn("global rate-limit reservation failed", "key", key, "error", err)
		} else if granted >= cost {
			return Decision{Allowed: true}
		} else if granted > 0 {
			h.local.Add(key, float64(granted))
		}
	}
	return d
}

// replenishIfLow claims a batch of global tokens once the local bucket sinks
// below the low watermark, keeping the fast path local.
func (h *Hybrid) replenishIfLow(ctx context.Context, key string) {
	if h.global == nil {
		return
	}
	if h.local.Tokens(key) >= h.lowWatermark {
		return
	}
	granted, err := h.global.Reserve(ctx, key, h.reserveBatch)
	if err != nil {
		h.logger.Warn("global rate-limit replenish failed", "key", key, "error", err)
		return
	}
	if granted > 0 {
		h.local.Add(key, float64(granted))
	}
}

// SleepCap bounds how long egress workers wait in-process on a RetryAfter
// before handing the delay back to the bus.
const SleepCap = 2 * time.Second
