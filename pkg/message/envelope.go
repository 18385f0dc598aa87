// Package message defines the canonical data model carried on the bus:
// the inbound MessageEnvelope, the outbound OutMessage, and the
// platform-neutral MessageCard.
package message

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is a package-level, concurrency-safe validator instance.
var validate = validator.New(validator.WithRequiredStructEnabled())

// MessageEnvelope is the canonical representation of a single inbound event.
// MsgID must be stable and unique per platform event; it is the idempotency
// key together with (tenant, platform, chat_id).
type MessageEnvelope struct {
	Tenant    string            `json:"tenant" validate:"required"`
	Platform  Platform          `json:"platform" validate:"required"`
	ChatID    string            `json:"chat_id" validate:"required"`
	UserID    string            `json:"user_id" validate:"required"`
	ThreadID  string            `json:"thread_id,omitempty"`
	MsgID     string            `json:"msg_id" validate:"required"`
	Text      string            `json:"text,omitempty"`
	Timestamp string            `json:"timestamp" validate:"required"`
	Context   map[string]string `json:"context,omitempty"`
}

// Validate checks the envelope invariants: required fields, a supported
// platform, and an RFC3339 timestamp.
func (e *MessageEnvelope) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	if _, err := ParsePlatform(string(e.Platform)); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	if _, err := time.Parse(time.RFC3339, e.Timestamp); err != nil {
		return fmt.Errorf("envelope: timestamp %q is not RFC3339: %w", e.Timestamp, err)
	}
	return nil
}

// ToTenantCtx builds the tenant context propagated downstream of this
// envelope.
func (e *MessageEnvelope) ToTenantCtx(env string) TenantCtx {
	return NewTenantCtx(env, e.Tenant).WithUser(e.UserID)
}

// Now returns the current time formatted the way envelope timestamps are.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
