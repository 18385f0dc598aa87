// Package adapters loads messaging adapter descriptors from pack archives
// and indexes them for egress lookup.
package adapters

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/greentic/messaging/pkg/message"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Kind describes which directions an adapter supports.
type Kind string

const (
	KindIngress       Kind = "ingress"
	KindEgress        Kind = "egress"
	KindIngressEgress Kind = "ingress_egress"
)

// Descriptor is the declarative record binding a platform identifier to a
// runnable component. Read-only after registry load.
type Descriptor struct {
	PackID       string   `json:"pack_id" validate:"required"`
	PackVersion  string   `json:"pack_version" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	Kind         Kind     `json:"kind" validate:"required,oneof=ingress egress ingress_egress"`
	Component    string   `json:"component" validate:"required"`
	DefaultFlow  string   `json:"default_flow,omitempty"`
	CustomFlow   string   `json:"custom_flow,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Source       string   `json:"source,omitempty"`
}

// Validate checks the descriptor's required fields and kind.
func (d *Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("adapter descriptor %q: %w", d.Name, err)
	}
	return nil
}

// AllowsIngress reports whether the adapter accepts inbound traffic.
func (d *Descriptor) AllowsIngress() bool {
	return d.Kind == KindIngress || d.Kind == KindIngressEgress
}

// AllowsEgress reports whether the adapter can deliver outbound traffic.
func (d *Descriptor) AllowsEgress() bool {
	return d.Kind == KindEgress || d.Kind == KindIngressEgress
}

// Platform infers the platform from the adapter name.
func (d *Descriptor) Platform() (message.Platform, bool) {
	return message.InferPlatform(d.Name)
}
