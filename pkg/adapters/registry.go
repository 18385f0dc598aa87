package adapters

import (
	"errors"
	"fmt"

	"github.com/greentic/messaging/pkg/message"
)

// ErrNotFound is returned when no adapter matches a lookup.
var ErrNotFound = errors.New("adapter not found")

// ErrUnsupportedOperation is returned when an adapter's kind does not allow
// the requested direction.
var ErrUnsupportedOperation = errors.New("operation not supported by adapter")

// Registry indexes adapter descriptors by name. It is immutable after load
// and safely shared by reference.
type Registry struct {
	byName map[string]*Descriptor
	order  []*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

// Register adds a descriptor. Duplicate names are rejected.
func (r *Registry) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("adapter %q already registered", d.Name)
	}
	stored := d
	r.byName[d.Name] = &stored
	r.order = append(r.order, &stored)
	return nil
}

// Get returns the descriptor with the given name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns every descriptor in insertion order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Egress resolves an adapter by name and checks it can deliver outbound
// traffic.
func (r *Registry) Egress(name string) (*Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("adapter %q: %w", name, ErrNotFound)
	}
	if !d.AllowsEgress() {
		return nil, fmt.Errorf("adapter %q is %s-only: %w", name, d.Kind, ErrUnsupportedOperation)
	}
	return d, nil
}

// DefaultForPlatform returns the first registered egress-capable adapter
// whose name infers to the given platform. Insertion order makes the choice
// deterministic.
func (r *Registry) DefaultForPlatform(platform message.Platform) (*Descriptor, error) {
	for _, d := range r.order {
		if !d.AllowsEgress() {
			continue
		}
		if p, ok := d.Platform(); ok && p == platform {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no egress adapter for platform %q: %w", platform, ErrNotFound)
}
