package adapters

import (
	"errors"
	"testing"

	"github.com/greentic/messaging/pkg/message"
)

func descriptor(name string, kind Kind) Descriptor {
	return Descriptor{
		PackID:      "pack",
		PackVersion: "1.0.0",
		Name:        name,
		Kind:        kind,
		Component:   "comp@1.0.0",
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(descriptor("slack-main", KindIngressEgress)); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	if err := r.Register(descriptor("slack-main", KindEgress)); err == nil {
		t.Error("duplicate name should be rejected")
	}
}

func TestRegisterValidates(t *testing.T) {
	r := NewRegistry()
	bad := descriptor("x", Kind("sideways"))
	if err := r.Register(bad); err == nil {
		t.Error("unknown kind should be rejected")
	}

	missing := descriptor("", KindEgress)
	if err := r.Register(missing); err == nil {
		t.Error("missing name should be rejected")
	}
}

func TestEgressByName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(descriptor("slack-main", KindIngressEgress)); err != nil {
		t.Fatal(err)
	}

	d, err := r.Egress("slack-main")
	if err != nil {
		t.Fatalf("Egress() error: %v", err)
	}
	if d.Name != "slack-main" {
		t.Errorf("Egress() name = %q", d.Name)
	}
}

func TestEgressGatedByKind(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(descriptor("telegram-in", KindIngress)); err != nil {
		t.Fatal(err)
	}

	_, err := r.Egress("telegram-in")
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("Egress() error = %v, want ErrUnsupportedOperation", err)
	}

	_, err = r.Egress("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Egress() error = %v, want ErrNotFound", err)
	}
}

func TestDefaultForPlatform(t *testing.T) {
	r := NewRegistry()
	for _, d := range []Descriptor{
		descriptor("telegram-in", KindIngress),
		descriptor("slack-first", KindIngressEgress),
		descriptor("slack-second", KindEgress),
	} {
		if err := r.Register(d); err != nil {
			t.Fatal(err)
		}
	}

	d, err := r.DefaultForPlatform(message.PlatformSlack)
	if err != nil {
		t.Fatalf("DefaultForPlatform() error: %v", err)
	}
	if d.Name != "slack-first" {
		t.Errorf("DefaultForPlatform() = %q, want first registered egress adapter", d.Name)
	}

	if _, err := r.DefaultForPlatform(message.PlatformTelegram); !errors.Is(err, ErrNotFound) {
		t.Errorf("ingress-only adapter should not satisfy egress lookup, got %v", err)
	}

	if _, err := r.DefaultForPlatform(message.PlatformWebex); !errors.Is(err, ErrNotFound) {
		t.Errorf("platform with no registered adapter should return ErrNotFound, got %v", err)
	}
}
