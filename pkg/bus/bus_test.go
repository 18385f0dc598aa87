package bus

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryCaptures(t *testing.T) {
	b := NewInMemory()

	if err := b.Publish(context.Background(), "greentic.messaging.ingress.dev.acme.default.webchat", map[string]string{"text": "hi"}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	got := b.TakePublished()
	if len(got) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(got))
	}
	if got[0].Subject != "greentic.messaging.ingress.dev.acme.default.webchat" {
		t.Errorf("subject = %q", got[0].Subject)
	}

	if rest := b.TakePublished(); len(rest) != 0 {
		t.Errorf("TakePublished should clear the buffer, got %d", len(rest))
	}
}

func TestInMemoryFailNext(t *testing.T) {
	b := NewInMemory()
	b.FailNext(errors.New("down"))

	if err := b.Publish(context.Background(), "s", "x"); err == nil {
		t.Fatal("expected error")
	}
	if err := b.Publish(context.Background(), "s", "x"); err != nil {
		t.Fatalf("second publish should succeed: %v", err)
	}
}

func TestEgressStreamName(t *testing.T) {
	got := EgressStreamName("Acme Corp", "slack")
	want := "gsm-egress-acme-corp-slack"
	if got != want {
		t.Errorf("EgressStreamName() = %q, want %q", got, want)
	}
}
