package egress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/greentic/messaging/pkg/message"
)

type staticSecrets map[string]string

func (s staticSecrets) Get(_ context.Context, uri string) ([]byte, error) {
	v, ok := s[uri]
	if !ok {
		return nil, errors.New("secret not found")
	}
	return []byte(v), nil
}

func (s staticSecrets) Put(context.Context, string, []byte) error { return errors.New("read-only") }

func slackOut() *message.OutMessage {
	return &message.OutMessage{
		Ctx:      message.NewTenantCtx("dev", "acme"),
		Tenant:   "acme",
		Platform: message.PlatformSlack,
		ChatID:   "C123",
		ThreadID: "171.001",
		Kind:     message.OutText,
		Text:     "hi",
	}
}

func TestDeliverAddsAddressingAndAuth(t *testing.T) {
	var got struct {
		auth string
		body map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewHTTPDeliverer(
		staticSecrets{"secret+env://SLACK_TOKEN": "xoxb-1"},
		map[string]string{"slack": srv.URL},
	)

	err := d.Deliver(context.Background(), slackOut(), json.RawMessage(`{"blocks":[]}`), nil)
	if err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if got.auth != "Bearer xoxb-1" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.body["channel"] != "C123" {
		t.Errorf("channel = %v", got.body["channel"])
	}
	if got.body["thread_ts"] != "171.001" {
		t.Errorf("thread_ts = %v", got.body["thread_ts"])
	}
}

func TestDeliverClassifies429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := NewHTTPDeliverer(
		staticSecrets{"secret+env://SLACK_TOKEN": "xoxb-1"},
		map[string]string{"slack": srv.URL},
	)

	err := d.Deliver(context.Background(), slackOut(), json.RawMessage(`{}`), nil)
	var derr *DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("Deliver() = %T, want *DeliveryError", err)
	}
	if derr.Code != CodeRateLimited || derr.RetryAfter != 5*time.Second {
		t.Errorf("classified as %q retry %v, want rate_limited/5s", derr.Code, derr.RetryAfter)
	}
}

func TestDeliverMissingTokenIsAdapterError(t *testing.T) {
	d := NewHTTPDeliverer(staticSecrets{}, nil)

	err := d.Deliver(context.Background(), slackOut(), json.RawMessage(`{}`), nil)
	var derr *DeliveryError
	if !errors.As(err, &derr) || derr.Code != CodeAdapter {
		t.Errorf("Deliver() = %v, want adapter error", err)
	}
}

func TestTelegramTokenInPath(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewHTTPDeliverer(
		staticSecrets{"secret+env://TELEGRAM_TOKEN": "12345:abc"},
		map[string]string{"telegram": srv.URL},
	)

	out := slackOut()
	out.Platform = message.PlatformTelegram
	out.ChatID = "-100"

	if err := d.Deliver(context.Background(), out, json.RawMessage(`{"method":"sendMessage","text":"x"}`), nil); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if path != "/bot12345:abc/sendMessage" {
		t.Errorf("path = %q", path)
	}
}

func TestAddressPayloadWebexCard(t *testing.T) {
	out := slackOut()
	out.Platform = message.PlatformWebex
	out.ChatID = "room-1"

	body, err := addressPayload(out, json.RawMessage(`{"type":"AdaptiveCard","version":"1.4","body":[]}`))
	if err != nil {
		t.Fatalf("addressPayload() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["roomId"] != "room-1" {
		t.Errorf("roomId = %v", decoded["roomId"])
	}
	attachments, _ := decoded["attachments"].([]any)
	if len(attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(attachments))
	}
}
