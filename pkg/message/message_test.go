package message

import (
	"encoding/json"
	"testing"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in      string
		want    Platform
		wantErr bool
	}{
		{"slack", PlatformSlack, false},
		{"WebChat", PlatformWebChat, false},
		{" telegram ", PlatformTelegram, false},
		{"irc", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePlatform(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePlatform(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePlatform(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInferPlatform(t *testing.T) {
	tests := []struct {
		name string
		want Platform
		ok   bool
	}{
		{"slack-main", PlatformSlack, true},
		{"egress_telegram", PlatformTelegram, true},
		{"WEBEX-prod", PlatformWebex, true},
		{"mystery-adapter", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InferPlatform(tt.name)
			if ok != tt.ok || got != tt.want {
				t.Errorf("InferPlatform(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestEnvelopeValidate(t *testing.T) {
	valid := MessageEnvelope{
		Tenant:    "acme",
		Platform:  PlatformWebChat,
		ChatID:    "chat-1",
		UserID:    "user-42",
		MsgID:     "m1",
		Text:      "hi",
		Timestamp: "2026-03-01T12:00:00Z",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid envelope rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*MessageEnvelope)
	}{
		{"missing msg_id", func(e *MessageEnvelope) { e.MsgID = "" }},
		{"missing tenant", func(e *MessageEnvelope) { e.Tenant = "" }},
		{"bad platform", func(e *MessageEnvelope) { e.Platform = "irc" }},
		{"bad timestamp", func(e *MessageEnvelope) { e.Timestamp = "yesterday" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			if err := e.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestOutMessageValidate(t *testing.T) {
	ctx := NewTenantCtx("dev", "acme")

	text := OutMessage{Ctx: ctx, Tenant: "acme", Platform: PlatformSlack, ChatID: "c1", Kind: OutText, Text: "hello"}
	if err := text.Validate(); err != nil {
		t.Fatalf("text message rejected: %v", err)
	}

	empty := OutMessage{Ctx: ctx, Tenant: "acme", Platform: PlatformSlack, ChatID: "c1", Kind: OutText}
	if err := empty.Validate(); err == nil {
		t.Error("kind=text without text should fail")
	}

	card := OutMessage{Ctx: ctx, Tenant: "acme", Platform: PlatformSlack, ChatID: "c1", Kind: OutCard}
	if err := card.Validate(); err == nil {
		t.Error("kind=card without payload should fail")
	}

	card.Adaptive = json.RawMessage(`{"type":"AdaptiveCard"}`)
	if err := card.Validate(); err != nil {
		t.Errorf("adaptive card pass-through rejected: %v", err)
	}
}

func TestMessageCardOAuthValidate(t *testing.T) {
	card := MessageCard{Kind: CardOAuth}
	if err := card.Validate(); err == nil {
		t.Error("oauth card without oauth block should fail")
	}

	card.OAuth = &OAuthCard{Provider: "microsoft"}
	if err := card.Validate(); err == nil {
		t.Error("oauth card without scopes should fail")
	}

	card.OAuth.Scopes = []string{"User.Read"}
	if err := card.Validate(); err != nil {
		t.Errorf("valid oauth card rejected: %v", err)
	}
}

func TestTenantCtxBuilderCopies(t *testing.T) {
	base := NewTenantCtx("dev", "acme")
	withTeam := base.WithTeam("core")

	if base.Team != "" {
		t.Error("builder mutated the original context")
	}
	if withTeam.Team != "core" {
		t.Errorf("WithTeam() = %q, want %q", withTeam.Team, "core")
	}

	bumped := withTeam.NextAttempt()
	if withTeam.Attempt != 0 || bumped.Attempt != 1 {
		t.Errorf("NextAttempt() = %d/%d, want 0/1", withTeam.Attempt, bumped.Attempt)
	}
}

func TestMarkdownDefault(t *testing.T) {
	card := MessageCard{}
	if !card.Markdown() {
		t.Error("markdown should default to true")
	}

	off := false
	card.AllowMarkdown = &off
	if card.Markdown() {
		t.Error("markdown should be disabled when set to false")
	}
}
