package cards

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/greentic/messaging/pkg/message"
	"github.com/greentic/messaging/pkg/oauth"
)

type fakeBroker struct {
	url  string
	err  error
	reqs []oauth.StartRequest
}

func (b *fakeBroker) Start(_ context.Context, req oauth.StartRequest) (*oauth.StartResponse, error) {
	b.reqs = append(b.reqs, req)
	if b.err != nil {
		return nil, b.err
	}
	return &oauth.StartResponse{URL: b.url, ConnectionName: "graph"}, nil
}

func newTestEngine(broker oauth.Broker) *Engine {
	return NewDefaultEngine(slog.Default(), broker, nil)
}

func outCard(platform message.Platform, card *message.MessageCard) *message.OutMessage {
	return &message.OutMessage{
		Ctx:      message.NewTenantCtx("dev", "acme"),
		Tenant:   "acme",
		Platform: platform,
		ChatID:   "c1",
		Kind:     message.OutCard,
		Card:     card,
	}
}

func TestEngineRendersText(t *testing.T) {
	e := newTestEngine(nil)
	out := &message.OutMessage{
		Ctx:      message.NewTenantCtx("dev", "acme"),
		Tenant:   "acme",
		Platform: message.PlatformSlack,
		ChatID:   "c1",
		Kind:     message.OutText,
		Text:     "hello there",
	}

	res, err := e.Render(context.Background(), out, "")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(string(res.Payload), "hello there") {
		t.Errorf("payload = %s", res.Payload)
	}
}

func TestEngineAdaptivePassThroughWins(t *testing.T) {
	e := newTestEngine(nil)
	raw := json.RawMessage(`{"type":"AdaptiveCard","body":[{"type":"TextBlock","text":"native"}]}`)
	out := outCard(message.PlatformTeams, &message.MessageCard{Title: "ignored"})
	out.Adaptive = raw

	res, err := e.Render(context.Background(), out, "")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if string(res.Payload) != string(raw) {
		t.Errorf("pass-through payload altered: %s", res.Payload)
	}
}

func TestEngineTierDowngradeWarning(t *testing.T) {
	e := newTestEngine(nil)
	out := outCard(message.PlatformTelegram, &message.MessageCard{Title: "T", Text: "body"})

	res, err := e.Render(context.Background(), out, TierPremium)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if len(res.Warnings) == 0 || res.Warnings[0] != WarnTierDowngraded {
		t.Errorf("warnings = %v, want %q first", res.Warnings, WarnTierDowngraded)
	}
}

func TestEngineOAuthHydratesStartURL(t *testing.T) {
	broker := &fakeBroker{url: "https://auth.example.com/start"}
	e := newTestEngine(broker)

	card := &message.MessageCard{
		Kind:  message.CardOAuth,
		Title: "Connect Microsoft",
		OAuth: &message.OAuthCard{Provider: "microsoft", Scopes: []string{"User.Read"}},
	}
	out := outCard(message.PlatformTeams, card)

	res, err := e.Render(context.Background(), out, "")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if len(broker.reqs) != 1 {
		t.Fatalf("broker calls = %d, want 1", len(broker.reqs))
	}
	if broker.reqs[0].Tenant != "acme" || broker.reqs[0].Provider != "microsoft" {
		t.Errorf("broker request = %+v", broker.reqs[0])
	}
	if !strings.Contains(string(res.Payload), "https://auth.example.com/start") {
		t.Errorf("payload lacks start url: %s", res.Payload)
	}
	if !strings.Contains(string(res.Payload), "card.oauth") {
		t.Errorf("teams should render the native oauth card: %s", res.Payload)
	}
}

func TestEngineOAuthFallbackToOpenURL(t *testing.T) {
	// Telegram has no native auth render; the engine must fall back to a
	// standard card with one open-url action.
	broker := &fakeBroker{url: "https://auth.example.com/start"}
	e := newTestEngine(broker)

	card := &message.MessageCard{
		Kind:  message.CardOAuth,
		OAuth: &message.OAuthCard{Provider: "github", Scopes: []string{"repo"}},
	}
	out := outCard(message.PlatformTelegram, card)

	res, err := e.Render(context.Background(), out, "")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(string(res.Payload), "https://auth.example.com/start") {
		t.Errorf("fallback payload lacks start url: %s", res.Payload)
	}
	if !strings.Contains(string(res.Payload), "Sign in with github") {
		t.Errorf("fallback payload lacks default title: %s", res.Payload)
	}
}

func TestEngineOAuthBrokerFailure(t *testing.T) {
	broker := &fakeBroker{err: errors.New("broker down")}
	e := newTestEngine(broker)

	card := &message.MessageCard{
		Kind:  message.CardOAuth,
		OAuth: &message.OAuthCard{Provider: "github", Scopes: []string{"repo"}},
	}
	out := outCard(message.PlatformSlack, card)

	if _, err := e.Render(context.Background(), out, ""); err == nil {
		t.Error("broker failure should surface as an error")
	}
}

func TestEngineOAuthExistingStartURLSkipsBroker(t *testing.T) {
	broker := &fakeBroker{url: "https://should-not-be-used"}
	e := newTestEngine(broker)

	card := &message.MessageCard{
		Kind: message.CardOAuth,
		OAuth: &message.OAuthCard{
			Provider: "github",
			Scopes:   []string{"repo"},
			StartURL: "https://auth.example.com/preminted",
		},
	}
	out := outCard(message.PlatformWebex, card)

	res, err := e.Render(context.Background(), out, "")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if len(broker.reqs) != 0 {
		t.Errorf("broker should not be called when start url is present")
	}
	if !strings.Contains(string(res.Payload), "preminted") {
		t.Errorf("payload lacks preminted url: %s", res.Payload)
	}
}

func TestEngineUnknownPlatform(t *testing.T) {
	e := NewEngine(slog.Default(), nil, nil, NewSlackRenderer())
	out := &message.OutMessage{
		Ctx: message.NewTenantCtx("dev", "acme"), Tenant: "acme",
		Platform: message.PlatformWebex, ChatID: "c1", Kind: message.OutText, Text: "x",
	}
	if _, err := e.Render(context.Background(), out, ""); err == nil {
		t.Error("missing renderer should error")
	}
}

func TestEngineAppLinkFromMeta(t *testing.T) {
	e := newTestEngine(nil)
	out := outCard(message.PlatformSlack, &message.MessageCard{
		Text:    "go",
		Actions: []message.CardAction{{Type: message.ActionOpenURL, Title: "Open", URL: "https://example.com/x"}},
	})
	out.Meta = map[string]string{"app_link": "https://link.greentic.dev/r"}

	res, err := e.Render(context.Background(), out, "")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(string(res.Payload), "https://link.greentic.dev/r?target=") {
		t.Errorf("app link not applied: %s", res.Payload)
	}
}
