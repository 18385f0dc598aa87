package cards

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/greentic/messaging/pkg/message"
)

func TestTextRoundTripAllRenderers(t *testing.T) {
	// Property: a plain text message survives every renderer (possibly
	// HTML/Markdown escaped).
	const text = "deploy finished"

	renderers := []Renderer{
		NewTeamsRenderer(),
		NewWebChatRenderer(),
		NewSlackRenderer(),
		NewTelegramRenderer(),
		NewWhatsAppRenderer(),
		NewWebexRenderer(),
	}

	for _, r := range renderers {
		t.Run(string(r.Platform()), func(t *testing.T) {
			out := r.Render(FromText(text))
			if !strings.Contains(string(out.Payload), text) {
				t.Errorf("payload does not contain %q: %s", text, out.Payload)
			}
		})
	}
}

func TestWebexFactSetDowngraded(t *testing.T) {
	r := NewWebexRenderer()
	ir := &IR{
		Elements: []Element{FactSetElement(Fact{Label: "region", Value: "eu-1"}, Fact{Label: "owner", Value: "core"})},
	}

	out := r.Render(ir)
	if !hasWarning(out.Warnings, WarnWebexFactSetDowngraded) {
		t.Errorf("warnings = %v, want %q", out.Warnings, WarnWebexFactSetDowngraded)
	}

	payload := decodePayload(t, out)
	body, _ := payload["body"].([]any)
	found := false
	for _, item := range body {
		block, _ := item.(map[string]any)
		if block["type"] == "TextBlock" {
			if text, _ := block["text"].(string); strings.Contains(text, "*region*: eu-1") {
				found = true
			}
		}
		if block["type"] == "FactSet" {
			t.Error("fact set should have been downgraded to a text block")
		}
	}
	if !found {
		t.Error("downgraded fact text not found in body")
	}
}

func TestWebexInputsDropped(t *testing.T) {
	r := NewWebexRenderer()
	ir := &IR{Elements: []Element{InputElement("q", "Question", InputText)}}

	out := r.Render(ir)
	if !hasWarning(out.Warnings, WarnWebexInputsNotSupported) {
		t.Errorf("warnings = %v, want %q", out.Warnings, WarnWebexInputsNotSupported)
	}
	if strings.Contains(string(out.Payload), "Input.Text") {
		t.Error("inputs must be dropped from webex payloads")
	}
}

func TestWhatsAppButtonsTruncated(t *testing.T) {
	r := NewWhatsAppRenderer()
	ir := &IR{Head: Head{Text: "choose"}}
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		ir.Actions = append(ir.Actions, OpenURL(title, "https://example.com/"+title))
	}

	out := r.Render(ir)
	if !hasWarning(out.Warnings, WarnWhatsAppActionsTruncated) {
		t.Errorf("warnings = %v, want %q", out.Warnings, WarnWhatsAppActionsTruncated)
	}

	payload := decodePayload(t, out)
	components, _ := payload["components"].([]any)
	if len(components) != 1 {
		t.Fatalf("components = %d, want 1", len(components))
	}
	comp, _ := components[0].(map[string]any)
	buttons, _ := comp["buttons"].([]any)
	if len(buttons) != 3 {
		t.Errorf("buttons = %d, want 3", len(buttons))
	}
}

func TestWhatsAppInputsDowngradedToPrompts(t *testing.T) {
	r := NewWhatsAppRenderer()
	ir := &IR{Elements: []Element{InputElement("name", "Your name", InputText)}}

	out := r.Render(ir)
	if !hasWarning(out.Warnings, WarnWhatsAppInputsNotSupported) {
		t.Errorf("warnings = %v, want %q", out.Warnings, WarnWhatsAppInputsNotSupported)
	}
	payload := decodePayload(t, out)
	body, _ := payload["body"].(string)
	if !strings.Contains(body, "Your name: reply with your answer.") {
		t.Errorf("body = %q, want input prompt line", body)
	}
}

func TestAdaptivePassThrough(t *testing.T) {
	r := NewTeamsRenderer()
	raw := json.RawMessage(`{"type":"AdaptiveCard","version":"1.5","body":[{"type":"TextBlock","text":"verbatim"}]}`)
	ir := &IR{Meta: Meta{AdaptivePayload: raw}}

	out := r.Render(ir)
	if string(out.Payload) != string(raw) {
		t.Errorf("pass-through payload altered: %s", out.Payload)
	}
}

func TestAdaptiveRenderBody(t *testing.T) {
	r := NewWebChatRenderer()
	ir := &IR{
		Head: Head{Title: "Release", Text: "v2 shipped", Footer: "ops"},
		Elements: []Element{
			FactSetElement(Fact{Label: "env", Value: "prod"}),
			InputElement("notes", "Notes", InputText),
		},
		Actions: []Action{OpenURL("Changelog", "https://example.com/log")},
	}

	out := r.Render(ir)
	payload := decodePayload(t, out)
	if payload["type"] != "AdaptiveCard" || payload["version"] != "1.4" {
		t.Errorf("header = %v/%v", payload["type"], payload["version"])
	}

	body, _ := payload["body"].([]any)
	types := make([]string, 0, len(body))
	for _, item := range body {
		block, _ := item.(map[string]any)
		types = append(types, block["type"].(string))
	}
	want := []string{"TextBlock", "TextBlock", "FactSet", "Input.Text", "TextBlock"}
	if len(types) != len(want) {
		t.Fatalf("body types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("body[%d] = %q, want %q", i, types[i], want[i])
		}
	}
	if out.Warnings != nil {
		t.Errorf("premium platform should not warn: %v", out.Warnings)
	}
}

func TestSlackModalForInputs(t *testing.T) {
	r := NewSlackRenderer()
	ir := &IR{
		Head:     Head{Title: "Feedback"},
		Elements: []Element{InputElement("mood", "Mood", InputChoice, Choice{Title: "Good", Value: "g"})},
	}

	out := r.Render(ir)
	if !out.UsedModal {
		t.Error("inputs should force a modal")
	}
	payload := decodePayload(t, out)
	if payload["type"] != "modal" {
		t.Errorf("payload type = %v, want modal", payload["type"])
	}
}

func TestSlackBlockedURL(t *testing.T) {
	r := NewSlackRenderer()
	ir := &IR{
		Head:    Head{Text: "careful"},
		Actions: []Action{OpenURL("Bad", "javascript:alert(1)"), OpenURL("Good", "https://example.com")},
	}

	out := r.Render(ir)
	if out.URLBlockedCount != 1 {
		t.Errorf("URLBlockedCount = %d, want 1", out.URLBlockedCount)
	}
	if strings.Contains(string(out.Payload), "javascript:") {
		t.Error("blocked URL leaked into payload")
	}
	if !strings.Contains(string(out.Payload), "https://example.com") {
		t.Error("allowed URL missing from payload")
	}
}

func TestSlackAppLinkResigning(t *testing.T) {
	r := NewSlackRenderer()
	ir := &IR{
		Head:    Head{Text: "go"},
		Actions: []Action{OpenURL("Open", "https://example.com/x")},
		Meta:    Meta{AppLink: "https://link.greentic.dev/r"},
	}

	out := r.Render(ir)
	if out.SanitizedCount != 1 {
		t.Errorf("SanitizedCount = %d, want 1", out.SanitizedCount)
	}
	if !strings.Contains(string(out.Payload), "https://link.greentic.dev/r?target=") {
		t.Errorf("payload lacks re-signed URL: %s", out.Payload)
	}
}

func TestRendererPlatformsAndTiers(t *testing.T) {
	tests := []struct {
		r        Renderer
		platform message.Platform
		tier     Tier
	}{
		{NewTeamsRenderer(), message.PlatformTeams, TierPremium},
		{NewWebChatRenderer(), message.PlatformWebChat, TierPremium},
		{NewSlackRenderer(), message.PlatformSlack, TierAdvanced},
		{NewWebexRenderer(), message.PlatformWebex, TierAdvanced},
		{NewTelegramRenderer(), message.PlatformTelegram, TierBasic},
		{NewWhatsAppRenderer(), message.PlatformWhatsApp, TierBasic},
	}
	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			if tt.r.Platform() != tt.platform {
				t.Errorf("Platform() = %q", tt.r.Platform())
			}
			if tt.r.TargetTier() != tt.tier {
				t.Errorf("TargetTier() = %q, want %q", tt.r.TargetTier(), tt.tier)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		requested, target, want Tier
	}{
		{TierPremium, TierAdvanced, TierAdvanced},
		{TierBasic, TierPremium, TierBasic},
		{TierAdvanced, TierAdvanced, TierAdvanced},
		{TierPremium, TierBasic, TierBasic},
	}
	for _, tt := range tests {
		if got := Clamp(tt.requested, tt.target); got != tt.want {
			t.Errorf("Clamp(%q, %q) = %q, want %q", tt.requested, tt.target, got, tt.want)
		}
	}
}
