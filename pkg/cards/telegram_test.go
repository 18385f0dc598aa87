package cards

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func decodePayload(t *testing.T, out RenderOutput) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(out.Payload, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	return payload
}

func hasWarning(warnings []string, want string) bool {
	for _, w := range warnings {
		if w == want {
			return true
		}
	}
	return false
}

func TestTelegramRenderEscapesHTML(t *testing.T) {
	r := NewTelegramRenderer()
	ir := FromText("a < b & c > d")

	out := r.Render(ir)
	payload := decodePayload(t, out)

	if payload["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %v", payload["parse_mode"])
	}
	text, _ := payload["text"].(string)
	if !strings.Contains(text, "a &lt; b &amp; c &gt; d") {
		t.Errorf("text = %q, want escaped entities", text)
	}
}

func TestTelegramActionsTruncated(t *testing.T) {
	r := NewTelegramRenderer()
	ir := &IR{Head: Head{Text: "pick"}}
	for i := range 15 {
		ir.Actions = append(ir.Actions, OpenURL(fmt.Sprintf("b%d", i), fmt.Sprintf("https://example.com/%d", i)))
	}

	out := r.Render(ir)
	if !hasWarning(out.Warnings, WarnTelegramActionsTruncated) {
		t.Errorf("warnings = %v, want %q", out.Warnings, WarnTelegramActionsTruncated)
	}

	payload := decodePayload(t, out)
	markup, _ := payload["reply_markup"].(map[string]any)
	if markup == nil {
		t.Fatal("reply_markup missing")
	}
	rows, _ := markup["inline_keyboard"].([]any)
	total := 0
	for _, row := range rows {
		buttons, _ := row.([]any)
		if len(buttons) > 3 {
			t.Errorf("row has %d buttons, want <= 3", len(buttons))
		}
		total += len(buttons)
	}
	if total != 10 {
		t.Errorf("keyboard has %d buttons, want exactly 10", total)
	}
}

func TestTelegramPostbackCallbackData(t *testing.T) {
	r := NewTelegramRenderer()
	ir := &IR{
		Head:    Head{Text: "act"},
		Actions: []Action{Postback("Go", json.RawMessage(`{"step":2}`))},
	}

	out := r.Render(ir)
	payload := decodePayload(t, out)
	markup, _ := payload["reply_markup"].(map[string]any)
	rows, _ := markup["inline_keyboard"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	buttons, _ := rows[0].([]any)
	btn, _ := buttons[0].(map[string]any)
	if btn["callback_data"] != `{"step":2}` {
		t.Errorf("callback_data = %v", btn["callback_data"])
	}
}

func TestTelegramInputsDowngraded(t *testing.T) {
	r := NewTelegramRenderer()
	ir := &IR{
		Elements: []Element{InputElement("color", "Favorite color", InputChoice, Choice{Title: "Red", Value: "r"}, Choice{Title: "Blue", Value: "b"})},
	}

	out := r.Render(ir)
	if !hasWarning(out.Warnings, WarnTelegramInputsNotSupported) {
		t.Errorf("warnings = %v, want %q", out.Warnings, WarnTelegramInputsNotSupported)
	}
	payload := decodePayload(t, out)
	text, _ := payload["text"].(string)
	if !strings.Contains(text, "Favorite color") || !strings.Contains(text, "Red, Blue") {
		t.Errorf("text = %q, want choice prompt", text)
	}
}

func TestTelegramDeterministic(t *testing.T) {
	r := NewTelegramRenderer()
	ir := &IR{
		Head:     Head{Title: "T", Text: "body"},
		Elements: []Element{FactSetElement(Fact{Label: "k", Value: "v"})},
		Actions:  []Action{OpenURL("Open", "https://example.com")},
	}

	a := r.Render(ir)
	b := r.Render(ir)
	if string(a.Payload) != string(b.Payload) {
		t.Error("renderer is not deterministic")
	}
}

func TestTelegramWarningsPrefixStable(t *testing.T) {
	r := NewTelegramRenderer()
	ir := &IR{Elements: []Element{InputElement("q", "Question", InputText)}}

	base := r.Render(ir)

	// Appending elements that trigger no downgrade must not disturb the
	// existing warning prefix.
	extended := *ir
	extended.Elements = append(append([]Element{}, ir.Elements...), TextElement("more", false))
	next := r.Render(&extended)

	if len(next.Warnings) < len(base.Warnings) {
		t.Fatalf("warnings shrank: %v -> %v", base.Warnings, next.Warnings)
	}
	for i, w := range base.Warnings {
		if next.Warnings[i] != w {
			t.Errorf("warning prefix changed at %d: %v vs %v", i, base.Warnings, next.Warnings)
		}
	}
}
