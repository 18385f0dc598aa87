package cards

import (
	"strings"

	"github.com/greentic/messaging/pkg/message"
)

const (
	whatsappMaxButtons = 3

	// WarnWhatsAppActionsTruncated is emitted when actions exceed the
	// WhatsApp button limit.
	WarnWhatsAppActionsTruncated = "whatsapp.actions_truncated"
	// WarnWhatsAppInputsNotSupported is emitted when inputs are downgraded
	// to prompt text lines.
	WarnWhatsAppInputsNotSupported = "whatsapp.inputs_not_supported"
)

// whatsappRenderer emits a template-style payload with body lines and up to
// three buttons.
type whatsappRenderer struct{}

// NewWhatsAppRenderer creates the WhatsApp renderer.
func NewWhatsAppRenderer() Renderer { return &whatsappRenderer{} }

func (r *whatsappRenderer) Platform() message.Platform { return message.PlatformWhatsApp }

func (r *whatsappRenderer) TargetTier() Tier { return TierBasic }

func (r *whatsappRenderer) Render(ir *IR) RenderOutput {
	var warnings []string
	var bodyLines []string

	if ir.Head.Title != "" {
		bodyLines = append(bodyLines, strings.TrimSpace(ir.Head.Title))
	}
	if text := strings.TrimSpace(ir.Head.Text); text != "" {
		bodyLines = append(bodyLines, text)
	}

	skippedPrimary := ir.Head.Text == ""
	for _, el := range ir.Elements {
		switch el.Type {
		case ElementText:
			if !skippedPrimary && el.Text == ir.Head.Text {
				skippedPrimary = true
				continue
			}
			skippedPrimary = true
			bodyLines = append(bodyLines, strings.TrimSpace(el.Text))
		case ElementImage:
			bodyLines = append(bodyLines, el.URL)
		case ElementFactSet:
			for _, f := range el.Facts {
				bodyLines = append(bodyLines, "• "+f.Label+": "+f.Value)
			}
		case ElementInput:
			warnings = append(warnings, WarnWhatsAppInputsNotSupported)
			bodyLines = append(bodyLines, r.inputPrompt(el))
		}
	}

	if ir.Head.Footer != "" {
		bodyLines = append(bodyLines, strings.TrimSpace(ir.Head.Footer))
	}

	payload := map[string]any{
		"type": "WhatsAppTemplate",
		"body": strings.Join(bodyLines, "\n"),
	}

	buttons, truncated := r.buttons(ir)
	if truncated {
		warnings = append(warnings, WarnWhatsAppActionsTruncated)
	}
	if len(buttons) > 0 {
		payload["components"] = []map[string]any{
			{"type": "BUTTONS", "buttons": buttons},
		}
	}

	return RenderOutput{Payload: mustJSON(payload), Warnings: warnings}
}

func (r *whatsappRenderer) inputPrompt(el Element) string {
	field := el.Label
	if field == "" {
		field = "Input"
	}
	if el.Kind == InputChoice {
		opts := "(choose any option)"
		if len(el.Choices) > 0 {
			titles := make([]string, 0, len(el.Choices))
			for _, c := range el.Choices {
				titles = append(titles, strings.TrimSpace(c.Title))
			}
			opts = strings.Join(titles, ", ")
		}
		return field + ": reply with [" + opts + "]."
	}
	return field + ": reply with your answer."
}

func (r *whatsappRenderer) buttons(ir *IR) ([]map[string]any, bool) {
	var buttons []map[string]any
	truncated := false
	for _, action := range ir.Actions {
		if len(buttons) == whatsappMaxButtons {
			truncated = true
			break
		}
		switch action.Type {
		case ActionOpenURL:
			buttons = append(buttons, map[string]any{
				"type": "URL",
				"text": action.Title,
				"url":  resolveOpenURL(&ir.Meta, action.URL),
			})
		case ActionPostback:
			payload := string(action.Data)
			if payload == "" {
				payload = "{}"
			}
			buttons = append(buttons, map[string]any{
				"type":    "QUICK_REPLY",
				"text":    action.Title,
				"payload": payload,
			})
		}
	}
	return buttons, truncated
}
