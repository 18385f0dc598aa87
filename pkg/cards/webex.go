package cards

import (
	"strings"

	"github.com/greentic/messaging/pkg/message"
)

const (
	// WarnWebexFactSetDowngraded is emitted when a fact set collapses into a
	// text block.
	WarnWebexFactSetDowngraded = "webex.factset_downgraded"
	// WarnWebexInputsNotSupported is emitted when inputs are dropped.
	WarnWebexInputsNotSupported = "webex.inputs_not_supported"
)

// webexRenderer emits a downgraded Adaptive Card 1.4: fact sets become text
// blocks and inputs are dropped.
type webexRenderer struct{}

// NewWebexRenderer creates the Webex renderer.
func NewWebexRenderer() Renderer { return &webexRenderer{} }

func (r *webexRenderer) Platform() message.Platform { return message.PlatformWebex }

func (r *webexRenderer) TargetTier() Tier { return TierAdvanced }

func (r *webexRenderer) Render(ir *IR) RenderOutput {
	var warnings []string
	var body []map[string]any

	if ir.Head.Title != "" {
		body = append(body, map[string]any{
			"type":   "TextBlock",
			"text":   ir.Head.Title,
			"wrap":   true,
			"weight": "Bolder",
			"size":   "Medium",
		})
	}
	if ir.Head.Text != "" {
		body = append(body, map[string]any{
			"type":     "TextBlock",
			"text":     ir.Head.Text,
			"wrap":     true,
			"isSubtle": true,
		})
	}

	for _, el := range ir.Elements {
		switch el.Type {
		case ElementText:
			if el.Text == ir.Head.Text {
				continue
			}
			body = append(body, textBlock(el.Text))
		case ElementImage:
			alt := el.Alt
			if alt == "" {
				alt = "image"
			}
			body = append(body, map[string]any{"type": "Image", "url": el.URL, "altText": alt})
		case ElementFactSet:
			if len(el.Facts) == 0 {
				continue
			}
			lines := make([]string, 0, len(el.Facts))
			for _, f := range el.Facts {
				lines = append(lines, "*"+f.Label+"*: "+f.Value)
			}
			body = append(body, textBlock(strings.Join(lines, "\n")))
			warnings = append(warnings, WarnWebexFactSetDowngraded)
		case ElementInput:
			warnings = append(warnings, WarnWebexInputsNotSupported)
		}
	}

	if ir.Head.Footer != "" {
		body = append(body, map[string]any{
			"type":     "TextBlock",
			"text":     ir.Head.Footer,
			"wrap":     true,
			"spacing":  "Small",
			"isSubtle": true,
			"size":     "Small",
		})
	}

	actions := make([]map[string]any, 0, len(ir.Actions))
	for _, action := range ir.Actions {
		switch action.Type {
		case ActionOpenURL:
			actions = append(actions, map[string]any{
				"type":  "Action.OpenUrl",
				"title": action.Title,
				"url":   resolveOpenURL(&ir.Meta, action.URL),
			})
		case ActionPostback:
			actions = append(actions, map[string]any{
				"type":  "Action.Submit",
				"title": action.Title,
				"data":  rawData(action.Data),
			})
		}
	}

	payload := map[string]any{
		"type":    "AdaptiveCard",
		"version": adaptiveVersion,
		"body":    body,
		"actions": actions,
	}

	return RenderOutput{Payload: mustJSON(payload), Warnings: warnings}
}

func textBlock(text string) map[string]any {
	return map[string]any{"type": "TextBlock", "text": text, "wrap": true}
}
