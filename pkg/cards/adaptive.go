package cards

import (
	"encoding/json"

	"github.com/greentic/messaging/pkg/message"
)

// adaptiveVersion is the Adaptive Card schema version emitted for Teams,
// WebChat, and Webex payloads.
const adaptiveVersion = "1.4"

// adaptiveRenderer serves the Adaptive Card platforms (Teams and WebChat).
// When the IR carries a pass-through adaptive payload it is used verbatim.
type adaptiveRenderer struct {
	platform message.Platform
}

// NewTeamsRenderer creates the Microsoft Teams renderer.
func NewTeamsRenderer() Renderer { return &adaptiveRenderer{platform: message.PlatformTeams} }

// NewWebChatRenderer creates the WebChat renderer.
func NewWebChatRenderer() Renderer { return &adaptiveRenderer{platform: message.PlatformWebChat} }

func (r *adaptiveRenderer) Platform() message.Platform { return r.platform }

func (r *adaptiveRenderer) TargetTier() Tier { return TierPremium }

func (r *adaptiveRenderer) Render(ir *IR) RenderOutput {
	if len(ir.Meta.AdaptivePayload) > 0 {
		return RenderOutput{Payload: ir.Meta.AdaptivePayload}
	}

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
			body = append(body, map[string]any{"type": "TextBlock", "text": el.Text, "wrap": true})
		case ElementImage:
			alt := el.Alt
			if alt == "" {
				alt = "image"
			}
			body = append(body, map[string]any{"type": "Image", "url": el.URL, "altText": alt})
		case ElementFactSet:
			facts := make([]map[string]any, 0, len(el.Facts))
			for _, f := range el.Facts {
				facts = append(facts, map[string]any{"title": f.Label, "value": f.Value})
			}
			body = append(body, map[string]any{"type": "FactSet", "facts": facts})
		case ElementInput:
			body = append(body, r.inputBody(el))
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
	}
	if len(actions) > 0 {
		payload["actions"] = actions
	}

	return RenderOutput{Payload: mustJSON(payload)}
}

func (r *adaptiveRenderer) inputBody(el Element) map[string]any {
	if el.Kind == InputChoice {
		choices := make([]map[string]any, 0, len(el.Choices))
		for _, c := range el.Choices {
			choices = append(choices, map[string]any{"title": c.Title, "value": c.Value})
		}
		return map[string]any{
			"type":    "Input.ChoiceSet",
			"id":      el.ID,
			"label":   el.Label,
			"choices": choices,
		}
	}
	return map[string]any{
		"type":  "Input.Text",
		"id":    el.ID,
		"label": el.Label,
	}
}

// RenderAuth emits the Bot Framework OAuth card so sign-in happens inline.
func (r *adaptiveRenderer) RenderAuth(spec AuthSpec) (json.RawMessage, error) {
	payload := map[string]any{
		"contentType": "application/vnd.microsoft.card.oauth",
		"content": map[string]any{
			"text":           spec.Title,
			"connectionName": spec.ConnectionName,
			"buttons": []map[string]any{
				{
					"type":  "signin",
					"title": spec.Title,
					"value": spec.StartURL,
				},
			},
		},
	}
	return mustJSON(payload), nil
}
