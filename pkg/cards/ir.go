// Package cards implements the platform-neutral MessageCard intermediate
// representation and the per-platform renderers that translate it into wire
// payloads.
package cards

import (
	"encoding/json"

	"github.com/greentic/messaging/pkg/message"
)

// Head is the card's framing text.
type Head struct {
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
	Footer string `json:"footer,omitempty"`
}

// ElementType discriminates IR elements.
type ElementType string

const (
	ElementText    ElementType = "text"
	ElementImage   ElementType = "image"
	ElementFactSet ElementType = "factset"
	ElementInput   ElementType = "input"
)

// InputKind discriminates input elements.
type InputKind string

const (
	InputText   InputKind = "text"
	InputChoice InputKind = "choice"
)

// Fact is one label/value pair in a fact set.
type Fact struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Choice is one option of a choice input.
type Choice struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Element is one body element of the IR. Type selects which fields are
// meaningful.
type Element struct {
	Type ElementType `json:"type"`

	// text
	Text     string `json:"text,omitempty"`
	Markdown bool   `json:"markdown,omitempty"`

	// image
	URL string `json:"url,omitempty"`
	Alt string `json:"alt,omitempty"`

	// factset
	Facts []Fact `json:"facts,omitempty"`

	// input
	Label   string    `json:"label,omitempty"`
	Kind    InputKind `json:"kind,omitempty"`
	ID      string    `json:"id,omitempty"`
	Choices []Choice  `json:"choices,omitempty"`
}

// TextElement builds a text element.
func TextElement(text string, markdown bool) Element {
	return Element{Type: ElementText, Text: text, Markdown: markdown}
}

// ImageElement builds an image element.
func ImageElement(url, alt string) Element {
	return Element{Type: ElementImage, URL: url, Alt: alt}
}

// FactSetElement builds a fact-set element.
func FactSetElement(facts ...Fact) Element {
	return Element{Type: ElementFactSet, Facts: facts}
}

// InputElement builds an input element.
func InputElement(id, label string, kind InputKind, choices ...Choice) Element {
	return Element{Type: ElementInput, ID: id, Label: label, Kind: kind, Choices: choices}
}

// ActionType discriminates IR actions.
type ActionType string

const (
	ActionOpenURL  ActionType = "open_url"
	ActionPostback ActionType = "postback"
)

// Action is a card button.
type Action struct {
	Type  ActionType      `json:"type"`
	Title string          `json:"title"`
	URL   string          `json:"url,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OpenURL builds an open-url action.
func OpenURL(title, url string) Action {
	return Action{Type: ActionOpenURL, Title: title, URL: url}
}

// Postback builds a postback action.
func Postback(title string, data json.RawMessage) Action {
	return Action{Type: ActionPostback, Title: title, Data: data}
}

// Meta carries tier resolution, capabilities, downgrade warnings, and
// optional pass-through state through a render.
type Meta struct {
	Tier            Tier            `json:"tier"`
	TargetTier      Tier            `json:"target_tier"`
	Capabilities    []string        `json:"capabilities,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
	AdaptivePayload json.RawMessage `json:"adaptive_payload,omitempty"`
	AppLink         string          `json:"app_link,omitempty"`
}

// IR is the ephemeral neutral card representation: built from a MessageCard
// (or an Adaptive Card payload), consumed by one renderer.
type IR struct {
	Head     Head      `json:"head"`
	Elements []Element `json:"elements,omitempty"`
	Actions  []Action  `json:"actions,omitempty"`
	Meta     Meta      `json:"meta"`
}

// FromMessageCard builds the IR for a neutral card.
func FromMessageCard(card *message.MessageCard) *IR {
	ir := &IR{
		Head: Head{Title: card.Title, Text: card.Text, Footer: card.Footer},
	}
	if card.Text != "" {
		ir.Elements = append(ir.Elements, TextElement(card.Text, card.Markdown()))
	}
	for _, img := range card.Images {
		ir.Elements = append(ir.Elements, ImageElement(img.URL, img.Alt))
	}
	for _, action := range card.Actions {
		switch action.Type {
		case message.ActionOpenURL:
			ir.Actions = append(ir.Actions, OpenURL(action.Title, action.URL))
		case message.ActionPostback:
			ir.Actions = append(ir.Actions, Postback(action.Title, action.Data))
		}
	}
	return ir
}

// FromText builds the IR for a plain text message.
func FromText(text string) *IR {
	return &IR{
		Head:     Head{Text: text},
		Elements: []Element{TextElement(text, true)},
	}
}
