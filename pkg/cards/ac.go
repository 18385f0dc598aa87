package cards

import (
	"encoding/json"
	"fmt"
)

// acCard is the subset of an Adaptive Card payload the canonicalizer reads.
type acCard struct {
	Type    string      `json:"type"`
	Body    []acElement `json:"body"`
	Actions []acAction  `json:"actions"`
}

type acElement struct {
	Type        string          `json:"type"`
	Text        string          `json:"text"`
	Weight      string          `json:"weight"`
	URL         string          `json:"url"`
	AltText     string          `json:"altText"`
	Facts       []acFact        `json:"facts"`
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Placeholder string          `json:"placeholder"`
	Choices     []acChoice      `json:"choices"`
	Items       json.RawMessage `json:"items"`
}

type acFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type acChoice struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type acAction struct {
	Type  string          `json:"type"`
	Title string          `json:"title"`
	URL   string          `json:"url"`
	Data  json.RawMessage `json:"data"`
}

// ACToIR normalizes a natively authored Adaptive Card payload into the IR.
// The first bold TextBlock becomes the head title; unknown element types are
// ignored so newer cards degrade instead of failing.
func ACToIR(raw json.RawMessage) (*IR, error) {
	var card acCard
	if err := json.Unmarshal(raw, &card); err != nil {
		return nil, fmt.Errorf("parsing adaptive card: %w", err)
	}
	if card.Type != "" && card.Type != "AdaptiveCard" {
		return nil, fmt.Errorf("unexpected adaptive card type %q", card.Type)
	}

	ir := &IR{}
	for _, el := range card.Body {
		switch el.Type {
		case "TextBlock":
			if ir.Head.Title == "" && el.Weight == "Bolder" {
				ir.Head.Title = el.Text
				continue
			}
			ir.Elements = append(ir.Elements, TextElement(el.Text, true))
		case "Image":
			ir.Elements = append(ir.Elements, ImageElement(el.URL, el.AltText))
		case "FactSet":
			facts := make([]Fact, 0, len(el.Facts))
			for _, f := range el.Facts {
				facts = append(facts, Fact{Label: f.Title, Value: f.Value})
			}
			ir.Elements = append(ir.Elements, FactSetElement(facts...))
		case "Input.Text":
			label := el.Label
			if label == "" {
				label = el.Placeholder
			}
			ir.Elements = append(ir.Elements, InputElement(el.ID, label, InputText))
		case "Input.ChoiceSet":
			choices := make([]Choice, 0, len(el.Choices))
			for _, c := range el.Choices {
				choices = append(choices, Choice{Title: c.Title, Value: c.Value})
			}
			ir.Elements = append(ir.Elements, InputElement(el.ID, el.Label, InputChoice, choices...))
		}
	}

	for _, action := range card.Actions {
		switch action.Type {
		case "Action.OpenUrl":
			ir.Actions = append(ir.Actions, OpenURL(action.Title, action.URL))
		case "Action.Submit":
			ir.Actions = append(ir.Actions, Postback(action.Title, action.Data))
		}
	}

	return ir, nil
}
