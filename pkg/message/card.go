package message

import (
	"encoding/json"
	"fmt"
)

// CardKind discriminates standard cards from OAuth sign-in cards.
type CardKind string

const (
	CardStandard CardKind = "standard"
	CardOAuth    CardKind = "oauth"
)

// MessageCard is the platform-neutral card representation authored by flows.
// It is rendered per platform on demand by the card engine.
type MessageCard struct {
	Kind          CardKind        `json:"kind,omitempty"`
	Title         string          `json:"title,omitempty"`
	Text          string          `json:"text,omitempty"`
	Footer        string          `json:"footer,omitempty"`
	Images        []ImageRef      `json:"images,omitempty"`
	Actions       []CardAction    `json:"actions,omitempty"`
	AllowMarkdown *bool           `json:"allow_markdown,omitempty"`
	Adaptive      json.RawMessage `json:"adaptive,omitempty"`
	OAuth         *OAuthCard      `json:"oauth,omitempty"`
}

// Markdown reports whether markdown rendering is allowed (default true).
func (c *MessageCard) Markdown() bool {
	return c.AllowMarkdown == nil || *c.AllowMarkdown
}

// Validate enforces the oauth invariant: oauth-kind cards carry an oauth
// block with provider and scopes.
func (c *MessageCard) Validate() error {
	if c.Kind == CardOAuth {
		if c.OAuth == nil {
			return fmt.Errorf("message card: oauth kind requires oauth block")
		}
		if c.OAuth.Provider == "" {
			return fmt.Errorf("message card: oauth block requires provider")
		}
		if len(c.OAuth.Scopes) == 0 {
			return fmt.Errorf("message card: oauth block requires scopes")
		}
	}
	return nil
}

// ImageRef references an image shown on a card.
type ImageRef struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// CardActionType discriminates card actions.
type CardActionType string

const (
	ActionOpenURL  CardActionType = "open_url"
	ActionPostback CardActionType = "postback"
)

// CardAction is a button on a card. Type selects which fields are meaningful:
// open_url uses URL, postback uses Data.
type CardAction struct {
	Type  CardActionType  `json:"type"`
	Title string          `json:"title"`
	URL   string          `json:"url,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OAuthCard describes the authorization flow a card should initiate.
type OAuthCard struct {
	Provider       string          `json:"provider"`
	Scopes         []string        `json:"scopes"`
	Resource       string          `json:"resource,omitempty"`
	Prompt         string          `json:"prompt,omitempty"`
	StartURL       string          `json:"start_url,omitempty"`
	ConnectionName string          `json:"connection_name,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}
