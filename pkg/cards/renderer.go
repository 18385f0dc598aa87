package cards

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/greentic/messaging/pkg/message"
)

// RenderOutput is what a renderer produces for one IR.
type RenderOutput struct {
	Payload         json.RawMessage `json:"payload"`
	Warnings        []string        `json:"warnings,omitempty"`
	UsedModal       bool            `json:"used_modal,omitempty"`
	LimitExceeded   bool            `json:"limit_exceeded,omitempty"`
	SanitizedCount  int             `json:"sanitized_count,omitempty"`
	URLBlockedCount int             `json:"url_blocked_count,omitempty"`
}

// Renderer translates the neutral IR into one platform's wire payload.
// Renderers are deterministic: equal IRs yield equal outputs, and warning
// lists preserve the order downgrades were encountered in.
type Renderer interface {
	Platform() message.Platform
	TargetTier() Tier
	Render(ir *IR) RenderOutput
}

// AuthRenderer is implemented by renderers with a native OAuth card. When a
// renderer lacks it, the engine downgrades to an open-url action pointing at
// the start URL.
type AuthRenderer interface {
	RenderAuth(spec AuthSpec) (json.RawMessage, error)
}

// AuthSpec is the resolved OAuth render request: the start URL is always
// populated by the engine before a renderer sees it.
type AuthSpec struct {
	Provider       string
	Scopes         []string
	Resource       string
	Prompt         string
	StartURL       string
	ConnectionName string
	Title          string
}

// resolveOpenURL re-signs an action URL through the app link when one is
// present on the IR meta.
func resolveOpenURL(meta *Meta, raw string) string {
	if meta.AppLink == "" {
		return raw
	}
	return meta.AppLink + "?target=" + url.QueryEscape(raw)
}

// sanitizeURL rejects URLs with schemes other than http/https.
func sanitizeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// rawData guards postback payloads: an absent payload marshals as an empty
// object instead of invalid JSON.
func rawData(d json.RawMessage) json.RawMessage {
	if len(d) == 0 {
		return json.RawMessage(`{}`)
	}
	return d
}

// mustJSON marshals v; renderer inputs are JSON-safe by construction so a
// failure collapses to an empty object.
func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
