package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/greentic/messaging/pkg/adapters"
	"github.com/greentic/messaging/pkg/message"
	"github.com/greentic/messaging/pkg/secrets"
)

// Deliverer sends a rendered payload to the platform API.
type Deliverer interface {
	Deliver(ctx context.Context, out *message.OutMessage, payload json.RawMessage, desc *adapters.Descriptor) error
}

// defaultEndpoints maps platforms to their public API bases.
var defaultEndpoints = map[message.Platform]string{
	message.PlatformSlack:    "https://slack.com/api/chat.postMessage",
	message.PlatformTelegram: "https://api.telegram.org",
	message.PlatformWebex:    "https://webexapis.com/v1/messages",
	message.PlatformWhatsApp: "https://graph.facebook.com/v19.0/me/messages",
}

// HTTPDeliverer posts payloads to platform APIs with bearer tokens resolved
// through the secrets collaborator. The HTTP client is shared and kept warm
// across deliveries.
type HTTPDeliverer struct {
	http      *http.Client
	secrets   secrets.Store
	endpoints map[message.Platform]string
}

// NewHTTPDeliverer creates a deliverer. overrides replace the default
// endpoint per platform (used for self-hosted APIs and tests).
func NewHTTPDeliverer(store secrets.Store, overrides map[string]string) *HTTPDeliverer {
	endpoints := make(map[message.Platform]string, len(defaultEndpoints))
	for p, url := range defaultEndpoints {
		endpoints[p] = url
	}
	for name, url := range overrides {
		if p, err := message.ParsePlatform(name); err == nil {
			endpoints[p] = url
		}
	}
	return &HTTPDeliverer{
		http:      &http.Client{Timeout: 15 * time.Second},
		secrets:   store,
		endpoints: endpoints,
	}
}

// Deliver addresses the payload for its platform, signs the request, posts
// it, and classifies the response.
func (d *HTTPDeliverer) Deliver(ctx context.Context, out *message.OutMessage, payload json.RawMessage, desc *adapters.Descriptor) error {
	token, err := d.token(ctx, out.Platform)
	if err != nil {
		return &DeliveryError{Code: CodeAdapter, Body: err.Error()}
	}

	endpoint, err := d.endpoint(out, token)
	if err != nil {
		return &DeliveryError{Code: CodeAdapter, Body: err.Error()}
	}

	body, err := addressPayload(out, payload)
	if err != nil {
		return &DeliveryError{Code: CodeDecode, Body: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Code: CodeTransport, Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if out.Platform != message.PlatformTelegram {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := d.http.Do(req)
	if err != nil {
		return &DeliveryError{Code: CodeTransport, Body: err.Error()}
	}
	defer res.Body.Close()

	return Classify(res)
}

// token resolves the platform bearer token through the secrets store.
func (d *HTTPDeliverer) token(ctx context.Context, platform message.Platform) (string, error) {
	uri := "secret+env://" + strings.ToUpper(string(platform)) + "_TOKEN"
	value, err := d.secrets.Get(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("resolving token for %s: %w", platform, err)
	}
	return strings.TrimSpace(string(value)), nil
}

// endpoint resolves the delivery URL. Teams and WebChat post back to the
// conversation's service URL carried in the message meta.
func (d *HTTPDeliverer) endpoint(out *message.OutMessage, token string) (string, error) {
	switch out.Platform {
	case message.PlatformTeams, message.PlatformWebChat:
		if base := out.Meta["service_url"]; base != "" {
			return strings.TrimSuffix(base, "/") + "/v3/conversations/" + out.ChatID + "/activities", nil
		}
		if base, ok := d.endpoints[out.Platform]; ok {
			return base, nil
		}
		return "", fmt.Errorf("no service url for %s delivery", out.Platform)
	case message.PlatformTelegram:
		base, ok := d.endpoints[out.Platform]
		if !ok {
			return "", fmt.Errorf("no endpoint for %s", out.Platform)
		}
		return strings.TrimSuffix(base, "/") + "/bot" + token + "/sendMessage", nil
	default:
		base, ok := d.endpoints[out.Platform]
		if !ok {
			return "", fmt.Errorf("no endpoint for %s", out.Platform)
		}
		return base, nil
	}
}

// addressPayload merges conversation addressing into the rendered payload.
func addressPayload(out *message.OutMessage, payload json.RawMessage) ([]byte, error) {
	switch out.Platform {
	case message.PlatformSlack:
		return mergePayload(payload, map[string]any{
			"channel":   out.ChatID,
			"thread_ts": nonEmpty(out.ThreadID),
		})
	case message.PlatformTelegram:
		return mergePayload(payload, map[string]any{"chat_id": out.ChatID})
	case message.PlatformWebex:
		if looksLikeCard(payload) {
			return json.Marshal(map[string]any{
				"roomId":   out.ChatID,
				"markdown": fallbackText(out),
				"attachments": []map[string]any{{
					"contentType": "application/vnd.microsoft.card.adaptive",
					"content":     payload,
				}},
			})
		}
		return json.Marshal(map[string]any{"roomId": out.ChatID, "markdown": fallbackText(out)})
	case message.PlatformTeams, message.PlatformWebChat:
		if looksLikeCard(payload) {
			return json.Marshal(map[string]any{
				"type": "message",
				"attachments": []map[string]any{{
					"contentType": "application/vnd.microsoft.card.adaptive",
					"content":     payload,
				}},
			})
		}
		return json.Marshal(map[string]any{"type": "message", "text": fallbackText(out)})
	case message.PlatformWhatsApp:
		return mergePayload(payload, map[string]any{
			"messaging_product": "whatsapp",
			"to":                out.ChatID,
		})
	default:
		return payload, nil
	}
}

// mergePayload overlays addressing keys onto the rendered payload object.
func mergePayload(payload json.RawMessage, extra map[string]any) ([]byte, error) {
	merged := make(map[string]any)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &merged); err != nil {
			return nil, fmt.Errorf("payload is not a JSON object: %w", err)
		}
	}
	for k, v := range extra {
		if v == nil {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// looksLikeCard distinguishes rendered Adaptive Cards from plain text
// payloads.
func looksLikeCard(payload json.RawMessage) bool {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}
	return probe.Type == "AdaptiveCard"
}

// fallbackText supplies the plain-text companion required by card posts.
func fallbackText(out *message.OutMessage) string {
	if out.Text != "" {
		return out.Text
	}
	if out.Card != nil && out.Card.Title != "" {
		return out.Card.Title
	}
	return "You received a card."
}
