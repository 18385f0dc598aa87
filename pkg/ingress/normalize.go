package ingress

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/greentic/messaging/pkg/message"
)

// Immediate short-circuits the pipeline with a direct response (Slack URL
// verification echoes the challenge this way).
type Immediate struct {
	Status int
	Body   any
}

// Normalizer maps one platform's webhook payload onto the canonical
// envelope. The msg_id it produces must be stable and unique per platform
// event.
type Normalizer interface {
	Platform() message.Platform
	Normalize(tenant string, body []byte) (*message.MessageEnvelope, *Immediate, error)
}

// webchatNormalizer handles the first-party WebChat widget payloads.
type webchatNormalizer struct{}

// NewWebChatNormalizer creates the WebChat normalizer.
func NewWebChatNormalizer() Normalizer { return &webchatNormalizer{} }

func (n *webchatNormalizer) Platform() message.Platform { return message.PlatformWebChat }

func (n *webchatNormalizer) Normalize(tenant string, body []byte) (*message.MessageEnvelope, *Immediate, error) {
	var payload struct {
		ChatID   string            `json:"chat_id"`
		UserID   string            `json:"user_id"`
		ThreadID string            `json:"thread_id"`
		MsgID    string            `json:"msg_id"`
		Text     string            `json:"text"`
		Context  map[string]string `json:"context"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("webchat payload: %w", err)
	}
	if payload.ChatID == "" || payload.UserID == "" {
		return nil, nil, fmt.Errorf("webchat payload: chat_id and user_id are required")
	}

	msgID := payload.MsgID
	if msgID == "" {
		// WebChat clients may omit the message id; synthesize one so the
		// envelope stays unique.
		msgID = uuid.NewString()
	}

	return &message.MessageEnvelope{
		Tenant:    tenant,
		Platform:  message.PlatformWebChat,
		ChatID:    payload.ChatID,
		UserID:    payload.UserID,
		ThreadID:  payload.ThreadID,
		MsgID:     msgID,
		Text:      payload.Text,
		Timestamp: message.Now(),
		Context:   payload.Context,
	}, nil, nil
}

// teamsNormalizer handles Bot Framework activity payloads.
type teamsNormalizer struct{}

// NewTeamsNormalizer creates the Microsoft Teams normalizer.
func NewTeamsNormalizer() Normalizer { return &teamsNormalizer{} }

func (n *teamsNormalizer) Platform() message.Platform { return message.PlatformTeams }

func (n *teamsNormalizer) Normalize(tenant string, body []byte) (*message.MessageEnvelope, *Immediate, error) {
	var activity struct {
		Type         string `json:"type"`
		ID           string `json:"id"`
		Timestamp    string `json:"timestamp"`
		Text         string `json:"text"`
		From         struct {
			ID string `json:"id"`
		} `json:"from"`
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
		ReplyToID  string `json:"replyToId"`
		ServiceURL string `json:"serviceUrl"`
	}
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, nil, fmt.Errorf("teams activity: %w", err)
	}
	if activity.Type != "message" {
		return nil, nil, fmt.Errorf("teams activity: unsupported type %q", activity.Type)
	}
	if activity.ID == "" || activity.Conversation.ID == "" {
		return nil, nil, fmt.Errorf("teams activity: id and conversation are required")
	}

	ts := activity.Timestamp
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		ts = message.Now()
	}

	ctx := map[string]string{}
	if activity.ServiceURL != "" {
		ctx["service_url"] = activity.ServiceURL
	}

	return &message.MessageEnvelope{
		Tenant:    tenant,
		Platform:  message.PlatformTeams,
		ChatID:    activity.Conversation.ID,
		UserID:    activity.From.ID,
		ThreadID:  activity.ReplyToID,
		MsgID:     activity.ID,
		Text:      activity.Text,
		Timestamp: ts,
		Context:   ctx,
	}, nil, nil
}

// whatsappNormalizer handles WhatsApp Cloud API webhook payloads. Only the
// first message of a delivery batch is normalized per call; WhatsApp sends
// one message per webhook in practice.
type whatsappNormalizer struct{}

// NewWhatsAppNormalizer creates the WhatsApp normalizer.
func NewWhatsAppNormalizer() Normalizer { return &whatsappNormalizer{} }

func (n *whatsappNormalizer) Platform() message.Platform { return message.PlatformWhatsApp }

func (n *whatsappNormalizer) Normalize(tenant string, body []byte) (*message.MessageEnvelope, *Immediate, error) {
	var payload struct {
		Entry []struct {
			Changes []struct {
				Value struct {
					Messages []struct {
						ID        string `json:"id"`
						From      string `json:"from"`
						Timestamp string `json:"timestamp"`
						Text      struct {
							Body string `json:"body"`
						} `json:"text"`
					} `json:"messages"`
				} `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("whatsapp payload: %w", err)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				ts := message.Now()
				if secs, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
					ts = time.Unix(secs, 0).UTC().Format(time.RFC3339)
				}
				return &message.MessageEnvelope{
					Tenant:    tenant,
					Platform:  message.PlatformWhatsApp,
					ChatID:    msg.From,
					UserID:    msg.From,
					MsgID:     msg.ID,
					Text:      msg.Text.Body,
					Timestamp: ts,
				}, nil, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("whatsapp payload: no messages")
}

// webexNormalizer handles Webex webhook notifications. Webex webhooks carry
// resource ids, not message bodies; fetching content is an egress-credential
// concern, so the envelope forwards the ids.
type webexNormalizer struct{}

// NewWebexNormalizer creates the Webex normalizer.
func NewWebexNormalizer() Normalizer { return &webexNormalizer{} }

func (n *webexNormalizer) Platform() message.Platform { return message.PlatformWebex }

func (n *webexNormalizer) Normalize(tenant string, body []byte) (*message.MessageEnvelope, *Immediate, error) {
	var payload struct {
		ID   string `json:"id"`
		Data struct {
			ID       string `json:"id"`
			RoomID   string `json:"roomId"`
			PersonID string `json:"personId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("webex payload: %w", err)
	}
	if payload.Data.ID == "" || payload.Data.RoomID == "" {
		return nil, nil, fmt.Errorf("webex payload: data.id and data.roomId are required")
	}

	return &message.MessageEnvelope{
		Tenant:    tenant,
		Platform:  message.PlatformWebex,
		ChatID:    payload.Data.RoomID,
		UserID:    payload.Data.PersonID,
		MsgID:     payload.Data.ID,
		Timestamp: message.Now(),
		Context:   map[string]string{"webhook_id": payload.ID},
	}, nil, nil
}
