package ingress

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/slack-go/slack/slackevents"

	"github.com/greentic/messaging/pkg/message"
)

// slackNormalizer handles Slack Events API payloads, including the
// url_verification challenge handshake.
type slackNormalizer struct{}

// NewSlackNormalizer creates the Slack normalizer.
func NewSlackNormalizer() Normalizer { return &slackNormalizer{} }

func (n *slackNormalizer) Platform() message.Platform { return message.PlatformSlack }

func (n *slackNormalizer) Normalize(tenant string, body []byte) (*message.MessageEnvelope, *Immediate, error) {
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return nil, nil, fmt.Errorf("slack event: %w", err)
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			return nil, nil, fmt.Errorf("slack challenge: %w", err)
		}
		return nil, &Immediate{
			Status: http.StatusOK,
			Body:   map[string]string{"challenge": challenge.Challenge},
		}, nil

	case slackevents.CallbackEvent:
		msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
		if !ok {
			return nil, nil, fmt.Errorf("slack event: unsupported inner event %q", event.InnerEvent.Type)
		}
		if msg.BotID != "" {
			// Drop bot echoes so the gateway never loops on itself.
			return nil, &Immediate{Status: http.StatusAccepted, Body: map[string]any{"ok": true}}, nil
		}

		msgID := msg.TimeStamp
		if cb, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok && cb.EventID != "" {
			msgID = cb.EventID
		}

		return &message.MessageEnvelope{
			Tenant:    tenant,
			Platform:  message.PlatformSlack,
			ChatID:    msg.Channel,
			UserID:    msg.User,
			ThreadID:  msg.ThreadTimeStamp,
			MsgID:     msgID,
			Text:      msg.Text,
			Timestamp: message.Now(),
			Context:   map[string]string{"ts": msg.TimeStamp},
		}, nil, nil
	}

	return nil, nil, fmt.Errorf("slack event: unsupported outer type %q", event.Type)
}
