package ingress

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/greentic/messaging/pkg/message"
)

// telegramNormalizer handles Telegram Bot API update payloads.
type telegramNormalizer struct{}

// NewTelegramNormalizer creates the Telegram normalizer.
func NewTelegramNormalizer() Normalizer { return &telegramNormalizer{} }

func (n *telegramNormalizer) Platform() message.Platform { return message.PlatformTelegram }

func (n *telegramNormalizer) Normalize(tenant string, body []byte) (*message.MessageEnvelope, *Immediate, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, nil, fmt.Errorf("telegram update: %w", err)
	}

	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		return nil, nil, fmt.Errorf("telegram update: no message")
	}

	userID := ""
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
	}

	ts := message.Now()
	if msg.Date > 0 {
		ts = time.Unix(int64(msg.Date), 0).UTC().Format(time.RFC3339)
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	return &message.MessageEnvelope{
		Tenant:   tenant,
		Platform: message.PlatformTelegram,
		ChatID:   chatID,
		UserID:   userID,
		// Telegram message ids are unique per chat, not globally.
		MsgID:     chatID + ":" + strconv.Itoa(msg.MessageID),
		Text:      msg.Text,
		Timestamp: ts,
		Context:   map[string]string{"update_id": strconv.Itoa(update.UpdateID)},
	}, nil, nil
}
