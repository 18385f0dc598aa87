package cards

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/greentic/messaging/pkg/message"
)

const (
	telegramMaxButtons = 10
	telegramMaxPerRow  = 3

	// WarnTelegramActionsTruncated is emitted when actions exceed the
	// Telegram inline-keyboard limit.
	WarnTelegramActionsTruncated = "telegram.actions_truncated"
	// WarnTelegramInputsNotSupported is emitted when inputs are downgraded
	// to prompt lines.
	WarnTelegramInputsNotSupported = "telegram.inputs_not_supported"
)

// telegramRenderer emits a single sendMessage with HTML text and an inline
// keyboard.
type telegramRenderer struct{}

// NewTelegramRenderer creates the Telegram renderer.
func NewTelegramRenderer() Renderer { return &telegramRenderer{} }

func (r *telegramRenderer) Platform() message.Platform { return message.PlatformTelegram }

func (r *telegramRenderer) TargetTier() Tier { return TierBasic }

func (r *telegramRenderer) Render(ir *IR) RenderOutput {
	var warnings []string
	var lines []string

	if ir.Head.Title != "" {
		lines = append(lines, "<b>"+htmlEscape(ir.Head.Title)+"</b>")
	}
	if ir.Head.Text != "" {
		lines = append(lines, htmlEscape(ir.Head.Text))
	}

	primaryConsumed := ir.Head.Text == ""
	for _, el := range ir.Elements {
		switch el.Type {
		case ElementText:
			if !primaryConsumed && el.Text == ir.Head.Text {
				primaryConsumed = true
				continue
			}
			primaryConsumed = true
			lines = append(lines, htmlEscape(el.Text))
		case ElementImage:
			lines = append(lines, el.URL)
		case ElementFactSet:
			for _, f := range el.Facts {
				lines = append(lines, "• <b>"+htmlEscape(f.Label)+"</b>: "+htmlEscape(f.Value))
			}
		case ElementInput:
			warnings = append(warnings, WarnTelegramInputsNotSupported)
			lines = append(lines, r.inputPrompt(el))
		}
	}

	if ir.Head.Footer != "" {
		lines = append(lines, htmlEscape(ir.Head.Footer))
	}

	payload := map[string]any{
		"method":     "sendMessage",
		"parse_mode": "HTML",
		"text":       strings.Join(lines, "\n"),
	}

	if keyboard, truncated := r.keyboard(ir); keyboard != nil {
		payload["reply_markup"] = keyboard
		if truncated {
			warnings = append(warnings, WarnTelegramActionsTruncated)
		}
	}

	return RenderOutput{Payload: mustJSON(payload), Warnings: warnings}
}

func (r *telegramRenderer) inputPrompt(el Element) string {
	prompt := el.Label
	if prompt == "" {
		prompt = "Input"
	}
	if el.Kind == InputChoice {
		opts := "(any option)"
		if len(el.Choices) > 0 {
			titles := make([]string, 0, len(el.Choices))
			for _, c := range el.Choices {
				titles = append(titles, htmlEscape(c.Title))
			}
			opts = strings.Join(titles, ", ")
		}
		return "<i>" + htmlEscape(prompt) + "</i>: reply with one of [" + opts + "]."
	}
	return "<i>" + htmlEscape(prompt) + "</i>: reply with your answer."
}

// keyboard chunks actions into inline-keyboard rows, truncating at the
// Telegram limits. The second return reports truncation.
func (r *telegramRenderer) keyboard(ir *IR) (*tgbotapi.InlineKeyboardMarkup, bool) {
	if len(ir.Actions) == 0 {
		return nil, false
	}

	var buttons []tgbotapi.InlineKeyboardButton
	truncated := false
	for _, action := range ir.Actions {
		if len(buttons) == telegramMaxButtons {
			truncated = true
			break
		}
		switch action.Type {
		case ActionOpenURL:
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(action.Title, resolveOpenURL(&ir.Meta, action.URL)))
		case ActionPostback:
			data := string(action.Data)
			if data == "" {
				data = "{}"
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(action.Title, data))
		}
	}
	if len(buttons) == 0 {
		return nil, false
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for start := 0; start < len(buttons); start += telegramMaxPerRow {
		end := start + telegramMaxPerRow
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[start:end])
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup, truncated
}

func htmlEscape(text string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(text)
}
