package cards

import (
	"strconv"

	goslack "github.com/slack-go/slack"

	"github.com/greentic/messaging/pkg/message"
)

// slackMaxBlocks is the Block Kit per-message block limit.
const slackMaxBlocks = 50

// WarnSlackBlocksTruncated is emitted when a card exceeds the Block Kit
// block limit and is cut off.
const WarnSlackBlocksTruncated = "slack.blocks_truncated"

// WarnSlackURLBlocked is emitted when an action URL with a disallowed
// scheme is dropped.
const WarnSlackURLBlocked = "slack.url_blocked"

// slackRenderer emits Block Kit blocks, switching to a modal view when the
// card carries input elements.
type slackRenderer struct{}

// NewSlackRenderer creates the Slack renderer.
func NewSlackRenderer() Renderer { return &slackRenderer{} }

func (r *slackRenderer) Platform() message.Platform { return message.PlatformSlack }

func (r *slackRenderer) TargetTier() Tier { return TierAdvanced }

func (r *slackRenderer) Render(ir *IR) RenderOutput {
	out := RenderOutput{}
	var blocks []goslack.Block

	if ir.Head.Title != "" {
		blocks = append(blocks, goslack.NewHeaderBlock(
			goslack.NewTextBlockObject(goslack.PlainTextType, ir.Head.Title, false, false),
		))
	}
	if ir.Head.Text != "" {
		blocks = append(blocks, markdownSection(ir.Head.Text))
	}

	hasInputs := false
	for _, el := range ir.Elements {
		switch el.Type {
		case ElementText:
			if el.Text == ir.Head.Text {
				continue
			}
			blocks = append(blocks, markdownSection(el.Text))
		case ElementImage:
			alt := el.Alt
			if alt == "" {
				alt = "image"
			}
			blocks = append(blocks, goslack.NewImageBlock(el.URL, alt, "", nil))
		case ElementFactSet:
			fields := make([]*goslack.TextBlockObject, 0, len(el.Facts))
			for _, f := range el.Facts {
				fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, "*"+f.Label+":* "+f.Value, false, false))
			}
			if len(fields) > 0 {
				blocks = append(blocks, goslack.NewSectionBlock(nil, fields, nil))
			}
		case ElementInput:
			hasInputs = true
			blocks = append(blocks, r.inputBlock(el))
		}
	}

	if ir.Head.Footer != "" {
		blocks = append(blocks, goslack.NewContextBlock("",
			goslack.NewTextBlockObject(goslack.MarkdownType, ir.Head.Footer, false, false),
		))
	}

	if actionBlock := r.actions(ir, &out); actionBlock != nil {
		blocks = append(blocks, actionBlock)
	}

	if len(blocks) > slackMaxBlocks {
		blocks = blocks[:slackMaxBlocks]
		out.LimitExceeded = true
		out.Warnings = append(out.Warnings, WarnSlackBlocksTruncated)
	}

	// Input blocks only live inside modal views; a card carrying inputs
	// cannot fit a single message.
	if hasInputs {
		out.UsedModal = true
		title := ir.Head.Title
		if title == "" {
			title = "Input"
		}
		modal := goslack.ModalViewRequest{
			Type:   goslack.VTModal,
			Title:  goslack.NewTextBlockObject(goslack.PlainTextType, title, false, false),
			Submit: goslack.NewTextBlockObject(goslack.PlainTextType, "Submit", false, false),
			Close:  goslack.NewTextBlockObject(goslack.PlainTextType, "Cancel", false, false),
			Blocks: goslack.Blocks{BlockSet: blocks},
		}
		out.Payload = mustJSON(modal)
		return out
	}

	out.Payload = mustJSON(map[string]any{"blocks": blocks})
	return out
}

func (r *slackRenderer) inputBlock(el Element) goslack.Block {
	label := el.Label
	if label == "" {
		label = "Input"
	}
	labelObj := goslack.NewTextBlockObject(goslack.PlainTextType, label, false, false)

	if el.Kind == InputChoice {
		options := make([]*goslack.OptionBlockObject, 0, len(el.Choices))
		for _, c := range el.Choices {
			options = append(options,
				goslack.NewOptionBlockObject(c.Value, goslack.NewTextBlockObject(goslack.PlainTextType, c.Title, false, false), nil))
		}
		sel := goslack.NewOptionsSelectBlockElement(goslack.OptTypeStatic, nil, el.ID, options...)
		return goslack.NewInputBlock(el.ID, labelObj, nil, sel)
	}

	input := goslack.NewPlainTextInputBlockElement(nil, el.ID)
	return goslack.NewInputBlock(el.ID, labelObj, nil, input)
}

// actions builds the action block. URLs are re-signed through the app link
// when present; disallowed schemes are counted and dropped.
func (r *slackRenderer) actions(ir *IR, out *RenderOutput) goslack.Block {
	var elements []goslack.BlockElement
	for i, action := range ir.Actions {
		text := goslack.NewTextBlockObject(goslack.PlainTextType, action.Title, false, false)
		switch action.Type {
		case ActionOpenURL:
			clean, ok := sanitizeURL(action.URL)
			if !ok {
				out.URLBlockedCount++
				out.Warnings = append(out.Warnings, WarnSlackURLBlocked)
				continue
			}
			if ir.Meta.AppLink != "" {
				clean = resolveOpenURL(&ir.Meta, clean)
				out.SanitizedCount++
			}
			btn := goslack.NewButtonBlockElement(blockActionID("open", i), action.URL, text)
			btn.URL = clean
			elements = append(elements, btn)
		case ActionPostback:
			data := string(action.Data)
			if data == "" {
				data = "{}"
			}
			elements = append(elements, goslack.NewButtonBlockElement(blockActionID("postback", i), data, text))
		}
	}
	if len(elements) == 0 {
		return nil
	}
	return goslack.NewActionBlock("card_actions", elements...)
}

func blockActionID(kind string, index int) string {
	return "card_" + kind + "_" + strconv.Itoa(index)
}

func markdownSection(text string) goslack.Block {
	return goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
		nil, nil,
	)
}
