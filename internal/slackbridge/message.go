package slackbridge

import (
	"context"

	"github.com/slack-go/slack"
)

// Message is the payload posted to a command's response URL. Exactly one
// of the three constructors builds it; there is no runtime shape
// inspection.
type Message struct {
	text   string
	blocks []slack.Block
}

// PlainText builds a text-only message.
func PlainText(text string) Message {
	return Message{text: text}
}

// RawBlocks builds a blocks-only message.
func RawBlocks(blocks ...slack.Block) Message {
	return Message{blocks: blocks}
}

// TextWithBlocks builds a message with blocks plus a plain-text fallback
// for surfaces that cannot render blocks.
func TextWithBlocks(text string, blocks ...slack.Block) Message {
	return Message{text: text, blocks: blocks}
}

// webhook converts the message to the wire shape. Responses always
// replace the original command acknowledgement and are visible in the
// channel.
func (m Message) webhook() *slack.WebhookMessage {
	msg := &slack.WebhookMessage{
		ReplaceOriginal: true,
		ResponseType:    slack.ResponseTypeInChannel,
		Text:            m.text,
	}
	if len(m.blocks) > 0 {
		msg.Blocks = &slack.Blocks{BlockSet: m.blocks}
	}
	return msg
}

// PostResponse delivers the message to a command's response URL.
func PostResponse(ctx context.Context, responseURL string, m Message) error {
	return slack.PostWebhookContext(ctx, responseURL, m.webhook())
}
