package slackbridge

import (
	"github.com/slack-go/slack"
)

// BuildTicketModal constructs the ticket-creation dialog. The slash
// command's text prefills the subject, and the command's response URL is
// smuggled through private metadata so the view submission can report the
// eventual result to the right channel.
func BuildTicketModal(subject, responseURL string) slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      ModalCallbackIDCreateTicket,
		PrivateMetadata: responseURL,
		Title:           newPlainText(ModalTitle),
		Submit:          newPlainText(ModalSubmitText),
		Close:           newPlainText(ModalCancelText),
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{
				buildSubjectBlock(subject),
				buildNoteBlock(),
			},
		},
	}
}

// buildSubjectBlock creates the required subject input, prefilled with the
// slash command text.
func buildSubjectBlock(initial string) *slack.InputBlock {
	element := slack.NewPlainTextInputBlockElement(
		newPlainText(PlaceholderSubject),
		ActionIDSubjectInput,
	)
	element.InitialValue = initial

	return slack.NewInputBlock(
		BlockIDSubject,
		newPlainText(LabelSubject),
		nil,
		element,
	)
}

// buildNoteBlock creates the optional multiline note input.
func buildNoteBlock() *slack.InputBlock {
	element := slack.NewPlainTextInputBlockElement(
		newPlainText(PlaceholderNote),
		ActionIDNoteInput,
	)
	element.Multiline = true

	block := slack.NewInputBlock(
		BlockIDNote,
		newPlainText(LabelNote),
		nil,
		element,
	)
	block.Optional = true

	return block
}

// newPlainText creates a Slack TextBlockObject of type "plain_text".
func newPlainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}
