package slackbridge

// Modal callback IDs
const (
	ModalCallbackIDCreateTicket = "create_ticket_modal"
)

// Block IDs for modal form fields
const (
	BlockIDSubject = "subject_block"
	BlockIDNote    = "note_block"
)

// Action IDs for modal form fields
const (
	ActionIDSubjectInput = "subject_input"
	ActionIDNoteInput    = "note_input"
)

// Modal UI text
const (
	ModalTitle      = "Create Ticket" // Must be < 25 chars (Slack limit)
	ModalSubmitText = "Submit"
	ModalCancelText = "Cancel"
)

// Field labels
const (
	LabelSubject = "Subject"
	LabelNote    = "Note"
)

// Field placeholders
const (
	PlaceholderSubject = "Short summary of your request"
	PlaceholderNote    = "Add any additional context or details..."
)

// Slack request headers
const (
	HeaderSlackRequestTimestamp = "X-Slack-Request-Timestamp"
	HeaderSlackSignature        = "X-Slack-Signature"
)

// Slack signature components
const (
	SignatureVersion = "v0"
	SignaturePrefix  = "v0="
)
