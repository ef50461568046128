package ticketing

import "time"

// AppInstance is one tenant's installation record in the ticketing system.
// It is fetched fresh per call and treated as an immutable snapshot; the
// only write this service performs is the workspace write-back after a
// successful installation handshake.
type AppInstance struct {
	ID                 string    `json:"id"`
	OfferingReference  string    `json:"offering_reference"`
	Account            string    `json:"account_id"`
	EnabledByCustomer  bool      `json:"enabled_by_customer"`
	Suspended          bool      `json:"suspended"`
	CreatedAt          time.Time `json:"created_at"`
	SlackWorkspaceID   string    `json:"slack_workspace_id,omitempty"`
	SlackWorkspaceName string    `json:"slack_workspace_name,omitempty"`
}

// AppInstanceFilter narrows an app instance listing. Zero values are not
// sent as query parameters.
type AppInstanceFilter struct {
	OfferingReference string
	SlackWorkspaceID  string
	EnabledByCustomer bool
	ExcludeSuspended  bool
}

// Person is a ticketing-system user, matched by primary email when
// resolving a chat requester.
type Person struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PrimaryEmail string `json:"primary_email"`
	Disabled     bool   `json:"disabled"`
}

// NewTicket is the payload for creating a request.
type NewTicket struct {
	Subject     string `json:"subject"`
	Note        string `json:"note,omitempty"`
	Category    string `json:"category"`
	Source      string `json:"source"`
	RequestedBy string `json:"requested_by"`
}

// Ticket is a created request. ID is the internal identifier used in API
// calls; RequestID is the human-facing number shown in ticket URLs.
type Ticket struct {
	ID        string `json:"id"`
	RequestID int64  `json:"request_id"`
	Account   string `json:"account_id,omitempty"`
}
