// Package constants defines all constant values used throughout the application.
//
// This package centralizes:
// - OAuth scopes and endpoint defaults for the chat platform
// - Handshake and signature security limits
// - Ticketing API defaults (category, source tag)
// - Timeouts for HTTP servers and clients
// - Queue consumer tuning values
//
// Centralizing constants here ensures consistency across the application
// and makes it easy to adjust operational values without touching core logic.
package constants

import "time"

// OAuth configuration for the chat platform.
const (
	// SlackAuthorizeURL is the OAuth v2 authorization endpoint users are
	// redirected to when a handshake is initiated.
	SlackAuthorizeURL = "https://slack.com/oauth/v2/authorize"

	// SlackOAuthScopes are the bot scopes requested during installation.
	// The bridge needs slash commands, modal interaction, user email lookup
	// and the ability to post ticket-creation results.
	SlackOAuthScopes = "commands,chat:write,users:read,users:read.email"

	// SlackAPIURL is the default base URL for chat platform REST calls.
	// Overridable via configuration so tests can point at a local server.
	SlackAPIURL = "https://slack.com/api/"
)

// Handshake security values.
const (
	// AuthorizeSecretBytes is the number of random bytes in a tenant's
	// single-use authorize secret. The stored value is hex-encoded, so the
	// secret string is twice this length.
	AuthorizeSecretBytes = 32

	// StateSeparator joins the node id, authorize secret and confirmation
	// URL into the opaque state token carried through the OAuth redirect.
	// Each component is percent-encoded before joining so a separator
	// inside a caller-supplied URL cannot corrupt the token.
	StateSeparator = "^"
)

// Time-based security limits.
const (
	// MaxSlackRequestAge is the maximum age of a Slack request signature.
	// Requests older than this are rejected to prevent replay attacks.
	// Slack recommends 5 minutes as a reasonable window.
	MaxSlackRequestAge = 300 // seconds (5 minutes)
)

// Ticketing API values.
const (
	// TicketCategory is the catch-all category assigned to every ticket
	// created through the bridge. Triage happens inside the ticketing
	// system, not here.
	TicketCategory = "other"

	// TicketSource tags tickets with the integration that created them.
	TicketSource = "slack"
)

// Timeouts for various operations.
const (
	// DefaultHTTPTimeout is the default timeout for outbound HTTP clients
	// (ticketing API, chat platform API, response webhooks).
	DefaultHTTPTimeout = 30 * time.Second

	// ServerReadTimeout is the maximum duration for reading the entire request.
	// Prevents slow client attacks.
	ServerReadTimeout = 10 * time.Second

	// ServerWriteTimeout is the maximum duration before timing out writes.
	// Allows time for upstream API calls and response generation.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	ServerIdleTimeout = 120 * time.Second

	// GracefulShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Allows in-flight requests and the current queue batch to complete.
	GracefulShutdownTimeout = 30 * time.Second
)

// Queue consumer tuning.
const (
	// QueueBatchSize is the maximum number of jobs fetched per consumer
	// iteration. Items in a batch are processed sequentially, so this also
	// bounds write amplification against the upstream APIs.
	QueueBatchSize = 10

	// QueueFetchWait is how long a fetch blocks waiting for messages
	// before returning an empty batch.
	QueueFetchWait = 5 * time.Second
)

// Default configuration values.
const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultQueueSubject is the NATS subject jobs are published on.
	DefaultQueueSubject = "deskbridge.jobs"

	// DefaultRedisURL is the secrets store address used when none is configured.
	DefaultRedisURL = "redis://localhost:6379"
)
