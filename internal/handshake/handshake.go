// Package handshake implements the OAuth installation flow that links a
// chat workspace to a ticketing-system tenant.
//
// The flow has two legs, both arriving as HTTP GET and distinguished by
// their query parameters:
//
//	Initiate: the provisioning caller presents the app instance's node id,
//	account and creation timestamp. After the tenant-matching checks pass,
//	a single-use authorize secret is issued and the caller is redirected to
//	the chat platform's authorize endpoint with an opaque state token.
//
//	Callback: the chat platform redirects back with an authorization code
//	and the state token. The presented secret is validated and immediately
//	rotated, the code is exchanged for a workspace authorization, the
//	authorization is persisted, and the workspace identity is written back
//	onto the app instance before redirecting to the caller-supplied
//	confirmation URL.
package handshake

import (
	"context"
	"crypto/hmac"
	"errors"
	"net/url"
	"time"

	"github.com/cosmix/deskbridge/internal/directory"
	"github.com/cosmix/deskbridge/internal/event"
	"github.com/cosmix/deskbridge/internal/secrets"
	"github.com/cosmix/deskbridge/internal/ticketing"
	"github.com/cosmix/deskbridge/pkg/apperr"
	"github.com/cosmix/deskbridge/pkg/constants"
	"github.com/cosmix/deskbridge/pkg/metrics"
	"go.uber.org/zap"
)

// Handshake drives the installation flow.
type Handshake struct {
	store        *secrets.Store
	tickets      *ticketing.Source
	dir          *directory.Directory
	exchanger    TokenExchanger
	authorizeURL string
	callbackURL  string
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// New creates the handshake handler. callbackURL is this deployment's own
// events endpoint, used as the OAuth redirect URI.
func New(
	store *secrets.Store,
	tickets *ticketing.Source,
	dir *directory.Directory,
	exchanger TokenExchanger,
	callbackURL string,
	logger *zap.Logger,
) *Handshake {
	return &Handshake{
		store:        store,
		tickets:      tickets,
		dir:          dir,
		exchanger:    exchanger,
		authorizeURL: constants.SlackAuthorizeURL,
		callbackURL:  callbackURL,
		logger:       logger,
	}
}

// SetMetrics sets the metrics instance for the handshake handler
func (h *Handshake) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// SetAuthorizeURL overrides the chat platform's authorize endpoint.
func (h *Handshake) SetAuthorizeURL(u string) {
	h.authorizeURL = u
}

// Handle dispatches a configuration GET to the matching sub-operation.
func (h *Handshake) Handle(ctx context.Context, ev event.Event) event.Response {
	q := ev.Query
	switch {
	case q["nodeID"] != "":
		resp := h.initiate(ctx, q)
		h.recordHandshake("initiate", resp.StatusCode)
		return resp
	case q["code"] != "" && q["state"] != "":
		resp := h.callback(ctx, q)
		h.recordHandshake("callback", resp.StatusCode)
		return resp
	default:
		return h.errorResponse(apperr.Validation("missing handshake parameters"))
	}
}

func (h *Handshake) initiate(ctx context.Context, q map[string]string) event.Response {
	nodeID := q["nodeID"]
	accountID := q["account_id"]
	createdAtRaw := q["created_at"]
	confirmationURL := q["confirmation_url"]

	if accountID == "" || createdAtRaw == "" || confirmationURL == "" {
		return h.errorResponse(apperr.Validation("missing handshake parameters"))
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtRaw)
	if err != nil {
		return h.errorResponse(apperr.Validation("invalid created_at timestamp"))
	}

	client, err := h.tickets.Provider(ctx)
	if err != nil {
		h.logger.Error("unable to connect to the ticketing system", zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to connect to the ticketing system", err).MarkLogged())
	}

	instance, err := client.AppInstance(ctx, nodeID)
	if err != nil {
		h.logger.Error("app instance lookup failed", zap.String("node_id", nodeID), zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to resolve app instance", err).MarkLogged())
	}
	if instance == nil {
		h.logger.Warn("handshake initiated for unknown app instance", zap.String("node_id", nodeID))
		return h.errorResponse(apperr.Authorization("unknown app instance").MarkLogged())
	}

	if err := h.dir.MatchInstallation(instance, accountID, createdAt); err != nil {
		h.logger.Warn("app instance does not match handshake parameters",
			zap.String("node_id", nodeID),
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		if errors.Is(err, directory.ErrAlreadyEnabled) {
			return h.errorResponse(apperr.Authorization(directory.ErrAlreadyEnabled.Error()).MarkLogged())
		}
		return h.errorResponse(apperr.Authorization("app instance details do not match").MarkLogged())
	}

	secret, err := h.store.ResetAuthorizeSecret(ctx, instance.Account)
	if err != nil {
		h.logger.Error("unable to issue authorize secret", zap.String("account", instance.Account), zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to issue authorize secret", err).MarkLogged())
	}

	app, err := h.store.AppCredentials(ctx)
	if err != nil {
		h.logger.Error("unable to load app credentials", zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to load app credentials", err).MarkLogged())
	}

	state := BuildStateToken(nodeID, secret, confirmationURL)

	authorize := url.Values{}
	authorize.Set("client_id", app.ClientID)
	authorize.Set("scope", constants.SlackOAuthScopes)
	authorize.Set("redirect_uri", h.callbackURL)
	authorize.Set("state", state)

	h.logger.Info("handshake initiated",
		zap.String("node_id", nodeID),
		zap.String("account", instance.Account),
	)

	return event.RedirectResponse(h.authorizeURL + "?" + authorize.Encode())
}

func (h *Handshake) callback(ctx context.Context, q map[string]string) event.Response {
	code := q["code"]

	nodeID, presented, confirmationURL, err := ParseStateToken(q["state"])
	if err != nil {
		h.logger.Warn("malformed state token on callback", zap.Error(err))
		return h.errorResponse(apperr.Validation("invalid state token").MarkLogged())
	}

	client, err := h.tickets.Provider(ctx)
	if err != nil {
		h.logger.Error("unable to connect to the ticketing system", zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to connect to the ticketing system", err).MarkLogged())
	}

	instance, err := client.AppInstance(ctx, nodeID)
	if err != nil {
		h.logger.Error("app instance lookup failed", zap.String("node_id", nodeID), zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to resolve app instance", err).MarkLogged())
	}
	if instance == nil {
		h.logger.Warn("callback for unknown app instance", zap.String("node_id", nodeID))
		return h.errorResponse(apperr.Authorization("unknown app instance").MarkLogged())
	}

	bag, err := h.store.CustomerSecrets(ctx, instance.Account)
	if err != nil {
		h.logger.Error("unable to load customer secrets", zap.String("account", instance.Account), zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to load customer secrets", err).MarkLogged())
	}
	if bag.SlackAuthorizeSecret == "" ||
		!hmac.Equal([]byte(bag.SlackAuthorizeSecret), []byte(presented)) {
		h.logger.Warn("authorize secret mismatch on callback",
			zap.String("node_id", nodeID),
			zap.String("account", instance.Account),
		)
		return h.errorResponse(apperr.Authorization("invalid authorize secret").MarkLogged())
	}

	// Rotate immediately so this callback URL cannot be replayed, even
	// though the new secret is never checked in this flow.
	if _, err := h.store.ResetAuthorizeSecret(ctx, instance.Account); err != nil {
		h.logger.Error("unable to rotate authorize secret", zap.String("account", instance.Account), zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to rotate authorize secret", err).MarkLogged())
	}

	app, err := h.store.AppCredentials(ctx)
	if err != nil {
		h.logger.Error("unable to load app credentials", zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to load app credentials", err).MarkLogged())
	}

	auth, err := h.exchanger.Exchange(ctx, app.ClientID, app.ClientSecret, code, h.callbackURL)
	if err != nil {
		h.logger.Error("authorization code exchange failed", zap.String("account", instance.Account), zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to exchange authorization code", err).MarkLogged())
	}

	if err := h.store.SaveAuthorization(ctx, instance.Account, auth); err != nil {
		h.logger.Error("unable to persist authorization", zap.String("account", instance.Account), zap.Error(err))
		return h.errorResponse(apperr.Upstream("unable to persist authorization", err).MarkLogged())
	}

	if err := client.ConfigureAppInstance(ctx, nodeID, auth.Team.ID, auth.Team.Name); err != nil {
		h.logger.Error("unable to configure app instance",
			zap.String("node_id", nodeID),
			zap.String("workspace_id", auth.Team.ID),
			zap.Error(err),
		)
		return h.errorResponse(apperr.Upstream("unable to configure app instance", err).MarkLogged())
	}

	h.logger.Info("handshake completed",
		zap.String("node_id", nodeID),
		zap.String("account", instance.Account),
		zap.String("workspace_id", auth.Team.ID),
		zap.String("workspace_name", auth.Team.Name),
	)

	return event.RedirectResponse(confirmationURL)
}

func (h *Handshake) recordHandshake(operation string, status int) {
	if h.metrics == nil {
		return
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	h.metrics.HandshakesTotal.WithLabelValues(operation, outcome).Inc()
}

// errorResponse converts a rejection into its HTTP response. Errors the
// call site already logged with context are not logged again.
func (h *Handshake) errorResponse(err *apperr.Error) event.Response {
	if !apperr.IsLogged(err) {
		h.logger.Warn("handshake rejected", zap.Error(err))
	}
	return event.MessageResponse(apperr.HTTPStatus(err), apperr.UserMessage(err))
}
