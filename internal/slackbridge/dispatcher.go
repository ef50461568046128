// Package slackbridge handles the chat platform's signed webhooks.
//
// Two POST shapes arrive on the same endpoint: slash command invocations
// and view submissions from the ticket dialog. Both are verified against
// the app's signing secret before any parsing. The dispatcher itself never
// creates tickets — a valid dialog submission becomes a queued job and the
// request is acknowledged immediately, which is what keeps the chat
// platform's short response window satisfied.
package slackbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cosmix/deskbridge/internal/directory"
	"github.com/cosmix/deskbridge/internal/event"
	"github.com/cosmix/deskbridge/internal/queue"
	"github.com/cosmix/deskbridge/internal/secrets"
	"github.com/cosmix/deskbridge/internal/ticketing"
	"github.com/cosmix/deskbridge/pkg/apperr"
	"github.com/cosmix/deskbridge/pkg/metrics"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Publisher enqueues ticket-creation jobs.
type Publisher interface {
	Publish(ctx context.Context, job queue.Job) error
}

// Dispatcher verifies and routes inbound command payloads.
type Dispatcher struct {
	store   *secrets.Store
	tickets *ticketing.Source
	dir     *directory.Directory
	jobs    Publisher
	command string
	apiURL  string
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates the command dispatcher. command is the slash
// command name without the leading slash; apiURL is the chat platform's
// API base.
func NewDispatcher(
	store *secrets.Store,
	tickets *ticketing.Source,
	dir *directory.Directory,
	jobs Publisher,
	command, apiURL string,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:   store,
		tickets: tickets,
		dir:     dir,
		jobs:    jobs,
		command: command,
		apiURL:  apiURL,
		now:     time.Now,
		logger:  logger,
	}
}

// SetMetrics sets the metrics instance for the dispatcher
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// SetNow overrides the clock used for signature verification.
func (d *Dispatcher) SetNow(now func() time.Time) {
	d.now = now
}

// Handle verifies the request signature and dispatches to the slash
// command or view submission path.
func (d *Dispatcher) Handle(ctx context.Context, ev event.Event) event.Response {
	app, err := d.store.AppCredentials(ctx)
	if err != nil {
		d.logger.Error("unable to load app credentials", zap.Error(err))
		return event.MessageResponse(http.StatusInternalServerError, "unable to load app credentials")
	}

	if err := VerifyRequest(app.SigningSecret, ev.Headers, ev.Body, d.now()); err != nil {
		d.logger.Warn("rejected unsigned or stale command request", zap.Error(err))
		return event.MessageResponse(apperr.HTTPStatus(err), apperr.UserMessage(err))
	}

	values, err := url.ParseQuery(string(ev.Body))
	if err != nil {
		return event.MessageResponse(http.StatusBadRequest, "malformed request body")
	}

	if payload := values.Get("payload"); payload != "" {
		return d.handleViewSubmission(ctx, payload)
	}
	return d.handleSlashCommand(ctx, values)
}

func (d *Dispatcher) handleSlashCommand(ctx context.Context, values url.Values) event.Response {
	text := strings.TrimSpace(values.Get("text"))
	teamID := values.Get("team_id")
	triggerID := values.Get("trigger_id")
	responseURL := values.Get("response_url")

	d.logger.Info("received slash command",
		zap.String("team_id", teamID),
		zap.String("user_id", values.Get("user_id")),
		zap.Int("text_length", len(text)),
	)

	if text == "" || text == "help" {
		d.recordCommand("usage")
		return event.JSONResponse(http.StatusOK, map[string]string{
			"response_type": "in_channel",
			"text":          fmt.Sprintf("Usage: /%s [request subject]", d.command),
		})
	}

	// Failures past this point are reported through the async response
	// channel, never synchronously: the chat platform only needs its ack.
	client, err := d.tickets.Provider(ctx)
	if err != nil {
		d.logger.Error("unable to connect to the ticketing system", zap.Error(err))
		d.recordCommand("error")
		return event.EmptyResponse()
	}

	instance, err := d.dir.FindByWorkspace(ctx, client, teamID)
	if err != nil {
		d.logger.Error("tenant lookup failed", zap.String("team_id", teamID), zap.Error(err))
		d.recordCommand("error")
		return event.EmptyResponse()
	}
	if instance == nil {
		d.logger.Warn("slash command from unlinked workspace", zap.String("team_id", teamID))
		d.recordCommand("unknown_workspace")
		return event.EmptyResponse()
	}

	bag, err := d.store.CustomerSecrets(ctx, instance.Account)
	if err != nil || bag.SlackAuthorization == nil {
		d.logger.Error("tenant has no workspace authorization",
			zap.String("account", instance.Account),
			zap.Error(err),
		)
		d.recordCommand("error")
		return event.EmptyResponse()
	}

	api := slack.New(bag.SlackAuthorization.AccessToken, slack.OptionAPIURL(d.apiURL))
	modal := BuildTicketModal(text, responseURL)

	if _, err := api.OpenViewContext(ctx, triggerID, modal); err != nil {
		d.logger.Error("failed to open ticket dialog",
			zap.String("team_id", teamID),
			zap.Error(err),
		)
		d.recordCommand("error")
		return event.JSONResponse(http.StatusOK, map[string]string{
			"response_type": "ephemeral",
			"text":          "Failed to open the ticket form. Please try again.",
		})
	}

	d.recordCommand("dialog_opened")
	return event.EmptyResponse()
}

func (d *Dispatcher) handleViewSubmission(ctx context.Context, payload string) event.Response {
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		d.logger.Warn("malformed interaction payload", zap.Error(err))
		return event.MessageResponse(http.StatusBadRequest, "malformed interaction payload")
	}

	if callback.Type != slack.InteractionTypeViewSubmission ||
		callback.View.CallbackID != ModalCallbackIDCreateTicket {
		d.logger.Info("ignoring interaction",
			zap.String("type", string(callback.Type)),
			zap.String("callback_id", callback.View.CallbackID),
		)
		d.recordInteraction(string(callback.Type), "ignored")
		return event.EmptyResponse()
	}

	subject := strings.TrimSpace(stateValue(&callback, BlockIDSubject, ActionIDSubjectInput))
	note := strings.TrimSpace(stateValue(&callback, BlockIDNote, ActionIDNoteInput))
	responseURL := callback.View.PrivateMetadata

	if subject == "" {
		d.recordInteraction(string(callback.Type), "validation_error")
		return viewErrors(map[string]string{
			BlockIDSubject: "Subject is required",
		})
	}
	if responseURL == "" {
		d.logger.Error("view submission without response url",
			zap.String("team_id", callback.Team.ID),
			zap.String("view_id", callback.View.ID),
		)
		d.recordInteraction(string(callback.Type), "error")
		return viewErrors(map[string]string{
			BlockIDSubject: "This form has expired. Please run the command again.",
		})
	}

	job := queue.Job{
		SlackWorkspaceID: callback.Team.ID,
		SlackUserID:      callback.User.ID,
		ResponseURL:      responseURL,
		Subject:          subject,
		Note:             note,
	}

	if err := d.jobs.Publish(ctx, job); err != nil {
		d.logger.Error("failed to enqueue ticket job",
			zap.String("team_id", callback.Team.ID),
			zap.Error(err),
		)
		d.recordInteraction(string(callback.Type), "error")
		return viewErrors(map[string]string{
			BlockIDSubject: "Failed to queue your request. Please try again.",
		})
	}

	d.logger.Info("ticket job enqueued",
		zap.String("team_id", callback.Team.ID),
		zap.String("user_id", callback.User.ID),
	)
	d.recordInteraction(string(callback.Type), "enqueued")

	// Empty 200 closes the dialog; the ticket result arrives later via
	// the response URL.
	return event.EmptyResponse()
}

// stateValue extracts a text input value from the view state, tolerating
// absent blocks.
func stateValue(callback *slack.InteractionCallback, blockID, actionID string) string {
	if callback.View.State == nil {
		return ""
	}
	block, ok := callback.View.State.Values[blockID]
	if !ok {
		return ""
	}
	action, ok := block[actionID]
	if !ok {
		return ""
	}
	return action.Value
}

// viewErrors builds the response_action payload that surfaces field
// errors inside the open dialog.
func viewErrors(errs map[string]string) event.Response {
	return event.JSONResponse(http.StatusOK, map[string]any{
		"response_action": "errors",
		"errors":          errs,
	})
}

func (d *Dispatcher) recordCommand(status string) {
	if d.metrics == nil {
		return
	}
	d.metrics.SlackCommandsTotal.WithLabelValues(d.command, status).Inc()
}

func (d *Dispatcher) recordInteraction(interactionType, status string) {
	if d.metrics == nil {
		return
	}
	d.metrics.SlackInteractionsTotal.WithLabelValues(interactionType, status).Inc()
}
