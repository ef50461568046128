// Package worker consumes queued ticket jobs and creates the tickets.
//
// Each batch is processed sequentially. A record counts as handled when
// its outcome was communicated to the requester, even if no ticket was
// created — an unlinked workspace or an unknown email is a terminal
// answer, not a retryable failure.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cosmix/deskbridge/internal/directory"
	"github.com/cosmix/deskbridge/internal/event"
	"github.com/cosmix/deskbridge/internal/queue"
	"github.com/cosmix/deskbridge/internal/secrets"
	"github.com/cosmix/deskbridge/internal/slackbridge"
	"github.com/cosmix/deskbridge/internal/ticketing"
	"github.com/cosmix/deskbridge/pkg/metrics"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Worker turns queued jobs into tickets and reports the results back
// through each job's response URL.
type Worker struct {
	store           *secrets.Store
	tickets         *ticketing.Source
	dir             *directory.Directory
	ticketingDomain string
	apiURL          string
	logger          *zap.Logger
	metrics         *metrics.Metrics
}

// New creates the async request worker. ticketingDomain is the apex
// domain used to build user-facing ticket URLs; apiURL is the chat
// platform's API base.
func New(
	store *secrets.Store,
	tickets *ticketing.Source,
	dir *directory.Directory,
	ticketingDomain, apiURL string,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		store:           store,
		tickets:         tickets,
		dir:             dir,
		ticketingDomain: ticketingDomain,
		apiURL:          apiURL,
		logger:          logger,
	}
}

// SetMetrics sets the metrics instance for the worker
func (w *Worker) SetMetrics(m *metrics.Metrics) {
	w.metrics = m
}

// Handle processes every record in the batch and reports how many were
// handled to completion.
func (w *Worker) Handle(ctx context.Context, ev event.Event) event.Response {
	cache := secrets.NewCache(w.store)

	handled := 0
	for _, record := range ev.Records {
		if w.processRecord(ctx, cache, record) {
			handled++
		}
	}

	w.logger.Info("processed job batch",
		zap.Int("record_count", len(ev.Records)),
		zap.Int("success_count", handled),
	)
	if w.metrics != nil {
		w.metrics.JobBatchSize.Observe(float64(len(ev.Records)))
	}

	return event.JSONResponse(http.StatusOK, map[string]int{
		"recordCount":  len(ev.Records),
		"successCount": handled,
	})
}

// processRecord handles one job. It returns true when the record is
// done — including terminal user-facing rejections — and false when no
// ticket was created. Every failure past parsing still posts a
// best-effort message to the response URL so the requester is never
// left waiting.
func (w *Worker) processRecord(ctx context.Context, cache *secrets.Cache, record event.QueueRecord) bool {
	var job queue.Job
	if err := json.Unmarshal([]byte(record.Body), &job); err != nil {
		w.logger.Error("malformed job payload",
			zap.String("message_id", record.MessageID),
			zap.Error(err),
		)
		w.recordJob("malformed")
		return false
	}

	log := w.logger.With(
		zap.String("message_id", record.MessageID),
		zap.String("workspace_id", job.SlackWorkspaceID),
		zap.String("user_id", job.SlackUserID),
	)

	provider, err := w.tickets.Provider(ctx)
	if err != nil {
		log.Error("unable to connect to the ticketing system", zap.Error(err))
		w.respond(ctx, log, job.ResponseURL, genericError())
		w.recordJob("provider_error")
		return false
	}

	instance, err := w.dir.FindByWorkspace(ctx, provider, job.SlackWorkspaceID)
	if err != nil {
		log.Error("tenant lookup failed", zap.Error(err))
		w.respond(ctx, log, job.ResponseURL, genericError())
		w.recordJob("lookup_error")
		return false
	}
	if instance == nil {
		// The workspace was unlinked between submission and processing.
		// Telling the user is the best terminal outcome available.
		w.respond(ctx, log, job.ResponseURL,
			slackbridge.PlainText("This workspace is not linked to a ticketing account. Please reinstall the app."))
		w.recordJob("unknown_workspace")
		return true
	}

	bag, err := cache.CustomerSecrets(ctx, instance.Account)
	if err != nil || bag.SlackAuthorization == nil {
		log.Error("tenant has no workspace authorization",
			zap.String("account", instance.Account),
			zap.Error(err),
		)
		w.respond(ctx, log, job.ResponseURL, genericError())
		w.recordJob("missing_authorization")
		return false
	}

	api := slack.New(bag.SlackAuthorization.AccessToken, slack.OptionAPIURL(w.apiURL))
	user, err := api.GetUserInfoContext(ctx, job.SlackUserID)
	if err != nil || user.Profile.Email == "" {
		log.Error("unable to resolve requester email", zap.Error(err))
		w.respond(ctx, log, job.ResponseURL, genericError())
		w.recordJob("missing_email")
		return false
	}
	email := user.Profile.Email

	tenant, err := w.tickets.Tenant(ctx, instance.Account)
	if err != nil {
		log.Error("unable to build tenant client",
			zap.String("account", instance.Account),
			zap.Error(err),
		)
		w.respond(ctx, log, job.ResponseURL,
			slackbridge.PlainText("This workspace is not linked to a ticketing account. Please reinstall the app."))
		w.recordJob("tenant_error")
		return false
	}

	person, err := tenant.PersonByEmail(ctx, email)
	if err != nil {
		log.Error("person lookup failed", zap.Error(err))
		w.respond(ctx, log, job.ResponseURL, genericError())
		w.recordJob("lookup_error")
		return false
	}
	if person == nil {
		w.respond(ctx, log, job.ResponseURL,
			slackbridge.PlainText(fmt.Sprintf("No active person with email %s was found in the ticketing account.", email)))
		w.recordJob("unknown_email")
		return true
	}

	ticket, err := tenant.CreateTicket(ctx, job.Subject, job.Note, person.ID)
	if err != nil {
		log.Error("ticket creation failed", zap.Error(err))
		w.respond(ctx, log, job.ResponseURL, genericError())
		w.recordJob("create_error")
		return false
	}

	account, err := tenant.TicketAccount(ctx, ticket.ID)
	if err != nil {
		log.Error("ticket account lookup failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
		// The ticket exists; fall back to the tenant account so the
		// user still gets a link.
		account = instance.Account
	}

	url := w.ticketURL(account, ticket.RequestID)
	w.respond(ctx, log, job.ResponseURL, slackbridge.TextWithBlocks(
		fmt.Sprintf("Your ticket #%d has been created: %s", ticket.RequestID, url),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("Your ticket <%s|#%d> has been created.", url, ticket.RequestID), false, false),
			nil, nil,
		),
	))

	log.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.Int64("request_id", ticket.RequestID),
		zap.String("account", account),
	)
	w.recordJob("created")
	return true
}

func genericError() slackbridge.Message {
	return slackbridge.PlainText("Something went wrong while creating your ticket. Please try again.")
}

func (w *Worker) ticketURL(account string, requestID int64) string {
	return fmt.Sprintf("https://%s.%s/requests/%d",
		strings.ToLower(account), w.ticketingDomain, requestID)
}

func (w *Worker) respond(ctx context.Context, log *zap.Logger, responseURL string, m slackbridge.Message) {
	if err := slackbridge.PostResponse(ctx, responseURL, m); err != nil {
		log.Error("failed to post response message", zap.Error(err))
	}
}

func (w *Worker) recordJob(outcome string) {
	if w.metrics == nil {
		return
	}
	w.metrics.JobsTotal.WithLabelValues(outcome).Inc()
}
