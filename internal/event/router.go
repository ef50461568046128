package event

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cosmix/deskbridge/pkg/apperr"
	"github.com/cosmix/deskbridge/pkg/metrics"
	"go.uber.org/zap"
)

// Handler processes one classified event.
type Handler interface {
	Handle(ctx context.Context, ev Event) Response
}

// HandlerFunc is a function adapter for the Handler interface.
type HandlerFunc func(ctx context.Context, ev Event) Response

func (f HandlerFunc) Handle(ctx context.Context, ev Event) Response {
	return f(ctx, ev)
}

// Router classifies events and delegates to the matching handler.
//
// Classification order: a non-empty record batch wins over everything,
// then HTTP GET (installation handshake), then HTTP POST (signed command
// payloads). Anything else is an unsupported event.
type Router struct {
	configuration Handler
	commands      Handler
	worker        Handler
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewRouter wires the three event handlers.
func NewRouter(configuration, commands, worker Handler, logger *zap.Logger) *Router {
	return &Router{
		configuration: configuration,
		commands:      commands,
		worker:        worker,
		logger:        logger,
	}
}

// SetMetrics sets the metrics instance for the router
func (r *Router) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Dispatch routes one event and returns the handler's response.
func (r *Router) Dispatch(ctx context.Context, ev Event) Response {
	eventType := classify(ev)

	var resp Response
	switch eventType {
	case "records":
		resp = r.worker.Handle(ctx, ev)
	case "configuration":
		resp = r.configuration.Handle(ctx, ev)
	case "command":
		resp = r.commands.Handle(ctx, ev)
	default:
		r.logger.Warn("unsupported event shape",
			zap.String("http_method", ev.HTTPMethod),
			zap.Int("record_count", len(ev.Records)),
		)
		err := apperr.Unsupported("unsupported event")
		resp = MessageResponse(apperr.HTTPStatus(err), apperr.UserMessage(err))
	}

	r.logger.Info("event dispatched",
		zap.String("type", eventType),
		zap.Int("status", resp.StatusCode),
	)
	r.recordEvent(eventType, resp.StatusCode)

	return resp
}

func classify(ev Event) string {
	switch {
	case len(ev.Records) > 0:
		return "records"
	case ev.HTTPMethod == http.MethodGet:
		return "configuration"
	case ev.HTTPMethod == http.MethodPost:
		return "command"
	default:
		return "unsupported"
	}
}

func (r *Router) recordEvent(eventType string, status int) {
	if r.metrics == nil {
		return
	}
	r.metrics.EventsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
}
