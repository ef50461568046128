// Package queue carries pending ticket-creation jobs between the command
// dispatcher and the async worker over NATS JetStream.
//
// Delivery is at-least-once: a batch is acknowledged only after the worker
// has handled it, so a crash mid-batch redelivers the whole batch. The
// bridge never retries on its own; redelivery policy belongs entirely to
// the stream configuration.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cosmix/deskbridge/internal/event"
	"github.com/cosmix/deskbridge/pkg/metrics"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Job is one pending ticket-creation request. The JSON field names are
// the queue's wire contract with the dispatcher.
type Job struct {
	SlackWorkspaceID string `json:"slackWorkspaceId"`
	SlackUserID      string `json:"slackUserId"`
	ResponseURL      string `json:"responseUrl"`
	Subject          string `json:"subject"`
	Note             string `json:"note,omitempty"`
}

// Queue is a JetStream-backed job queue.
type Queue struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	sub     *nats.Subscription
	subject string
	stream  string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New dials NATS, ensures the job stream exists and attaches a durable
// pull consumer.
func New(url, subject string, logger *zap.Logger) (*Queue, error) {
	opts := []nats.Option{
		nats.Name("deskbridge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("disconnected from NATS", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("init JetStream: %w", err)
	}

	stream := streamName(subject)
	if _, err := js.StreamInfo(stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, fmt.Errorf("stream info: %w", err)
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:     stream,
			Subjects: []string{subject},
			MaxAge:   7 * 24 * time.Hour,
		}); err != nil {
			nc.Close()
			return nil, fmt.Errorf("create stream: %w", err)
		}
	}

	sub, err := js.PullSubscribe(subject, stream+"_worker")
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("attach consumer: %w", err)
	}

	return &Queue{
		nc:      nc,
		js:      js,
		sub:     sub,
		subject: subject,
		stream:  stream,
		logger:  logger,
	}, nil
}

// SetMetrics sets the metrics instance for queue operations
func (q *Queue) SetMetrics(m *metrics.Metrics) {
	q.metrics = m
}

// Close drains the subscription and shuts down the connection.
func (q *Queue) Close() {
	if q.sub != nil {
		_ = q.sub.Unsubscribe()
	}
	if q.nc != nil {
		q.nc.Close()
	}
}

// Connected reports whether the NATS connection is up, used by the
// readiness check.
func (q *Queue) Connected() bool {
	return q.nc != nil && q.nc.Status() == nats.CONNECTED
}

// Pending returns the consumer's pending-message count for the queue lag
// health check.
func (q *Queue) Pending() int {
	if q.sub == nil {
		return 0
	}
	pending, _, err := q.sub.Pending()
	if err != nil {
		return 0
	}
	return pending
}

// Publish enqueues one job.
func (q *Queue) Publish(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		q.recordPublish(err)
		return fmt.Errorf("encode job: %w", err)
	}
	if _, err := q.js.Publish(q.subject, data, nats.MsgId(uuid.NewString()), nats.Context(ctx)); err != nil {
		q.recordPublish(err)
		return fmt.Errorf("publish job: %w", err)
	}
	q.recordPublish(nil)
	return nil
}

// Fetch pulls up to max messages, blocking up to wait. An empty batch is
// returned without error when nothing is pending.
func (q *Queue) Fetch(max int, wait time.Duration) ([]*nats.Msg, error) {
	msgs, err := q.sub.Fetch(max, nats.MaxWait(wait))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	return msgs, nil
}

// Records converts fetched messages into the router's queue records.
func Records(msgs []*nats.Msg) []event.QueueRecord {
	records := make([]event.QueueRecord, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, event.QueueRecord{
			MessageID: msg.Header.Get(nats.MsgIdHdr),
			Body:      string(msg.Data),
		})
	}
	return records
}

// Ack acknowledges every message in the batch. Called after the worker
// has produced its batch result; per-item failures are reported to users
// in-band and are not grounds for redelivery.
func (q *Queue) Ack(msgs []*nats.Msg) {
	for _, msg := range msgs {
		if err := msg.Ack(); err != nil {
			q.logger.Warn("failed to ack job message", zap.Error(err))
		}
	}
}

func (q *Queue) recordPublish(err error) {
	if q.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	q.metrics.QueuePublishes.WithLabelValues(status).Inc()
}

// streamName derives a stream name from the subject, uppercased with
// token separators flattened.
func streamName(subject string) string {
	name := strings.NewReplacer(".", "_", "*", "any", ">", "all").Replace(subject)
	return strings.ToUpper(name)
}
