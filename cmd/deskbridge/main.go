package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cosmix/deskbridge/internal/directory"
	"github.com/cosmix/deskbridge/internal/event"
	"github.com/cosmix/deskbridge/internal/handshake"
	"github.com/cosmix/deskbridge/internal/queue"
	"github.com/cosmix/deskbridge/internal/secrets"
	"github.com/cosmix/deskbridge/internal/slackbridge"
	"github.com/cosmix/deskbridge/internal/ticketing"
	"github.com/cosmix/deskbridge/internal/worker"
	"github.com/cosmix/deskbridge/pkg/config"
	"github.com/cosmix/deskbridge/pkg/constants"
	"github.com/cosmix/deskbridge/pkg/health"
	"github.com/cosmix/deskbridge/pkg/metrics"
	"github.com/cosmix/deskbridge/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Build information set via ldflags at compile time.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123 -X main.buildTime=2024-01-01T00:00:00Z"
var (
	version   = "dev"     // Application version (e.g., "1.0.0", "v1.2.3")
	commit    = "unknown" // Git commit hash (short or full)
	buildTime = "unknown" // Build timestamp in RFC3339 format
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func main() {
	// Create production logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Initialize metrics
	m := metrics.Init()
	logger.Info("metrics initialized")

	// Secrets store
	store, err := secrets.NewStore(cfg.RedisURL, cfg.SecretsNamespace, logger)
	if err != nil {
		logger.Fatal("failed to connect to secrets store", zap.Error(err))
	}
	defer store.Close()
	store.SetMetrics(m)

	// Job queue
	jobs, err := queue.New(cfg.NATSURL, cfg.QueueSubject, logger)
	if err != nil {
		logger.Fatal("failed to connect to job queue", zap.Error(err))
	}
	defer jobs.Close()
	jobs.SetMetrics(m)

	// Ticketing clients and tenant directory
	tickets := ticketing.NewSource(cfg.TicketingAPIURL, cfg.ProviderAccount, store, logger)
	tickets.SetMetrics(m)
	dir := directory.New(cfg.OfferingReference, logger)

	// Event handlers
	hs := handshake.New(store, tickets, dir,
		handshake.NewSlackExchanger(cfg.SlackAPIURL), cfg.CallbackURL, logger)
	hs.SetMetrics(m)

	dispatcher := slackbridge.NewDispatcher(store, tickets, dir, jobs,
		cfg.SlashCommand, cfg.SlackAPIURL, logger)
	dispatcher.SetMetrics(m)

	jobWorker := worker.New(store, tickets, dir, cfg.TicketingDomain, cfg.SlackAPIURL, logger)
	jobWorker.SetMetrics(m)

	router := event.NewRouter(hs, dispatcher, jobWorker, logger)
	router.SetMetrics(m)

	// Initialize health manager
	healthMgr := health.NewManager(logger)

	// Register liveness check (basic server health)
	healthMgr.RegisterLivenessCheck("server", health.AlwaysHealthyChecker())

	// Register readiness checks (dependencies)
	healthMgr.RegisterReadinessCheck("secrets_store", health.DependencyChecker("secrets_store", store.Ping))
	healthMgr.RegisterReadinessCheck("ticketing_api", health.DependencyChecker("ticketing_api", func(ctx context.Context) error {
		client, err := tickets.Provider(ctx)
		if err != nil {
			return err
		}
		return client.Ping(ctx)
	}))
	healthMgr.RegisterReadinessCheck("queue_connection", health.DependencyChecker("queue_connection", func(context.Context) error {
		if !jobs.Connected() {
			return errors.New("not connected to NATS")
		}
		return nil
	}))
	healthMgr.RegisterReadinessCheck("queue_lag", health.QueueLagChecker(jobs.Pending, 1000))

	logger.Info("health checks registered")

	// Setup HTTP handlers with middleware
	// Prometheus metrics endpoint
	http.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	http.HandleFunc("/health", healthMgr.LivenessHandler())
	http.HandleFunc("/ready", healthMgr.ReadinessHandler())

	// Version endpoint
	http.HandleFunc("/version", versionHandler())

	// Events endpoint with full middleware stack
	http.HandleFunc("/events", middleware.Chain(
		eventsHandler(router, logger),
		func(next http.HandlerFunc) http.HandlerFunc {
			return middleware.WithLogging(logger, next)
		},
		func(next http.HandlerFunc) http.HandlerFunc {
			return middleware.WithTimeout(constants.DefaultHTTPTimeout, next)
		},
		func(next http.HandlerFunc) http.HandlerFunc {
			return middleware.WithMetrics("/events", m, next)
		},
		func(next http.HandlerFunc) http.HandlerFunc {
			return middleware.WithRecovery(logger, m, next)
		},
	))

	port := cfg.Port
	if port == "" {
		port = constants.DefaultPort
	}

	// Configure server with explicit timeouts
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      nil, // uses DefaultServeMux
		ReadTimeout:  constants.ServerReadTimeout,
		WriteTimeout: constants.ServerWriteTimeout,
		IdleTimeout:  constants.ServerIdleTimeout,
	}

	// Setup graceful shutdown handling
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Consume job batches until shutdown
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	go consumeJobs(consumerCtx, jobs, router, logger, consumerDone)

	// Run server in a goroutine
	go func() {
		logger.Info("starting deskbridge server",
			zap.String("version", version),
			zap.String("commit", commit),
			zap.String("build_time", buildTime),
			zap.String("port", port),
			zap.String("events_endpoint", "/events"),
			zap.String("metrics_endpoint", "/metrics"),
			zap.String("health_endpoint", "/health"),
			zap.String("readiness_endpoint", "/ready"),
			zap.String("version_endpoint", "/version"),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	<-stop
	logger.Info("shutdown signal received, initiating graceful shutdown")

	// Stop the queue consumer and wait for the in-flight batch
	stopConsumer()
	<-consumerDone
	logger.Info("queue consumer stopped")

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("error during graceful shutdown", zap.Error(err))
	} else {
		logger.Info("server shutdown complete")
	}
}

// eventsHandler adapts an HTTP request into the invocation envelope and
// writes the handler's response back.
func eventsHandler(router *event.Router, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		query := make(map[string]string, len(r.URL.Query()))
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				query[key] = values[0]
			}
		}

		resp := router.Dispatch(r.Context(), event.Event{
			HTTPMethod: r.Method,
			Query:      query,
			Headers:    r.Header,
			Body:       body,
		})

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			if _, err := io.WriteString(w, resp.Body); err != nil {
				logger.Error("failed to write response body", zap.Error(err))
			}
		}
	}
}

// consumeJobs pulls job batches from the queue and feeds them through the
// router. Messages are acknowledged only after the batch was handled.
func consumeJobs(ctx context.Context, jobs *queue.Queue, router *event.Router, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := jobs.Fetch(constants.QueueBatchSize, constants.QueueFetchWait)
		if err != nil {
			logger.Error("failed to fetch job batch", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		router.Dispatch(ctx, event.Event{Records: queue.Records(msgs)})
		jobs.Ack(msgs)
	}
}

// versionHandler returns an HTTP handler for the /version endpoint.
// Returns build information including version, commit hash, and build time.
func versionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		info := VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildTime: buildTime,
			GoVersion: "go1.25+", // Minimum required Go version
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(info)
	}
}
