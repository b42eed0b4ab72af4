package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commitloop/engine/internal/aggregator"
	"github.com/commitloop/engine/internal/backfill"
	"github.com/commitloop/engine/internal/commitment"
	"github.com/commitloop/engine/internal/config"
	"github.com/commitloop/engine/internal/connection"
	"github.com/commitloop/engine/internal/credit"
	"github.com/commitloop/engine/internal/extraction"
	"github.com/commitloop/engine/internal/live"
	"github.com/commitloop/engine/internal/llm"
	"github.com/commitloop/engine/internal/shadow"
	"github.com/commitloop/engine/internal/taskqueue"
	"github.com/commitloop/engine/internal/trigger"
	"github.com/commitloop/engine/pkg/cache"
	"github.com/commitloop/engine/pkg/database"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2/clientcredentials"
)

// deps bundles every constructed component a worker subcommand needs,
// built once from config and shared across subcommands.
type deps struct {
	cfg         *config.Config
	logger      *slog.Logger
	db          *database.Pool
	redis       *cache.Client
	commitments *commitment.Service
	connections *connection.Service
	credits     *credit.Meter
	extractor   *extraction.Extractor
	aggregator  aggregator.Client
	triggers    *trigger.Service
	queue       *taskqueue.Queue
}

func buildDeps(ctx context.Context, logger *slog.Logger) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.NewPool(ctx, database.DefaultPostgresConfig(cfg.Database.URL))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := cache.NewClient(ctx, cache.DefaultRedisConfig(cfg.Redis.URL))
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	rates := credit.Rates{
		InputTokensPerCredit:  cfg.Credit.InputTokensPerCredit,
		OutputTokensPerCredit: cfg.Credit.OutputTokensPerCredit,
		DefaultFreeTrial:      cfg.Credit.DefaultFreeTrialCredits,
	}
	pauseHook := func(ctx context.Context, userID string) error {
		logger.Warn("user auto-paused: credits exhausted", "user_id", userID)
		return nil
	}
	creditMeter := credit.NewMeter(db.Pool, rates, pauseHook, logger)

	shadowStore := shadow.NewStore(redisClient)
	commitmentRepo := commitment.NewRepository(db.Pool)
	commitmentService := commitment.NewService(commitmentRepo, shadowStore, cfg.Commitment.UpcomingDays, logger)

	connectionRepo := connection.NewRepository(db.Pool)
	connectionService := connection.NewService(connectionRepo, logger)

	tokenSource := clientcredentials.Config{
		ClientID:     cfg.Aggregator.ClientID,
		ClientSecret: cfg.Aggregator.ClientSecret,
		TokenURL:     cfg.Aggregator.TokenURL,
	}.TokenSource(ctx)
	aggregatorClient := aggregator.NewHTTPClient(cfg.Aggregator.BaseURL, tokenSource)

	triggerService := trigger.NewService(connectionRepo, aggregatorClient, redisClient, logger)

	llmClient := llm.NewClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model)
	extractor := extraction.NewExtractor(llmClient, creditMeter, rates, cfg.Extraction.Retries, cfg.Extraction.MaxTokens, logger)

	queue := taskqueue.NewQueue(db.Pool, workerID(), logger)

	return &deps{
		cfg: cfg, logger: logger, db: db, redis: redisClient,
		commitments: commitmentService, connections: connectionService, credits: creditMeter,
		extractor: extractor, aggregator: aggregatorClient, triggers: triggerService, queue: queue,
	}, nil
}

func (d *deps) Close() {
	d.db.Close()
	d.redis.Close()
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("worker-%s-%d", host, os.Getpid())
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:   "worker",
		Short: "background worker for the commitment ingestion engine",
	}
	root.AddCommand(serveCmd(logger), backfillCmd(logger), reconcileTriggersCmd(logger))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// serveCmd runs the steady-state task-queue worker: drains extract_message
// tasks enqueued by the live webhook pipeline.
func serveCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the task queue worker loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			resolver := live.NewConnectionResolver(d.connections)
			registry := taskqueue.NewRegistry()
			registry.Register(taskqueue.TypeExtractMessage, live.NewExtractTask(d.aggregator, resolver, d.extractor, d.commitments, logger))

			worker := taskqueue.NewWorker(d.queue, registry, taskqueue.WorkerConfig{
				ID:              workerID(),
				Concurrency:     d.cfg.Worker.Concurrency,
				PollInterval:    d.cfg.Worker.PollInterval,
				ShutdownTimeout: d.cfg.Worker.ShutdownTimeout,
				Logger:          logger,
			})

			healthServer := startHealthServer(d.cfg.Worker.HealthPort, d, worker, logger)
			defer healthServer.Shutdown(context.Background())

			logger.Info("worker serve started", "concurrency", d.cfg.Worker.Concurrency)
			return worker.Run(ctx)
		},
	}
}

// backfillCmd runs the one-time historical ingest for a single user. It
// is the only entry point in this repository that starts a backfill.
func backfillCmd(logger *slog.Logger) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "run the initial backfill for one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			ctx := cmd.Context()

			d, err := buildDeps(ctx, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			state, err := d.connections.GetState(ctx, userID)
			if err != nil {
				return fmt.Errorf("load connection state: %w", err)
			}

			connectedAt := time.Now()
			if state.FirstConnectedAt != nil {
				connectedAt = *state.FirstConnectedAt
			}
			uc := extraction.UserContext{
				UserID: userID, FounderName: state.FounderName,
				FounderEmail: state.FounderEmail, FounderDomain: state.FounderDomain,
			}

			runner := backfill.NewRunner(d.aggregator, d.extractor, d.commitments, d.connections, d.triggers, d.credits, backfill.Config{
				MaxInbox:  d.cfg.Sync.MaxInbox,
				MaxSent:   d.cfg.Sync.MaxSent,
				BatchSize: d.cfg.Sync.Batch,
			}, logger)

			result, err := runner.Run(ctx, userID, state.EntityID, connectedAt, uc)
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}

			logger.Info("backfill complete",
				"user_id", userID,
				"messages_scanned", result.MessagesScanned,
				"newsletters_skipped", result.NewslettersSkipped,
				"commitments_found", result.CommitmentsFound,
				"credit_exhausted", result.CreditExhausted)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to backfill")
	return cmd
}

// reconcileTriggersCmd is the explicit operator escape hatch for a
// connection stuck missing one or both triggers, clearing a stale lock
// if present before retrying provisioning.
func reconcileTriggersCmd(logger *slog.Logger) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "reconcile-triggers",
		Short: "reconcile a user's trigger provisioning, clearing a stale lock if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			ctx := cmd.Context()

			d, err := buildDeps(ctx, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			state, err := d.connections.GetState(ctx, userID)
			if err != nil {
				return fmt.Errorf("load connection state: %w", err)
			}

			if err := d.triggers.Reconcile(ctx, userID, state.EntityID, time.Now()); err != nil {
				return fmt.Errorf("reconcile triggers: %w", err)
			}

			logger.Info("trigger reconciliation complete", "user_id", userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to reconcile")
	return cmd
}

// startHealthServer exposes liveness/readiness/metrics for the serve
// subcommand, mirroring the teacher's own worker health endpoints.
func startHealthServer(port int, d *deps, worker *taskqueue.Worker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		healthy := true
		if err := d.db.Health(ctx); err != nil {
			healthy = false
		}
		if err := d.redis.Health(ctx); err != nil {
			healthy = false
		}
		w.Header().Set("Content-Type", "application/json")
		if healthy {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"status":"ready"}`)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"not_ready"}`)
		}
	})

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		m := worker.Metrics(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"tasks_processed":%d,"tasks_failed":%d,"tasks_succeeded":%d,"queue_length":%d,"active_tasks":%d}`,
			m.TasksProcessed, m.TasksFailed, m.TasksSucceeded, m.QueueLength, m.ActiveTasks)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	return server
}
