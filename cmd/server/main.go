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
	"github.com/commitloop/engine/internal/api"
	"github.com/commitloop/engine/internal/commitment"
	"github.com/commitloop/engine/internal/config"
	"github.com/commitloop/engine/internal/connection"
	"github.com/commitloop/engine/internal/credit"
	"github.com/commitloop/engine/internal/httpapi"
	"github.com/commitloop/engine/internal/live"
	"github.com/commitloop/engine/internal/query"
	"github.com/commitloop/engine/internal/shadow"
	"github.com/commitloop/engine/internal/taskqueue"
	"github.com/commitloop/engine/internal/trigger"
	"github.com/commitloop/engine/pkg/cache"
	"github.com/commitloop/engine/pkg/database"
	"golang.org/x/oauth2/clientcredentials"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	logger.Info("starting server")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := database.DefaultPostgresConfig(cfg.Database.URL)
	db, err := database.NewPool(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database")

	redisConfig := cache.DefaultRedisConfig(cfg.Redis.URL)
	redisClient, err := cache.NewClient(ctx, redisConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

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
	queryService := query.NewService(commitmentService, cfg.Commitment.DefaultLimit)

	connectionRepo := connection.NewRepository(db.Pool)
	connectionService := connection.NewService(connectionRepo, logger)

	tokenSource := clientcredentials.Config{
		ClientID:     cfg.Aggregator.ClientID,
		ClientSecret: cfg.Aggregator.ClientSecret,
		TokenURL:     cfg.Aggregator.TokenURL,
	}.TokenSource(ctx)
	aggregatorClient := aggregator.NewHTTPClient(cfg.Aggregator.BaseURL, tokenSource)

	triggerService := trigger.NewService(connectionRepo, aggregatorClient, redisClient, logger)

	taskQueue := taskqueue.NewQueue(db.Pool, "server", logger)
	resolver := live.NewConnectionResolver(connectionService)
	webhookHandler := live.NewHandler(aggregatorClient, resolver, creditMeter, taskQueue, logger)

	rateLimiter := api.NewRateLimiter(redisClient, cfg.Server.RateLimitPerMinute, time.Minute, "ratelimit")

	healthService := api.NewHealthService()
	healthService.Register("database", db)
	healthService.Register("redis", redisClient)

	server := &httpapi.Server{
		Commitments:    commitmentService,
		Queries:        queryService,
		Connections:    connectionService,
		Triggers:       triggerService,
		Credits:        creditMeter,
		Webhooks:       webhookHandler,
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		WebhookSecret:  []byte(cfg.Auth.WebhookSecret),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    rateLimiter,
		Health:         healthService,
		Logger:         logger,
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", httpServer.Addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed, forcing close", "error", err)
			if err := httpServer.Close(); err != nil {
				return fmt.Errorf("could not close server: %w", err)
			}
		}
		logger.Info("server stopped gracefully")
	}

	return nil
}
