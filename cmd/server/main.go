package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"review-responder/internal/adapter/api"
	"review-responder/internal/adapter/client"
	"review-responder/internal/adapter/scheduler"
	"review-responder/internal/adapter/store"
	"review-responder/internal/config"
	"review-responder/internal/domain/entity"
	"review-responder/internal/domain/repository"
	"review-responder/internal/logging"
	"review-responder/internal/usecase"

	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Relational store for accounts, usage, history and audit
	db, err := store.NewSQLStore(ctx, logger, store.WithDriver(cfg.DatabaseDriver), store.WithDSN(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// Redis for rate limiting and token state
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	var limiter repository.RateLimiter
	switch cfg.RateLimitBackend {
	case "memory":
		limiter = store.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	default:
		limiter = store.NewRedisLimiter(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	var genaiClient *genai.Client
	if cfg.LLM.Primary == "gemini" || cfg.LLM.Fallback == "gemini" || cfg.QdrantEnabled() {
		genaiClient, err = client.NewGenAIClient(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.GeminiProject, cfg.LLM.GeminiLocation)
		if err != nil {
			return fmt.Errorf("failed to init genai client: %w", err)
		}
	}

	primary, err := buildProvider(cfg.LLM.Primary, cfg.LLM, genaiClient)
	if err != nil {
		return err
	}
	var fallback repository.AIProvider
	if cfg.LLM.Fallback != "" {
		if fallback, err = buildProvider(cfg.LLM.Fallback, cfg.LLM, genaiClient); err != nil {
			return err
		}
	}
	provider := usecase.NewResilientProvider(primary, fallback, logger, usecase.WithTimeout(cfg.LLM.Timeout))

	classifier := usecase.NewSentimentClassifier(provider, logger)
	generator := usecase.NewResponseGenerator(provider, classifier, logger)

	orchOpts := []usecase.OrchestratorOption{usecase.WithBatchPolicy(cfg.BatchDelay, cfg.BatchMaxItems)}
	healthChecks := map[string]api.HealthCheck{
		"database": db.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}

	// Qdrant for similar past responses
	if cfg.QdrantEnabled() {
		qClient, err := qdrant.NewClient(&qdrant.Config{
			Host: cfg.QdrantHost,
			Port: cfg.QdrantPort,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		defer qClient.Close()

		index := store.NewQdrantIndex(qClient, cfg.QdrantCollection, logger)
		if err := index.InitCollection(ctx, uint64(cfg.LLM.EmbeddingDim)); err != nil {
			return fmt.Errorf("failed to init qdrant collection: %w", err)
		}
		embedder := client.NewEmbedderFromClient(genaiClient, cfg.LLM.EmbeddingModel)
		orchOpts = append(orchOpts, usecase.WithResponseIndex(index, embedder, cfg.SimilarThreshold))
		healthChecks["qdrant"] = func(ctx context.Context) error {
			_, err := qClient.HealthCheck(ctx)
			return err
		}
	} else {
		logger.Info("QDRANT_HOST not set, similar response search disabled")
	}

	orchestrator := usecase.NewOrchestrator(generator, db, db, db, limiter, logger, orchOpts...)
	auth := usecase.NewAuthService(db, store.NewRedisTokenStore(rdb), usecase.AuthConfig{
		Secret:            []byte(cfg.JWTSecret),
		AccessTTL:         cfg.AccessTokenTTL,
		RefreshTTL:        cfg.RefreshTokenTTL,
		TrialDuration:     cfg.TrialDuration,
		DefaultUsageLimit: cfg.DefaultUsageLimit,
	}, logger)

	cron := scheduler.NewScheduler(db, logger)
	if err := cron.ScheduleUsageReset(cfg.UsageResetSchedule); err != nil {
		return fmt.Errorf("invalid USAGE_RESET_SCHEDULE: %w", err)
	}
	cron.Start()

	go warmUp(provider, logger)

	// Initialize API Layer (Delivery Layer)
	app := api.NewApp("Review Responder")
	api.SetupRouter(app, api.RouterConfig{
		Version:     cfg.AppVersion,
		Env:         cfg.Env,
		CORSOrigins: cfg.CORSOrigins,
		Checks:      healthChecks,
	}, api.NewReviewHandler(orchestrator), api.NewAuthHandler(auth), auth)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("review responder listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		serveErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	cron.Stop(shutdownCtx)
	if err := orchestrator.Wait(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("background tasks: %w", err))
	}
	return errors.Join(errs...)
}

func buildProvider(name string, cfg config.LLMConfig, genaiClient *genai.Client) (repository.AIProvider, error) {
	switch name {
	case "gemini":
		return client.NewGeminiClientFromClient(genaiClient, cfg.GeminiModel), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		return client.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return client.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", name)
	}
}

// warmUp sends a tiny request so the first real review does not pay for a
// cold model instance.
func warmUp(provider repository.AIProvider, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := provider.Generate(ctx, entity.LLMRequest{UserPrompt: "ping", MaxTokens: 1})
	if err != nil {
		logger.Warn("provider warm-up failed", zap.Error(err))
		return
	}
	logger.Info("provider warm-up complete")
}
