// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dream2design/internal/config"
	"dream2design/internal/domain/ports/adapter"
	"dream2design/internal/domain/ports/repository"
	aiAdapters "dream2design/internal/infra/adapters/ai"
	"dream2design/internal/infra/api"
	"dream2design/internal/infra/db/memory"
	"dream2design/internal/infra/lock"
	"dream2design/internal/infra/logging"
	"dream2design/internal/infra/metrics"
	"dream2design/internal/infra/project"
	red "dream2design/internal/infra/redis"
	"dream2design/internal/infra/scheduler"
	"dream2design/internal/infra/tokens"
	"dream2design/internal/infra/worker"
	"dream2design/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI without keys, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Storage ----
	store, err := project.NewFileStore(cfg.Jobs.Dir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("project store")
	}
	jobRepo := memory.NewJobRepo()

	// ---- Redis (optional) ----
	var locker repository.JobLocker = lock.NewKeyedLocker()
	var limiter api.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient, cfg.Redis.LockTTL, logger)
		if cfg.RateLimit.Enabled {
			limiter = red.NewRateLimiter(redisClient)
		}
		logger.Info().Msg("redis job locks enabled")
	}

	// ---- AI providers ----
	ai := buildAI(ctx, cfg, logger)
	gateway := usecase.NewModelGateway(ai, usecase.GatewayConfig{
		PrimaryModel:   cfg.AI.PrimaryModel,
		FallbackModel:  cfg.AI.FallbackModel,
		Temperature:    cfg.AI.Temperature,
		MaxTokens:      cfg.AI.MaxTokens,
		Retries:        cfg.AI.Retries,
		AttemptTimeout: cfg.AI.AttemptTimeout,
		BackoffBase:    cfg.AI.BackoffBase,
	}, tokens.NewTiktokenCounter(), logger)
	if cfg.Server.RequestTimeout < gateway.Budget() {
		logger.Warn().Dur("request_timeout", cfg.Server.RequestTimeout).Dur("completion_budget", gateway.Budget()).
			Msg("request timeout is shorter than the completion budget; slow chat replies will outlive their request")
	}

	// ---- Workers ----
	pool := worker.NewPool(cfg.Jobs.Workers, cfg.Jobs.QueueSize, logger)
	pool.Start(ctx)

	chatPolicy := usecase.DiscourageCreation
	if cfg.Chat.AllowNewFiles {
		chatPolicy = usecase.AllowCreation
	}
	jobUC := usecase.NewJobUseCase(jobRepo, store, locker, pool, gateway, usecase.JobOptions{
		ChatPolicy: chatPolicy,
		Dev:        cfg.Runtime.Dev,
	}, logger)

	stats := scheduler.NewScheduler(30*time.Second, usecase.NewJobStats(jobRepo), logger)
	stats.Start(ctx)

	// ---- HTTP ----
	srv := api.NewServer(jobUC, limiter, api.Options{
		RequestTimeout:    cfg.Server.RequestTimeout,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		GeneratePerMinute: cfg.RateLimit.GeneratePerMinute,
	}, logger)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("jobs_dir", store.Root()).
			Str("primary", cfg.AI.PrimaryModel).Str("fallback", cfg.AI.FallbackModel).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	_ = server.Shutdown(shutdownCtx)
	stats.Stop()
	cancel()
	pool.Stop()
}

// buildAI registers every provider that has a key and routes models between
// them. Dev mode without keys answers from the noop adapter.
func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) adapter.AIServiceAdapter {
	byProvider := map[string]adapter.AIServiceAdapter{}

	if cfg.AI.OpenRouterKey != "" {
		a, err := aiAdapters.NewOpenRouterAdapter(cfg.AI.OpenRouterKey, cfg.AI.OpenRouterBaseURL, cfg.AI.Referer, cfg.AI.Title)
		if err != nil {
			logger.Fatal().Err(err).Msg("openrouter adapter")
		}
		byProvider["openrouter"] = a
	}
	if cfg.AI.OpenAIKey != "" {
		a, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, "")
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		byProvider["openai"] = a
	}
	if cfg.AI.GeminiKey != "" {
		a, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		byProvider["gemini"] = a
	}
	if len(byProvider) == 0 || cfg.AI.DefaultProvider == "noop" {
		logger.Warn().Msg("no AI provider key configured; using noop adapter")
		byProvider = map[string]adapter.AIServiceAdapter{"noop": aiAdapters.NewNoopAIAdapter(logger)}
		cfg.AI.DefaultProvider = "noop"
	}

	multi := aiAdapters.NewMultiAIAdapter(cfg.AI.DefaultProvider, byProvider, cfg.AI.ModelProviders)
	logger.Info().Strs("providers", multi.Providers()).Str("default", cfg.AI.DefaultProvider).Msg("AI adapters ready")
	return aiAdapters.NewLimitedAI(multi, cfg.AI.ConcurrentLimit)
}
