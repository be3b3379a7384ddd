// Package main provides the FAQ engine API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/klasshub/faq-engine/internal/config"
	"github.com/klasshub/faq-engine/internal/embedding"
	"github.com/klasshub/faq-engine/internal/judge"
	"github.com/klasshub/faq-engine/internal/monitoring"
	"github.com/klasshub/faq-engine/internal/observability"
	"github.com/klasshub/faq-engine/internal/retrieval"
	"github.com/klasshub/faq-engine/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "faq-engine",
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("redis", cfg.Redis.Addr).
		Msg("Starting FAQ engine API")

	backend, err := store.NewRedisBackend(store.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer backend.Close()

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), cfg.Server.ReadTimeout)
	vectors := store.NewSearchIndex(probeCtx, backend.Client(), cfg.Embedding.Dimension, logger)
	cancelProbe()

	var embedder embedding.Embedder
	if cfg.Embedding.APIKey != "" {
		client, err := embedding.NewClient(embedding.Config{
			APIKey:    cfg.Embedding.APIKey,
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create embedding client")
		}
		embedder = client
	} else {
		logger.Warn().Msg("No embedding API key configured, vector tier disabled")
	}

	var semanticJudge judge.Judge
	if cfg.Judge.APIKey != "" {
		client, err := judge.NewClient(judge.Config{
			APIKey:     cfg.Judge.APIKey,
			BaseURL:    cfg.Judge.BaseURL,
			Model:      cfg.Judge.Model,
			Timeout:    cfg.Judge.Timeout,
			MaxRetries: cfg.Judge.MaxRetries,
			Breaker: judge.BreakerConfig{
				FailureThreshold: cfg.Judge.FailureThreshold,
				SuccessThreshold: cfg.Judge.SuccessThreshold,
				Cooldown:         cfg.Judge.Cooldown,
			},
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create judge client")
		}
		semanticJudge = client
	} else {
		logger.Warn().Msg("No judge API key configured, AI tiers disabled")
	}

	chatStore := store.NewChatStore(backend, vectors, embedder, logger)
	pipeline := retrieval.NewPipeline(chatStore, embedder, semanticJudge, retrieval.Config{
		EmbedTimeout: cfg.Retrieval.EmbedTimeout,
		JudgeTimeout: cfg.Retrieval.JudgeTimeout,
	}, logger)

	var audit *monitoring.AuditStore
	if cfg.Audit.Enabled {
		audit, err = monitoring.OpenAuditStore(cfg.Audit, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open audit store")
		}
		defer audit.Close()
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if cfg.Compaction.Enabled {
		compactor := monitoring.NewCompactor(chatStore, cfg.Compaction.Interval, logger)
		go compactor.Run(rootCtx)
	}

	router := NewRouter(logger, cfg, chatStore, pipeline, audit, backend)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	cancelRoot()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		srv.Close()
	}

	logger.Info().Msg("Server stopped")
}
