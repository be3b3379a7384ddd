// Package commands implements the faqctl subcommands.
package commands

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/klasshub/faq-engine/internal/config"
	"github.com/klasshub/faq-engine/internal/embedding"
	"github.com/klasshub/faq-engine/internal/judge"
	"github.com/klasshub/faq-engine/internal/observability"
	"github.com/klasshub/faq-engine/internal/retrieval"
	"github.com/klasshub/faq-engine/internal/store"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "faqctl",
	Short: "FAQ engine CLI for saving, querying, and maintaining cached support answers",
	Long: `faqctl manages the semantic FAQ cache: save question/answer exchanges,
query for the best cached answer, import exchanges in bulk, backfill question
embeddings, and compact the keyword index.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(func() { _ = godotenv.Load() })

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app bundles the dependencies every subcommand needs.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	backend  *store.RedisBackend
	store    *store.ChatStore
	pipeline *retrieval.Pipeline
}

// newApp loads config and connects to the backing store. The embedder and
// judge are created only when API keys are configured.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	level := cfg.Observability.LogLevel
	if !verbose {
		level = "warn"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		ServiceName: "faqctl",
	})

	backend, err := store.NewRedisBackend(store.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	vectors := store.NewSearchIndex(probeCtx, backend.Client(), cfg.Embedding.Dimension, logger)
	cancel()

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
			backend.Close()
			return nil, err
		}
		embedder = client
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
			backend.Close()
			return nil, err
		}
		semanticJudge = client
	}

	chatStore := store.NewChatStore(backend, vectors, embedder, logger)
	pipeline := retrieval.NewPipeline(chatStore, embedder, semanticJudge, retrieval.Config{
		EmbedTimeout: cfg.Retrieval.EmbedTimeout,
		JudgeTimeout: cfg.Retrieval.JudgeTimeout,
	}, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		store:    chatStore,
		pipeline: pipeline,
	}, nil
}

func (a *app) Close() {
	a.backend.Close()
}
