// Package cmd contains the Cobra commands for storeql.
//
// Design decisions:
//   - `storeql serve` runs the HTTP API; `storeql chat` runs the
//     terminal client against a single store. Both build the same
//     pipeline, they differ only in the surface on top.
//   - Configuration is environment-first; a .env file in the working
//     directory is loaded before anything reads the environment.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/storeql/storeql/ai"
	"github.com/storeql/storeql/chat"
	"github.com/storeql/storeql/config"
	"github.com/storeql/storeql/db"
	"github.com/storeql/storeql/logger"
	"github.com/storeql/storeql/ratelimit"
	"github.com/storeql/storeql/server"
	"github.com/storeql/storeql/store"
	"github.com/storeql/storeql/tui"
)

var chatStoreID string

var rootCmd = &cobra.Command{
	Use:   "storeql",
	Short: "AI-powered natural language analytics for store sales data",
	Long: `storeql answers natural language questions about store sales data:
  • AI-generated SQL, validated by a read-only sandbox before execution
  • Per-store rate limiting and tenant isolation
  • HTTP API (serve) or interactive terminal chat (chat)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; the environment may be set directly.
		_ = godotenv.Load()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return err
		}
		defer log.Sync()

		pipeline, cleanup, err := buildPipeline(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer cleanup()

		return server.New(cfg.Server, pipeline, log).Run()
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively from the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.ValidateID(chatStoreID); err != nil {
			return err
		}
		cfg := config.Load()
		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return err
		}
		defer log.Sync()

		pipeline, cleanup, err := buildPipeline(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer cleanup()

		return tui.Run(pipeline, chatStoreID)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatStoreID, "store", "", "store id to ask questions about (required)")
	_ = chatCmd.MarkFlagRequired("store")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}

// buildPipeline wires the full stack: warehouse pool, counter store,
// AI provider and the chat pipeline. The returned cleanup closes
// whatever was opened.
func buildPipeline(ctx context.Context, cfg config.Config, log *logger.Logger) (*chat.Pipeline, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	database, err := db.Connect(connectCtx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect warehouse: %w", err)
	}

	var counters ratelimit.CounterStore
	var closeCounters func()
	if cfg.Redis.Addr != "" {
		redisStore, err := ratelimit.NewRedisStore(connectCtx, cfg.Redis)
		if err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		counters = redisStore
		closeCounters = func() { _ = redisStore.Close() }
	} else {
		log.Warn("no Redis configured, using in-process rate limit counters")
		counters = ratelimit.NewMemoryStore()
		closeCounters = func() {}
	}

	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		closeCounters()
		database.Close()
		return nil, nil, fmt.Errorf("ai provider: %w", err)
	}
	log.Info("pipeline ready", "provider", provider.Name(), "redis", cfg.Redis.Addr != "")

	limiter := ratelimit.NewLimiter(counters, log, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	schema := store.NewProvider(database, log)
	executor := db.NewExecutor(database, log)
	pipeline := chat.NewPipeline(provider, schema, executor, limiter, log)

	cleanup := func() {
		closeCounters()
		database.Close()
	}
	return pipeline, cleanup, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
