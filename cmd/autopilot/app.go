package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jonathan/content-autopilot/internal/calendar"
	"github.com/jonathan/content-autopilot/internal/config"
	"github.com/jonathan/content-autopilot/internal/db"
	"github.com/jonathan/content-autopilot/internal/fetch"
	"github.com/jonathan/content-autopilot/internal/generation"
	"github.com/jonathan/content-autopilot/internal/llm"
	"github.com/jonathan/content-autopilot/internal/logging"
	"github.com/jonathan/content-autopilot/internal/observability"
	"github.com/jonathan/content-autopilot/internal/opportunities"
	"github.com/jonathan/content-autopilot/internal/pipeline"
	"github.com/jonathan/content-autopilot/internal/publishing"
	"github.com/jonathan/content-autopilot/internal/sitelock"
	"github.com/jonathan/content-autopilot/internal/types"
)

// loadConfig merges the config file, the environment and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	cfg.ApplyEnv()

	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = databaseURL
	}

	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// app holds the long-lived resources of one command invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *db.DB
	scheduler *calendar.Scheduler
	printer   *observability.Printer
	closers   []func()
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	logger := logging.New(cfg.LogLevel)
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		db:        database,
		scheduler: calendar.NewScheduler(database, cfg.Location(), logger),
		printer:   observability.NewPrinter(cmd.OutOrStdout()),
	}
	a.closers = append(a.closers, database.Close)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// executor wires the pipeline collaborators. It is only built by commands
// that run pipeline steps, since it needs provider credentials.
func (a *app) executor(ctx context.Context) (*pipeline.Executor, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if a.cfg.PublishWebhookURL == "" {
		return nil, fmt.Errorf("PUBLISH_WEBHOOK_URL environment variable is required")
	}

	llmClient, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), a.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = llmClient.Close() })

	source, err := opportunities.NewSearchConsoleSource(ctx, a.cfg.GoogleCredentialsFile, a.cfg.RowLimit)
	if err != nil {
		return nil, err
	}

	var pubOpts []publishing.Option
	if a.cfg.ThumbnailBaseURL != "" {
		if err := os.MkdirAll(a.cfg.ThumbnailDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create thumbnail dir: %w", err)
		}
		pubOpts = append(pubOpts, publishing.WithThumbnailer(publishing.NewChromeThumbnailer(a.cfg.ThumbnailDir, a.cfg.ThumbnailBaseURL)))
	}
	if a.cfg.SubmitIndexing {
		indexer, err := publishing.NewGoogleIndexer(ctx, a.cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}
		pubOpts = append(pubOpts, publishing.WithIndexer(indexer))
	}
	if a.cfg.VerifyLive {
		opts := fetch.DefaultOptions()
		opts.UseBrowser = a.cfg.UseBrowser
		pubOpts = append(pubOpts, publishing.WithLiveCheck(opts))
	}

	cms := publishing.NewWebhookPublisher(a.cfg.PublishWebhookURL, a.cfg.PublishWebhookToken, nil)
	orchestrator := pipeline.NewOrchestrator(
		a.db,
		opportunities.NewService(a.db, source, a.cfg.LookbackDays, a.logger),
		generation.NewGenerator(llmClient, a.db, a.logger),
		publishing.NewService(a.db, cms, a.logger, pubOpts...),
		a.logger,
	)

	locker, err := a.locker(ctx)
	if err != nil {
		return nil, err
	}

	return pipeline.NewExecutor(orchestrator, a.db, a.db, locker, a.logger,
		pipeline.WithLocation(a.cfg.Location()),
		pipeline.WithSweepConcurrency(a.cfg.SweepConcurrency),
		pipeline.WithStaleRunAfter(a.cfg.LockTTL()),
	), nil
}

// locker uses Redis when configured and the site row otherwise.
func (a *app) locker(ctx context.Context) (pipeline.Locker, error) {
	if a.cfg.RedisURL == "" {
		return sitelock.NewPostgresLocker(a.db, a.cfg.LockTTL()), nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return sitelock.NewRedisLocker(client, a.cfg.LockTTL()), nil
}

// runOptions builds pipeline options from config defaults and explicit flags.
func (a *app) runOptions(cmd *cobra.Command) pipeline.RunOptions {
	opts := pipeline.RunOptions{
		Instructions:      runInstructions,
		GenerateThumbnail: a.cfg.GenerateThumbnail,
		SubmitIndexing:    a.cfg.SubmitIndexing,
		OnProgress:        a.printer.PrintProgress,
	}
	if cmd.Flags().Changed("thumbnail") {
		opts.GenerateThumbnail = runThumbnail
	}
	if cmd.Flags().Changed("index") {
		opts.SubmitIndexing = runIndex
	}
	return opts
}

func parseSiteID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid site id %q: %w", arg, err)
	}
	return id, nil
}

// parseDay parses a YYYY-MM-DD flag value, falling back to today when empty.
func parseDay(value string, today time.Time) (time.Time, error) {
	if value == "" {
		return today, nil
	}
	day, err := types.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return day, nil
}
