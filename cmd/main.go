package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apodposter/internal/apod"
	"apodposter/internal/config"
	"apodposter/internal/database"
	"apodposter/internal/media"
	"apodposter/internal/pipeline"
	"apodposter/internal/scheduler"
	"apodposter/internal/summarizer"
	"apodposter/internal/twitter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

type app struct {
	cfg   config.Config
	db    *database.Database
	sched *scheduler.Scheduler
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(log).ExecuteContext(ctx); err != nil {
		log.ErrorContext(ctx, "Command failed",
			"error", err)

		cancel()
		os.Exit(1)
	}
}

func newRootCmd(log *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "apodposter",
		Short:         "Post NASA's Astronomy Picture of the Day to Twitter",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Post every APOD record after the latest recorded date, then exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOnce(cmd.Context(), log)
			},
		},
		&cobra.Command{
			Use:   "schedule",
			Short: "Run the pipeline on SCHEDULE_SPEC until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runScheduler(cmd.Context(), log)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "apodposter %s (%s)\n", Version, Commit)
			},
		},
	)

	return rootCmd
}

func runOnce(ctx context.Context, log *slog.Logger) error {
	a, err := initApp(ctx, log)
	if err != nil {
		return err
	}
	defer a.close(ctx, log)

	if _, err = a.sched.RunOnce(ctx); err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	return nil
}

func runScheduler(ctx context.Context, log *slog.Logger) error {
	start := time.Now()

	a, err := initApp(ctx, log)
	if err != nil {
		return err
	}
	defer a.close(ctx, log)

	if err = a.sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.InfoContext(ctx, "Scheduler is started",
		"spec", a.sched.Spec(),
		"timezone", a.cfg.Timezone)

	<-ctx.Done()
	log.InfoContext(ctx, "Shutdown signal is received",
		"uptimeSeconds", time.Since(start).Seconds())

	a.sched.Stop()
	log.InfoContext(ctx, "Scheduler is stopped",
		"uptimeSeconds", time.Since(start).Seconds())

	return nil
}

func initApp(ctx context.Context, log *slog.Logger) (*app, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WarnContext(ctx, "Failed to load .env file",
			"error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("initialize db (path = %s): %w", cfg.DBPath, err)
	}
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	httpClient := &http.Client{}

	feed := apod.NewClient(cfg.APODURL, cfg.NASAKey, httpClient, log)

	twitterClient := twitter.NewClient(
		twitter.NewHTTPClient(ctx, twitter.Credentials{
			ConsumerKey:       cfg.TwitterConsumerKey,
			ConsumerSecret:    cfg.TwitterConsumerSecret,
			AccessToken:       cfg.TwitterAccessToken,
			AccessTokenSecret: cfg.TwitterAccessTokenSecret,
		}),
		cfg.TwitterMediaURL,
		cfg.TwitterTweetsURL,
		log,
	)

	strategies := media.NewRegistry(
		media.NewImageStrategy(httpClient, cfg.MediaDir, log),
		media.NewVideoStrategy(httpClient, cfg.MediaDir, log),
	)

	p := pipeline.New(feed, db, strategies, twitterClient, pipeline.Options{
		PostDelay:       cfg.PostDelay,
		ContinueOnError: cfg.ContinueOnError,
		Summarizer:      initOpenAISummarizer(ctx, cfg.OpenAIAPIKey, log),
	}, log)

	sched := scheduler.New(ctx, cfg.ScheduleSpec, cfg.Location(), cfg.RunTimeout, db, p, log)

	return &app{cfg: cfg, db: db, sched: sched}, nil
}

func (a *app) close(ctx context.Context, log *slog.Logger) {
	if err := a.db.Close(); err != nil {
		log.ErrorContext(ctx, "Failed to close db",
			"error", err,
			"dbPath", a.cfg.DBPath)
	}
}

func initOpenAISummarizer(ctx context.Context, apiKey string, log *slog.Logger) summarizer.Summarizer {
	if apiKey == "" {
		log.InfoContext(ctx, "OPENAI_API_KEY is missing so tweets will carry the title only",
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	s, err := summarizer.NewOpenAISummarizer(apiKey)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create OpenAI summarizer so tweets will carry the title only",
			"error", err,
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	log.InfoContext(ctx, "OpenAI summarizer is initialized",
		"provider", "openai")

	return s
}
