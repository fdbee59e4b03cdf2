// Package main builds and delivers one digest email on demand,
// bypassing the cron schedule.
// Usage: pulse-digest-send [--window-hours N] [--top-n N] [--recipient addr] [--dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pulse-digest/internal/infra/db"
	"pulse-digest/internal/usecase/pipeline"
)

func main() {
	var (
		windowHours int
		topN        int
		recipient   string
		subject     string
		dryRun      bool
		showHTML    bool
		timeout     time.Duration
	)
	flag.IntVar(&windowHours, "window-hours", 0, "Harvest window in hours (0 = configured default)")
	flag.IntVar(&topN, "top-n", 0, "Digest size (0 = configured default)")
	flag.StringVar(&recipient, "recipient", "", "Override the configured recipient")
	flag.StringVar(&subject, "subject", "", "Override the generated subject line")
	flag.BoolVar(&dryRun, "dry-run", false, "Render the digest without sending email")
	flag.BoolVar(&showHTML, "show-html", false, "Print the rendered HTML body to stdout")
	flag.DurationVar(&timeout, "timeout", time.Hour, "Overall run deadline")
	flag.Parse()

	logger := initLogger()

	database := db.Open()
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()
	if err := db.MigrateUp(database); err != nil {
		fatal("migration failed", err)
	}

	pipeSvc := buildPipeline(logger, database)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	opts := pipeline.Options{
		WindowHours: windowHours,
		TopN:        topN,
		SkipEmail:   dryRun,
		Recipient:   recipient,
		Subject:     subject,
	}

	run, delivery, err := pipeSvc.SendDigest(ctx, opts)
	if err != nil {
		fatal("send failed", err)
	}

	fmt.Printf("run %d %s\n", run.ID, run.State)
	fmt.Printf("  rendered: %d\n", delivery.Rendered)
	fmt.Printf("  emailed:  %d\n", delivery.Emailed)
	if !delivery.SentAt.IsZero() {
		fmt.Printf("  sent at:  %s\n", delivery.SentAt.Format(time.RFC3339))
	}
	if delivery.IntroDegraded {
		fmt.Println("  note: intro generation degraded to the fallback text")
	}
	if showHTML {
		fmt.Println(delivery.HTML)
	}
}

func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}
