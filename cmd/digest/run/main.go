// Package main runs one digest pipeline pass from the command line.
// Usage: pulse-digest-run [--window-hours N] [--top-n N] [--skip-email]
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
		skipEmail   bool
		timeout     time.Duration
	)
	flag.IntVar(&windowHours, "window-hours", 0, "Harvest window in hours (0 = configured default)")
	flag.IntVar(&topN, "top-n", 0, "Digest size (0 = configured default)")
	flag.BoolVar(&skipEmail, "skip-email", false, "Run every stage except delivery")
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
		SkipEmail:   skipEmail,
	}

	run, err := pipeSvc.Run(ctx, opts)
	if err != nil {
		fatal("run failed", err)
	}

	fmt.Printf("run %d %s\n", run.ID, run.State)
	fmt.Printf("  scraped:    %d\n", run.Counters.Scraped)
	fmt.Printf("  new items:  %d\n", run.Counters.NewItems)
	fmt.Printf("  summarized: %d\n", run.Counters.Summarized)
	fmt.Printf("  indexed:    %d\n", run.Counters.Indexed)
	fmt.Printf("  ranked:     %d\n", run.Counters.Ranked)
	fmt.Printf("  emailed:    %d\n", run.Counters.Emailed)
	if len(run.Counters.FailedAdapters) > 0 {
		fmt.Printf("  failed sources: %v\n", run.Counters.FailedAdapters)
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
