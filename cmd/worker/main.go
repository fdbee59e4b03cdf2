package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/handler/http/respond"
	pgRepo "pulse-digest/internal/infra/adapter/persistence/postgres"
	"pulse-digest/internal/infra/db"
	"pulse-digest/internal/infra/embedder"
	"pulse-digest/internal/infra/fetcher"
	"pulse-digest/internal/infra/llm"
	mailinfra "pulse-digest/internal/infra/mail"
	"pulse-digest/internal/infra/scraper"
	workerPkg "pulse-digest/internal/infra/worker"
	"pulse-digest/internal/observability/slo"
	"pulse-digest/internal/usecase/fetch"
	"pulse-digest/internal/usecase/index"
	mailuc "pulse-digest/internal/usecase/mail"
	"pulse-digest/internal/usecase/pipeline"
	"pulse-digest/internal/usecase/rank"
	"pulse-digest/internal/usecase/search"
	"pulse-digest/internal/usecase/summarize"
)

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("run_timeout", workerConfig.RunTimeout),
		slog.String("health_addr", workerConfig.HealthAddr),
		slog.String("metrics_addr", workerConfig.MetricsAddr))

	startMetricsServer(ctx, logger, workerConfig.MetricsAddr)

	healthServer := workerPkg.NewHealthServer(workerConfig.HealthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	var grpcHealth *workerPkg.GRPCHealthServer
	if workerConfig.GRPCHealthAddr != "" {
		grpcHealth = workerPkg.NewGRPCHealthServer(workerConfig.GRPCHealthAddr, logger)
		go func() {
			if err := grpcHealth.Start(ctx); err != nil {
				logger.Error("grpc health server failed", slog.Any("error", err))
			}
		}()
	}

	pipeSvc := setupPipeline(logger, database)

	runCronWorker(ctx, logger, pipeSvc, workerConfig, workerMetrics, func(ready bool) {
		healthServer.SetReady(ready)
		if grpcHealth != nil {
			grpcHealth.SetReady(ready)
		}
	})
}

func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the pool and waits for the API's migrations; the
// worker never migrates on its own so the two processes cannot race.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

func waitForMigrations(logger *slog.Logger, database *sql.DB) {
	const probe = "SELECT 1 FROM runs LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := database.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

// setupPipeline builds the same service graph cmd/api serves, minus the
// request plane.
func setupPipeline(logger *slog.Logger, database *sql.DB) *pipeline.Service {
	pipeCfg, err := config.LoadPipelineConfig()
	if err != nil {
		logger.Error("failed to load pipeline configuration", slog.Any("error", err))
		os.Exit(1)
	}
	modelCfg, err := config.LoadModelConfig()
	if err != nil {
		logger.Error("failed to load model configuration", slog.Any("error", err))
		os.Exit(1)
	}
	embCfg, err := config.LoadEmbeddingConfig()
	if err != nil {
		logger.Error("failed to load embedding configuration", slog.Any("error", err))
		os.Exit(1)
	}
	mailCfg := config.LoadMailConfig()

	catalog, err := config.LoadCatalog(os.Getenv("SOURCES_PATH"))
	if err != nil {
		logger.Error("failed to load source catalog", slog.Any("error", err))
		os.Exit(1)
	}
	profile, err := config.LoadProfile(os.Getenv("PROFILE_PATH"))
	if err != nil {
		logger.Error("failed to load interest profile", slog.Any("error", err))
		os.Exit(1)
	}

	videoRepo := pgRepo.NewVideoRepo(database)
	webRepo := pgRepo.NewWebRepo(database)
	summaryRepo := pgRepo.NewSummaryRepo(database)
	vectorRepo := pgRepo.NewVectorRepo(database)
	runRepo := pgRepo.NewRunRepo(database)

	provider, err := llm.NewFromConfig(modelCfg)
	if err != nil {
		logger.Error("failed to initialize model provider", slog.Any("error", err))
		os.Exit(1)
	}
	sem := llm.NewSemaphore(modelCfg.Concurrency)
	emb := embedder.New(embCfg)

	httpClient := &http.Client{Timeout: pipeCfg.FetchTimeout}
	renderer := fetcher.NewRenderer(fetcher.RenderConfigFromPipeline(pipeCfg))
	adapters := scraper.BuildAdapters(catalog, renderer, httpClient)
	enricher := scraper.NewTranscriptClient(httpClient)

	var transport mailuc.Transport
	if pipeCfg.SkipEmail {
		transport = mailinfra.NewNoopTransport()
	} else {
		transport = mailinfra.NewSMTPTransport(mailCfg)
	}

	fetchSvc := fetch.NewService(adapters, pipeCfg)
	digester := summarize.NewService(provider, summaryRepo, sem, modelCfg, pipeCfg)
	indexer := index.NewService(summaryRepo, vectorRepo, emb, pipeCfg)
	searchSvc := search.NewService(vectorRepo, emb)
	ranker := rank.NewService(summaryRepo, searchSvc, provider, profile, sem, modelCfg, pipeCfg)
	mailer := mailuc.NewService(transport, provider, profile, sem, modelCfg, mailCfg, pipeCfg)

	logger.Info("pipeline assembled",
		slog.Int("sources", catalog.SourceCount()),
		slog.String("provider", string(modelCfg.Provider)))

	return pipeline.NewService(fetchSvc, enricher, digester, indexer, ranker, mailer,
		videoRepo, webRepo, summaryRepo, runRepo, pipeCfg)
}

// runCronWorker schedules digest runs and blocks until SIGINT/SIGTERM.
func runCronWorker(
	ctx context.Context,
	logger *slog.Logger,
	pipeSvc *pipeline.Service,
	cfg *workerPkg.WorkerConfig,
	metrics *workerPkg.WorkerMetrics,
	setReady func(bool),
) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC",
			slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runDigestJob(ctx, logger, pipeSvc, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	setReady(true)
	logger.Info("worker started",
		slog.String("schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down worker...")

	setReady(false)
	stopCtx := c.Stop()

	// 走行中のジョブを待つ（RunTimeout が上限）
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.RunTimeout):
		logger.Warn("run did not finish before shutdown deadline")
	}
	logger.Info("worker stopped")
}

// runDigestJob executes one scheduled pipeline run.
func runDigestJob(
	ctx context.Context,
	logger *slog.Logger,
	pipeSvc *pipeline.Service,
	cfg *workerPkg.WorkerConfig,
	metrics *workerPkg.WorkerMetrics,
) {
	start := time.Now()
	logger.Info("scheduled digest run started")

	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	run, err := pipeSvc.Run(runCtx, pipeline.Options{})
	metrics.RecordRunDuration(time.Since(start).Seconds())
	if err != nil {
		// 機密情報をマスクしてログ出力
		logger.Error("scheduled digest run failed",
			slog.String("error", respond.SanitizeError(err)))
		metrics.RecordRun("failure")
		slo.Default.Record(false, time.Since(start))
		return
	}
	if run.State != entity.RunStateCompleted {
		logger.Error("scheduled digest run ended abnormally",
			slog.Int64("run_id", run.ID),
			slog.String("state", string(run.State)),
			slog.String("run_error", run.Error))
		metrics.RecordRun("failure")
		slo.Default.Record(false, time.Since(start))
		return
	}

	metrics.RecordRun("success")
	slo.Default.Record(true, time.Since(start))
	metrics.RecordItemsHarvested(run.Counters.NewItems)
	metrics.RecordLastSuccess()

	logger.Info("scheduled digest run completed",
		slog.Int64("run_id", run.ID),
		slog.Int("scraped", run.Counters.Scraped),
		slog.Int("new_items", run.Counters.NewItems),
		slog.Int("summarized", run.Counters.Summarized),
		slog.Int("indexed", run.Counters.Indexed),
		slog.Int("ranked", run.Counters.Ranked),
		slog.Int("emailed", run.Counters.Emailed),
		slog.Duration("duration", time.Since(start)),
	)
}
