package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"pulse-digest/internal/config"
	pgRepo "pulse-digest/internal/infra/adapter/persistence/postgres"
	"pulse-digest/internal/infra/embedder"
	"pulse-digest/internal/infra/fetcher"
	"pulse-digest/internal/infra/llm"
	mailinfra "pulse-digest/internal/infra/mail"
	"pulse-digest/internal/infra/scraper"
	"pulse-digest/internal/usecase/fetch"
	"pulse-digest/internal/usecase/index"
	mailuc "pulse-digest/internal/usecase/mail"
	"pulse-digest/internal/usecase/pipeline"
	"pulse-digest/internal/usecase/rank"
	"pulse-digest/internal/usecase/search"
	"pulse-digest/internal/usecase/summarize"
)

// buildPipeline assembles the same service graph the worker runs on a
// schedule, for a single foreground pass.
func buildPipeline(logger *slog.Logger, database *sql.DB) *pipeline.Service {
	pipeCfg, err := config.LoadPipelineConfig()
	if err != nil {
		fatal("failed to load pipeline configuration", err)
	}
	modelCfg, err := config.LoadModelConfig()
	if err != nil {
		fatal("failed to load model configuration", err)
	}
	embCfg, err := config.LoadEmbeddingConfig()
	if err != nil {
		fatal("failed to load embedding configuration", err)
	}
	mailCfg := config.LoadMailConfig()

	catalog, err := config.LoadCatalog(os.Getenv("SOURCES_PATH"))
	if err != nil {
		fatal("failed to load source catalog", err)
	}
	profile, err := config.LoadProfile(os.Getenv("PROFILE_PATH"))
	if err != nil {
		fatal("failed to load interest profile", err)
	}

	videoRepo := pgRepo.NewVideoRepo(database)
	webRepo := pgRepo.NewWebRepo(database)
	summaryRepo := pgRepo.NewSummaryRepo(database)
	vectorRepo := pgRepo.NewVectorRepo(database)
	runRepo := pgRepo.NewRunRepo(database)

	provider, err := llm.NewFromConfig(modelCfg)
	if err != nil {
		fatal("failed to initialize model provider", err)
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

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
