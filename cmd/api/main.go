package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"pulse-digest/internal/common/pagination"
	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	pgRepo "pulse-digest/internal/infra/adapter/persistence/postgres"
	"pulse-digest/internal/infra/db"
	"pulse-digest/internal/infra/embedder"
	"pulse-digest/internal/infra/fetcher"
	"pulse-digest/internal/infra/llm"
	mailinfra "pulse-digest/internal/infra/mail"
	"pulse-digest/internal/infra/scraper"
	"pulse-digest/internal/observability/tracing"
	"pulse-digest/internal/resilience/circuitbreaker"
	"pulse-digest/internal/usecase/archive"
	"pulse-digest/internal/usecase/fetch"
	"pulse-digest/internal/usecase/index"
	mailuc "pulse-digest/internal/usecase/mail"
	"pulse-digest/internal/usecase/pipeline"
	"pulse-digest/internal/usecase/rank"
	"pulse-digest/internal/usecase/search"
	"pulse-digest/internal/usecase/summarize"
	"pulse-digest/pkg/ratelimit"

	hhttp "pulse-digest/internal/handler/http"
	hauth "pulse-digest/internal/handler/http/auth"
	hdigest "pulse-digest/internal/handler/http/digest"
	"pulse-digest/internal/handler/http/middleware"
	"pulse-digest/internal/handler/http/requestid"

	_ "pulse-digest/docs" // swagger docs
)

// @title           Pulse Digest API
// @version         1.0
// @description     AI ニュース自動収集・要約・配信システムの REST API
// @description     パイプラインランの起動・監視、サマリーアーカイブの閲覧、セマンティック検索を提供します。

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT トークンによる認証。ヘッダーに "Bearer {token}" 形式で指定してください。

func main() {
	logger := initLogger()
	validateAuthConfig(logger)

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	version := getVersion()
	components := setupServer(logger, database, version)

	runServer(logger, components, version)
}

// initLogger builds the process-wide JSON logger. LOG_LEVEL=debug lowers
// the threshold.
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

// validateAuthConfig refuses to start with a missing or weak JWT secret
// when authentication is enabled. With AUTH_ENABLED=false there is nothing
// to validate.
func validateAuthConfig(logger *slog.Logger) {
	if !hauth.Enabled() {
		logger.Info("authentication disabled (AUTH_ENABLED != true)")
		return
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Error("JWT_SECRET must be set when AUTH_ENABLED=true")
		os.Exit(1)
	}
	// 最小 32 文字（256 ビット）を強制
	if len(secret) < 32 {
		logger.Error("JWT_SECRET must be at least 32 characters (256 bits)")
		os.Exit(1)
	}
	weakSecrets := []string{"secret", "password", "test", "admin", "default"}
	for _, weak := range weakSecrets {
		if secret == weak || secret == weak+"123" {
			logger.Error("JWT_SECRET must not be a common weak value")
			os.Exit(1)
		}
	}
}

// initDatabase opens the connection pool and applies migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// ServerComponents carries what runServer needs beyond the handler: the
// rate limit store for background cleanup and its window.
type ServerComponents struct {
	Handler  http.Handler
	IPStore  *ratelimit.InMemoryRateLimitStore
	IPWindow time.Duration
}

// setupServer wires the full pipeline behind the request plane and
// returns the composed handler.
func setupServer(logger *slog.Logger, database *sql.DB, version string) *ServerComponents {
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

	// プローブとメンテナンス系のクエリはブレーカ経由で実行する
	dbBreaker := circuitbreaker.NewDBCircuitBreaker(database)

	pipeSvc, archSvc, searchSvc := buildServices(logger, database, dbBreaker, pipeCfg, modelCfg, embCfg, mailCfg, catalog, profile)

	ipExtractor := buildIPExtractor(logger)
	rlCfg := ratelimit.DefaultConfig()
	ipStore := ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{
		MaxKeys: rlCfg.MaxActiveKeys,
	})
	ipRateLimiter := middleware.NewIPRateLimiter(
		middleware.IPRateLimiterConfig{
			Limit:   rlCfg.DefaultIPLimit,
			Window:  rlCfg.DefaultIPWindow,
			Enabled: rlCfg.Enabled,
		},
		ipExtractor,
		ipStore,
		ratelimit.NewSlidingWindowAlgorithm(&ratelimit.SystemClock{}),
		ratelimit.NewPrometheusMetrics(),
		circuitbreaker.New(circuitbreaker.DefaultConfig("ratelimit")),
	)
	logger.Info("rate limiting initialized",
		slog.Bool("enabled", rlCfg.Enabled),
		slog.Int("ip_limit", rlCfg.DefaultIPLimit),
		slog.Duration("ip_window", rlCfg.DefaultIPWindow))

	mux := setupRoutes(dbBreaker, version, pipeSvc, archSvc, searchSvc, pipeCfg, logger)
	handler := applyMiddleware(logger, mux, ipRateLimiter)

	return &ServerComponents{
		Handler:  handler,
		IPStore:  ipStore,
		IPWindow: rlCfg.DefaultIPWindow,
	}
}

// buildServices assembles the pipeline service graph shared with the worker.
func buildServices(
	logger *slog.Logger,
	database *sql.DB,
	dbBreaker *circuitbreaker.DBCircuitBreaker,
	pipeCfg *config.PipelineConfig,
	modelCfg *config.ModelConfig,
	embCfg *config.EmbeddingConfig,
	mailCfg *config.MailConfig,
	catalog *config.Catalog,
	profile *entity.Profile,
) (*pipeline.Service, *archive.Service, *search.Service) {
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

	pipeSvc := pipeline.NewService(fetchSvc, enricher, digester, indexer, ranker, mailer,
		videoRepo, webRepo, summaryRepo, runRepo, pipeCfg)
	archSvc := archive.NewService(videoRepo, webRepo, summaryRepo, vectorRepo, runRepo, pipeSvc, dbBreaker)

	return pipeSvc, archSvc, searchSvc
}

// buildIPExtractor picks between raw RemoteAddr and trusted-proxy header
// extraction based on environment configuration.
func buildIPExtractor(logger *slog.Logger) middleware.IPExtractor {
	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("failed to load trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if proxyConfig.Enabled {
		logger.Info("rate limiting: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
		return middleware.NewTrustedProxyExtractor(*proxyConfig)
	}
	logger.Info("rate limiting: using RemoteAddr, proxy headers ignored")
	return &middleware.RemoteAddrExtractor{}
}

// setupRoutes mounts every endpoint on one mux. Authentication is applied
// per route inside digest.Register; the endpoints here are public.
func setupRoutes(
	dbBreaker *circuitbreaker.DBCircuitBreaker,
	version string,
	pipeSvc *pipeline.Service,
	archSvc *archive.Service,
	searchSvc *search.Service,
	pipeCfg *config.PipelineConfig,
	logger *slog.Logger,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST   /auth/token", hauth.TokenHandler())

	// ヘルスチェックエンドポイント（認証不要）
	mux.Handle("GET    /health", &hhttp.HealthHandler{DB: dbBreaker, Version: version, Active: pipeSvc})
	mux.Handle("GET    /ready", &hhttp.ReadyHandler{DB: dbBreaker})
	mux.Handle("GET    /live", &hhttp.LiveHandler{})
	mux.Handle("GET    /metrics", hhttp.MetricsHandler())

	// Swagger UI（認証不要）
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	hdigest.Register(mux, pipeSvc, archSvc, searchSvc, pipeCfg, pagination.LoadFromEnv(), logger)

	return mux
}

// applyMiddleware builds the chain, innermost first:
// Metrics → Timeout → InputValidation → Logging → Recover → IPRateLimit →
// RequestID → Tracing → CSP → CORS.
func applyMiddleware(logger *slog.Logger, handler http.Handler, ipRateLimiter *middleware.IPRateLimiter) http.Handler {
	corsConfig, err := middleware.LoadCORSConfig()
	if err != nil {
		logger.Error("failed to load CORS configuration", slog.Any("error", err))
		os.Exit(1)
	}
	corsConfig.Logger = logger
	logger.Info("CORS enabled",
		slog.Any("allowed_origins", corsConfig.AllowedOrigins),
		slog.Int("max_age", corsConfig.MaxAge))

	chain := handler
	chain = hhttp.MetricsMiddleware(chain)
	chain = hhttp.Timeout(60 * time.Second)(chain)
	chain = hhttp.InputValidation()(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)
	if ipRateLimiter != nil {
		chain = ipRateLimiter.Middleware()(chain)
	}
	chain = requestid.Middleware(chain)
	chain = tracing.Middleware(chain)
	chain = middleware.CSP(middleware.DefaultCSPConfig())(chain)
	chain = middleware.CORS(*corsConfig)(chain)

	return chain
}

// runServer serves until SIGINT/SIGTERM, then drains connections.
func runServer(logger *slog.Logger, components *ServerComponents, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupCfg := hhttp.LoadCleanupConfigFromEnv()
	if components.IPStore != nil {
		go hhttp.StartRateLimitCleanup(ctx, components.IPStore, cleanupCfg.Interval, components.IPWindow, "ip")
		logger.Info("IP rate limit cleanup started",
			slog.Duration("interval", cleanupCfg.Interval),
			slog.Duration("window", components.IPWindow))
	}

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Slowloris 対策
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
