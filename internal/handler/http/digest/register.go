package digest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"pulse-digest/internal/common/pagination"
	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/handler/http/auth"
	"pulse-digest/internal/usecase/archive"
	"pulse-digest/internal/usecase/mail"
	"pulse-digest/internal/usecase/pipeline"
	"pulse-digest/internal/usecase/search"
)

// Pipeline is the slice of the run orchestrator the request plane drives.
type Pipeline interface {
	StartRun(ctx context.Context, opts pipeline.Options) (*entity.RunRecord, error)
	StartScrape(ctx context.Context, windowHours int) (*entity.RunRecord, error)
	SendDigest(ctx context.Context, opts pipeline.Options) (*entity.RunRecord, mail.Delivery, error)
	Cancel(runID int64) bool
}

// Archive is the read side the listing endpoints consume.
type Archive interface {
	ListSummaries(ctx context.Context, from, to time.Time, params pagination.Params) (*archive.SummariesPage, error)
	Items(ctx context.Context, kind entity.ArticleKind, limit int) (*archive.Items, error)
	Run(ctx context.Context, runID int64) (*entity.RunRecord, error)
	Runs(ctx context.Context, limit int) ([]*entity.RunRecord, error)
	Stats(ctx context.Context) (*archive.Stats, error)
	Prune(ctx context.Context, runID int64) error
}

// Searcher answers semantic search requests.
type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]entity.SearchHit, error)
}

// Register mounts the request plane under /api/v1. Operations that start,
// cancel or deliver work require authentication; listings and search stay
// readable without a token.
func Register(mux *http.ServeMux, pipe Pipeline, arch Archive, searcher Searcher, pipeCfg *config.PipelineConfig, paginationCfg pagination.Config, logger *slog.Logger) {
	mux.Handle("POST   /api/v1/scrape", auth.Authz(ScrapeHandler{Pipe: pipe, Cfg: pipeCfg, Logger: logger}))

	mux.Handle("POST   /api/v1/runs", auth.Authz(RunCreateHandler{Pipe: pipe, Cfg: pipeCfg, Logger: logger}))
	mux.Handle("GET    /api/v1/runs", RunListHandler{Arch: arch})
	mux.Handle("GET    /api/v1/runs/", RunGetHandler{Arch: arch})
	mux.Handle("DELETE /api/v1/runs/", auth.Authz(RunCancelHandler{Pipe: pipe, Arch: arch, Logger: logger}))

	mux.Handle("POST   /api/v1/digest/send", auth.Authz(SendHandler{Pipe: pipe, Cfg: pipeCfg, Logger: logger}))

	mux.Handle("GET    /api/v1/search", SearchHandler{Searcher: searcher})
	mux.Handle("GET    /api/v1/summaries", SummariesHandler{Arch: arch, Cfg: pipeCfg, PaginationCfg: paginationCfg, Logger: logger})
	mux.Handle("GET    /api/v1/stats", StatsHandler{Arch: arch})
	mux.Handle("GET    /api/v1/items", ItemsHandler{Arch: arch})
}
