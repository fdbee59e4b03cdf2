package digest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-digest/internal/common/pagination"
	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/repository"
	"pulse-digest/internal/usecase/archive"
	"pulse-digest/internal/usecase/mail"
	"pulse-digest/internal/usecase/pipeline"
	"pulse-digest/internal/usecase/search"
)

type stubPipeline struct {
	run       *entity.RunRecord
	delivery  mail.Delivery
	err       error
	cancelled map[int64]bool

	gotOpts   pipeline.Options
	gotWindow int
}

func (p *stubPipeline) StartRun(ctx context.Context, opts pipeline.Options) (*entity.RunRecord, error) {
	p.gotOpts = opts
	return p.run, p.err
}

func (p *stubPipeline) StartScrape(ctx context.Context, windowHours int) (*entity.RunRecord, error) {
	p.gotWindow = windowHours
	return p.run, p.err
}

func (p *stubPipeline) SendDigest(ctx context.Context, opts pipeline.Options) (*entity.RunRecord, mail.Delivery, error) {
	p.gotOpts = opts
	return p.run, p.delivery, p.err
}

func (p *stubPipeline) Cancel(runID int64) bool { return p.cancelled[runID] }

type stubArchive struct {
	page  *archive.SummariesPage
	items *archive.Items
	runs  map[int64]*entity.RunRecord
	list  []*entity.RunRecord
	stats *archive.Stats
	err   error
}

func (a *stubArchive) ListSummaries(ctx context.Context, from, to time.Time, params pagination.Params) (*archive.SummariesPage, error) {
	return a.page, a.err
}

func (a *stubArchive) Items(ctx context.Context, kind entity.ArticleKind, limit int) (*archive.Items, error) {
	if kind != "" && !kind.IsValid() {
		return nil, archive.ErrInvalidKind
	}
	return a.items, a.err
}

func (a *stubArchive) Run(ctx context.Context, runID int64) (*entity.RunRecord, error) {
	if run, ok := a.runs[runID]; ok {
		return run, nil
	}
	return nil, archive.ErrRunNotFound
}

func (a *stubArchive) Runs(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	return a.list, a.err
}

func (a *stubArchive) Stats(ctx context.Context) (*archive.Stats, error) {
	return a.stats, a.err
}

func (a *stubArchive) Prune(ctx context.Context, runID int64) error {
	run, ok := a.runs[runID]
	if !ok {
		return archive.ErrRunNotFound
	}
	if !run.State.IsTerminal() {
		return archive.ErrRunActive
	}
	delete(a.runs, runID)
	return nil
}

type stubSearcher struct {
	hits []entity.SearchHit
	got  search.Request
}

func (s *stubSearcher) Search(ctx context.Context, req search.Request) ([]entity.SearchHit, error) {
	s.got = req
	if strings.TrimSpace(req.Query) == "" {
		return nil, &entity.ValidationError{Field: "query", Message: "query is required"}
	}
	return s.hits, nil
}

func testCfg() *config.PipelineConfig {
	return &config.PipelineConfig{WindowHours: 24, TopN: 10}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func sampleRun() *entity.RunRecord {
	return &entity.RunRecord{
		ID:          42,
		StartedAt:   time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC),
		WindowHours: 24,
		TopN:        10,
		Stage:       entity.StageScrape,
		State:       entity.RunStateRunning,
	}
}

func TestRunCreateHandler(t *testing.T) {
	pipe := &stubPipeline{run: sampleRun()}
	h := RunCreateHandler{Pipe: pipe, Cfg: testCfg(), Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs",
		strings.NewReader(`{"window_hours": 48, "top_n": 5, "skip_email": true}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 48, pipe.gotOpts.WindowHours)
	assert.Equal(t, 5, pipe.gotOpts.TopN)
	assert.True(t, pipe.gotOpts.SkipEmail)

	var dto RunDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, int64(42), dto.ID)
	assert.Equal(t, "running", dto.State)
}

func TestRunCreateHandler_EmptyBodyUsesDefaults(t *testing.T) {
	pipe := &stubPipeline{run: sampleRun()}
	h := RunCreateHandler{Pipe: pipe, Cfg: testCfg(), Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(""))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 24, pipe.gotOpts.WindowHours)
	assert.Zero(t, pipe.gotOpts.TopN, "top_n fallback happens in the orchestrator")
}

func TestRunCreateHandler_WindowHoursZeroIsLiteral(t *testing.T) {
	pipe := &stubPipeline{run: sampleRun()}
	h := RunCreateHandler{Pipe: pipe, Cfg: testCfg(), Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"window_hours": 0}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, pipe.gotOpts.WindowHours, "an explicit zero window must not fall back to the default")
}

func TestRunCreateHandler_MalformedBody(t *testing.T) {
	h := RunCreateHandler{Pipe: &stubPipeline{}, Cfg: testCfg(), Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"window_hours": "yes"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeHandler_DefaultWindow(t *testing.T) {
	pipe := &stubPipeline{run: sampleRun()}
	h := ScrapeHandler{Pipe: pipe, Cfg: testCfg(), Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(""))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 24, pipe.gotWindow)
}

func TestRunGetHandler(t *testing.T) {
	arch := &stubArchive{runs: map[int64]*entity.RunRecord{42: sampleRun()}}
	h := RunGetHandler{Arch: arch}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var dto RunDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, int64(42), dto.ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunCancelHandler(t *testing.T) {
	finished := sampleRun()
	finished.ID = 43
	finished.State = entity.RunStateCompleted
	elsewhere := sampleRun()
	elsewhere.ID = 44
	pipe := &stubPipeline{cancelled: map[int64]bool{42: true}}
	arch := &stubArchive{runs: map[int64]*entity.RunRecord{42: sampleRun(), 43: finished, 44: elsewhere}}
	h := RunCancelHandler{Pipe: pipe, Arch: arch, Logger: testLogger()}

	// アクティブなラン
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/runs/42", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// 終了済みのランは記録ごと削除される
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/runs/43", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"pruned"}`, rec.Body.String())
	assert.NotContains(t, arch.runs, int64(43))

	// 別プロセスが実行中のランには触れない
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/runs/44", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// 存在しないラン
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/runs/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendHandler(t *testing.T) {
	sentAt := time.Date(2026, 2, 10, 6, 5, 0, 0, time.UTC)
	pipe := &stubPipeline{
		run:      sampleRun(),
		delivery: mail.Delivery{Emailed: 10, SentAt: sentAt, Rendered: 1},
	}
	h := SendHandler{Pipe: pipe, Cfg: testCfg(), Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/digest/send",
		strings.NewReader(`{"top_n": 10, "recipient": "other@example.com"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "other@example.com", pipe.gotOpts.Recipient)

	var resp sendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.RunID)
	assert.Equal(t, 10, resp.Count)
	require.NotNil(t, resp.SentAt)
	assert.True(t, resp.SentAt.Equal(sentAt))
}

func TestSearchHandler(t *testing.T) {
	searcher := &stubSearcher{hits: []entity.SearchHit{
		{RecordID: "web:abc", ArticleKind: entity.ArticleKindWeb, Title: "Hit",
			Summary: "Two sentences about the hit.", Similarity: 0.91},
	}}
	h := SearchHandler{Searcher: searcher}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?query=agents&k=5&kind=web", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "agents", searcher.got.Query)
	assert.Equal(t, 5, searcher.got.K)
	assert.Equal(t, entity.ArticleKindWeb, searcher.got.Filter.Kind)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "web:abc", resp.Hits[0].RecordID)
	// ヒットは要約本文を伴って返る
	assert.Equal(t, "Two sentences about the hit.", resp.Hits[0].Summary)

	// クエリなしは 400
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummariesHandler(t *testing.T) {
	arch := &stubArchive{page: &archive.SummariesPage{
		Data: []repository.SummaryWithMeta{
			{
				Summary: &entity.Summary{
					ArticleKind: entity.ArticleKindWeb, ArticleID: "abc",
					Title: "Story", URL: "https://example.com/abc", Summary: "text",
				},
				SourceName: "example-blog",
				Category:   entity.CategoryNews,
			},
		},
		Pagination: pagination.Metadata{Total: 1, Page: 1, PageSize: 20, TotalPages: 1},
	}}
	h := SummariesHandler{Arch: arch, Cfg: testCfg(), PaginationCfg: pagination.DefaultConfig(), Logger: testLogger()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/summaries?window_hours=48", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp pagination.Response[SummaryDTO]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "web", resp.Data[0].Kind)
	assert.Equal(t, "example-blog", resp.Data[0].SourceName)
	assert.Equal(t, int64(1), resp.Pagination.Total)
}

func TestStatsHandler(t *testing.T) {
	last := sampleRun()
	last.State = entity.RunStateCompleted
	arch := &stubArchive{stats: &archive.Stats{
		Videos: 3, Webs: 20, Summaries: 23, Duplicates: 1, Vectors: 22,
		LastRun: last, ActiveRuns: 1,
	}}
	h := StatsHandler{Arch: arch}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var dto StatsDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, int64(23), dto.Summaries)
	assert.Equal(t, int64(1), dto.Duplicates)
	require.NotNil(t, dto.LastRun)
	assert.Equal(t, "completed", dto.LastRun.State)
}

func TestItemsHandler(t *testing.T) {
	arch := &stubArchive{items: &archive.Items{
		Videos: []*entity.VideoItem{{VideoID: "v1", Title: "Video", Transcript: "words"}},
		Webs:   []*entity.WebItem{{GUID: "w1", Title: "Web", Category: entity.CategoryOfficial}},
	}}
	h := ItemsHandler{Arch: arch}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp itemsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Videos, 1)
	assert.True(t, resp.Videos[0].HasBody)
	require.Len(t, resp.Webs, 1)
	assert.Equal(t, "official", resp.Webs[0].Category)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items?kind=audio", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
