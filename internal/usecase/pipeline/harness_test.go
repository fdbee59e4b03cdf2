package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/infra/llm"
	"pulse-digest/internal/repository"
	"pulse-digest/internal/usecase/fetch"
	"pulse-digest/internal/usecase/index"
	"pulse-digest/internal/usecase/mail"
	"pulse-digest/internal/usecase/rank"
	"pulse-digest/internal/usecase/search"
	"pulse-digest/internal/usecase/summarize"
)

// memStore is a single in-memory backing store shared by the five repo
// fakes, so cross-repo reads (summary window joins, reconciliation) behave
// like the real schema.
type memStore struct {
	mu      sync.Mutex
	videos  map[string]*entity.VideoItem
	webs    map[string]*entity.WebItem
	sums    map[string]*entity.Summary
	vecs    map[string]*entity.VectorRecord
	runs    map[int64]*entity.RunRecord
	nextRun int64
}

func newMemStore() *memStore {
	return &memStore{
		videos: make(map[string]*entity.VideoItem),
		webs:   make(map[string]*entity.WebItem),
		sums:   make(map[string]*entity.Summary),
		vecs:   make(map[string]*entity.VectorRecord),
		runs:   make(map[int64]*entity.RunRecord),
	}
}

func sumKey(kind entity.ArticleKind, id string) string {
	return string(kind) + ":" + id
}

func inWindow(at, from, to time.Time) bool {
	return !at.Before(from) && !at.After(to)
}

type memVideos struct{ s *memStore }

func (m *memVideos) UpsertBatch(ctx context.Context, items []*entity.VideoItem) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inserted := 0
	for _, it := range items {
		existing, ok := m.s.videos[it.VideoID]
		if !ok {
			cp := *it
			if cp.CreatedAt.IsZero() {
				cp.CreatedAt = time.Now()
			}
			m.s.videos[it.VideoID] = &cp
			inserted++
			continue
		}
		if it.Title != "" && it.Title != existing.Title {
			existing.Title = it.Title
		}
		if it.Description != "" && it.Description != existing.Description {
			existing.Description = it.Description
		}
		if existing.Transcript == "" && it.Transcript != "" {
			existing.Transcript = it.Transcript
		}
	}
	return inserted, nil
}

func (m *memVideos) Get(ctx context.Context, videoID string) (*entity.VideoItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if v, ok := m.s.videos[videoID]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (m *memVideos) ListWindow(ctx context.Context, from, to time.Time) ([]*entity.VideoItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.VideoItem
	for _, v := range m.s.videos {
		if inWindow(v.PublishedAt, from, to) {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, nil
}

func (m *memVideos) ListMissingTranscript(ctx context.Context, from, to time.Time) ([]*entity.VideoItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.VideoItem
	for _, v := range m.s.videos {
		if v.Transcript == "" && inWindow(v.PublishedAt, from, to) {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	return out, nil
}

func (m *memVideos) SetTranscript(ctx context.Context, videoID, transcript string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if v, ok := m.s.videos[videoID]; ok && v.Transcript == "" {
		v.Transcript = transcript
	}
	return nil
}

func (m *memVideos) ListRecent(ctx context.Context, limit int) ([]*entity.VideoItem, error) {
	all, _ := m.ListWindow(ctx, time.Time{}, time.Now().Add(24*time.Hour))
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memVideos) Count(ctx context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return int64(len(m.s.videos)), nil
}

type memWebs struct{ s *memStore }

func (m *memWebs) UpsertBatch(ctx context.Context, items []*entity.WebItem) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inserted := 0
	for _, it := range items {
		existing, ok := m.s.webs[it.GUID]
		if !ok {
			cp := *it
			if cp.CreatedAt.IsZero() {
				cp.CreatedAt = time.Now()
			}
			m.s.webs[it.GUID] = &cp
			inserted++
			continue
		}
		if it.Title != "" && it.Title != existing.Title {
			existing.Title = it.Title
		}
		if it.Description != "" && it.Description != existing.Description {
			existing.Description = it.Description
		}
		if it.Content != "" && it.Content != existing.Content {
			existing.Content = it.Content
		}
	}
	return inserted, nil
}

func (m *memWebs) Get(ctx context.Context, guid string) (*entity.WebItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if w, ok := m.s.webs[guid]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, nil
}

func (m *memWebs) ListWindow(ctx context.Context, from, to time.Time) ([]*entity.WebItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.WebItem
	for _, w := range m.s.webs {
		if inWindow(w.PublishedAt, from, to) {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, nil
}

func (m *memWebs) ListRecent(ctx context.Context, limit int) ([]*entity.WebItem, error) {
	all, _ := m.ListWindow(ctx, time.Time{}, time.Now().Add(24*time.Hour))
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memWebs) Count(ctx context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return int64(len(m.s.webs)), nil
}

type memSums struct{ s *memStore }

func (m *memSums) Create(ctx context.Context, sum *entity.Summary) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := sumKey(sum.ArticleKind, sum.ArticleID)
	if _, ok := m.s.sums[key]; ok {
		return nil
	}
	cp := *sum
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.s.sums[key] = &cp
	return nil
}

func (m *memSums) Get(ctx context.Context, kind entity.ArticleKind, articleID string) (*entity.Summary, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if sum, ok := m.s.sums[sumKey(kind, articleID)]; ok {
		cp := *sum
		return &cp, nil
	}
	return nil, nil
}

func (m *memSums) ExistsBatch(ctx context.Context, kind entity.ArticleKind, articleIDs []string) (map[string]bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make(map[string]bool, len(articleIDs))
	for _, id := range articleIDs {
		_, ok := m.s.sums[sumKey(kind, id)]
		out[id] = ok
	}
	return out, nil
}

// meta looks up the publication metadata of the summarized item. Callers
// hold the store lock.
func (m *memSums) meta(sum *entity.Summary) repository.SummaryWithMeta {
	cp := *sum
	wm := repository.SummaryWithMeta{Summary: &cp}
	switch sum.ArticleKind {
	case entity.ArticleKindVideo:
		if v, ok := m.s.videos[sum.ArticleID]; ok {
			wm.PublishedAt = v.PublishedAt
			wm.SourceName = v.ChannelID
		}
	case entity.ArticleKindWeb:
		if w, ok := m.s.webs[sum.ArticleID]; ok {
			wm.PublishedAt = w.PublishedAt
			wm.SourceName = w.SourceName
			wm.Category = w.Category
		}
	}
	return wm
}

func (m *memSums) ListWindow(ctx context.Context, from, to time.Time) ([]repository.SummaryWithMeta, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []repository.SummaryWithMeta
	for _, sum := range m.s.sums {
		wm := m.meta(sum)
		if inWindow(wm.PublishedAt, from, to) {
			out = append(out, wm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, nil
}

func (m *memSums) ListWindowPaginated(ctx context.Context, from, to time.Time, offset, limit int) ([]repository.SummaryWithMeta, int64, error) {
	all, err := m.ListWindow(ctx, from, to)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *memSums) ListWithoutVector(ctx context.Context) ([]repository.SummaryWithMeta, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []repository.SummaryWithMeta
	for key, sum := range m.s.sums {
		if sum.DuplicateOf != "" {
			continue
		}
		if _, ok := m.s.vecs[key]; ok {
			continue
		}
		out = append(out, m.meta(sum))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.Before(out[j].PublishedAt)
		}
		return out[i].Summary.RecordID() < out[j].Summary.RecordID()
	})
	return out, nil
}

func (m *memSums) MarkDuplicate(ctx context.Context, kind entity.ArticleKind, articleID, duplicateOf string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if sum, ok := m.s.sums[sumKey(kind, articleID)]; ok {
		sum.DuplicateOf = duplicateOf
	}
	return nil
}

func (m *memSums) Delete(ctx context.Context, kind entity.ArticleKind, articleID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.sums, sumKey(kind, articleID))
	return nil
}

func (m *memSums) Count(ctx context.Context) (int64, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var dups int64
	for _, sum := range m.s.sums {
		if sum.DuplicateOf != "" {
			dups++
		}
	}
	return int64(len(m.s.sums)), dups, nil
}

type memVecs struct{ s *memStore }

func (m *memVecs) Upsert(ctx context.Context, rec *entity.VectorRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *rec
	m.s.vecs[rec.RecordID] = &cp
	return nil
}

func (m *memVecs) Delete(ctx context.Context, recordID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.vecs[recordID]
	delete(m.s.vecs, recordID)
	return ok, nil
}

func (m *memVecs) Exists(ctx context.Context, recordID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.vecs[recordID]
	return ok, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (m *memVecs) Query(ctx context.Context, q repository.VectorQuery) ([]entity.SearchHit, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var hits []entity.SearchHit
	for _, rec := range m.s.vecs {
		if q.Filter.Kind != "" && rec.ArticleKind != q.Filter.Kind {
			continue
		}
		if q.Filter.Category != "" && rec.Category != q.Filter.Category {
			continue
		}
		hits = append(hits, entity.SearchHit{
			RecordID:    rec.RecordID,
			ArticleKind: rec.ArticleKind,
			URL:         rec.URL,
			Title:       rec.Title,
			Category:    rec.Category,
			SourceName:  rec.SourceName,
			PublishedAt: rec.PublishedAt,
			Similarity:  cosine(q.Embedding, rec.Embedding),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if !hits[i].PublishedAt.Equal(hits[j].PublishedAt) {
			return hits[i].PublishedAt.After(hits[j].PublishedAt)
		}
		return hits[i].RecordID < hits[j].RecordID
	})
	if q.K > 0 && len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

func (m *memVecs) Count(ctx context.Context, filter entity.SearchFilter) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, rec := range m.s.vecs {
		if filter.Kind != "" && rec.ArticleKind != filter.Kind {
			continue
		}
		if filter.Category != "" && rec.Category != filter.Category {
			continue
		}
		n++
	}
	return n, nil
}

type memRuns struct{ s *memStore }

func (m *memRuns) Create(ctx context.Context, run *entity.RunRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.nextRun++
	run.ID = m.s.nextRun
	cp := *run
	m.s.runs[run.ID] = &cp
	return nil
}

func (m *memRuns) Update(ctx context.Context, run *entity.RunRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *run
	m.s.runs[run.ID] = &cp
	return nil
}

func (m *memRuns) Get(ctx context.Context, runID int64) (*entity.RunRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if run, ok := m.s.runs[runID]; ok {
		cp := *run
		return &cp, nil
	}
	return nil, entity.ErrNotFound
}

func (m *memRuns) Latest(ctx context.Context) (*entity.RunRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var latest *entity.RunRecord
	for _, run := range m.s.runs {
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memRuns) List(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.RunRecord
	for _, run := range m.s.runs {
		cp := *run
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// stubAdapter serves a fixed item list, or a scripted error.
type stubAdapter struct {
	name  string
	kind  entity.SourceKind
	items []entity.FeedItem
	err   error
	block bool // hold until the context ends, for cancellation tests

	calls int32
}

func (a *stubAdapter) Name() string            { return a.name }
func (a *stubAdapter) Kind() entity.SourceKind { return a.kind }

func (a *stubAdapter) Fetch(ctx context.Context, since, now time.Time) ([]entity.FeedItem, error) {
	atomic.AddInt32(&a.calls, 1)
	if a.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if a.err != nil {
		return nil, a.err
	}
	var out []entity.FeedItem
	for _, item := range a.items {
		at := item.PublishedAt()
		if at.Before(since) || at.After(now) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// stubEnricher serves transcripts from a fixed map.
type stubEnricher struct {
	transcripts map[string]string
	calls       int32
}

func (e *stubEnricher) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	atomic.AddInt32(&e.calls, 1)
	return e.transcripts[videoID], nil
}

// routedProvider dispatches scripted completions by call shape, recognized
// from the system prompt. Unscripted shapes answer with a minimal valid
// reply.
type routedProvider struct {
	digestCalls int32
	rankCalls   int32
	introCalls  int32

	digest func(call int32, req llm.CompletionRequest) (string, error)
	rank   func(call int32, req llm.CompletionRequest) (string, error)
	intro  func(call int32, req llm.CompletionRequest) (string, error)
}

func (p *routedProvider) Name() string { return "routed" }

func (p *routedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	switch {
	case strings.Contains(req.System, "digest writer"):
		call := atomic.AddInt32(&p.digestCalls, 1)
		if p.digest != nil {
			return p.digest(call, req)
		}
		return digestJSON("Digest title", "A concise two sentence summary. It covers the essentials."), nil
	case strings.Contains(req.System, "score news items"):
		call := atomic.AddInt32(&p.rankCalls, 1)
		if p.rank != nil {
			return p.rank(call, req)
		}
		return rankJSON(7.0), nil
	default:
		call := atomic.AddInt32(&p.introCalls, 1)
		if p.intro != nil {
			return p.intro(call, req)
		}
		return `{"intro": "Here is what matters today."}`, nil
	}
}

func digestJSON(title, summary string) string {
	return fmt.Sprintf(`{"title": %q, "summary": %q}`, title, summary)
}

func rankJSON(score float64) string {
	return fmt.Sprintf(`{"score": %.1f, "sub_scores": {"relevance": %.1f, "depth": 5, "novelty": 5, "alignment": 5, "actionability": 5}, "reasoning": "fits the profile"}`, score, score)
}

// onehotEmbedder assigns every distinct text its own axis, so identical
// texts embed identically (cosine 1) and distinct texts are orthogonal
// (cosine 0). That makes the duplicate threshold exact in tests.
type onehotEmbedder struct {
	mu   sync.Mutex
	axes map[string]int
	dim  int
}

func newOnehotEmbedder(dim int) *onehotEmbedder {
	return &onehotEmbedder{axes: make(map[string]int), dim: dim}
}

func (e *onehotEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		axis, ok := e.axes[text]
		if !ok {
			axis = len(e.axes) % e.dim
			e.axes[text] = axis
		}
		vec := make([]float32, e.dim)
		vec[axis] = 1
		out[i] = vec
	}
	return out, nil
}

// stubTransport records submissions and optionally fails them.
type stubTransport struct {
	mu    sync.Mutex
	sends []sentMail
	err   error
}

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

func (t *stubTransport) Send(ctx context.Context, to, subject, html string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sends = append(t.sends, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (t *stubTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sends)
}

// harness assembles the real stage services over the in-memory store.
type harness struct {
	store     *memStore
	videos    *memVideos
	webs      *memWebs
	sums      *memSums
	vecs      *memVecs
	runs      *memRuns
	provider  *routedProvider
	embedder  *onehotEmbedder
	transport *stubTransport
	pipeCfg   *config.PipelineConfig
	svc       *Service
}

func testPipelineConfig() *config.PipelineConfig {
	return &config.PipelineConfig{
		WindowHours:       24,
		TopN:              10,
		FetchConcurrency:  8,
		RenderConcurrency: 2,
		FetchTimeout:      5 * time.Second,
		RenderTimeout:     5 * time.Second,
		FetchMaxRetries:   0,
		ParseMaxRetries:   2,
		DupThreshold:      0.95,
		RankContextK:      2,
	}
}

func testModelConfig() *config.ModelConfig {
	return &config.ModelConfig{
		Provider:              config.ProviderClaude,
		AnthropicAPIKey:       "test-key",
		Model:                 "test-model",
		DigestTemperature:     0.7,
		RankTemperature:       0.3,
		EmailTemperature:      0.7,
		Timeout:               5 * time.Second,
		Concurrency:           4,
		SummaryInputCharLimit: 10000,
	}
}

func testProfile() *entity.Profile {
	return &entity.Profile{
		Name:           "Dana",
		Background:     "backend engineer",
		Interests:      []string{"LLM agents", "vector search", "Go"},
		ExpertiseLevel: entity.ExpertiseAdvanced,
	}
}

func newHarness(adapters []fetch.SourceAdapter, enricher fetch.Enricher) *harness {
	h := &harness{
		store:     newMemStore(),
		provider:  &routedProvider{},
		embedder:  newOnehotEmbedder(64),
		transport: &stubTransport{},
		pipeCfg:   testPipelineConfig(),
	}
	h.videos = &memVideos{s: h.store}
	h.webs = &memWebs{s: h.store}
	h.sums = &memSums{s: h.store}
	h.vecs = &memVecs{s: h.store}
	h.runs = &memRuns{s: h.store}

	modelCfg := testModelConfig()
	mailCfg := &config.MailConfig{
		Host:      "smtp.example.com",
		Port:      587,
		Recipient: "dana@example.com",
		Subject:   "AI News Digest",
	}
	profile := testProfile()
	sem := llm.NewSemaphore(modelCfg.Concurrency)

	fetcher := fetch.NewService(adapters, h.pipeCfg)
	digester := summarize.NewService(h.provider, h.sums, sem, modelCfg, h.pipeCfg)
	indexer := index.NewService(h.sums, h.vecs, h.embedder, h.pipeCfg)
	retriever := search.NewService(h.vecs, h.embedder)
	ranker := rank.NewService(h.sums, retriever, h.provider, profile, sem, modelCfg, h.pipeCfg)
	mailer := mail.NewService(h.transport, h.provider, profile, sem, modelCfg, mailCfg, h.pipeCfg)

	h.svc = NewService(fetcher, enricher, digester, indexer, ranker, mailer,
		h.videos, h.webs, h.sums, h.runs, h.pipeCfg)
	return h
}

func videoFeedItem(id, title string, published time.Time) entity.FeedItem {
	return entity.NewVideoFeedItem(&entity.VideoItem{
		VideoID:     id,
		ChannelID:   "UC-test",
		Title:       title,
		URL:         "https://www.youtube.com/watch?v=" + id,
		Description: "description of " + title,
		PublishedAt: published,
	})
}

func webFeedItem(guid, title string, published time.Time) entity.FeedItem {
	return entity.NewWebFeedItem(&entity.WebItem{
		GUID:        guid,
		SourceName:  "example-blog",
		Title:       title,
		URL:         "https://example.com/" + guid,
		Description: "description of " + title,
		Category:    entity.CategoryNews,
		PublishedAt: published,
	})
}
