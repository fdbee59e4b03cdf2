package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/infra/llm"
	"pulse-digest/internal/resilience/retry"
	"pulse-digest/internal/usecase/fetch"
)

func TestRun_ColdStart(t *testing.T) {
	now := time.Now().UTC()
	adapterA := &stubAdapter{name: "channel-a", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		videoFeedItem("v1", "Video one", now.Add(-1*time.Hour)),
		videoFeedItem("v2", "Video two", now.Add(-2*time.Hour)),
		videoFeedItem("v3", "Video three", now.Add(-3*time.Hour)),
	}}
	adapterB := &stubAdapter{name: "blog-b", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		webFeedItem("w1", "Web one", now.Add(-4*time.Hour)),
		webFeedItem("w2", "Web two", now.Add(-5*time.Hour)),
	}}

	h := newHarness([]fetch.SourceAdapter{adapterA, adapterB}, nil)
	// 要約本文を項目ごとに変えて重複抑制を発火させない
	h.provider.digest = func(call int32, req llm.CompletionRequest) (string, error) {
		return digestJSON(fmt.Sprintf("Story %d", call), fmt.Sprintf("Unique summary number %d. It matters today.", call)), nil
	}

	run, err := h.svc.Run(context.Background(), Options{WindowHours: 24, TopN: 3})
	require.NoError(t, err)

	assert.Equal(t, entity.RunStateCompleted, run.State)
	assert.Equal(t, entity.StageDone, run.Stage)
	assert.Equal(t, 5, run.Counters.Scraped)
	assert.Equal(t, 5, run.Counters.NewItems)
	assert.Equal(t, 5, run.Counters.Summarized)
	assert.Equal(t, 5, run.Counters.Indexed)
	assert.Equal(t, 3, run.Counters.Ranked)
	assert.Equal(t, 3, run.Counters.Emailed)
	assert.Empty(t, run.Counters.FailedAdapters)
	require.NotNil(t, run.FinishedAt)

	total, dups, err := h.sums.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Zero(t, dups)

	vecCount, err := h.vecs.Count(context.Background(), entity.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), vecCount)

	assert.Equal(t, 1, h.transport.count())
	assert.Equal(t, "dana@example.com", h.transport.sends[0].To)
}

func TestRun_Idempotent(t *testing.T) {
	now := time.Now().UTC()
	adapter := &stubAdapter{name: "blog", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		webFeedItem("w1", "Web one", now.Add(-1 * time.Hour)),
		webFeedItem("w2", "Web two", now.Add(-2 * time.Hour)),
	}}

	h := newHarness([]fetch.SourceAdapter{adapter}, nil)
	h.provider.digest = func(call int32, req llm.CompletionRequest) (string, error) {
		// 同一項目の再要約は起きない前提なので、呼び出し番号で内容を変えてよい
		return digestJSON(fmt.Sprintf("Story %d", call), fmt.Sprintf("Unique summary number %d. Still unique.", call)), nil
	}

	first, err := h.svc.Run(context.Background(), Options{WindowHours: 24, SkipEmail: true})
	require.NoError(t, err)
	require.Equal(t, entity.RunStateCompleted, first.State)
	require.Equal(t, int32(2), atomic.LoadInt32(&h.provider.digestCalls))

	second, err := h.svc.Run(context.Background(), Options{WindowHours: 24, SkipEmail: true})
	require.NoError(t, err)

	assert.Equal(t, entity.RunStateCompleted, second.State)
	assert.Equal(t, 2, second.Counters.Scraped)
	assert.Zero(t, second.Counters.NewItems)
	assert.Zero(t, second.Counters.Summarized)
	assert.Equal(t, 2, second.Counters.Skipped)
	assert.Zero(t, second.Counters.Indexed)

	// 2回目のランが要約モデルを呼び直していないこと
	assert.Equal(t, int32(2), atomic.LoadInt32(&h.provider.digestCalls))

	total, _, err := h.sums.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	vecCount, err := h.vecs.Count(context.Background(), entity.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), vecCount)
}

func TestRun_DuplicateSuppression(t *testing.T) {
	now := time.Now().UTC()
	adapter := &stubAdapter{name: "blog", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		webFeedItem("w-new", "Fresh item", now.Add(-1 * time.Hour)),
	}}

	h := newHarness([]fetch.SourceAdapter{adapter}, nil)

	// 既存の要約とそのベクトルを事前投入する
	ctx := context.Background()
	_, err := h.webs.UpsertBatch(ctx, []*entity.WebItem{{
		GUID: "w-old", SourceName: "example-blog", Title: "Old item",
		URL: "https://example.com/w-old", Category: entity.CategoryNews,
		PublishedAt: now.Add(-2 * time.Hour),
	}})
	require.NoError(t, err)
	existing := &entity.Summary{
		ArticleKind: entity.ArticleKindWeb, ArticleID: "w-old",
		URL: "https://example.com/w-old", Title: "Shared title",
		Summary: "The exact same summary text.",
	}
	require.NoError(t, h.sums.Create(ctx, existing))
	vecs, err := h.embedder.Embed(ctx, []string{existing.EmbeddingText()})
	require.NoError(t, err)
	require.NoError(t, h.vecs.Upsert(ctx, &entity.VectorRecord{
		RecordID: existing.RecordID(), Embedding: vecs[0],
		ArticleKind: entity.ArticleKindWeb, URL: existing.URL,
		Title: existing.Title, Category: entity.CategoryNews,
		SourceName: "example-blog", PublishedAt: now.Add(-2 * time.Hour),
	}))

	// 新項目が同一の要約テキストを生む
	h.provider.digest = func(call int32, req llm.CompletionRequest) (string, error) {
		return digestJSON("Shared title", "The exact same summary text."), nil
	}

	run, err := h.svc.Run(ctx, Options{WindowHours: 24, SkipEmail: true})
	require.NoError(t, err)
	require.Equal(t, entity.RunStateCompleted, run.State)

	dup, err := h.sums.Get(ctx, entity.ArticleKindWeb, "w-new")
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, "web:w-old", dup.DuplicateOf)

	vecCount, err := h.vecs.Count(ctx, entity.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), vecCount, "duplicate must not enter the index")
	assert.Zero(t, run.Counters.Indexed)
	// 既要約1件のスキップ + 重複抑制1件
	assert.Equal(t, 2, run.Counters.Skipped)
}

func TestRun_PartialAdapterFailure(t *testing.T) {
	now := time.Now().UTC()
	adapterA := &stubAdapter{name: "adapter-a", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		webFeedItem("a1", "A one", now.Add(-1 * time.Hour)),
		webFeedItem("a2", "A two", now.Add(-2 * time.Hour)),
		webFeedItem("a3", "A three", now.Add(-3 * time.Hour)),
		webFeedItem("a4", "A four", now.Add(-4 * time.Hour)),
	}}
	adapterB := &stubAdapter{name: "adapter-b", kind: entity.SourceKindSyndication,
		err: &fetch.SourceError{Source: "adapter-b", Kind: fetch.FailureParse}}

	h := newHarness([]fetch.SourceAdapter{adapterA, adapterB}, nil)
	h.provider.digest = func(call int32, req llm.CompletionRequest) (string, error) {
		return digestJSON(fmt.Sprintf("Story %d", call), fmt.Sprintf("Unique summary number %d. Done.", call)), nil
	}

	run, err := h.svc.Run(context.Background(), Options{WindowHours: 24, SkipEmail: true})
	require.NoError(t, err)

	assert.Equal(t, entity.RunStateCompleted, run.State)
	assert.Equal(t, []string{"adapter-b"}, run.Counters.FailedAdapters)
	assert.Equal(t, 4, run.Counters.Scraped)
	assert.Equal(t, 4, run.Counters.NewItems)
	assert.Equal(t, 4, run.Counters.Summarized)
	assert.Equal(t, 4, run.Counters.Indexed)

	// 非リトライ対象の失敗は1回で打ち切られている
	assert.Equal(t, int32(1), atomic.LoadInt32(&adapterB.calls))
}

func TestRun_RateLimitedModelRetries(t *testing.T) {
	now := time.Now().UTC()
	adapter := &stubAdapter{name: "blog", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		webFeedItem("w1", "Web one", now.Add(-1 * time.Hour)),
	}}

	h := newHarness([]fetch.SourceAdapter{adapter}, nil)

	// プロバイダ実装と同じ層でリトライを再現する: 最初の2回は retry-after
	// 付きの429、その後成功
	const hint = 200 * time.Millisecond
	var raw atomic.Int32
	h.provider.digest = func(call int32, req llm.CompletionRequest) (string, error) {
		return retryingComplete(&raw, hint)
	}

	start := time.Now()
	run, err := h.svc.Run(context.Background(), Options{WindowHours: 24, SkipEmail: true})
	require.NoError(t, err)

	assert.Equal(t, entity.RunStateCompleted, run.State)
	assert.Equal(t, 1, run.Counters.Summarized)
	assert.GreaterOrEqual(t, time.Since(start), 2*hint, "retry-after hints must be honored")
	assert.Equal(t, int32(3), raw.Load())
}

// retryingComplete reproduces the transport-retry layering of the real
// providers around a scripted two-429s-then-success endpoint. The backoff
// config is scaled down so the retry-after hint dominates the wait.
func retryingComplete(calls *atomic.Int32, hint time.Duration) (string, error) {
	cfg := retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}
	var reply string
	err := retry.WithBackoff(context.Background(), cfg, func() error {
		n := calls.Add(1)
		if n <= 2 {
			return &llm.ModelError{Kind: llm.ErrKindRateLimited, RetryAfter: hint}
		}
		reply = digestJSON("Recovered", "The endpoint recovered after two rate limits. All good.")
		return nil
	})
	return reply, err
}

func TestRun_SkipEmailReturnsRenderedHTML(t *testing.T) {
	now := time.Now().UTC()
	adapter := &stubAdapter{name: "blog", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		webFeedItem("w1", "Web one", now.Add(-1 * time.Hour)),
		webFeedItem("w2", "Web two", now.Add(-2 * time.Hour)),
		webFeedItem("w3", "Web three", now.Add(-3 * time.Hour)),
		webFeedItem("w4", "Web four", now.Add(-4 * time.Hour)),
	}}

	h := newHarness([]fetch.SourceAdapter{adapter}, nil)
	h.provider.digest = func(call int32, req llm.CompletionRequest) (string, error) {
		return digestJSON(fmt.Sprintf("Story %d", call), fmt.Sprintf("Unique summary number %d. Sure.", call)), nil
	}

	run, err := h.svc.Run(context.Background(), Options{WindowHours: 168, TopN: 3, SkipEmail: true})
	require.NoError(t, err)

	assert.Equal(t, entity.RunStateCompleted, run.State)
	assert.Equal(t, 3, run.Counters.Ranked)
	assert.Zero(t, run.Counters.Emailed)
	assert.Equal(t, 1, run.Counters.Rendered)
	assert.Zero(t, h.transport.count(), "skip-email must never reach the transport")
}

func TestRun_CrashRecoveryReindexesWithoutResummarizing(t *testing.T) {
	now := time.Now().UTC()
	h := newHarness(nil, nil)

	// 前回ランが要約保存とベクトル保存の間で落ちた状態を再現する
	ctx := context.Background()
	_, err := h.webs.UpsertBatch(ctx, []*entity.WebItem{{
		GUID: "w1", SourceName: "example-blog", Title: "Orphaned",
		URL: "https://example.com/w1", Category: entity.CategoryNews,
		PublishedAt: now.Add(-1 * time.Hour),
	}})
	require.NoError(t, err)
	require.NoError(t, h.sums.Create(ctx, &entity.Summary{
		ArticleKind: entity.ArticleKindWeb, ArticleID: "w1",
		URL: "https://example.com/w1", Title: "Orphaned summary",
		Summary: "A summary whose vector write was lost.",
	}))

	run, err := h.svc.Run(ctx, Options{WindowHours: 24, SkipEmail: true})
	require.NoError(t, err)

	assert.Equal(t, entity.RunStateCompleted, run.State)
	assert.Equal(t, 1, run.Counters.Indexed)
	assert.Zero(t, atomic.LoadInt32(&h.provider.digestCalls), "reconciliation must not re-call the summary model")

	exists, err := h.vecs.Exists(ctx, "web:w1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRun_EmptyWindowIsEmptyRanking(t *testing.T) {
	now := time.Now().UTC()
	adapter := &stubAdapter{name: "blog", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		webFeedItem("w1", "Old news", now.Add(-48 * time.Hour)),
	}}

	h := newHarness([]fetch.SourceAdapter{adapter}, nil)

	run, err := h.svc.Run(context.Background(), Options{WindowHours: 24, SkipEmail: true})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStateCompleted, run.State)
	assert.Zero(t, run.Counters.Scraped, "items outside the window are dropped by the adapter")
	assert.Zero(t, run.Counters.Summarized)
	assert.Zero(t, run.Counters.Ranked)

	zero, err := h.svc.Run(context.Background(), Options{WindowHours: 0, SkipEmail: true})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStateCompleted, zero.State)
	assert.Zero(t, zero.Counters.Ranked)
	assert.Zero(t, zero.Counters.Rendered)
}

func TestRun_TransportFailureIsAdvisory(t *testing.T) {
	now := time.Now().UTC()
	adapter := &stubAdapter{name: "blog", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		webFeedItem("w1", "Web one", now.Add(-1 * time.Hour)),
	}}

	h := newHarness([]fetch.SourceAdapter{adapter}, nil)
	h.transport.err = fmt.Errorf("smtp: connection refused")

	run, err := h.svc.Run(context.Background(), Options{WindowHours: 24})
	require.NoError(t, err)

	assert.Equal(t, entity.RunStateCompleted, run.State, "mail failure never fails the run")
	assert.Zero(t, run.Counters.Emailed)
	assert.Equal(t, 1, run.Counters.Rendered)
	assert.Equal(t, 1, run.Counters.FailureCounts["transport"])
}

func TestRun_ProcessStageFetchesTranscripts(t *testing.T) {
	now := time.Now().UTC()
	adapter := &stubAdapter{name: "channel", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		videoFeedItem("v1", "Video one", now.Add(-1 * time.Hour)),
	}}
	enricher := &stubEnricher{transcripts: map[string]string{"v1": "spoken words of video one"}}

	h := newHarness([]fetch.SourceAdapter{adapter}, enricher)

	run, err := h.svc.Run(context.Background(), Options{WindowHours: 24, SkipEmail: true})
	require.NoError(t, err)
	require.Equal(t, entity.RunStateCompleted, run.State)

	v, err := h.videos.Get(context.Background(), "v1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "spoken words of video one", v.Transcript)
	assert.Equal(t, int32(1), atomic.LoadInt32(&enricher.calls))

	// 2回目のランは取得済みの字幕を取り直さない
	_, err = h.svc.Run(context.Background(), Options{WindowHours: 24, SkipEmail: true})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&enricher.calls))
}

func TestRun_CancelledAtStageBoundary(t *testing.T) {
	adapter := &stubAdapter{name: "slow", kind: entity.SourceKindSyndication, block: true}
	h := newHarness([]fetch.SourceAdapter{adapter}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	run, err := h.svc.Run(ctx, Options{WindowHours: 24, SkipEmail: true})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStateCancelled, run.State)
	require.NotNil(t, run.FinishedAt)

	stored, err := h.runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStateCancelled, stored.State)
}

func TestCancelByRunID(t *testing.T) {
	adapter := &stubAdapter{name: "slow", kind: entity.SourceKindSyndication, block: true}
	h := newHarness([]fetch.SourceAdapter{adapter}, nil)

	done := make(chan *entity.RunRecord, 1)
	go func() {
		run, _ := h.svc.Run(context.Background(), Options{WindowHours: 24, SkipEmail: true})
		done <- run
	}()

	// ラン登録を待ってからキャンセルする
	var cancelled bool
	for i := 0; i < 100; i++ {
		if h.svc.Cancel(1) {
			cancelled = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, cancelled, "active run must be cancellable by id")

	select {
	case run := <-done:
		assert.Equal(t, entity.RunStateCancelled, run.State)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled run did not finish")
	}

	assert.False(t, h.svc.Cancel(1), "finished run is no longer active")
	assert.Zero(t, h.svc.ActiveRuns())
}

func TestStartRun_ReturnsHandleImmediately(t *testing.T) {
	now := time.Now().UTC()
	adapter := &stubAdapter{name: "blog", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		webFeedItem("w1", "Web one", now.Add(-1 * time.Hour)),
	}}

	h := newHarness([]fetch.SourceAdapter{adapter}, nil)

	// リクエストが終わってもバックグラウンドのランは続く
	ctx, cancel := context.WithCancel(context.Background())
	handle, err := h.svc.StartRun(ctx, Options{WindowHours: 24, SkipEmail: true})
	cancel()
	require.NoError(t, err)
	require.NotZero(t, handle.ID)
	assert.Equal(t, entity.RunStateRunning, handle.State)

	deadline := time.After(5 * time.Second)
	for {
		stored, err := h.runs.Get(context.Background(), handle.ID)
		require.NoError(t, err)
		if stored.State != entity.RunStateRunning {
			assert.Equal(t, entity.RunStateCompleted, stored.State)
			assert.Equal(t, 1, stored.Counters.Summarized)
			return
		}
		select {
		case <-deadline:
			t.Fatal("background run did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScrape_RunsHarvestPrefixOnly(t *testing.T) {
	now := time.Now().UTC()
	adapter := &stubAdapter{name: "blog", kind: entity.SourceKindSyndication, items: []entity.FeedItem{
		webFeedItem("w1", "Web one", now.Add(-1 * time.Hour)),
	}}

	h := newHarness([]fetch.SourceAdapter{adapter}, nil)

	run, err := h.svc.Scrape(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, entity.RunStateCompleted, run.State)
	assert.Equal(t, 1, run.Counters.Scraped)
	assert.Equal(t, 1, run.Counters.NewItems)
	assert.Zero(t, run.Counters.Summarized)
	assert.Zero(t, atomic.LoadInt32(&h.provider.digestCalls))
	vecCount, err := h.vecs.Count(context.Background(), entity.SearchFilter{})
	require.NoError(t, err)
	assert.Zero(t, vecCount)
}

func TestSendDigest_RanksAndSendsExistingWindow(t *testing.T) {
	now := time.Now().UTC()
	h := newHarness(nil, nil)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		guid := fmt.Sprintf("w%d", i)
		_, err := h.webs.UpsertBatch(ctx, []*entity.WebItem{{
			GUID: guid, SourceName: "example-blog", Title: fmt.Sprintf("Web %d", i),
			URL: "https://example.com/" + guid, Category: entity.CategoryNews,
			PublishedAt: now.Add(-time.Duration(i) * time.Hour),
		}})
		require.NoError(t, err)
		require.NoError(t, h.sums.Create(ctx, &entity.Summary{
			ArticleKind: entity.ArticleKindWeb, ArticleID: guid,
			URL: "https://example.com/" + guid, Title: fmt.Sprintf("Summary %d", i),
			Summary: fmt.Sprintf("Unique summary number %d. Indeed.", i),
		}))
	}

	// SkipEmail はオンデマンド送信では無視される
	run, delivery, err := h.svc.SendDigest(ctx, Options{WindowHours: 24, TopN: 2, SkipEmail: true, Recipient: "other@example.com"})
	require.NoError(t, err)

	assert.Equal(t, entity.RunStateCompleted, run.State)
	assert.Equal(t, 2, run.Counters.Ranked)
	assert.Equal(t, 2, run.Counters.Emailed)
	assert.Equal(t, 2, delivery.Emailed)
	assert.NotEmpty(t, delivery.HTML)
	require.Equal(t, 1, h.transport.count())
	assert.Equal(t, "other@example.com", h.transport.sends[0].To)
	assert.Zero(t, atomic.LoadInt32(&h.provider.digestCalls), "send-now must not summarize")
}

func TestSendDigest_TieBreaksByPublishedDesc(t *testing.T) {
	now := time.Now().UTC()
	h := newHarness(nil, nil)

	ctx := context.Background()
	titles := map[string]string{"w-old": "Older story", "w-mid": "Middle story", "w-new": "Newest story"}
	ages := map[string]time.Duration{"w-old": 3 * time.Hour, "w-mid": 2 * time.Hour, "w-new": time.Hour}
	for guid, title := range titles {
		_, err := h.webs.UpsertBatch(ctx, []*entity.WebItem{{
			GUID: guid, SourceName: "example-blog", Title: title,
			URL: "https://example.com/" + guid, Category: entity.CategoryNews,
			PublishedAt: now.Add(-ages[guid]),
		}})
		require.NoError(t, err)
		require.NoError(t, h.sums.Create(ctx, &entity.Summary{
			ArticleKind: entity.ArticleKindWeb, ArticleID: guid,
			URL: "https://example.com/" + guid, Title: title,
			Summary: "Unique summary for " + guid + ". Fine.",
		}))
	}

	// 全候補が同スコアなら published_at 降順で並ぶ
	h.provider.rank = func(call int32, req llm.CompletionRequest) (string, error) {
		return rankJSON(6.0), nil
	}

	_, delivery, err := h.svc.SendDigest(ctx, Options{WindowHours: 24, TopN: 3})
	require.NoError(t, err)
	require.NotEmpty(t, delivery.HTML)

	newest := strings.Index(delivery.HTML, "Newest story")
	middle := strings.Index(delivery.HTML, "Middle story")
	older := strings.Index(delivery.HTML, "Older story")
	require.NotEqual(t, -1, newest)
	require.NotEqual(t, -1, middle)
	require.NotEqual(t, -1, older)
	assert.Less(t, newest, middle)
	assert.Less(t, middle, older)
}
