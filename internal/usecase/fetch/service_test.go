package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/resilience/retry"
)

// fakeAdapter scripts Fetch behavior per call via the fetch func.
type fakeAdapter struct {
	name  string
	kind  entity.SourceKind
	calls int32
	fetch func(call int32) ([]entity.FeedItem, error)
}

func (a *fakeAdapter) Name() string            { return a.name }
func (a *fakeAdapter) Kind() entity.SourceKind { return a.kind }

func (a *fakeAdapter) Fetch(ctx context.Context, since, now time.Time) ([]entity.FeedItem, error) {
	call := atomic.AddInt32(&a.calls, 1)
	return a.fetch(call)
}

func webItems(guids ...string) []entity.FeedItem {
	items := make([]entity.FeedItem, 0, len(guids))
	for _, guid := range guids {
		items = append(items, entity.NewWebFeedItem(&entity.WebItem{
			GUID:       guid,
			SourceName: "test-source",
			Title:      "title " + guid,
			URL:        "https://example.com/" + guid,
			Category:   entity.CategoryNews,
		}))
	}
	return items
}

func testService(adapters []SourceAdapter, concurrency int) *Service {
	return &Service{
		adapters:    adapters,
		concurrency: concurrency,
		timeout:     5 * time.Second,
		retryCfg: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   time.Millisecond,
			MaxDelay:       5 * time.Millisecond,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
	}
}

func fetchWindow() (time.Time, time.Time) {
	now := time.Now()
	return now.Add(-24 * time.Hour), now
}

/* ───────── FetchAll ───────── */

func TestService_FetchAll_CollectsAllAdapters(t *testing.T) {
	adapters := []SourceAdapter{
		&fakeAdapter{name: "alpha", kind: entity.SourceKindSyndication, fetch: func(int32) ([]entity.FeedItem, error) {
			return webItems("a1", "a2"), nil
		}},
		&fakeAdapter{name: "beta", kind: entity.SourceKindSyndication, fetch: func(int32) ([]entity.FeedItem, error) {
			return webItems("b1"), nil
		}},
		&fakeAdapter{name: "gamma", kind: entity.SourceKindRendered, fetch: func(int32) ([]entity.FeedItem, error) {
			return webItems("c1"), nil
		}},
	}
	svc := testService(adapters, 4)

	since, now := fetchWindow()
	result, err := svc.FetchAll(context.Background(), since, now)

	require.NoError(t, err)
	assert.Len(t, result.Items, 4)
	assert.Empty(t, result.FailedAdapters)

	byAdapter := map[string]int{}
	for _, tagged := range result.Items {
		byAdapter[tagged.AdapterName]++
	}
	assert.Equal(t, map[string]int{"alpha": 2, "beta": 1, "gamma": 1}, byAdapter)
}

func TestService_FetchAll_FailureIsolation(t *testing.T) {
	adapters := []SourceAdapter{
		&fakeAdapter{name: "healthy", kind: entity.SourceKindSyndication, fetch: func(int32) ([]entity.FeedItem, error) {
			return webItems("h1"), nil
		}},
		&fakeAdapter{name: "broken", kind: entity.SourceKindSyndication, fetch: func(int32) ([]entity.FeedItem, error) {
			return nil, &SourceError{Source: "broken", Kind: FailureParse, Err: errors.New("malformed feed")}
		}},
	}
	svc := testService(adapters, 4)

	since, now := fetchWindow()
	result, err := svc.FetchAll(context.Background(), since, now)

	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	assert.Equal(t, "healthy", result.Items[0].AdapterName)
	assert.Equal(t, []string{"broken"}, result.FailedAdapters)
}

func TestService_FetchAll_RetriesTransientFailure(t *testing.T) {
	flaky := &fakeAdapter{name: "flaky", kind: entity.SourceKindSyndication, fetch: func(call int32) ([]entity.FeedItem, error) {
		if call == 1 {
			return nil, &SourceError{Source: "flaky", Kind: FailureHTTP, Transient: true, Err: errors.New("status 503")}
		}
		return webItems("f1"), nil
	}}
	svc := testService([]SourceAdapter{flaky}, 1)

	since, now := fetchWindow()
	result, err := svc.FetchAll(context.Background(), since, now)

	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	assert.Empty(t, result.FailedAdapters)
	assert.Equal(t, int32(2), atomic.LoadInt32(&flaky.calls))
}

func TestService_FetchAll_PermanentFailureNotRetried(t *testing.T) {
	broken := &fakeAdapter{name: "broken", kind: entity.SourceKindSyndication, fetch: func(int32) ([]entity.FeedItem, error) {
		return nil, &SourceError{Source: "broken", Kind: FailureValidation, Err: errors.New("endpoint is not http")}
	}}
	svc := testService([]SourceAdapter{broken}, 1)

	since, now := fetchWindow()
	result, err := svc.FetchAll(context.Background(), since, now)

	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, []string{"broken"}, result.FailedAdapters)
	assert.Equal(t, int32(1), atomic.LoadInt32(&broken.calls))
}

func TestService_FetchAll_RespectsConcurrencyCap(t *testing.T) {
	var inFlight, peak int32
	adapters := make([]SourceAdapter, 0, 5)
	for _, name := range []string{"s1", "s2", "s3", "s4", "s5"} {
		adapters = append(adapters, &fakeAdapter{name: name, kind: entity.SourceKindSyndication, fetch: func(int32) ([]entity.FeedItem, error) {
			current := atomic.AddInt32(&inFlight, 1)
			for {
				observed := atomic.LoadInt32(&peak)
				if current <= observed || atomic.CompareAndSwapInt32(&peak, observed, current) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil, nil
		}})
	}
	svc := testService(adapters, 2)

	since, now := fetchWindow()
	result, err := svc.FetchAll(context.Background(), since, now)

	require.NoError(t, err)
	assert.Empty(t, result.FailedAdapters)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestService_FetchAll_Cancelled(t *testing.T) {
	adapter := &fakeAdapter{name: "slow", kind: entity.SourceKindSyndication, fetch: func(int32) ([]entity.FeedItem, error) {
		return webItems("s1"), nil
	}}
	svc := testService([]SourceAdapter{adapter}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	since, now := fetchWindow()
	_, err := svc.FetchAll(ctx, since, now)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_FetchAll_EmptyResultIsSuccess(t *testing.T) {
	quiet := &fakeAdapter{name: "quiet", kind: entity.SourceKindSyndication, fetch: func(int32) ([]entity.FeedItem, error) {
		return nil, nil
	}}
	svc := testService([]SourceAdapter{quiet}, 1)

	since, now := fetchWindow()
	result, err := svc.FetchAll(context.Background(), since, now)

	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Empty(t, result.FailedAdapters)
	assert.Equal(t, int32(1), atomic.LoadInt32(&quiet.calls))
}

/* ───────── SourceError ───────── */

func TestSourceError_Classification(t *testing.T) {
	transient := &SourceError{Source: "s", Kind: FailureHTTP, Transient: true, Err: errors.New("status 502")}
	permanent := &SourceError{Source: "s", Kind: FailureParse, Err: errors.New("bad xml")}

	assert.True(t, transient.Retriable())
	assert.False(t, permanent.Retriable())
	assert.True(t, retry.IsRetryable(transient))
	assert.False(t, retry.IsRetryable(permanent))

	wrapped := errors.New("outer")
	_, ok := AsSourceError(wrapped)
	assert.False(t, ok)

	se, ok := AsSourceError(transient)
	require.True(t, ok)
	assert.Equal(t, FailureHTTP, se.Kind)
	assert.Contains(t, transient.Error(), "source s: http failure")
}
