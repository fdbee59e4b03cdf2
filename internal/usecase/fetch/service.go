package fetch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/observability/metrics"
	"pulse-digest/internal/resilience/retry"
)

// Result is the outcome of one harvest pass. FailedAdapters lists sources
// whose retry budget ran out; they end up in the run's failure accounting.
type Result struct {
	Items          []TaggedItem
	FailedAdapters []string
	Duration       time.Duration
}

// Service fans out over all source adapters with a bounded concurrency
// budget. Each adapter gets at most one in-flight call.
type Service struct {
	adapters    []SourceAdapter
	concurrency int
	timeout     time.Duration
	retryCfg    retry.Config
}

// NewService creates the harvest coordinator from the adapter set and the
// pipeline configuration.
func NewService(adapters []SourceAdapter, cfg *config.PipelineConfig) *Service {
	return &Service{
		adapters:    adapters,
		concurrency: cfg.FetchConcurrency,
		timeout:     cfg.FetchTimeout,
		retryCfg:    retry.FeedFetchConfig(cfg.FetchMaxRetries),
	}
}

// FetchAll runs every adapter over the window (since, now] and returns the
// collected items. Items carry no cross-adapter ordering. The only error is
// context cancellation; adapter failures land in Result.FailedAdapters.
func (s *Service) FetchAll(ctx context.Context, since, now time.Time) (*Result, error) {
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.concurrency)

	var mu sync.Mutex
	result := &Result{}

	for _, adapter := range s.adapters {
		adapter := adapter
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return ctx.Err()
			}

			items, err := s.fetchOne(ctx, adapter, since, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// 1ソースの失敗でステージ全体を止めない
				result.FailedAdapters = append(result.FailedAdapters, adapter.Name())
				return nil
			}
			for _, item := range items {
				result.Items = append(result.Items, TaggedItem{AdapterName: adapter.Name(), Item: item})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(result.FailedAdapters)
	result.Duration = time.Since(start)

	slog.InfoContext(ctx, "harvest pass completed",
		slog.Int("adapters", len(s.adapters)),
		slog.Int("items", len(result.Items)),
		slog.Int("failed_adapters", len(result.FailedAdapters)),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// fetchOne runs a single adapter under its timeout and retry budget.
func (s *Service) fetchOne(ctx context.Context, adapter SourceAdapter, since, now time.Time) ([]entity.FeedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var items []entity.FeedItem

	retryErr := retry.WithBackoff(ctx, s.retryCfg, func() error {
		fetched, err := adapter.Fetch(ctx, since, now)
		if err != nil {
			return err
		}
		items = fetched
		return nil
	})

	duration := time.Since(start)
	metrics.RecordAdapterDuration(adapter.Name(), duration)

	if retryErr != nil {
		errorType := "fetch_failed"
		if se, ok := AsSourceError(retryErr); ok {
			errorType = string(se.Kind)
		}
		metrics.RecordAdapterError(adapter.Name(), errorType)
		slog.WarnContext(ctx, "adapter fetch failed",
			slog.String("adapter", adapter.Name()),
			slog.String("error_type", errorType),
			slog.Any("error", retryErr))
		return nil, retryErr
	}

	metrics.RecordItemsScraped(adapter.Name(), string(adapter.Kind()), len(items))
	slog.InfoContext(ctx, "adapter fetch completed",
		slog.String("adapter", adapter.Name()),
		slog.Int("items", len(items)),
		slog.Duration("duration", duration))

	return items, nil
}
