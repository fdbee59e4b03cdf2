package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"pulse-digest/internal/config"
	"pulse-digest/internal/observability/metrics"
	"pulse-digest/internal/resilience/circuitbreaker"
	"pulse-digest/internal/resilience/retry"
)

// Service calls the embeddings endpoint with request batching, retry and a
// circuit breaker. The endpoint speaks the OpenAI embeddings wire format, so
// the go-openai client is pointed at EMBEDDING_BASE_URL.
type Service struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
	timeout   time.Duration

	// sem serializes endpoint calls: the embedding pool is a single
	// worker, shared by the index stage and every neighbor query.
	sem chan struct{}

	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
}

// New builds the embedding client from configuration.
func New(cfg *config.EmbeddingConfig) *Service {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	slog.Info("initialized embedding client",
		slog.String("base_url", cfg.BaseURL),
		slog.String("model", cfg.Model),
		slog.Int("dimension", cfg.Dimension),
		slog.Int("batch_size", cfg.BatchSize))

	return &Service{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		sem:       make(chan struct{}, 1),
		breaker:   circuitbreaker.New(circuitbreaker.EmbeddingConfig()),
		retryCfg:  retry.EmbeddingConfig(),
	}
}

// Dimension returns the vector width every reply must have.
func (s *Service) Dimension() int { return s.dimension }

// VerifyDimension embeds a probe text and checks the endpoint's vector width
// against EMBEDDING_DIM. Run once at startup: a mismatch means the endpoint
// and the stored vectors disagree, and every similarity query would compare
// incompatible spaces.
func (s *Service) VerifyDimension(ctx context.Context) error {
	if _, err := s.Embed(ctx, []string{"dimension probe"}); err != nil {
		return fmt.Errorf("embedding endpoint verification failed: %w", err)
	}
	return nil
}

// Embed implements Client. Inputs are split into batches of at most the
// configured size; results come back concatenated in input order.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// embedBatch acquires the single embed slot and runs one endpoint call
// through the retry and breaker layers.
func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result [][]float32

	retryErr := retry.WithBackoff(ctx, s.retryCfg, func() error {
		cbResult, err := s.breaker.Execute(func() (interface{}, error) {
			return s.doEmbed(ctx, texts)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("embedding endpoint circuit breaker open, request rejected",
					slog.String("state", s.breaker.State().String()))
				return fmt.Errorf("embedding endpoint unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.([][]float32)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("embed batch failed: %w", retryErr)
	}

	return result, nil
}

// doEmbed performs one endpoint call without retry or circuit breaker.
func (s *Service) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(s.model),
	})
	duration := time.Since(start)

	if err != nil {
		metrics.RecordEmbeddingBatch(false, duration)
		slog.ErrorContext(ctx, "embedding batch failed",
			slog.Int("batch_size", len(texts)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, classifyError(err)
	}

	if len(resp.Data) != len(texts) {
		metrics.RecordEmbeddingBatch(false, duration)
		return nil, fmt.Errorf("embedding endpoint returned %d vectors for %d texts", len(resp.Data), len(texts))
	}

	// レスポンスは index 順とは限らないので、index で並べ直す
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			metrics.RecordEmbeddingBatch(false, duration)
			return nil, fmt.Errorf("embedding endpoint returned out-of-range index %d", item.Index)
		}
		if len(item.Embedding) != s.dimension {
			metrics.RecordEmbeddingBatch(false, duration)
			return nil, fmt.Errorf("%w: endpoint returned %d-dim vector, expected %d",
				ErrDimensionMismatch, len(item.Embedding), s.dimension)
		}
		vectors[item.Index] = item.Embedding
	}

	metrics.RecordEmbeddingBatch(true, duration)
	slog.InfoContext(ctx, "embedding batch completed",
		slog.Int("batch_size", len(texts)),
		slog.Duration("duration", duration))

	return vectors, nil
}

// classifyError maps go-openai errors onto retry.HTTPError so the retry
// policy can tell transient endpoint failures from permanent ones. Errors
// without an HTTP status (network, context) pass through unchanged.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &retry.HTTPError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &retry.HTTPError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}

	return err
}
