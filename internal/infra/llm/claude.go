package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"pulse-digest/internal/config"
	"pulse-digest/internal/resilience/circuitbreaker"
	"pulse-digest/internal/resilience/retry"
	"pulse-digest/internal/utils/text"
)

// Claude talks to Anthropic's Messages API. Calls run through a circuit
// breaker and the model retry policy; failures come back classified as
// ModelError.
type Claude struct {
	client  anthropic.Client
	model   string
	timeout time.Duration

	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
	metrics  CallMetricsRecorder
}

// NewClaude builds the Anthropic-backed provider from the model config.
func NewClaude(cfg *config.ModelConfig) *Claude {
	slog.Info("initialized claude provider",
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))

	return &Claude{
		// SDK-internal retries are disabled; the retry wrapper owns the policy.
		client: anthropic.NewClient(
			option.WithAPIKey(cfg.AnthropicAPIKey),
			option.WithMaxRetries(0),
		),
		model:    cfg.Model,
		timeout:  callTimeout(cfg.Timeout),
		breaker:  circuitbreaker.New(circuitbreaker.ModelAPIConfig("claude")),
		retryCfg: retry.ModelAPIConfig(),
		metrics:  NewPrometheusCallMetrics(),
	}
}

// Name implements Provider.
func (c *Claude) Name() string { return "claude" }

// Complete implements Provider.
func (c *Claude) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, c.retryCfg, func() error {
		cbResult, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doComplete(ctx, req)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, request rejected",
					slog.String("state", c.breaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("claude complete failed: %w", retryErr)
	}

	return result, nil
}

// doComplete performs one API call without retry or circuit breaker.
func (c *Claude) doComplete(ctx context.Context, req CompletionRequest) (string, error) {
	req = req.withDefaults()
	requestID := uuid.New().String()

	slog.InfoContext(ctx, "starting model call",
		slog.String("request_id", requestID),
		slog.String("provider", "claude"),
		slog.Int("prompt_chars", text.CountRunes(req.Prompt)),
		slog.Float64("temperature", float64(req.Temperature)))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(float64(req.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(req.Prompt),
			),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		classified := c.classify(err)
		c.recordFailure(classified)
		slog.ErrorContext(ctx, "model call failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", classified
	}

	if len(message.Content) == 0 {
		classified := &ModelError{Kind: ErrKindTransient, Err: fmt.Errorf("claude api returned empty response")}
		c.recordFailure(classified)
		slog.ErrorContext(ctx, "model returned empty response",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", classified
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		classified := &ModelError{Kind: ErrKindTransient, Err: fmt.Errorf("claude api returned unexpected content type")}
		c.recordFailure(classified)
		return "", classified
	}

	reply := textBlock.Text
	c.metrics.RecordDuration(duration)
	c.metrics.RecordReplyLength(text.CountRunes(reply))

	slog.InfoContext(ctx, "model call completed",
		slog.String("request_id", requestID),
		slog.Int("reply_chars", text.CountRunes(reply)),
		slog.Duration("duration", duration))

	return reply, nil
}

// classify maps an Anthropic SDK error onto a ModelError.
func (c *Claude) classify(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return mapStatus(apierr.StatusCode, retryAfterHeader(apierr.Response), err)
	}
	return classifyTransportError(err)
}

func (c *Claude) recordFailure(err error) {
	if me, ok := IsModelError(err); ok {
		c.metrics.RecordError(me.Kind)
	}
}
