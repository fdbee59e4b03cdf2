package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"pulse-digest/internal/config"
	"pulse-digest/internal/resilience/circuitbreaker"
	"pulse-digest/internal/resilience/retry"
	"pulse-digest/internal/utils/text"
)

// OpenAI talks to the OpenAI chat completions API.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration

	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
	metrics  CallMetricsRecorder
}

// NewOpenAI builds the OpenAI-backed provider from the model config.
func NewOpenAI(cfg *config.ModelConfig) *OpenAI {
	slog.Info("initialized openai provider",
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))

	return &OpenAI{
		client:   openai.NewClient(cfg.OpenAIAPIKey),
		model:    cfg.Model,
		timeout:  callTimeout(cfg.Timeout),
		breaker:  circuitbreaker.New(circuitbreaker.ModelAPIConfig("openai")),
		retryCfg: retry.ModelAPIConfig(),
		metrics:  NewPrometheusCallMetrics(),
	}
}

// Name implements Provider.
func (o *OpenAI) Name() string { return "openai" }

// Complete implements Provider.
func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, o.retryCfg, func() error {
		cbResult, err := o.breaker.Execute(func() (interface{}, error) {
			return o.doComplete(ctx, req)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai api circuit breaker open, request rejected",
					slog.String("state", o.breaker.State().String()))
				return fmt.Errorf("openai api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("openai complete failed: %w", retryErr)
	}

	return result, nil
}

// doComplete performs one API call without retry or circuit breaker.
func (o *OpenAI) doComplete(ctx context.Context, req CompletionRequest) (string, error) {
	req = req.withDefaults()

	slog.InfoContext(ctx, "starting model call",
		slog.String("provider", "openai"),
		slog.Int("prompt_chars", text.CountRunes(req.Prompt)),
		slog.Float64("temperature", float64(req.Temperature)))

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	duration := time.Since(start)

	if err != nil {
		classified := o.classify(err)
		o.recordFailure(classified)
		slog.ErrorContext(ctx, "model call failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", classified
	}

	if len(resp.Choices) == 0 {
		classified := &ModelError{Kind: ErrKindTransient, Err: fmt.Errorf("openai api returned empty response")}
		o.recordFailure(classified)
		slog.ErrorContext(ctx, "model returned empty response",
			slog.Duration("duration", duration))
		return "", classified
	}

	reply := resp.Choices[0].Message.Content
	o.metrics.RecordDuration(duration)
	o.metrics.RecordReplyLength(text.CountRunes(reply))

	slog.InfoContext(ctx, "model call completed",
		slog.Int("reply_chars", text.CountRunes(reply)),
		slog.Duration("duration", duration))

	return reply, nil
}

// classify maps a go-openai error onto a ModelError. The SDK does not expose
// response headers, so rate-limited errors carry no retry-after hint.
func (o *OpenAI) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return mapStatus(apiErr.HTTPStatusCode, 0, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return mapStatus(reqErr.HTTPStatusCode, 0, err)
	}
	return classifyTransportError(err)
}

func (o *OpenAI) recordFailure(err error) {
	if me, ok := IsModelError(err); ok {
		o.metrics.RecordError(me.Kind)
	}
}
