// Package mail implements the email stage: the ranked list becomes an HTML
// digest with a model-written introduction and goes out over the configured
// transport. Rendering always succeeds locally; only the submission can fail,
// and that failure never undoes the run.
package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/infra/llm"
	"pulse-digest/internal/observability/metrics"
)

// introRetries is fixed: one re-ask, then the canned fallback intro.
const introRetries = 1

// fallbackIntro stands in when the model cannot produce an introduction.
const fallbackIntro = "Here are the top stories from your sources for this digest window."

// Transport submits one rendered digest.
type Transport interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Delivery is the outcome of one email pass. HTML is always populated when
// a digest was rendered, whether or not it was sent.
type Delivery struct {
	HTML          string
	SentAt        time.Time
	Rendered      int
	Emailed       int
	IntroDegraded bool
}

// Service drives the email stage.
type Service struct {
	transport   Transport
	provider    llm.Provider
	profile     *entity.Profile
	sem         llm.Semaphore
	temperature float32
	recipient   string
	subject     string
	skipEmail   bool
}

// NewService wires the email stage from the model, mail and pipeline
// configuration.
func NewService(transport Transport, provider llm.Provider, profile *entity.Profile, sem llm.Semaphore, modelCfg *config.ModelConfig, mailCfg *config.MailConfig, pipeCfg *config.PipelineConfig) *Service {
	return &Service{
		transport:   transport,
		provider:    provider,
		profile:     profile,
		sem:         sem,
		temperature: modelCfg.EmailTemperature,
		recipient:   mailCfg.Recipient,
		subject:     mailCfg.Subject,
		skipEmail:   pipeCfg.SkipEmail,
	}
}

// Deliver renders the digest for the ranked items and submits it. Recipient
// and subject arguments override the configured defaults. An empty item list
// sends nothing and returns an empty Delivery. A transport failure returns
// the rendered Delivery together with the error so the caller can count it
// as advisory.
func (s *Service) Deliver(ctx context.Context, items []entity.RankedItem, recipient, subject string) (Delivery, error) {
	return s.deliver(ctx, items, recipient, subject, s.skipEmail)
}

// SendNow is Deliver with the skip_email toggle ignored. The on-demand
// send_digest operation exists to send, so it always reaches the transport.
func (s *Service) SendNow(ctx context.Context, items []entity.RankedItem, recipient, subject string) (Delivery, error) {
	return s.deliver(ctx, items, recipient, subject, false)
}

// Render composes the digest without submitting it, for runs in skip-email
// mode. The rendered HTML comes back to the caller in the Delivery.
func (s *Service) Render(ctx context.Context, items []entity.RankedItem) (Delivery, error) {
	return s.deliver(ctx, items, "", "", true)
}

func (s *Service) deliver(ctx context.Context, items []entity.RankedItem, recipient, subject string, skip bool) (Delivery, error) {
	var d Delivery
	if len(items) == 0 {
		slog.InfoContext(ctx, "digest email skipped: no ranked items")
		return d, nil
	}

	intro, degraded, err := s.composeIntro(ctx, items)
	if err != nil {
		return d, err
	}
	d.IntroDegraded = degraded

	now := time.Now()
	html, err := renderDigest(s.profile, items, intro, now)
	if err != nil {
		return d, fmt.Errorf("digest render failed: %w", err)
	}
	d.HTML = html
	d.Rendered = 1

	if recipient == "" {
		recipient = s.recipient
	}
	if subject == "" {
		// 件名に日付を入れて受信箱で日ごとに区別できるようにする
		subject = fmt.Sprintf("%s - %s", s.subject, now.Format("2006-01-02"))
	}

	if skip {
		metrics.RecordEmailSent("skipped")
		slog.InfoContext(ctx, "digest rendered without sending",
			slog.Int("items", len(items)),
			slog.Int("html_bytes", len(html)))
		return d, nil
	}

	if err := s.transport.Send(ctx, recipient, subject, html); err != nil {
		return d, fmt.Errorf("digest submission failed: %w", err)
	}

	d.Emailed = len(items)
	d.SentAt = now
	return d, nil
}

// introReply is the JSON shape the model is asked to produce.
type introReply struct {
	Intro string `json:"intro"`
}

// composeIntro asks the model for the introduction paragraph. One re-ask on
// a malformed reply, then the canned fallback. Only context cancellation is
// returned as an error; a missing intro never blocks the digest.
func (s *Service) composeIntro(ctx context.Context, items []entity.RankedItem) (string, bool, error) {
	if err := s.sem.Acquire(ctx); err != nil {
		return "", false, err
	}
	defer s.sem.Release()

	req := llm.CompletionRequest{
		System:      introSystemPrompt,
		Prompt:      buildIntroPrompt(s.profile, items),
		Temperature: s.temperature,
		MaxTokens:   introMaxTokens,
	}

	for attempt := 0; attempt <= introRetries; attempt++ {
		reply, err := s.provider.Complete(ctx, req)
		metrics.RecordModelCall(s.provider.Name(), "email", err == nil)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", false, err
			}
			break
		}

		intro, err := parseIntroReply(reply)
		if err != nil {
			slog.DebugContext(ctx, "intro reply rejected",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			continue
		}
		return intro, false, nil
	}

	return fallbackIntro, true, nil
}

func parseIntroReply(reply string) (string, error) {
	raw, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return "", err
	}
	var parsed introReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("intro json malformed: %w", err)
	}
	if strings.TrimSpace(parsed.Intro) == "" {
		return "", errors.New("intro reply missing intro")
	}
	return strings.TrimSpace(parsed.Intro), nil
}

const introMaxTokens = 256

const introSystemPrompt = `You write the opening paragraph of a personal news digest email. Given the reader and today's ranked stories, write 2-3 sentences that preview the common threads. Reply with a single JSON object {"intro": "..."} and nothing else.`

func buildIntroPrompt(profile *entity.Profile, items []entity.RankedItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Reader: %s", profile.Name)
	if profile.Background != "" {
		fmt.Fprintf(&b, " (%s)", profile.Background)
	}
	b.WriteString("\n")
	if len(profile.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(profile.Interests, ", "))
	}

	b.WriteString("\nToday's stories:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s (%s, score %.1f)\n", i+1, item.Summary.Title, item.SourceName, item.Score)
	}

	return b.String()
}
