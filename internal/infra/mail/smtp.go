package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"pulse-digest/internal/config"
	"pulse-digest/internal/observability/metrics"
	"pulse-digest/internal/resilience/circuitbreaker"
	"pulse-digest/internal/resilience/retry"
)

// submissionInterval paces outgoing messages. Relays throttle clients that
// burst, and a digest run submits at most a handful of messages.
const submissionInterval = 2 * time.Second

// SMTPTransport submits mail through one SMTP endpoint. Authentication is
// PLAIN when a username is configured; STARTTLS is negotiated whenever the
// server offers it.
type SMTPTransport struct {
	cfg      *config.MailConfig
	limiter  *rate.Limiter
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config

	// send is swapped out in tests. The default submits via net/smtp.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPTransport builds the production transport from SMTP configuration.
func NewSMTPTransport(cfg *config.MailConfig) *SMTPTransport {
	return &SMTPTransport{
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(submissionInterval), 1),
		breaker:  circuitbreaker.New(circuitbreaker.MailConfig()),
		retryCfg: retry.MailConfig(),
		send:     smtp.SendMail,
	}
}

// Send submits one HTML message. The returned error is a *TransportError
// unless the context was cancelled.
func (t *SMTPTransport) Send(ctx context.Context, to, subject, html string) error {
	if to == "" {
		return &TransportError{Err: errors.New("no recipient address")}
	}
	if t.cfg.Host == "" {
		return &TransportError{Err: errors.New("SMTP_HOST is not configured")}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail pacing interrupted: %w", err)
	}

	msg := buildMessage(t.cfg.From, to, subject, html, time.Now())
	addr := t.cfg.Addr()

	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}

	start := time.Now()
	err := retry.WithBackoff(ctx, t.retryCfg, func() error {
		_, execErr := t.breaker.Execute(func() (interface{}, error) {
			return nil, t.send(addr, auth, t.cfg.From, []string{to}, msg)
		})
		if errors.Is(execErr, gobreaker.ErrOpenState) {
			return &TransportError{Err: errors.New("mail transport unavailable: circuit breaker open")}
		}
		return classifySendError(execErr)
	})
	if err != nil {
		metrics.RecordEmailSent("failure")
		slog.WarnContext(ctx, "mail submission failed",
			slog.String("host", t.cfg.Host),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
		return err
	}

	metrics.RecordEmailSent("sent")
	slog.InfoContext(ctx, "digest email submitted",
		slog.String("host", t.cfg.Host),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// buildMessage renders RFC 5322 headers plus the HTML body. Subject lines
// are Q-encoded so non-ASCII titles survive the 7-bit header path.
func buildMessage(from, to, subject, html string, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
