package mail

import (
	"context"
	"log/slog"

	"pulse-digest/internal/observability/metrics"
)

// NoopTransport accepts every message without delivering it. It stands in
// for SMTP when delivery is disabled so the email stage keeps a transport to
// talk to.
type NoopTransport struct{}

// NewNoopTransport creates a NoopTransport.
func NewNoopTransport() *NoopTransport {
	return &NoopTransport{}
}

// Send logs the would-be delivery and reports success.
func (t *NoopTransport) Send(ctx context.Context, to, subject, html string) error {
	metrics.RecordEmailSent("skipped")
	slog.DebugContext(ctx, "noop mail transport: delivery skipped",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("html_bytes", len(html)))
	return nil
}
