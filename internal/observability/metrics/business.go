package metrics

import (
	"time"
)

// RecordRunFinished records a pipeline run reaching a terminal state.
// State should be one of "completed", "failed", "cancelled".
func RecordRunFinished(state string, duration time.Duration) {
	RunsTotal.WithLabelValues(state).Inc()
	RunDuration.Observe(duration.Seconds())
}

// RecordStageDuration records the time one pipeline stage took.
func RecordStageDuration(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordItemsScraped records the number of items one adapter returned.
// Kind is "video" or "web".
func RecordItemsScraped(sourceName, kind string, count int) {
	ItemsScrapedTotal.WithLabelValues(sourceName, kind).Add(float64(count))
}

// RecordAdapterError records a scrape adapter failure.
func RecordAdapterError(sourceName, errorType string) {
	AdapterErrors.WithLabelValues(sourceName, errorType).Inc()
}

// RecordAdapterDuration records the time one adapter took to scrape.
func RecordAdapterDuration(sourceName string, duration time.Duration) {
	AdapterDuration.WithLabelValues(sourceName).Observe(duration.Seconds())
}

// RecordSummary records the result of a summarization attempt.
// Status should be "success", "failure" or "skipped".
func RecordSummary(status string, duration time.Duration) {
	SummariesTotal.WithLabelValues(status).Inc()
	if status != "skipped" {
		SummarizationDuration.Observe(duration.Seconds())
	}
}

// RecordModelCall records one call to the configured model provider.
// Purpose is "digest", "rank" or "email"; status is "success" or "failure".
func RecordModelCall(provider, purpose string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	ModelCallsTotal.WithLabelValues(provider, purpose, status).Inc()
}

// RecordRankDegraded records a run whose ranking fell back to recency order.
func RecordRankDegraded() {
	RankDegradedTotal.Inc()
}

// RecordEmbeddingBatch records one embedding batch call.
func RecordEmbeddingBatch(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	EmbeddingBatchesTotal.WithLabelValues(status).Inc()
	EmbeddingDuration.Observe(duration.Seconds())
}

// RecordVectorOp records a semantic index operation.
// Op is "upsert", "delete", "query" or "exists".
func RecordVectorOp(op string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	VectorOpsTotal.WithLabelValues(op, status).Inc()
}

// RecordDuplicateSuppressed records a summary marked as a near-duplicate.
func RecordDuplicateSuppressed() {
	DuplicatesSuppressedTotal.Inc()
}

// RecordContentFetchSuccess records a successful page content fetch.
//
// Parameters:
//   - duration: Time taken to fetch the content
//   - size: Size of fetched content in characters
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed page content fetch.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a listing link dropped without being
// fetched because the per-source link cap was reached.
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// RecordEmailSent records the result of a digest email delivery.
// Status should be "sent", "skipped" or "failure".
func RecordEmailSent(status string) {
	EmailsSentTotal.WithLabelValues(status).Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "list_summaries", "upsert_vector").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
