package metrics

import "time"

// RecordArticlesFetched records the number of articles fetched from a source.
func RecordArticlesFetched(source string, count int) {
	if count <= 0 {
		return
	}
	ArticlesFetchedTotal.WithLabelValues(source).Add(float64(count))
}

// RecordFeedCrawl records metrics for a single source fetch within a batch.
func RecordFeedCrawl(source string, duration time.Duration, itemsFound int64) {
	FeedCrawlDuration.WithLabelValues(source).Observe(duration.Seconds())
	RecordArticlesFetched(source, int(itemsFound))
}

// RecordFeedCrawlError records an error encountered fetching a source.
func RecordFeedCrawlError(source string, errorType string) {
	FeedCrawlErrors.WithLabelValues(source, errorType).Inc()
}

// RecordCacheMaterialise records the outcome and duration of a cache
// materialisation run. outcome is one of "success", "timeout", "failure".
func RecordCacheMaterialise(outcome string, duration time.Duration) {
	CacheMaterialiseTotal.WithLabelValues(outcome).Inc()
	CacheMaterialiseDuration.Observe(duration.Seconds())
}

// RecordAgentLoopIterations records how many LLM rounds a completed request used.
func RecordAgentLoopIterations(iterations int) {
	AgentLoopIterations.Observe(float64(iterations))
}

// RecordToolCall records a tool dispatch outcome. outcome is one of
// "success", "failure", "skipped_duplicate", "unknown".
func RecordToolCall(tool, outcome string) {
	ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordLLMRequest records provider round-trip latency and outcome.
func RecordLLMRequest(provider, outcome string, duration time.Duration) {
	LLMRequestDuration.WithLabelValues(provider, outcome).Observe(duration.Seconds())
}

// RecordContentFetchSuccess records a successful content fetch operation.
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed content fetch operation.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a skipped content fetch (RSS content was sufficient).
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// RecordDBQuery records the duration of a database query operation.
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
