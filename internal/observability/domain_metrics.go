package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genbi_query_executions_total",
			Help: "Total number of query executions by outcome.",
		},
		[]string{"outcome"},
	)
	queryPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "genbi_query_status_polls_total",
			Help: "Total number of status checks issued while waiting for queries.",
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genbi_query_rows_returned",
			Help:    "Rows returned per successful query.",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		},
	)
	queryDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genbi_query_duration_ms",
			Help:    "Wall time from submission to mapped rows in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		},
	)
	bedrockCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genbi_bedrock_calls_total",
			Help: "Total number of Bedrock calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	bedrockLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genbi_bedrock_latency_ms",
			Help:    "Bedrock call latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 60000},
		},
		[]string{"operation"},
	)
	embedURLsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genbi_dashboard_embed_urls_total",
			Help: "Total number of dashboard embed URL requests by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		queryExecutionsTotal,
		queryPollsTotal,
		queryRowsReturned,
		queryDurationMs,
		bedrockCallsTotal,
		bedrockLatencyMs,
		embedURLsTotal,
	)
}

func ObserveQueryExecution(outcome string, polls, rows int, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(outcome).Inc()
	if polls > 0 {
		queryPollsTotal.Add(float64(polls))
	}
	if outcome == "succeeded" {
		queryRowsReturned.Observe(float64(rows))
	}
	if elapsed > 0 {
		queryDurationMs.Observe(float64(elapsed.Milliseconds()))
	}
}

func ObserveBedrockCall(operation string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	bedrockCallsTotal.WithLabelValues(operation, outcome).Inc()
	bedrockLatencyMs.WithLabelValues(operation).Observe(float64(elapsed.Milliseconds()))
}

func ObserveEmbedURL(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	embedURLsTotal.WithLabelValues(outcome).Inc()
}
