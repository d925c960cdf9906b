// Package metrics records pipeline and API activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
)

const namespace = "ragpipe"

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

// Recorder owns a private registry so several recorders can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	items         *prometheus.CounterVec
	chunks        prometheus.Counter
	stageDuration *prometheus.HistogramVec
	queries       prometheus.Counter
	queryResults  prometheus.Histogram
	queryDuration prometheus.Histogram
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
}

// NewRecorder creates a recorder with Go runtime and process collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Files and URLs processed, labelled by kind and outcome status.",
		}, []string{"kind", "status"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks embedded and written to the vector store.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each ingestion stage.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Retrieval queries served.",
		}),
		queryResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Number of results returned per query.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Retrieval latency including query embedding.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests labelled by route and status.",
		}, []string{"route", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API latency by route.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30},
		}, []string{"route"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.items, r.chunks, r.stageDuration,
		r.queries, r.queryResults, r.queryDuration,
		r.requests, r.requestTime,
	)
	return r
}

// ItemProcessed counts one file or URL outcome.
func (r *Recorder) ItemProcessed(kind domain.ItemKind, status domain.OutcomeStatus) {
	r.items.WithLabelValues(string(kind), string(status)).Inc()
}

// ChunksIndexed counts documents written to the store.
func (r *Recorder) ChunksIndexed(n int) {
	if n > 0 {
		r.chunks.Add(float64(n))
	}
}

// StageDuration records how long a stage took.
func (r *Recorder) StageDuration(stage domain.Stage, d time.Duration) {
	r.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// QueryServed records a retrieval.
func (r *Recorder) QueryServed(results int, d time.Duration) {
	r.queries.Inc()
	r.queryResults.Observe(float64(results))
	r.queryDuration.Observe(d.Seconds())
}

// RequestServed records one HTTP API request.
func (r *Recorder) RequestServed(route string, status int, d time.Duration) {
	r.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.requestTime.WithLabelValues(route).Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Nop discards all observations.
type Nop struct{}

// Ensure Nop implements the interface.
var _ driven.MetricsRecorder = Nop{}

func (Nop) ItemProcessed(domain.ItemKind, domain.OutcomeStatus) {}
func (Nop) ChunksIndexed(int)                                   {}
func (Nop) StageDuration(domain.Stage, time.Duration)           {}
func (Nop) QueryServed(int, time.Duration)                      {}
