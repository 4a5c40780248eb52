package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the ingest and ask metrics.
const (
	OutcomeOK        = "ok"
	OutcomeNote      = "note"
	OutcomeChatError = "chat_error"
	OutcomeEmpty     = "empty"
)

// Metrics holds Prometheus metrics for ingestion, retrieval and the HTTP API.
// All methods are safe on a nil receiver so components can run without metrics.
//
// Metrics:
//   - pdfrag_documents_ingested_total{outcome} - documents ingested, "ok" or "note"
//   - pdfrag_chunks_added_total - chunks written to the store
//   - pdfrag_ingest_duration_seconds - per-document ingest time
//   - pdfrag_retrievals_total - retrieval calls
//   - pdfrag_retrieval_hits - hits returned per retrieval
//   - pdfrag_ask_duration_seconds{outcome} - ask latency by outcome
//   - pdfrag_http_requests_total{method,route,status}
//   - pdfrag_http_request_duration_seconds{method,route}
type Metrics struct {
	registry *prometheus.Registry

	DocumentsIngested *prometheus.CounterVec
	ChunksAdded       prometheus.Counter
	IngestDuration    prometheus.Histogram
	Retrievals        prometheus.Counter
	RetrievalHits     prometheus.Histogram
	AskDuration       *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates metrics registered on a fresh registry, including Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		DocumentsIngested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfrag_documents_ingested_total",
				Help: "Total number of documents ingested",
			},
			[]string{"outcome"},
		),
		ChunksAdded: f.NewCounter(
			prometheus.CounterOpts{
				Name: "pdfrag_chunks_added_total",
				Help: "Total number of chunks written to the store",
			},
		),
		IngestDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pdfrag_ingest_duration_seconds",
				Help:    "Duration of a single document ingest in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
		),
		Retrievals: f.NewCounter(
			prometheus.CounterOpts{
				Name: "pdfrag_retrievals_total",
				Help: "Total number of retrieval calls",
			},
		),
		RetrievalHits: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pdfrag_retrieval_hits",
				Help:    "Number of hits returned per retrieval",
				Buckets: prometheus.LinearBuckets(0, 2, 11), // 0 to 20
			},
		),
		AskDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdfrag_ask_duration_seconds",
				Help:    "Duration of ask requests in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"outcome"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfrag_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdfrag_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordIngest records one document ingest.
func (m *Metrics) RecordIngest(outcome string, chunks int, d time.Duration) {
	if m == nil {
		return
	}
	m.DocumentsIngested.WithLabelValues(outcome).Inc()
	m.ChunksAdded.Add(float64(chunks))
	m.IngestDuration.Observe(d.Seconds())
}

// RecordRetrieval records one retrieval and its hit count.
func (m *Metrics) RecordRetrieval(hits int) {
	if m == nil {
		return
	}
	m.Retrievals.Inc()
	m.RetrievalHits.Observe(float64(hits))
}

// RecordAsk records one ask with its outcome.
func (m *Metrics) RecordAsk(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AskDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
