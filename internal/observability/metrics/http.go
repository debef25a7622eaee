package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ragRequestsTotal     *prometheus.CounterVec
	ragRetrievalHitTotal *prometheus.CounterVec
	ragNoContextTotal    *prometheus.CounterVec
	ragRetrievedChunks   *prometheus.HistogramVec
	ragDuration          *prometheus.HistogramVec

	ingestDocumentsTotal *prometheus.CounterVec
	ingestChunksTotal    *prometheus.CounterVec
	indexResetsTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalog",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "catalog",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ragRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total answered RAG queries by query class.",
		},
		[]string{"service", "endpoint", "class"},
	)
	ragRetrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "rag",
			Name:      "retrieval_hit_total",
			Help:      "Total RAG queries with at least one retrieved source.",
		},
		[]string{"service", "endpoint"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total RAG queries answered without retrieved sources.",
		},
		[]string{"service", "endpoint"},
	)
	ragRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalog",
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per answered query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service", "endpoint"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalog",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "End-to-end query answering duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	ingestDocumentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total processed documents by final status.",
		},
		[]string{"service", "status"},
	)
	ingestChunksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total chunks written to the semantic index.",
		},
		[]string{"service"},
	)
	indexResetsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "index",
			Name:      "resets_total",
			Help:      "Total index resets by kind (clear, reset, pending).",
		},
		[]string{"service", "kind"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ragRequestsTotal,
		ragRetrievalHitTotal,
		ragNoContextTotal,
		ragRetrievedChunks,
		ragDuration,
		ingestDocumentsTotal,
		ingestChunksTotal,
		indexResetsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		ragRequestsTotal:     ragRequestsTotal,
		ragRetrievalHitTotal: ragRetrievalHitTotal,
		ragNoContextTotal:    ragNoContextTotal,
		ragRetrievedChunks:   ragRetrievedChunks,
		ragDuration:          ragDuration,
		ingestDocumentsTotal: ingestDocumentsTotal,
		ingestChunksTotal:    ingestChunksTotal,
		indexResetsTotal:     indexResetsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/documents/"):
		return "/api/documents/{document_id}"
	case strings.HasPrefix(path, "/api/products/"):
		return "/api/products/{product_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRAGObservation(service, endpoint, class string, sourceCount int, duration time.Duration) {
	if class == "" {
		class = "unknown"
	}
	m.ragRequestsTotal.WithLabelValues(service, endpoint, class).Inc()
	m.ragRetrievedChunks.WithLabelValues(service, endpoint).Observe(float64(sourceCount))
	m.ragDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if sourceCount > 0 {
		m.ragRetrievalHitTotal.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.ragNoContextTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordDocumentProcessed(service, status string, chunkCount int) {
	if status == "" {
		status = "unknown"
	}
	m.ingestDocumentsTotal.WithLabelValues(service, status).Inc()
	if chunkCount > 0 {
		m.ingestChunksTotal.WithLabelValues(service).Add(float64(chunkCount))
	}
}

func (m *HTTPServerMetrics) RecordIndexReset(service, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.indexResetsTotal.WithLabelValues(service, kind).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
