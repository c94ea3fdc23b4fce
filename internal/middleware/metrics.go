package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appana_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "appana_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// AI metrics
	aiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "appana_ai_request_duration_seconds",
		Help:    "Duration of AI provider requests",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
	}, []string{"provider", "status"})

	aiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appana_ai_requests_total",
		Help: "Total number of AI provider requests",
	}, []string{"provider", "status"})

	cascadeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appana_ai_cascade_total",
		Help: "Cascade outcomes by the provider that answered",
	}, []string{"provider"})

	// OCR metrics
	ocrPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appana_ocr_pages_total",
		Help: "PDF pages processed by extraction method",
	}, []string{"method"})

	ocrDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appana_ocr_documents_total",
		Help: "Uploads processed by kind and status",
	}, []string{"kind", "status"})

	// Cache metrics
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appana_cache_hits_total",
		Help: "Total number of OCR cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appana_cache_misses_total",
		Help: "Total number of OCR cache misses",
	})

	// Rate limit metrics
	rateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appana_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	}, []string{"scope"})

	// Storage metrics
	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appana_storage_operations_total",
		Help: "Total number of session storage operations",
	}, []string{"operation", "status"})

	storageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "appana_storage_operation_duration_seconds",
		Help:    "Duration of session storage operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "appana_active_sessions",
		Help: "Number of stored chat sessions",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordHTTPRequest records a served request
func (m *Metrics) RecordHTTPRequest(route string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordAIRequest records one provider attempt
func (m *Metrics) RecordAIRequest(provider, status string, duration time.Duration) {
	aiRequestDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	aiRequestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordCascadeOutcome records which provider answered, or "none"
func (m *Metrics) RecordCascadeOutcome(provider string) {
	cascadeOutcomes.WithLabelValues(provider).Inc()
}

// RecordOCRPage records how a PDF page was extracted
func (m *Metrics) RecordOCRPage(method string) {
	ocrPages.WithLabelValues(method).Inc()
}

// RecordOCRDocument records an upload outcome
func (m *Metrics) RecordOCRDocument(kind, status string) {
	ocrDocuments.WithLabelValues(kind, status).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event
func (m *Metrics) RecordRateLimitExceeded(scope string) {
	rateLimitExceeded.WithLabelValues(scope).Inc()
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(operation, status string, duration time.Duration) {
	storageOperations.WithLabelValues(operation, status).Inc()
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetActiveSessions sets the number of stored sessions
func (m *Metrics) SetActiveSessions(count float64) {
	activeSessions.Set(count)
}

// NewMetricsServer builds the metrics HTTP server
func NewMetricsServer(port int, path string) *http.Server {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
