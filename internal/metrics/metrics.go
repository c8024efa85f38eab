// Package metrics provides Prometheus metrics for the gateway server.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Attachment transfer metrics
	attachmentBytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftdesk_attachment_bytes_uploaded_total",
			Help: "Total bytes written through the file registry",
		},
	)

	attachmentBytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftdesk_attachment_bytes_downloaded_total",
			Help: "Total bytes served from the file registry",
		},
	)

	attachmentUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftdesk_attachment_uploads_total",
			Help: "Total attachment uploads",
		},
		[]string{"status"},
	)

	attachmentDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftdesk_attachment_downloads_total",
			Help: "Total attachment downloads",
		},
		[]string{"status"},
	)

	// Auth metrics, labelled by trust domain
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftdesk_auth_attempts_total",
			Help: "Total credential verifications",
		},
		[]string{"domain", "result"},
	)

	// Render grant metrics
	renderGrantsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftdesk_render_grants_issued_total",
			Help: "Total render grants issued",
		},
		[]string{"mode"},
	)

	// Collaboration metrics
	collabSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "draftdesk_collab_sessions_active",
			Help: "Number of active collaborative document sessions",
		},
	)

	collabLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftdesk_collab_loads_total",
			Help: "Total document snapshot loads",
		},
		[]string{"status"},
	)

	collabSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftdesk_collab_saves_total",
			Help: "Total document snapshot saves",
		},
		[]string{"status"},
	)

	// Storage metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftdesk_storage_operation_duration_seconds",
			Help:    "Blob store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// Database metrics
	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "draftdesk_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload records an attachment upload.
func RecordUpload(bytes int64, success bool) {
	attachmentBytesUploaded.Add(float64(bytes))
	attachmentUploadsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordDownload records an attachment download.
func RecordDownload(bytes int64, success bool) {
	attachmentBytesDownloaded.Add(float64(bytes))
	attachmentDownloadsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordAuthAttempt records a credential verification for a trust domain.
func RecordAuthAttempt(domain string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(domain, result).Inc()
}

// RecordGrantIssued records a render grant issuance.
func RecordGrantIssued(mode string) {
	renderGrantsIssued.WithLabelValues(mode).Inc()
}

// SetCollabSessionsActive sets the number of active document sessions.
func SetCollabSessionsActive(count int) {
	collabSessionsActive.Set(float64(count))
}

// RecordCollabLoad records a document snapshot load.
func RecordCollabLoad(success bool) {
	collabLoadsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordCollabSave records a document snapshot save.
func RecordCollabSave(success bool) {
	collabSavesTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordStorageOperation records a blob store operation duration.
func RecordStorageOperation(backend, operation string, duration time.Duration) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the number of open database connections.
func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack lets the collaboration websocket upgrade through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
