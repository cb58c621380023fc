package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	admissionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_created_total",
			Help: "Total number of admission records created",
		},
		[]string{"admission_type", "origin"},
	)

	sectionsFilled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_sections_filled_total",
			Help: "Total number of sections marked filled",
		},
		[]string{"section", "sector"},
	)

	recordStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_status_changed_total",
			Help: "Total number of record status changes",
		},
		[]string{"from_status", "to_status"},
	)

	observationEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "observation_escalations_total",
			Help: "Total number of observation records escalated past the decision deadline",
		},
	)

	submissionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "section_submission_rejections_total",
			Help: "Total number of rejected section submissions",
		},
		[]string{"reason"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath caps path cardinality; record IDs in the path would
// otherwise create one series per record
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordAdmissionCreated records an admission record creation
func RecordAdmissionCreated(admissionType, origin string) {
	admissionsCreated.WithLabelValues(admissionType, origin).Inc()
}

// RecordSectionFilled records a section submission
func RecordSectionFilled(section, sector string) {
	sectionsFilled.WithLabelValues(section, sector).Inc()
}

// RecordStatusChange records a record status change
func RecordStatusChange(fromStatus, toStatus string) {
	recordStatusChanged.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordObservationEscalation records an observation deadline escalation
func RecordObservationEscalation() {
	observationEscalations.Inc()
}

// RecordSubmissionRejection records a rejected section submission
func RecordSubmissionRejection(reason string) {
	submissionRejections.WithLabelValues(reason).Inc()
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
