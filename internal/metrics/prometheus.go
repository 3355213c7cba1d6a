package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/bulkbook/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every metric the service exports. It implements core.Metrics.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Import metrics
	importsTotal     *prometheus.CounterVec
	importedRecords  *prometheus.CounterVec
	importedInvalid  prometheus.Counter
	importsActive    prometheus.Gauge
	importsAvailable prometheus.Gauge

	// Submission metrics
	submissionsTotal   *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	attendeesSubmitted prometheus.Counter

	// Session metrics
	sessionsActive prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ core.Metrics = (*Manager)(nil)

// NewManager creates a Manager with its own registry unless WithRegistry
// is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "bulkbook",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.importsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "imports_total",
			Help:      "Attendee file imports by format and result",
		},
		[]string{"format", "result"},
	)

	m.importedRecords = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "imported_records_total",
			Help:      "Attendee records read from imported files",
		},
		[]string{"format"},
	)

	m.importedInvalid = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "imported_invalid_records_total",
		Help:      "Imported records that needed completion before booking",
	})

	m.importsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "imports_active",
		Help:      "Imports currently holding a limiter slot",
	})

	m.importsAvailable = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "imports_available",
		Help:      "Free import limiter slots",
	})

	m.submissionsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "submissions_total",
			Help:      "Bulk-booking submissions by status (succeeded, failed, refused)",
		},
		[]string{"status"},
	)

	m.submissionDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submission_duration_seconds",
		Help:      "Duration of remote bulk-booking calls",
		Buckets:   m.histogramBuckets,
	})

	m.attendeesSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attendees_submitted_total",
		Help:      "Attendees sent to the booking API",
	})

	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_active",
		Help:      "Live bulk-booking sessions",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route and method",
			Buckets:   m.histogramBuckets,
		},
		[]string{"route", "method"},
	)
}

// Registry returns the registry metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveImport implements core.Metrics.
func (m *Manager) ObserveImport(format core.FileFormat, records, invalid int, err error) {
	label := string(format)
	if label == "" {
		label = "unknown"
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	m.importsTotal.WithLabelValues(label, result).Inc()

	if err == nil {
		m.importedRecords.WithLabelValues(label).Add(float64(records))
		m.importedInvalid.Add(float64(invalid))
	}
}

// ObserveSubmission implements core.Metrics.
func (m *Manager) ObserveSubmission(status core.SubmissionStatus, attendees int, elapsed time.Duration) {
	m.submissionsTotal.WithLabelValues(string(status)).Inc()
	if status == core.StatusRefused {
		return
	}
	m.submissionDuration.Observe(elapsed.Seconds())
	m.attendeesSubmitted.Add(float64(attendees))
}

// SetActiveSessions implements core.Metrics.
func (m *Manager) SetActiveSessions(n int) {
	m.sessionsActive.Set(float64(n))
}

// UpdateImportLimiter records the limiter's current usage.
func (m *Manager) UpdateImportLimiter(status core.LimiterStatus) {
	m.importsActive.Set(float64(status.Active))
	m.importsAvailable.Set(float64(status.Available))
}

// RecordHTTPRequest records one served request.
func (m *Manager) RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
