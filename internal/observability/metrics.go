package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce      sync.Once
	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec
	scanDecisions     *prometheus.CounterVec
	attendanceMarks   *prometheus.CounterVec
	deviceSyncs       *prometheus.CounterVec
	deviceSyncSeconds *prometheus.HistogramVec
	importRows        *prometheus.CounterVec
	feedConnections   prometheus.Gauge
	feedEvents        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the attendance service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		scanDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scan_decisions_total",
			Help: "Matching engine outcomes per processed scan event.",
		}, []string{"decision"})

		attendanceMarks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_marks_total",
			Help: "Attendance records written, by status.",
		}, []string{"status"})

		deviceSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "device_sync_total",
			Help: "Device log collection runs, by transport and result.",
		}, []string{"transport", "result"})

		deviceSyncSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "device_sync_seconds",
			Help:    "Duration of device log collection runs.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"transport"})

		importRows = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Rows seen by the archive importer, by file format and outcome.",
		}, []string{"format", "outcome"})

		feedConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feed_connections",
			Help: "Currently connected live feed websocket clients.",
		})

		feedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_events_total",
			Help: "Events broadcast on the live feed, by kind.",
		}, []string{"kind"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			scanDecisions, attendanceMarks,
			deviceSyncs, deviceSyncSeconds, importRows,
			feedConnections, feedEvents,
		)
	})
}

// APIRequests exposes the counter for HTTP requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for HTTP requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for HTTP error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ScanDecisions exposes the matching outcome counter.
func ScanDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return scanDecisions
}

// AttendanceMarks exposes the written-record counter.
func AttendanceMarks() *prometheus.CounterVec {
	RegisterMetrics()
	return attendanceMarks
}

// DeviceSyncs exposes the sync run counter.
func DeviceSyncs() *prometheus.CounterVec {
	RegisterMetrics()
	return deviceSyncs
}

// DeviceSyncDuration exposes the sync latency histogram.
func DeviceSyncDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return deviceSyncSeconds
}

// ImportRows exposes the importer row counter.
func ImportRows() *prometheus.CounterVec {
	RegisterMetrics()
	return importRows
}

// FeedConnections exposes the live feed connection gauge.
func FeedConnections() prometheus.Gauge {
	RegisterMetrics()
	return feedConnections
}

// FeedEvents exposes the live feed broadcast counter.
func FeedEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return feedEvents
}
