package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Inventory metrics
	HardwareTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hardwared_hardware_total",
			Help: "Total number of non-deleted Hardware items by hardware_type",
		},
		[]string{"hardware_type"},
	)

	WorkerTasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hardwared_worker_tasks_total",
			Help: "Total number of WorkerTask rows by worker_type and state",
		},
		[]string{"worker_type", "state"},
	)

	AvailabilityWindowsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hardwared_availability_windows_total",
			Help: "Total number of AvailabilityWindow rows across all hardware",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hardwared_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hardwared_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hardwared_reconciliation_duration_seconds",
			Help:    "Time taken for one ProcessPending reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hardwared_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)

	WorkerTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hardwared_worker_task_duration_seconds",
			Help:    "Time taken for a single Worker.Process call, by worker_type and outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker_type", "outcome"},
	)

	WorkerTaskResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hardwared_worker_task_results_total",
			Help: "Total Worker.Process outcomes by worker_type and result kind",
		},
		[]string{"worker_type", "outcome"},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hardwared_scheduling_latency_seconds",
			Help:    "Time a WorkerTask spends PENDING before being claimed",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(HardwareTotal)
	prometheus.MustRegister(WorkerTasksTotal)
	prometheus.MustRegister(AvailabilityWindowsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(WorkerTaskDuration)
	prometheus.MustRegister(WorkerTaskResultsTotal)
	prometheus.MustRegister(SchedulingLatency)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations and recording their duration to
// a histogram, following the teacher's pkg/metrics Timer idiom.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
