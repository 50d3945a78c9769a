package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workguild"

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on the global one.
type Metrics struct {
	registry        *prometheus.Registry
	assignments     *prometheus.CounterVec
	redistributions *prometheus.CounterVec
	alertsCreated   *prometheus.CounterVec
	alertsRemoved   prometheus.Counter
	pushDeliveries  *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runErrors       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Tasks processed by auto-assignment, by result.",
		}, []string{"result"}),
		redistributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redistributions_total",
			Help:      "Tasks considered for redistribution, by result.",
		}, []string{"result"}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts created, by type.",
		}, []string{"type"}),
		alertsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_removed_total",
			Help:      "Alerts removed by retention cleanup.",
		}),
		pushDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_deliveries_total",
			Help:      "Web push deliveries, by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of engine runs, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		runErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Engine runs that returned an error, by operation.",
		}, []string{"operation"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.assignments,
		m.redistributions,
		m.alertsCreated,
		m.alertsRemoved,
		m.pushDeliveries,
		m.runDuration,
		m.runErrors,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) ObserveRun(operation string, start time.Time, err error) {
	m.runDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.runErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) AddAssignments(assigned, failed int) {
	m.assignments.WithLabelValues("assigned").Add(float64(assigned))
	m.assignments.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) AddRedistributions(moved, failed, skipped int) {
	m.redistributions.WithLabelValues("moved").Add(float64(moved))
	m.redistributions.WithLabelValues("failed").Add(float64(failed))
	m.redistributions.WithLabelValues("skipped").Add(float64(skipped))
}

func (m *Metrics) AddAlertCreated(alertType string) {
	m.alertsCreated.WithLabelValues(alertType).Inc()
}

func (m *Metrics) AddAlertsRemoved(n int) {
	m.alertsRemoved.Add(float64(n))
}

func (m *Metrics) AddPushDelivery(result string) {
	m.pushDeliveries.WithLabelValues(result).Inc()
}
