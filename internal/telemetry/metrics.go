package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы обработки сообщения (label outcome).
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Metrics — Prometheus-метрики одного экземпляра воркера.
//
// Метрики не глобальные: каждый воркер создаёт свой набор и регистрирует
// его в переданном Registerer. Без Registerer метрики живут только в памяти
// (удобно для тестов и one-shot выполнения).
type Metrics struct {
	Tasks    *prometheus.CounterVec
	InFlight prometheus.Gauge
	Backlog  prometheus.Gauge
	Duration *prometheus.HistogramVec
}

// NewMetrics создаёт метрики и регистрирует их в reg (если reg != nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "extraction_worker_tasks_total",
			Help: "Processed messages by outcome (succeeded, failed, rejected).",
		}, []string{"outcome"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "extraction_worker_tasks_in_flight",
			Help: "Router invocations currently running.",
		}),
		Backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "extraction_worker_tasks_pending",
			Help: "Tasks waiting for a free concurrency slot.",
		}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "extraction_worker_task_duration_seconds",
			Help:    "Router invocation duration by message type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
	}

	if reg != nil {
		reg.MustRegister(m.Tasks, m.InFlight, m.Backlog, m.Duration)
	}
	return m
}

// ObserveOutcome увеличивает счётчик исхода.
func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(outcome).Inc()
}

// ObserveDuration записывает длительность вызова Router'а.
func (m *Metrics) ObserveDuration(msgType string, d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(msgType).Observe(d.Seconds())
}

// SetInFlight выставляет число выполняемых tasks.
func (m *Metrics) SetInFlight(n int) {
	if m == nil {
		return
	}
	m.InFlight.Set(float64(n))
}

// SetBacklog выставляет число ожидающих tasks.
func (m *Metrics) SetBacklog(n int) {
	if m == nil {
		return
	}
	m.Backlog.Set(float64(n))
}
