package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveOutcome(OutcomeSucceeded)
	m.ObserveOutcome(OutcomeFailed)
	m.ObserveOutcome(OutcomeFailed)
	m.SetInFlight(2)
	m.SetBacklog(5)
	m.ObserveDuration("json-rpc", 150*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	got := make(map[string]bool)
	for _, f := range families {
		got[f.GetName()] = true
	}
	for _, name := range []string{
		"extraction_worker_tasks_total",
		"extraction_worker_tasks_in_flight",
		"extraction_worker_tasks_pending",
		"extraction_worker_task_duration_seconds",
	} {
		if !got[name] {
			t.Errorf("metric %s not registered", name)
		}
	}

	for _, f := range families {
		if f.GetName() != "extraction_worker_tasks_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			if metric.GetLabel()[0].GetValue() == OutcomeFailed && metric.GetCounter().GetValue() != 2 {
				t.Errorf("expected 2 failed, got %v", metric.GetCounter().GetValue())
			}
		}
	}
}

func TestMetrics_IndependentInstances(t *testing.T) {
	// Два воркера в одном процессе — две независимые регистрации.
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveOutcome(OutcomeRejected)
	m.SetInFlight(1)
	m.SetBacklog(1)
	m.ObserveDuration("exit", time.Second)
}
