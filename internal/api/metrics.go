package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics — метрики HTTP API.
type HTTPMetrics struct {
	Requests *prometheus.HistogramVec
}

// NewHTTPMetrics создаёт метрики и регистрирует их в reg (если reg != nil).
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "extraction_api_request_duration_seconds",
			Help:    "HTTP request duration by route pattern and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests)
	}
	return m
}
