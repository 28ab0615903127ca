package apiclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer, api string) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "barakah",
			Subsystem:   "api_client",
			Name:        "requests_total",
			Help:        "Requests issued to the upstream API, by method and outcome.",
			ConstLabels: prometheus.Labels{"api": api},
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "barakah",
			Subsystem:   "api_client",
			Name:        "request_duration_seconds",
			Help:        "Upstream API round-trip latency.",
			ConstLabels: prometheus.Labels{"api": api},
			Buckets:     prometheus.DefBuckets,
		}, []string{"method"}),
	}
	// clients of the same API share their collectors
	if err := reg.Register(m.requests); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		m.requests = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(m.duration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		m.duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return m
}

// observe records one request; a nil receiver records nothing.
func (m *metrics) observe(method string, kind Kind, start time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, kind.outcome()).Inc()
	m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
