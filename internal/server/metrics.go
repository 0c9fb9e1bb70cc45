package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// requestMetrics counts dispatched requests by route kind and status.
type requestMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRequestMetrics(registerer prometheus.Registerer) *requestMetrics {
	factory := promauto.With(registerer)

	return &requestMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotserve",
			Name:      "requests_total",
			Help:      "Total number of dispatched requests by route kind and status code",
		}, []string{"kind", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotserve",
			Name:      "request_duration_seconds",
			Help:      "Time spent dispatching requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

func (m *requestMetrics) observe(kind string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
