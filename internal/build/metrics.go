package build

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records build outcomes in Prometheus. It is a Reporter.
type Metrics struct {
	buildsTotal   *prometheus.CounterVec
	buildDuration prometheus.Histogram
	generation    prometheus.Gauge
	routes        prometheus.Gauge
	templates     prometheus.Gauge
}

// NewMetrics registers the build metrics with registerer. A nil registerer
// uses prometheus.DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		buildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotserve",
			Name:      "builds_total",
			Help:      "Total number of builds by trigger, result and final stage",
		}, []string{"trigger", "result", "stage"}),

		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hotserve",
			Name:      "build_duration_seconds",
			Help:      "Wall-clock duration of build cycles in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),

		generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hotserve",
			Name:      "snapshot_generation",
			Help:      "Generation of the snapshot currently served",
		}),

		routes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hotserve",
			Name:      "snapshot_routes",
			Help:      "Number of routes in the snapshot currently served",
		}),

		templates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hotserve",
			Name:      "snapshot_templates",
			Help:      "Number of templates in the snapshot currently served",
		}),
	}
}

// Report implements Reporter.
func (m *Metrics) Report(_ context.Context, out Outcome) {
	result := "success"
	if !out.Succeeded() {
		result = "failure"
	}

	m.buildsTotal.WithLabelValues(string(out.Trigger), result, out.Stage.String()).Inc()
	m.buildDuration.Observe(out.Elapsed.Seconds())

	if snap := out.Snapshot; snap != nil {
		m.generation.Set(float64(snap.Generation))
		m.routes.Set(float64(snap.Routes.Len()))
		m.templates.Set(float64(snap.Templates.Len()))
	}
}
