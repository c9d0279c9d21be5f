package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fluxwell/runtime/internal/domain"
)

// Metrics holds the Prometheus collectors the runtime core updates as
// nodes execute. It is registered against a caller-supplied registry so a
// host process controls where /metrics is exposed.
type Metrics struct {
	nodesTotal   *prometheus.CounterVec
	levelSeconds prometheus.Histogram
	stepSeconds  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		nodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_nodes_total",
			Help: "Nodes resolved by the runtime core, labeled by terminal status.",
		}, []string{"status"}),
		levelSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "workflow_level_duration_seconds",
			Help: "Wall-clock duration of one execution level.",
			Buckets: prometheus.DefBuckets,
		}),
		stepSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "workflow_step_duration_seconds",
			Help: "Wall-clock duration of one durable-step-seam invocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	reg.MustRegister(m.nodesTotal, m.levelSeconds, m.stepSeconds)
	return m
}

func (m *Metrics) ObserveNodeResult(status domain.NodeResultStatus) {
	m.nodesTotal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ObserveLevelDuration(d time.Duration) {
	m.levelSeconds.Observe(d.Seconds())
}

func (m *Metrics) ObserveStepDuration(kind string, d time.Duration) {
	m.stepSeconds.WithLabelValues(kind).Observe(d.Seconds())
}
