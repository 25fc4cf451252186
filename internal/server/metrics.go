package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gkobilansky/gamma-goat/internal/igamma"
)

// metrics is registered on its own registry so several servers can live in
// one process (tests do this).
type metrics struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	duration    prometheus.Histogram
	unconverged prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamma_goat_evaluations_total",
			Help: "Evaluations of P(a,x)/Q(a,x) by regime and branch.",
		}, []string{"regime", "branch"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamma_goat_evaluation_duration_seconds",
			Help:    "Time spent in a single evaluation.",
			Buckets: prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
		unconverged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamma_goat_unconverged_fractions_total",
			Help: "Evaluations whose continued fraction hit the step budget.",
		}),
	}
	m.registry.MustRegister(
		m.evaluations,
		m.duration,
		m.unconverged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) observe(res igamma.Result, elapsed time.Duration) {
	m.evaluations.WithLabelValues(res.Regime.String(), res.Branch.String()).Inc()
	m.duration.Observe(elapsed.Seconds())
	if !res.Converged {
		m.unconverged.Inc()
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
