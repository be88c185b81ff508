// Package metrics exposes probe and run counters on a private Prometheus
// registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hostpin/internal/storage/models"
	apperrors "hostpin/pkg/errors"
)

type Metrics struct {
	r *prometheus.Registry

	ProbesTotal     *prometheus.CounterVec
	ProbeLatency    *prometheus.HistogramVec
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	AssignedDomains *prometheus.GaugeVec
}

func New() *Metrics {
	r := prometheus.NewRegistry()

	m := &Metrics{
		r: r,

		ProbesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostpin_probes_total",
				Help: "Total number of probes by strategy and result",
			},
			// result is "ok" or the failure kind
			[]string{"strategy", "result"},
		),

		ProbeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hostpin_probe_latency_seconds",
				Help:    "Latency of successful probes in seconds",
				Buckets: []float64{.01, .025, .05, .1, .2, .4, .8, 1.5, 3},
			},
			[]string{"strategy", "domain"},
		),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostpin_runs_total",
				Help: "Total number of runs by final state",
			},
			[]string{"state"},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hostpin_run_duration_seconds",
				Help:    "Time to complete a run in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		AssignedDomains: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hostpin_assigned_domains",
				Help: "Number of domains in the last written assignment by source",
			},
			[]string{"source"},
		),
	}

	r.MustRegister(
		m.ProbesTotal,
		m.ProbeLatency,
		m.RunsTotal,
		m.RunDuration,
		m.AssignedDomains,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() prometheus.Registerer {
	return m.r
}

// Gatherer returns the registry for scraping in tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.r
}

func (m *Metrics) Handler(log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	errLog, _ := zap.NewStdLogAt(log.Named("promhttp"), zap.ErrorLevel)

	return promhttp.HandlerFor(m.r, promhttp.HandlerOpts{
		ErrorLog:          errLog,
		Registry:          m.r,
		EnableOpenMetrics: true,
	})
}

// ObserveProbe records one probe outcome.
func (m *Metrics) ObserveProbe(strategy string, outcome *models.Outcome) {
	if outcome.Success {
		m.ProbesTotal.WithLabelValues(strategy, "ok").Inc()
		if outcome.LatencyMS != nil {
			m.ProbeLatency.WithLabelValues(strategy, outcome.Domain).Observe(*outcome.LatencyMS / 1000)
		}
		return
	}

	kind := string(apperrors.KindOf(outcome.Err))
	if kind == "" {
		kind = "unknown"
	}
	m.ProbesTotal.WithLabelValues(strategy, kind).Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(state string, seconds float64, assignment models.Assignment) {
	m.RunsTotal.WithLabelValues(state).Inc()
	m.RunDuration.Observe(seconds)

	if assignment == nil {
		return
	}
	counts := map[string]int{models.SourceProbed: 0, models.SourceFallback: 0}
	for _, e := range assignment {
		counts[e.Source]++
	}
	for source, n := range counts {
		m.AssignedDomains.WithLabelValues(source).Set(float64(n))
	}
}
