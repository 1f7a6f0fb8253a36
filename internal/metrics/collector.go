// Package metrics exports analysis run measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banking/batch-analysis/internal/domain"
)

const namespace = "batch_analysis"

// Collector records analysis run metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	runsTotal           *prometheus.CounterVec
	runDuration         *prometheus.HistogramVec
	patternsDetected    *prometheus.CounterVec
	patternRiskScore    *prometheus.HistogramVec
	transactionsFetched prometheus.Histogram
	lastRunFindings     prometheus.Gauge
}

// NewCollector creates a collector with Go and process collectors registered
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of analysis runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Analysis run duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		patternsDetected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patterns_detected_total",
				Help:      "Total number of pattern findings by type",
			},
			[]string{"pattern_type"},
		),
		patternRiskScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pattern_risk_score",
				Help:      "Risk score of individual pattern findings",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"pattern_type"},
		),
		transactionsFetched: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transactions_fetched",
				Help:      "Number of transactions fetched per run",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		lastRunFindings: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_findings",
				Help:      "Number of findings in the most recent run",
			},
		),
	}
}

// RunCompleted records a finished run
func (c *Collector) RunCompleted(outcome string, duration time.Duration) {
	c.runsTotal.WithLabelValues(outcome).Inc()
	c.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// TransactionsFetched records the size of a fetched window
func (c *Collector) TransactionsFetched(n int) {
	c.transactionsFetched.Observe(float64(n))
}

// PatternsDetected records a run's findings
func (c *Collector) PatternsDetected(findings []domain.PatternFinding) {
	c.lastRunFindings.Set(float64(len(findings)))
	for _, f := range findings {
		c.patternsDetected.WithLabelValues(string(f.Type)).Inc()
		c.patternRiskScore.WithLabelValues(string(f.Type)).Observe(f.RiskScore)
	}
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the /metrics HTTP handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
