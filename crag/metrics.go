package crag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes pipeline run metrics to Prometheus.
type Collector struct {
	runsTotal        *prometheus.CounterVec
	iterations       prometheus.Histogram
	correctionsTotal *prometheus.CounterVec
	riskTotal        *prometheus.CounterVec
	confidence       prometheus.Histogram
}

// NewCollector creates a metrics collector registered against reg.
// A nil reg uses the default Prometheus registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		iterations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_iterations",
				Help:      "Retrieval loop iterations per run",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
		),
		correctionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "corrections_total",
				Help:      "Correction actions applied, by action",
			},
			[]string{"action"},
		),
		riskTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hallucination_risk_total",
				Help:      "Completed runs by hallucination risk level",
			},
			[]string{"risk"},
		),
		confidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_confidence",
				Help:      "Confidence score of completed runs",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
	}
}

// ObserveRun records one run outcome with its iteration count. Confidence is
// only observed for completed runs.
func (c *Collector) ObserveRun(outcome string, iterations int, confidence float64) {
	c.runsTotal.WithLabelValues(outcome).Inc()
	c.iterations.Observe(float64(iterations))
	if outcome == "completed" {
		c.confidence.Observe(confidence)
	}
}

// ObserveCorrection records one applied correction action.
func (c *Collector) ObserveCorrection(action CorrectionAction) {
	c.correctionsTotal.WithLabelValues(string(action)).Inc()
}

// ObserveRisk records the risk level of a completed run.
func (c *Collector) ObserveRisk(risk HallucinationRisk) {
	c.riskTotal.WithLabelValues(string(risk)).Inc()
}
