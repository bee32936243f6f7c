package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecomputeMetrics exports inventory recompute outcomes.
type RecomputeMetrics struct {
	runs      *prometheus.CounterVec
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	anomalies *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func NewRecomputeMetrics(reg prometheus.Registerer) *RecomputeMetrics {
	if reg == nil {
		return &RecomputeMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recompute",
		Name:      "runs_total",
		Help:      "Recompute runs by mode and outcome.",
	}, []string{"mode", "outcome"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recompute",
		Name:      "ticket_types_processed_total",
		Help:      "Ticket types whose derived fields were written.",
	}, []string{"mode"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recompute",
		Name:      "ticket_types_failed_total",
		Help:      "Ticket types whose recompute failed.",
	}, []string{"mode"})
	anomalies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recompute",
		Name:      "anomalies_total",
		Help:      "Data quality anomalies found while recomputing, by kind.",
	}, []string{"kind"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "recompute",
		Name:      "run_duration_seconds",
		Help:      "Wall time of recompute runs.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"mode"})
	reg.MustRegister(runs, processed, failed, anomalies, duration)
	return &RecomputeMetrics{
		runs:      runs,
		processed: processed,
		failed:    failed,
		anomalies: anomalies,
		duration:  duration,
	}
}

// ObserveRun records one finished recompute.
func (m *RecomputeMetrics) ObserveRun(mode, outcome string, processed, failed int, anomaliesByKind map[string]int, duration time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	mode = normalizeLabel(mode)
	m.runs.WithLabelValues(mode, normalizeLabel(outcome)).Inc()
	m.processed.WithLabelValues(mode).Add(float64(processed))
	m.failed.WithLabelValues(mode).Add(float64(failed))
	for kind, n := range anomaliesByKind {
		m.anomalies.WithLabelValues(normalizeLabel(kind)).Add(float64(n))
	}
	m.duration.WithLabelValues(mode).Observe(duration.Seconds())
}
