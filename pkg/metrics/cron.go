package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ticket_inventory"

// CronJobMetrics covers the scheduler: per-job outcomes plus lock contention.
// A nil or zero value records nothing.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	outcomes    *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	skipped     *prometheus.CounterVec
	leaseLost   prometheus.Counter
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	factory := promauto.With(reg)
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: "cron", Name: name, Help: help}
	}
	return &CronJobMetrics{
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of scheduled jobs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"job"}),
		outcomes:    factory.NewCounterVec(prometheus.CounterOpts(opts("job_runs_total", "Scheduled job runs by outcome.")), []string{"job", "outcome"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts(opts("job_last_success_timestamp_seconds", "Unix time of the last successful run per job.")), []string{"job"}),
		skipped:     factory.NewCounterVec(prometheus.CounterOpts(opts("lock_skipped_total", "Ticks skipped because another instance held the lock.")), []string{"scheduler"}),
		leaseLost:   factory.NewCounter(prometheus.CounterOpts(opts("lease_lost_total", "Cycles cancelled because the lock lease could not be renewed."))),
	}
}

func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts a success and stamps the job's last success time.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.outcomes == nil {
		return
	}
	job = normalizeLabel(job)
	c.outcomes.WithLabelValues(job, "success").Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues(normalizeLabel(job), "failure").Inc()
}

func (c *CronJobMetrics) IncLockSkipped(scheduler string) {
	if c == nil || c.skipped == nil {
		return
	}
	c.skipped.WithLabelValues(normalizeLabel(scheduler)).Inc()
}

func (c *CronJobMetrics) IncLeaseLost() {
	if c == nil || c.leaseLost == nil {
		return
	}
	c.leaseLost.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
