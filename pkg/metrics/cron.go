package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Cron run outcomes.
const (
	CronSucceeded = "succeeded"
	CronFailed    = "failed"
	CronSkipped   = "skipped"
)

// CronJobMetrics counts cron runs per job and outcome and times the runs
// that actually executed.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by outcome; skipped means another worker held the lock.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of executed cron jobs.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration)
	return m
}

// Finished records an executed run.
func (c *CronJobMetrics) Finished(job string, elapsed time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	outcome := CronSucceeded
	if err != nil {
		outcome = CronFailed
	}
	c.runs.WithLabelValues(job, outcome).Inc()
}

// Failed records a run that never started, e.g. the lock store was down.
func (c *CronJobMetrics) Failed(job string) {
	c.count(job, CronFailed)
}

func (c *CronJobMetrics) Skipped(job string) {
	c.count(job, CronSkipped)
}

func (c *CronJobMetrics) count(job, outcome string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), outcome).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
