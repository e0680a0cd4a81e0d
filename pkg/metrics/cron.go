package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics tracks scheduled job outcomes and latency.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cron_job_runs_total",
		Help:      "Scheduled job runs partitioned by job and result.",
	}, []string{"job", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cron_job_duration_seconds",
		Help:      "Scheduled job latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	reg.MustRegister(runs, duration)
	return &CronJobMetrics{runs: runs, duration: duration}
}

// Observe records one job run. err decides the result label.
func (c *CronJobMetrics) Observe(job string, duration time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	job = normalizeLabel(job)
	c.runs.WithLabelValues(job, result).Inc()
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
}
