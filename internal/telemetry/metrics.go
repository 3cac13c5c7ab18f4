package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus-метрики ядра. Экспортируются воркером на /metrics.
type Metrics struct {
	JobsProcessed  *prometheus.CounterVec
	JobsFailed     *prometheus.CounterVec
	JobsRetried    *prometheus.CounterVec
	JobsDeadLetter *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec

	IdempotentHits    *prometheus.CounterVec
	LimiterRefusals   *prometheus.CounterVec
	BreakerRejections *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
}

// NewMetrics регистрирует метрики в reg.
// При reg == nil используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_jobs_processed_total",
			Help: "Jobs completed successfully.",
		}, []string{"queue", "kind"}),

		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_jobs_failed_total",
			Help: "Job attempts that ended in error.",
		}, []string{"queue", "kind"}),

		JobsRetried: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_jobs_retried_total",
			Help: "Jobs rescheduled for another attempt.",
		}, []string{"queue", "kind"}),

		JobsDeadLetter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_jobs_dead_letter_total",
			Help: "Jobs moved to the dead letter queue.",
		}, []string{"queue", "kind"}),

		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bastion_job_duration_seconds",
			Help:    "Processor execution time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue", "kind"}),

		IdempotentHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_idempotency_hits_total",
			Help: "Jobs acknowledged from a cached result.",
		}, []string{"queue", "kind"}),

		LimiterRefusals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_ratelimit_refusals_total",
			Help: "Token acquisitions refused by the rate limiter.",
		}, []string{"service"}),

		BreakerRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_breaker_rejections_total",
			Help: "Calls short-circuited by an open circuit breaker.",
		}, []string{"dependency"}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bastion_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"dependency"}),
	}
}

// ObserveJob записывает метрики одной попытки обработки.
func (m *Metrics) ObserveJob(queue, kind string, start time.Time, err error) {
	m.JobDuration.WithLabelValues(queue, kind).Observe(time.Since(start).Seconds())
	if err != nil {
		m.JobsFailed.WithLabelValues(queue, kind).Inc()
		return
	}
	m.JobsProcessed.WithLabelValues(queue, kind).Inc()
}

// SetBreakerState обновляет gauge состояния breaker.
func (m *Metrics) SetBreakerState(dependency, state string) {
	var v float64
	switch state {
	case "HALF_OPEN":
		v = 1
	case "OPEN":
		v = 2
	}
	m.BreakerState.WithLabelValues(dependency).Set(v)
}
