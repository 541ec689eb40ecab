package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/G-Research/armada-compute/internal/compute/job"
)

const (
	NAMESPACE = "compute"
	SUBSYSTEM = "jobs"
)

type Metrics struct {
	// Number of jobs waiting in the queue.
	queueSize prometheus.Gauge
	// Remaining queue capacity.
	queueRemaining prometheus.Gauge
	// Inserts rejected because the queue was full.
	queueOverflows prometheus.Counter
	// Accepted submissions.
	submissions prometheus.Counter
	// State transitions, by target state.
	transitions *prometheus.CounterVec
	// Duration of single execution attempts, by outcome.
	attemptDuration *prometheus.HistogramVec
	// Statuses dropped by the retention sweep.
	expiredStatuses prometheus.Counter
}

func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Subsystem: SUBSYSTEM,
			Name:      "queue_size",
			Help:      "Number of jobs waiting in the queue.",
		}),
		queueRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Subsystem: SUBSYSTEM,
			Name:      "queue_remaining_capacity",
			Help:      "Number of jobs that can still be queued.",
		}),
		queueOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Subsystem: SUBSYSTEM,
			Name:      "queue_overflows_total",
			Help:      "Number of submissions rejected because the queue was full.",
		}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Subsystem: SUBSYSTEM,
			Name:      "submissions_total",
			Help:      "Number of accepted job submissions.",
		}),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "transitions_total",
				Help:      "Number of job state transitions, by target state.",
			},
			[]string{"state"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: NAMESPACE,
				Subsystem: SUBSYSTEM,
				Name:      "attempt_duration_seconds",
				Help:      "Duration of job execution attempts.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
			},
			[]string{"outcome"},
		),
		expiredStatuses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Subsystem: SUBSYSTEM,
			Name:      "expired_statuses_total",
			Help:      "Number of finished job statuses dropped after the retention window.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.queueSize, m.queueRemaining, m.queueOverflows, m.submissions, m.transitions, m.attemptDuration, m.expiredStatuses,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewUnregistered returns metrics that are recorded but not exported.
func NewUnregistered() *Metrics {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) ReportQueue(size, remaining int) {
	m.queueSize.Set(float64(size))
	m.queueRemaining.Set(float64(remaining))
}

func (m *Metrics) ReportOverflow() {
	m.queueOverflows.Inc()
}

func (m *Metrics) ReportSubmission() {
	m.submissions.Inc()
}

func (m *Metrics) ReportTransition(state job.State) {
	m.transitions.WithLabelValues(state.String()).Inc()
}

func (m *Metrics) ReportAttempt(outcome string, duration time.Duration) {
	m.attemptDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) ReportExpiredStatuses(n int) {
	m.expiredStatuses.Add(float64(n))
}
