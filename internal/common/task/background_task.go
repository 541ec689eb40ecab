package task

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

type task struct {
	name     string
	function func()
	interval time.Duration
	stop     chan struct{}
}

// BackgroundTaskManager runs housekeeping functions (status sweeps, gauge refreshes) periodically and records how
// long each run takes. It must only be used from a single goroutine.
type BackgroundTaskManager struct {
	clock    clock.WithTicker
	duration *prometheus.HistogramVec
	tasks    []*task
	wg       sync.WaitGroup
}

// NewBackgroundTaskManager registers a <metricsPrefix>background_task_duration_seconds histogram, labelled by
// task, with registerer.
func NewBackgroundTaskManager(metricsPrefix string, registerer prometheus.Registerer) *BackgroundTaskManager {
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricsPrefix + "background_task_duration_seconds",
			Help:    "Duration of background task runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"task"},
	)
	if err := registerer.Register(duration); err != nil {
		log.WithError(err).Warn("unable to register background task duration metric")
	}
	return &BackgroundTaskManager{
		clock:    clock.RealClock{},
		duration: duration,
	}
}

// Register runs function immediately and then every interval until StopAll is called.
func (m *BackgroundTaskManager) Register(function func(), interval time.Duration, name string) {
	t := &task{
		name:     name,
		function: function,
		interval: interval,
		stop:     make(chan struct{}),
	}
	m.tasks = append(m.tasks, t)
	m.wg.Add(1)
	go m.run(t)
}

func (m *BackgroundTaskManager) run(t *task) {
	defer m.wg.Done()
	observer := m.duration.WithLabelValues(t.name)
	ticker := m.clock.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		start := m.clock.Now()
		t.function()
		observer.Observe(m.clock.Since(start).Seconds())
		select {
		case <-ticker.C():
		case <-t.stop:
			return
		}
	}
}

// StopAll stops every task and waits up to timeout for running ones to return. Returns true if the wait timed out.
func (m *BackgroundTaskManager) StopAll(timeout time.Duration) bool {
	for _, t := range m.tasks {
		close(t.stop)
	}
	m.tasks = nil

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.wg.Wait()
	}()
	select {
	case <-done:
		return false
	case <-m.clock.After(timeout):
		return true
	}
}
