package execution

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/common/future"
	"github.com/G-Research/armada-compute/internal/common/logging"
	"github.com/G-Research/armada-compute/internal/compute/classloader"
	"github.com/G-Research/armada-compute/internal/compute/events"
	"github.com/G-Research/armada-compute/internal/compute/job"
	"github.com/G-Research/armada-compute/internal/compute/metrics"
	"github.com/G-Research/armada-compute/internal/compute/queue"
	"github.com/G-Research/armada-compute/internal/compute/registry"
)

const defaultResultRetention = 5 * time.Minute

type Config struct {
	// Number of jobs executed concurrently.
	Workers int
	// Retry budget of jobs submitted with job.UseDefaultRetries.
	DefaultRetryOnFail int
	// How long the result of a finished job can still be fetched by id.
	ResultRetention time.Duration
}

// record is the executor's bookkeeping for one submitted job.
type record struct {
	job       *job.Job
	result    *future.Future[any]
	cancelled atomic.Bool

	mu     sync.Mutex
	loader *classloader.JobClassLoader
	// Cancels the running attempt, nil when no attempt is running.
	stop context.CancelFunc
}

func (r *record) requestCancel() {
	r.cancelled.Store(true)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		r.stop()
	}
}

func (r *record) setStop(stop context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stop = stop
}

// Executor queues submitted jobs and runs them on a fixed pool of workers.
type Executor struct {
	node      string
	config    Config
	queue     *queue.BoundedPriorityQueue[uuid.UUID, *record]
	registry  *registry.Registry
	system    classloader.ClassResolver
	units     classloader.DeploymentUnitResolver
	clock     clock.PassiveClock
	metrics   *metrics.Metrics
	publisher events.Publisher

	mu   sync.RWMutex
	live map[uuid.UUID]*record
	// Records of finished jobs, kept so their results can still be fetched.
	finished *cache.Cache
}

func NewExecutor(
	node string,
	config Config,
	capacity func() int,
	registry *registry.Registry,
	system classloader.ClassResolver,
	units classloader.DeploymentUnitResolver,
	clock clock.PassiveClock,
	metrics *metrics.Metrics,
	publisher events.Publisher,
) *Executor {
	resultRetention := config.ResultRetention
	if resultRetention <= 0 {
		resultRetention = defaultResultRetention
	}
	return &Executor{
		node:      node,
		config:    config,
		queue:     queue.New[uuid.UUID, *record](capacity),
		registry:  registry,
		system:    system,
		units:     units,
		clock:     clock,
		metrics:   metrics,
		publisher: publisher,
		live:      make(map[uuid.UUID]*record),
		finished:  cache.New(resultRetention, time.Minute),
	}
}

// Node returns the name of the node jobs are executed on.
func (e *Executor) Node() string {
	return e.node
}

// Submit validates spec and queues a new job for execution.
// A *queue.QueueOverflowError is returned if the queue is full; the job is then not registered.
func (e *Executor) Submit(ctx *armadacontext.Context, spec job.Spec) (*LocalExecution, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.RetryOnFail == job.UseDefaultRetries {
		spec.RetryOnFail = e.config.DefaultRetryOnFail
	}

	j := job.New(uuid.New(), e.node, spec, e.clock.Now())
	rec := &record{job: j, result: future.New[any]()}
	if err := e.registry.Add(j); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.live[j.Id()] = rec
	e.mu.Unlock()

	err := e.queue.OfferWith(
		queue.Item[uuid.UUID, *record]{Key: j.Id(), Value: rec, Priority: spec.Priority},
		func() error { return j.Transition(job.Queued, e.clock.Now()) },
	)
	if err != nil {
		var overflow *queue.QueueOverflowError
		if errors.As(err, &overflow) {
			e.metrics.ReportOverflow()
		}
		e.registry.Remove(j.Id())
		e.mu.Lock()
		delete(e.live, j.Id())
		e.mu.Unlock()
		return nil, err
	}

	e.metrics.ReportSubmission()
	e.transitioned(ctx, j, nil)
	return &LocalExecution{executor: e, rec: rec}, nil
}

// Run starts the workers and blocks until ctx is cancelled. Jobs still queued at that point are cancelled, and
// running jobs are asked to stop.
func (e *Executor) Run(ctx *armadacontext.Context) error {
	ctx.Log.Infof("starting %d compute workers on node %s", e.config.Workers, e.node)
	g, gctx := armadacontext.ErrGroup(ctx)
	for i := 0; i < e.config.Workers; i++ {
		workerCtx := armadacontext.WithLogField(gctx, "worker", i)
		g.Go(func() error {
			e.work(workerCtx)
			return nil
		})
	}
	err := g.Wait()
	e.cancelQueued(armadacontext.Detached(ctx))
	ctx.Log.Info("compute workers stopped")
	return err
}

func (e *Executor) work(ctx *armadacontext.Context) {
	for ctx.Err() == nil {
		item, err := e.queue.Take(ctx)
		if err != nil {
			return
		}
		e.execute(ctx, item.Value)
	}
}

func (e *Executor) execute(ctx *armadacontext.Context, rec *record) {
	j := rec.job
	started, err := j.TransitionFrom(job.Queued, job.Executing, e.clock.Now())
	if err != nil || !started {
		// Cancelled after being dequeued.
		return
	}
	e.transitioned(ctx, j, nil)

	if rec.cancelled.Load() {
		e.finishFrom(ctx, rec, job.Executing, job.Canceled, nil, &CancelledError{JobId: j.Id()})
		return
	}

	attemptCtx, stop := armadacontext.WithCancel(armadacontext.WithLogFields(ctx, logrus.Fields{
		"jobId":   j.Id(),
		"attempt": j.Attempts(),
	}))
	defer stop()
	rec.setStop(stop)
	defer rec.setStop(nil)
	if rec.cancelled.Load() {
		stop()
	}

	class, err := e.loadClass(attemptCtx, rec)
	if err != nil {
		logging.WithStacktrace(attemptCtx.Log, err).Warn("failed to load job class")
		e.finishFrom(ctx, rec, job.Executing, job.Failed, nil, err)
		return
	}

	start := time.Now()
	value, err := runAttempt(attemptCtx, class, rec)
	switch {
	case rec.cancelled.Load():
		e.metrics.ReportAttempt("cancelled", time.Since(start))
		e.finishFrom(ctx, rec, job.Executing, job.Canceled, nil, &CancelledError{JobId: j.Id()})
	case err == nil:
		e.metrics.ReportAttempt("success", time.Since(start))
		e.finishFrom(ctx, rec, job.Executing, job.Completed, value, nil)
	case attemptCtx.Err() != nil:
		// The executor is shutting down.
		e.metrics.ReportAttempt("cancelled", time.Since(start))
		e.finishFrom(ctx, rec, job.Executing, job.Canceled, nil, &CancelledError{JobId: j.Id()})
	case j.Attempts() <= j.Spec().RetryOnFail:
		e.metrics.ReportAttempt("failure", time.Since(start))
		attemptCtx.Log.WithError(err).Warnf("job attempt failed, retrying (%d of %d)", j.Attempts(), j.Spec().RetryOnFail)
		e.retry(ctx, rec, err)
	default:
		e.metrics.ReportAttempt("failure", time.Since(start))
		logging.WithStacktrace(attemptCtx.Log, err).Warn("job failed")
		e.finishFrom(ctx, rec, job.Executing, job.Failed, nil, err)
	}
}

func runAttempt(ctx *armadacontext.Context, class classloader.Class, rec *record) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("job %s panicked: %v", rec.job.Id(), r)
		}
	}()
	body := class.Factory()
	return body.Execute(job.NewContext(ctx, rec.job.Id(), rec.job.Attempts(), &rec.cancelled), rec.job.Spec().Args)
}

func (e *Executor) loadClass(ctx *armadacontext.Context, rec *record) (classloader.Class, error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.loader == nil {
		loader, err := classloader.NewJobClassLoader(ctx, e.system, e.units, rec.job.Spec().DeploymentUnits)
		if err != nil {
			return classloader.Class{}, err
		}
		rec.loader = loader
	}
	return rec.loader.LoadClass(rec.job.Spec().ClassName)
}

// retry puts a job whose attempt failed back into the queue at its current priority.
func (e *Executor) retry(ctx *armadacontext.Context, rec *record, cause error) {
	j := rec.job
	err := e.queue.OfferWith(
		queue.Item[uuid.UUID, *record]{Key: j.Id(), Value: rec, Priority: j.Priority()},
		func() error {
			requeued, err := j.TransitionFrom(job.Executing, job.Queued, e.clock.Now())
			if err != nil {
				return err
			}
			if !requeued {
				return errors.Errorf("job %s left the executing state during retry", j.Id())
			}
			return nil
		},
	)
	if err != nil {
		var overflow *queue.QueueOverflowError
		if errors.As(err, &overflow) {
			e.metrics.ReportOverflow()
		}
		e.finishFrom(ctx, rec, job.Executing, job.Failed, nil, errors.WithMessagef(cause, "failed to requeue job for retry: %v", err))
		return
	}
	e.transitioned(ctx, j, nil)
}

// finishFrom moves a job from state from to terminal state to and resolves its result.
// It does nothing if the job is no longer in state from.
func (e *Executor) finishFrom(ctx *armadacontext.Context, rec *record, from, to job.State, value any, cause error) {
	ok, err := rec.job.TransitionFrom(from, to, e.clock.Now())
	if err != nil {
		logging.WithStacktrace(ctx.Log, err).Error("invalid job state transition")
		return
	}
	if ok {
		e.finish(ctx, rec, value, cause)
	}
}

// finish releases a job that has reached a terminal state and resolves its result.
func (e *Executor) finish(ctx *armadacontext.Context, rec *record, value any, cause error) {
	j := rec.job
	e.transitioned(ctx, j, cause)

	rec.mu.Lock()
	if rec.loader != nil {
		if err := rec.loader.Close(); err != nil {
			logging.WithStacktrace(ctx.Log, err).WithField("jobId", j.Id()).Warn("failed to release deployment units")
		}
	}
	rec.mu.Unlock()

	e.mu.Lock()
	delete(e.live, j.Id())
	e.finished.SetDefault(j.Id().String(), rec)
	e.mu.Unlock()

	if err := e.registry.Finish(ctx, j); err != nil {
		logging.WithStacktrace(ctx.Log, err).WithField("jobId", j.Id()).Error("failed to record finished job status")
	}

	if j.State() == job.Completed {
		rec.result.Complete(value)
	} else {
		rec.result.Fail(cause)
	}
}

func (e *Executor) transitioned(ctx *armadacontext.Context, j *job.Job, cause error) {
	status := j.Status()
	e.metrics.ReportTransition(status.State)
	ctx.Log.WithField("jobId", status.Id).Debugf("job is now %s", status.State)

	event := events.Event{
		JobId:    status.Id,
		Node:     status.Node,
		State:    status.State,
		Priority: status.Priority,
		Time:     e.clock.Now(),
	}
	if cause != nil && status.State == job.Failed {
		event.Error = cause.Error()
	}
	e.publisher.Publish(ctx, event)
}

func (e *Executor) lookup(id uuid.UUID) (*record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if rec, ok := e.live[id]; ok {
		return rec, true
	}
	if rec, ok := e.finished.Get(id.String()); ok {
		return rec.(*record), true
	}
	return nil, false
}

// Cancel cancels a job. Queued jobs are removed from the queue and never run; executing jobs are asked to stop and
// finish as cancelled once they do. Cancel never waits for a running job.
func (e *Executor) Cancel(ctx *armadacontext.Context, id uuid.UUID) (CancelResult, error) {
	rec, ok := e.lookup(id)
	if !ok {
		_, known, err := e.registry.Status(ctx, id)
		if err != nil {
			return CancelNotFound, err
		}
		if known {
			return AlreadyFinished, nil
		}
		return CancelNotFound, nil
	}

	j := rec.job
	for {
		e.queue.Remove(id)
		switch j.State() {
		case job.Queued:
			// Either removed above or dequeued by a worker that has not started it yet.
			cancelled, err := j.TransitionFrom(job.Queued, job.Canceled, e.clock.Now())
			if err != nil {
				return CancelNotFound, err
			}
			if cancelled {
				e.finish(ctx, rec, nil, &CancelledError{JobId: id})
				return CancelledBeforeStart, nil
			}
		case job.Submitted, job.Executing:
			rec.requestCancel()
			return CancelRequested, nil
		default:
			return AlreadyFinished, nil
		}
	}
}

// ChangePriority changes the priority of a queued job. It returns false if the job is not queued.
func (e *Executor) ChangePriority(ctx *armadacontext.Context, id uuid.UUID, priority int64) (bool, error) {
	rec, ok := e.lookup(id)
	if !ok {
		_, known, err := e.registry.Status(ctx, id)
		if err != nil {
			return false, err
		}
		if known {
			return false, nil
		}
		return false, errors.WithStack(&armadaerrors.ErrNotFound{Type: "job", Value: id.String()})
	}
	if rec.job.State() != job.Queued {
		return false, nil
	}
	if !e.queue.ChangePriority(id, priority) {
		return false, nil
	}
	rec.job.SetPriority(priority)
	ctx.Log.WithField("jobId", id).Debugf("job priority changed to %d", priority)
	return true, nil
}

// Status returns the status of a job, or false if the job is unknown or its retention window has elapsed.
func (e *Executor) Status(ctx *armadacontext.Context, id uuid.UUID) (job.Status, bool, error) {
	return e.registry.Status(ctx, id)
}

// List returns the statuses of all jobs known to this node.
func (e *Executor) List(ctx *armadacontext.Context) ([]job.Status, error) {
	return e.registry.List(ctx)
}

// Result returns the result future of a job that is running or finished recently.
func (e *Executor) Result(id uuid.UUID) (*future.Future[any], bool) {
	rec, ok := e.lookup(id)
	if !ok {
		return nil, false
	}
	return rec.result, true
}

// ReportMetrics publishes queue gauges.
func (e *Executor) ReportMetrics() {
	e.metrics.ReportQueue(e.queue.Size(), e.queue.RemainingCapacity())
}

// SweepStatuses drops finished statuses whose retention window has elapsed.
func (e *Executor) SweepStatuses(ctx *armadacontext.Context) {
	n, err := e.registry.Sweep(ctx)
	if err != nil {
		logging.WithStacktrace(ctx.Log, err).Warn("failed to sweep expired job statuses")
	}
	e.metrics.ReportExpiredStatuses(n)
}

func (e *Executor) cancelQueued(ctx *armadacontext.Context) {
	for _, item := range e.queue.DrainTo(0) {
		rec := item.Value
		e.finishFrom(ctx, rec, job.Queued, job.Canceled, nil, &CancelledError{JobId: rec.job.Id()})
	}
}

// LocalExecution is the handle of a job submitted to this node.
type LocalExecution struct {
	executor *Executor
	rec      *record
}

func (x *LocalExecution) Id() uuid.UUID {
	return x.rec.job.Id()
}

func (x *LocalExecution) Node() string {
	return x.rec.job.Node()
}

func (x *LocalExecution) ResultAsync() *future.Future[any] {
	return x.rec.result
}

func (x *LocalExecution) Status(ctx *armadacontext.Context) (job.Status, bool, error) {
	return x.executor.Status(ctx, x.Id())
}

func (x *LocalExecution) Cancel(ctx *armadacontext.Context) (CancelResult, error) {
	return x.executor.Cancel(ctx, x.Id())
}

func (x *LocalExecution) ChangePriority(ctx *armadacontext.Context, priority int64) (bool, error) {
	return x.executor.ChangePriority(ctx, x.Id(), priority)
}
