package url2pdf

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps automatic sizing; each renderer is a browser-class process.
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for renderer child processes.
	cpuDivisor = 2

	DefaultWorkers    = 4
	DefaultQueueDepth = 20
	DefaultTimeout    = 30 * time.Second
)

// ResolvePoolSize determines the worker count.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs for containers
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}

// Runner executes one job while it holds a slot. On success it returns
// the artifact; on failure it must not leave one behind.
type Runner interface {
	Run(ctx context.Context, job *Job) (*Artifact, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job *Job) (*Artifact, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, job *Job) (*Artifact, error) {
	return f(ctx, job)
}

// SchedulerConfig bounds the scheduler.
type SchedulerConfig struct {
	Workers    int           // concurrent slots; 0 = auto
	QueueDepth int           // jobs allowed to wait for a slot
	Timeout    time.Duration // per-job deadline, counted from start
}

// Stats is a point-in-time view of scheduler load.
type Stats struct {
	Running    int
	Queued     int
	Capacity   int
	QueueDepth int
}

// Scheduler runs jobs on a fixed set of worker slots fed by a bounded
// FIFO queue. Submissions beyond the queue fail fast with ErrOverloaded.
// A queued job whose caller goes away leaves the queue at once.
type Scheduler struct {
	cfg     SchedulerConfig
	runner  Runner
	opts    options
	running atomic.Int64

	// mu guards pending, busy and closed.
	mu      sync.Mutex
	ready   *sync.Cond
	pending *list.List // of *task, oldest first
	busy    int        // tasks taken by workers and not yet resolved
	closed  bool

	startOnce sync.Once
	wg        sync.WaitGroup

	baseCtx   context.Context
	cancelAll context.CancelFunc
}

// NewScheduler creates a scheduler. Call Start before submitting work.
func NewScheduler(cfg SchedulerConfig, runner Runner, opts ...Option) *Scheduler {
	cfg.Workers = ResolvePoolSize(cfg.Workers)
	if cfg.QueueDepth < 0 {
		cfg.QueueDepth = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:       cfg,
		runner:    runner,
		opts:      buildOptions(opts),
		pending:   list.New(),
		baseCtx:   baseCtx,
		cancelAll: cancel,
	}
	s.ready = sync.NewCond(&s.mu)
	return s
}

// Start launches one worker per slot. Extra calls do nothing.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		for i := 0; i < s.cfg.Workers; i++ {
			s.wg.Add(1)
			go s.worker(WorkerSlot{Index: i})
		}
	})
}

// Config returns the resolved configuration.
func (s *Scheduler) Config() SchedulerConfig {
	return s.cfg
}

// Stats reports current load.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	queued := s.pending.Len()
	s.mu.Unlock()

	return Stats{
		Running:    int(s.running.Load()),
		Queued:     queued,
		Capacity:   s.cfg.Workers,
		QueueDepth: s.cfg.QueueDepth,
	}
}

// Submit enqueues req without blocking. It accepts a job while fewer than
// Workers+QueueDepth jobs are outstanding. Canceling ctx cancels the job,
// whether it is still queued or already running.
func (s *Scheduler) Submit(ctx context.Context, req *Request) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
	}

	jobCtx, cancel := context.WithCancel(s.baseCtx)
	t := &task{
		job:    newJob(req, s.opts.now()),
		ctx:    jobCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil, ErrSchedulerClosed
	}
	if s.busy+s.pending.Len() >= s.cfg.Workers+s.cfg.QueueDepth {
		queued := s.pending.Len()
		s.mu.Unlock()
		cancel()
		s.opts.metrics.jobRejected()
		s.opts.logger.Warn("queue full, rejecting job",
			zap.String("job_id", req.ID),
			zap.Int("queued", queued),
			zap.Int("queue_depth", s.cfg.QueueDepth),
		)
		return nil, ErrOverloaded
	}
	t.elem = s.pending.PushBack(t)
	// Registered once the task is queued so a caller that is already gone
	// finds it there and removes it.
	t.stop = context.AfterFunc(ctx, func() {
		cancel()
		s.abandon(t, ctx.Err())
	})
	queued := s.pending.Len()
	s.opts.metrics.jobQueued()
	s.ready.Signal()
	s.mu.Unlock()

	s.opts.logger.Debug("job queued",
		zap.String("job_id", req.ID),
		zap.Int("queued", queued),
	)
	return &Handle{t: t, s: s}, nil
}

// abandon removes t from the queue if no worker has taken it yet and
// resolves it as canceled. It reports whether it did.
func (s *Scheduler) abandon(t *task, cause error) bool {
	s.mu.Lock()
	if t.elem == nil {
		s.mu.Unlock()
		return false
	}
	s.pending.Remove(t.elem)
	t.elem = nil
	s.mu.Unlock()

	t.detach()

	s.opts.metrics.jobAbandoned()
	if t.job.cancelQueued(s.opts.now()) {
		s.opts.metrics.jobFinished(StateCanceled, false, 0)
	}
	t.complete(nil, fmt.Errorf("%w: %v", ErrCanceled, cause))
	s.opts.logger.Debug("queued job abandoned", zap.String("job_id", t.job.Request.ID))
	return true
}

// next blocks until a task is queued and hands it to a worker. It returns
// false once the scheduler is closed and the queue is empty.
func (s *Scheduler) next() (*task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.pending.Len() == 0 && !s.closed {
		s.ready.Wait()
	}
	front := s.pending.Front()
	if front == nil {
		return nil, false
	}
	t := s.pending.Remove(front).(*task)
	t.elem = nil
	s.busy++
	return t, true
}

// done frees the capacity held by a task taken with next.
func (s *Scheduler) done() {
	s.mu.Lock()
	s.busy--
	s.mu.Unlock()
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. If ctx ends first, remaining jobs are canceled and ctx's error
// is returned once workers have exited.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.ready.Broadcast()
	s.mu.Unlock()

	// Workers must exist to drain the queue.
	s.Start()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.cancelAll()
		return nil
	case <-ctx.Done():
		s.cancelAll()
		<-drained
		return ctx.Err()
	}
}

// worker owns one slot for the scheduler's lifetime.
func (s *Scheduler) worker(slot WorkerSlot) {
	defer s.wg.Done()
	for {
		t, ok := s.next()
		if !ok {
			return
		}
		s.opts.metrics.jobDequeued(s.opts.now().Sub(t.job.Snapshot().EnqueuedAt))
		s.execute(slot, t)
		s.done()
	}
}

// execute runs t on slot and always resolves it.
func (s *Scheduler) execute(slot WorkerSlot, t *task) {
	job := t.job
	defer t.detach()

	if err := t.ctx.Err(); err != nil {
		if job.finish(StateCanceled, s.opts.now()) {
			s.opts.metrics.jobFinished(StateCanceled, false, 0)
		}
		t.complete(nil, fmt.Errorf("%w: %v", ErrCanceled, err))
		return
	}

	if !job.start(slot, s.opts.now()) {
		// Already resolved as canceled.
		return
	}

	s.running.Add(1)
	s.opts.metrics.jobStarted()
	defer s.running.Add(-1)

	s.opts.logger.Debug("job started",
		zap.String("job_id", job.Request.ID),
		zap.Int("slot", slot.Index),
	)

	runCtx, cancel := context.WithTimeout(t.ctx, s.cfg.Timeout)
	artifact, err := s.run(runCtx, job)
	cancel()

	if err == nil && artifact == nil {
		err = fmt.Errorf("%w: runner returned no artifact", ErrInternal)
	}
	if err != nil && artifact != nil {
		if relErr := artifact.Release(); relErr != nil {
			s.opts.logger.Warn("releasing artifact failed",
				zap.String("job_id", job.Request.ID),
				zap.Error(relErr),
			)
		}
		artifact = nil
	}

	state := stateFor(err)
	job.finish(state, s.opts.now())
	snap := job.Snapshot()
	s.opts.metrics.jobFinished(state, true, snap.Duration())

	fields := []zap.Field{
		zap.String("job_id", snap.ID),
		zap.Int("slot", snap.Slot),
		zap.Stringer("state", snap.State),
		zap.Duration("duration", snap.Duration()),
	}
	if err != nil {
		var renderErr *RenderError
		if errors.As(err, &renderErr) && renderErr.Stderr != "" {
			fields = append(fields, zap.String("stderr", renderErr.Stderr))
		}
		s.opts.logger.Warn("job failed", append(fields, zap.Error(err))...)
	} else {
		s.opts.logger.Info("job succeeded", fields...)
	}

	t.complete(artifact, err)
}

// run invokes the runner, turning a panic into ErrInternal so the slot
// survives.
func (s *Scheduler) run(ctx context.Context, job *Job) (artifact *Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.opts.logger.Error("runner panicked",
				zap.String("job_id", job.Request.ID),
				zap.Any("panic", r),
			)
			artifact, err = nil, fmt.Errorf("%w: runner panic: %v", ErrInternal, r)
		}
	}()
	return s.runner.Run(ctx, job)
}

// stateFor maps a run result to a terminal state.
func stateFor(err error) State {
	switch {
	case err == nil:
		return StateSucceeded
	case errors.Is(err, ErrRenderTimedOut):
		return StateTimedOut
	case errors.Is(err, ErrCanceled):
		return StateCanceled
	default:
		return StateFailed
	}
}

// task carries a job through the queue together with its result.
type task struct {
	job    *Job
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool    // unregisters the caller-context hook; nil until queued
	elem   *list.Element // position in Scheduler.pending; guarded by Scheduler.mu

	once     sync.Once
	done     chan struct{}
	artifact *Artifact
	err      error
}

func (t *task) complete(artifact *Artifact, err error) {
	t.once.Do(func() {
		t.artifact = artifact
		t.err = err
		t.cancel()
		close(t.done)
	})
}

// detach stops watching the caller's context.
func (t *task) detach() {
	if t.stop != nil {
		t.stop()
	}
}

// Handle is the caller's view of a submitted job.
type Handle struct {
	t *task
	s *Scheduler
}

// Job returns the tracked job.
func (h *Handle) Job() *Job {
	return h.t.job
}

// Done is closed once the job reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.t.done
}

// Wait blocks until the job finishes or ctx ends. When ctx ends first the
// job is canceled and Wait returns only after its resources are released,
// so no artifact outlives an abandoned request. On success the caller
// owns the artifact and must Release it.
func (h *Handle) Wait(ctx context.Context) (*Artifact, error) {
	select {
	case <-h.t.done:
		return h.t.artifact, h.t.err
	case <-ctx.Done():
	}

	h.t.cancel()
	h.s.abandon(h.t, ctx.Err())
	<-h.t.done

	if h.t.artifact != nil {
		if err := h.t.artifact.Release(); err != nil {
			h.s.opts.logger.Warn("releasing abandoned artifact failed",
				zap.String("job_id", h.t.job.Request.ID),
				zap.Error(err),
			)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
}
