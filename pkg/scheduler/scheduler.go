package scheduler

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/depscout/depscout/pkg/errors"
	"github.com/depscout/depscout/pkg/observability"
)

// Default configuration values.
const (
	DefaultConcurrencyCap = 4
	DefaultMaxQueued      = 64
	DefaultJobTimeout     = 10 * time.Minute
	DefaultRetention      = 30 * time.Minute
)

// RunFunc executes the analysis pipeline for one job. The context carries
// the per-job timeout and is cancelled when the job is cancelled; the run
// must release all resources (snapshots, subprocesses) before returning.
type RunFunc func(ctx context.Context, req Request) (*Result, error)

// Config holds scheduler tuning, fixed for the process lifetime.
type Config struct {
	// ConcurrencyCap bounds the number of simultaneously running jobs.
	ConcurrencyCap int

	// MaxQueued bounds the submission queue; submissions beyond it are
	// rejected with CAPACITY_EXCEEDED. Queued jobs do not count against
	// ConcurrencyCap.
	MaxQueued int

	// JobTimeout is the default per-job wall clock budget, started at the
	// running transition.
	JobTimeout time.Duration

	// Retention is how long terminal jobs stay queryable before eviction.
	Retention time.Duration

	// GCInterval overrides the eviction tick. Defaults to Retention/4,
	// capped to one minute.
	GCInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConcurrencyCap <= 0 {
		c.ConcurrencyCap = DefaultConcurrencyCap
	}
	if c.MaxQueued <= 0 {
		c.MaxQueued = DefaultMaxQueued
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.GCInterval <= 0 {
		c.GCInterval = min(c.Retention/4, time.Minute)
	}
	return c
}

// Scheduler owns the job table and drives job execution.
type Scheduler struct {
	cfg    Config
	run    RunFunc
	jobs   *store
	logger *log.Logger

	mu      sync.Mutex
	queue   []string // FIFO of queued job ids
	running int
	closed  bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Scheduler and starts its dispatcher and garbage collector.
// Call Close to stop both and wait for in-flight jobs to settle.
func New(cfg Config, run RunFunc, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	s := &Scheduler{
		cfg:    cfg.withDefaults(),
		run:    run,
		jobs:   newStore(),
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.wg.Add(2)
	go s.dispatch()
	go s.collectGarbage()
	return s
}

// Submit allocates a queued job and returns its id. It fails with
// CAPACITY_EXCEEDED when the queue is full; jobs waiting for a running slot
// are not rejected.
func (s *Scheduler) Submit(req Request) (string, error) {
	id := uuid.NewString()
	now := time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errors.New(errors.ErrCodeCapacityExceeded, "scheduler is shut down")
	}
	if len(s.queue) >= s.cfg.MaxQueued {
		s.mu.Unlock()
		return "", errors.New(errors.ErrCodeCapacityExceeded,
			"job queue is full (%d queued)", s.cfg.MaxQueued)
	}
	s.jobs.put(Job{
		ID:        id,
		Request:   req,
		State:     StateQueued,
		CreatedAt: now,
	})
	s.queue = append(s.queue, id)
	s.mu.Unlock()

	observability.Job().OnJobQueued(context.Background(), id, req.Spec.Slug())
	s.logger.Info("job queued", "job", id, "repo", req.Spec.Slug(), "target", req.Target)
	s.signal()
	return id, nil
}

// Status returns a consistent snapshot of the job record. It fails with
// JOB_NOT_FOUND for unknown or garbage-collected ids.
func (s *Scheduler) Status(id string) (Job, error) {
	job, ok := s.jobs.get(id)
	if !ok {
		return Job{}, errors.New(errors.ErrCodeJobNotFound, "job %s not found", id)
	}
	return job, nil
}

// Cancel transitions a queued or running job to cancelled. For running jobs
// the cancellation propagates to in-flight subprocess collections. Cancelling
// an already-terminal job is a no-op.
func (s *Scheduler) Cancel(id string) error {
	if _, ok := s.jobs.get(id); !ok {
		return errors.New(errors.ErrCodeJobNotFound, "job %s not found", id)
	}

	if s.jobs.transition(id, StateCancelled, func(j *Job) {
		j.CompletedAt = time.Now()
	}) {
		s.logger.Info("job cancelled", "job", id)
		s.finishHook(id)
	}
	if cancel := s.jobs.cancelFunc(id); cancel != nil {
		cancel()
	}
	s.signal()
	return nil
}

// Close stops accepting submissions, cancels running jobs, and waits for the
// dispatcher and garbage collector to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.jobs.forEach(func(j Job) {
		if j.State == StateRunning {
			if cancel := s.jobs.cancelFunc(j.ID); cancel != nil {
				cancel()
			}
		}
	})

	close(s.done)
	s.wg.Wait()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatch promotes the oldest queued job to running whenever a slot frees.
func (s *Scheduler) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			id, ok := s.nextRunnable()
			if !ok {
				break
			}
			s.start(id)
		}
	}
}

// nextRunnable pops queue entries until it finds one still in queued state,
// respecting the concurrency cap. Entries cancelled while waiting are
// dropped on the floor here.
func (s *Scheduler) nextRunnable() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running < s.cfg.ConcurrencyCap && len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		if job, ok := s.jobs.get(id); !ok || job.State != StateQueued {
			continue
		}
		s.running++
		return id, true
	}
	return "", false
}

// start transitions one job to running and launches its worker.
func (s *Scheduler) start(id string) {
	job, ok := s.jobs.get(id)
	if !ok {
		s.release()
		return
	}

	timeout := s.cfg.JobTimeout
	if job.Request.Timeout > 0 {
		timeout = job.Request.Timeout
	}
	// The cancel func must be in place before the job is observable as
	// running, so a Cancel racing the promotion always finds it.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	s.jobs.setCancel(id, cancel)

	if !s.jobs.transition(id, StateRunning, func(j *Job) {
		j.StartedAt = time.Now()
	}) {
		// Lost a race with cancellation.
		cancel()
		s.release()
		return
	}

	observability.Job().OnJobStart(ctx, id, job.Request.Spec.Slug())
	s.logger.Info("job running", "job", id, "repo", job.Request.Spec.Slug(), "timeout", timeout)

	s.wg.Add(2)
	go s.watchdog(ctx, id)
	go s.work(ctx, cancel, id, job.Request)
}

// watchdog forces the timedOut transition the moment the deadline passes,
// so a job past its budget is never reported completed even if collection
// output arrives a moment later.
func (s *Scheduler) watchdog(ctx context.Context, id string) {
	defer s.wg.Done()
	<-ctx.Done()
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		if s.jobs.transition(id, StateTimedOut, func(j *Job) {
			j.CompletedAt = time.Now()
			j.Error = "analysis exceeded its time budget"
		}) {
			s.logger.Warn("job timed out", "job", id)
			s.finishHook(id)
		}
	}
}

func (s *Scheduler) work(ctx context.Context, cancel context.CancelFunc, id string, req Request) {
	defer s.wg.Done()
	defer cancel()
	defer s.release()

	res, err := s.run(ctx, req)

	switch {
	case err == nil:
		matchCount := 0
		if s.jobs.transition(id, StateCompleted, func(j *Job) {
			j.CompletedAt = time.Now()
			if res != nil {
				j.Matches = res.Matches
				j.Descriptors = res.Descriptors
				j.Note = res.Note
				matchCount = len(res.Matches)
			}
		}) {
			s.logger.Info("job completed", "job", id, "matches", matchCount)
			s.finishHook(id)
		}
	case stderrors.Is(err, context.Canceled):
		// Cancel already drove the terminal transition.
	case errors.Is(err, errors.ErrCodeTimeout) || stderrors.Is(err, context.DeadlineExceeded):
		// The watchdog owns the timedOut transition; nothing to do here.
	default:
		if s.jobs.transition(id, StateFailed, func(j *Job) {
			j.CompletedAt = time.Now()
			j.Error = err.Error()
		}) {
			s.logger.Error("job failed", "job", id, "err", err)
			s.finishHook(id)
		}
	}
}

// release frees a running slot and wakes the dispatcher.
func (s *Scheduler) release() {
	s.mu.Lock()
	s.running--
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) finishHook(id string) {
	if job, ok := s.jobs.get(id); ok {
		duration := job.CompletedAt.Sub(job.CreatedAt)
		observability.Job().OnJobFinish(context.Background(), id, string(job.State), len(job.Matches), duration)
	}
}

// collectGarbage evicts jobs that have been terminal for longer than the
// retention window.
func (s *Scheduler) collectGarbage() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired(time.Now())
		}
	}
}

func (s *Scheduler) evictExpired(now time.Time) {
	s.jobs.forEach(func(j Job) {
		if !j.State.Terminal() || j.CompletedAt.IsZero() {
			return
		}
		if now.Sub(j.CompletedAt) >= s.cfg.Retention {
			s.jobs.delete(j.ID)
			observability.Job().OnJobEvicted(context.Background(), j.ID)
			s.logger.Debug("job evicted", "job", j.ID)
		}
	})
}
