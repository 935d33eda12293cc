package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 12

// Outcome is what a handler reports for a finished job.
type Outcome struct {
	Bytes    int64
	Checksum uint64
}

// Handler performs a single TransferJob. A Handler is owned by one worker and
// is never called concurrently.
type Handler interface {
	Handle(ctx context.Context, job TransferJob) (Outcome, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, TransferJob) (Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, job TransferJob) (Outcome, error) {
	return f(ctx, job)
}

// HandlerFactory opens the per-worker handler, typically holding the
// worker's own connection. It is called once per worker per round.
type HandlerFactory func(ctx context.Context, worker int) (Handler, error)

// FailurePolicy decides what the pool does after a job fails.
type FailurePolicy int

const (
	// FailFast cancels every sibling worker on the first failure.
	FailFast FailurePolicy = iota
	// ContinueOnError runs every job and reports all failures at the end.
	ContinueOnError
)

// JobStatus is the final state of a job within a round.
type JobStatus string

const (
	StatusDone    JobStatus = "done"
	StatusFailed  JobStatus = "failed"
	StatusSkipped JobStatus = "skipped"
	StatusResumed JobStatus = "resumed"
)

// JobResult is the per-job record collected by the pool.
type JobResult struct {
	Job    TransferJob
	Worker int
	Outcome
	Elapsed time.Duration
	Status  JobStatus
	Err     error
}

// RoundResult holds the results of one dispatch round in job order.
type RoundResult struct {
	Results []JobResult
	Elapsed time.Duration

	// Err is the failure that stopped the round under FailFast.
	Err error

	// JournalErr is the first error raised while writing the journal.
	JournalErr error
}

// Stats summarizes the jobs that completed in this round.
func (r *RoundResult) Stats() RunStats {
	stats := RunStats{Elapsed: r.Elapsed}
	for _, res := range r.Results {
		if res.Status != StatusDone {
			continue
		}
		stats.Files++
		stats.Bytes += res.Bytes
	}
	return stats
}

// Failures returns the failed jobs in job order.
func (r *RoundResult) Failures() []JobResult {
	var failed []JobResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Count returns the number of jobs that ended in status.
func (r *RoundResult) Count(status JobStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// OK reports whether no job failed or was skipped.
func (r *RoundResult) OK() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed || res.Status == StatusSkipped {
			return false
		}
	}
	return true
}

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithWorkers sets the number of workers. Values below one mean one.
func WithWorkers(n int) Option {
	return func(p *WorkerPool) {
		p.workers = n
	}
}

// WithFailurePolicy sets what happens after a job fails.
func WithFailurePolicy(policy FailurePolicy) Option {
	return func(p *WorkerPool) {
		p.policy = policy
	}
}

// WithObserver registers a callback invoked from the worker goroutines as
// each job finishes. It must be safe for concurrent use.
func WithObserver(fn func(JobResult)) Option {
	return func(p *WorkerPool) {
		p.observers = append(p.observers, fn)
	}
}

// WithTracker records every job's state in a journal.
func WithTracker(t *JobTracker) Option {
	return func(p *WorkerPool) {
		p.tracker = t
	}
}

// WorkerPool runs a fixed job list over a static partition of workers.
type WorkerPool struct {
	factory   HandlerFactory
	workers   int
	policy    FailurePolicy
	observers []func(JobResult)
	tracker   *JobTracker
}

// NewWorkerPool creates a pool that builds one handler per worker with factory.
func NewWorkerPool(factory HandlerFactory, opts ...Option) *WorkerPool {
	p := &WorkerPool{
		factory: factory,
		workers: DefaultWorkers,
		policy:  FailFast,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the configured worker count.
func (p *WorkerPool) Workers() int {
	if p.workers < 1 {
		return 1
	}
	return p.workers
}

// Partition splits n jobs into at most w contiguous [start, end) ranges whose
// lengths differ by at most one.
func Partition(n, w int) [][2]int {
	if n <= 0 {
		return nil
	}
	if w < 1 {
		w = 1
	}
	if w > n {
		w = n
	}

	chunks := make([][2]int, 0, w)
	size, extra := n/w, n%w
	start := 0
	for i := 0; i < w; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunks = append(chunks, [2]int{start, end})
		start = end
	}
	return chunks
}

// Run executes jobs and blocks until every worker has returned. Each worker
// processes its chunk in order. Under FailFast the first failure cancels the
// round; jobs that never ran, or were interrupted by that cancellation or by
// ctx, are reported as skipped.
func (p *WorkerPool) Run(ctx context.Context, jobs []TransferJob) *RoundResult {
	round := &RoundResult{Results: make([]JobResult, len(jobs))}

	g, gctx := errgroup.WithContext(ctx)
	r := &roundRunner{
		pool:   p,
		ctx:    gctx,
		jobs:   jobs,
		result: round.Results,
	}

	start := time.Now()
	for worker, chunk := range Partition(len(jobs), p.Workers()) {
		g.Go(func() error {
			return r.work(worker, chunk[0], chunk[1])
		})
	}
	round.Err = g.Wait()
	round.Elapsed = time.Since(start)
	round.JournalErr = r.journalErr

	return round
}

type roundRunner struct {
	pool   *WorkerPool
	ctx    context.Context
	jobs   []TransferJob
	result []JobResult

	journalMu  sync.Mutex
	journalErr error
}

// work runs one chunk. Under FailFast it returns the first failure, which
// cancels the group context for every other worker.
func (r *roundRunner) work(worker, start, end int) error {
	handler, err := r.pool.factory(r.ctx, worker)
	if err != nil {
		for i := start; i < end; i++ {
			r.finish(i, JobResult{Job: r.jobs[i], Worker: worker, Status: StatusFailed, Err: err})
		}
		return r.stop(err)
	}

	for i := start; i < end; i++ {
		job := r.jobs[i]
		if err := r.ctx.Err(); err != nil {
			r.finish(i, JobResult{Job: job, Worker: worker, Status: StatusSkipped, Err: err})
			continue
		}

		res := r.runJob(handler, worker, job)
		r.finish(i, res)
		if res.Status == StatusFailed && r.pool.policy == FailFast {
			for j := i + 1; j < end; j++ {
				r.finish(j, JobResult{Job: r.jobs[j], Worker: worker, Status: StatusSkipped, Err: context.Canceled})
			}
			return res.Err
		}
	}
	return nil
}

// stop is the error a worker hands back to the group.
func (r *roundRunner) stop(err error) error {
	if r.pool.policy == FailFast {
		return err
	}
	return nil
}

func (r *roundRunner) runJob(handler Handler, worker int, job TransferJob) JobResult {
	res := JobResult{Job: job, Worker: worker}

	tracker := r.pool.tracker
	if tracker != nil {
		if tracker.Resumable(job.ID) {
			res.Status = StatusResumed
			return res
		}
		r.journal(tracker.InitJob(job))
		r.journal(tracker.MarkInProgress(job.ID))
	}

	start := time.Now()
	out, err := handler.Handle(r.ctx, job)
	res.Elapsed = time.Since(start)
	res.Outcome = out

	switch {
	case err == nil:
		res.Status = StatusDone
		if tracker != nil {
			r.journal(tracker.MarkCompleted(job.ID, out))
		}
	case r.interrupted(err):
		// aborted by a sibling's failure or by the caller
		res.Status = StatusSkipped
		res.Err = err
	default:
		res.Status = StatusFailed
		res.Err = err
		if tracker != nil {
			r.journal(tracker.MarkFailed(job.ID, err))
		}
	}
	return res
}

// interrupted reports whether err comes from the round's context being
// cancelled rather than from the job itself.
func (r *roundRunner) interrupted(err error) bool {
	ctxErr := r.ctx.Err()
	if ctxErr == nil {
		return false
	}
	return errors.Is(err, ctxErr) || errors.Is(err, context.Canceled)
}

func (r *roundRunner) journal(err error) {
	if err == nil {
		return
	}
	r.journalMu.Lock()
	if r.journalErr == nil {
		r.journalErr = err
	}
	r.journalMu.Unlock()
}

// finish stores res at its job's position and notifies observers.
func (r *roundRunner) finish(i int, res JobResult) {
	r.result[i] = res
	for _, fn := range r.pool.observers {
		fn(res)
	}
}
