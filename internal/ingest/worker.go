package ingest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Job is one inbox file waiting to be beaverified.
type Job struct {
	Path string
	Mode string
}

// JobFunc processes a single job.
type JobFunc func(ctx context.Context, job Job) error

// QueueStats reports the current state of the inbox queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// WorkerPoolOptions configures the inbox worker pool.
type WorkerPoolOptions struct {
	Workers   int
	QueueSize int
	Handle    JobFunc
	Log       zerolog.Logger
}

// WorkerPool runs inbox jobs on a fixed set of goroutines. Jobs receive the
// context passed to Start; Stop cancels it, so in-flight jobs see
// cancellation and queued jobs are dropped.
type WorkerPool struct {
	jobs   chan Job
	opts   WorkerPoolOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewWorkerPool creates a new worker pool. Call Start to launch workers.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	return &WorkerPool{
		jobs: make(chan Job, opts.QueueSize),
		opts: opts,
		log:  opts.Log.With().Str("component", "worker").Logger(),
	}
}

// Start launches the worker goroutines. Jobs run under a context derived
// from ctx.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	wp.ctx, wp.cancel = context.WithCancel(ctx)
	wp.mu.Unlock()
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Info().Int("workers", wp.opts.Workers).Int("queue_size", wp.opts.QueueSize).Msg("inbox worker pool started")
}

// Stop stops accepting jobs, cancels the job context, and waits for
// workers. Jobs still queued are dropped.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	if wp.cancel != nil {
		wp.cancel()
	}
	close(wp.jobs)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("failed", wp.failed.Load()).
		Int64("dropped", wp.dropped.Load()).
		Msg("inbox worker pool stopped")
}

// Enqueue adds a job. Returns false if the queue is full or the pool is stopped.
func (wp *WorkerPool) Enqueue(j Job) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return false
	}
	select {
	case wp.jobs <- j:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
		Dropped:   wp.dropped.Load(),
	}
}

// Pending returns the number of queued jobs.
func (wp *WorkerPool) Pending() int { return len(wp.jobs) }

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.opts.Workers }

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for job := range wp.jobs {
		if wp.opts.Handle == nil {
			continue
		}
		if wp.ctx.Err() != nil {
			wp.dropped.Add(1)
			log.Debug().Str("path", job.Path).Msg("inbox job dropped on shutdown")
			continue
		}
		if err := wp.opts.Handle(wp.ctx, job); err != nil {
			wp.failed.Add(1)
			log.Warn().Err(err).Str("path", job.Path).Msg("inbox job failed")
		} else {
			wp.completed.Add(1)
		}
	}
}
