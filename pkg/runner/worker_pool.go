package runner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/csstyped/csstyped/pkg/util"
)

// GenerateJob represents one entry stylesheet to be processed by the pool.
type GenerateJob struct {
	SourcePath string
	JobID      int
}

// GenerateResult is the outcome of generating one entry's declaration.
type GenerateResult struct {
	// SourcePath is the absolute path of the entry stylesheet.
	SourcePath string

	// DtsPath is where the declaration text was written.
	DtsPath string

	// SourceMapPath is where the source map was written, or empty when
	// map emission is disabled.
	SourceMapPath string

	// TokenCount is the number of exported names the entry produced.
	TokenCount int

	// Dependencies are the paths of every resource that contributed to
	// the entry, as reported by the loader.
	Dependencies []string

	JobID int
}

// WorkerPool manages a pool of goroutines for parallel declaration
// generation.
//
// **Architecture:**
//   - Goroutine-based (much lighter than OS threads)
//   - Buffered channels for job distribution
//   - Separate result and error channels
//   - Graceful shutdown support
//
// **Usage:**
//
//	pool := NewWorkerPool(ctx, numWorkers, runner, logger)
//	pool.Start()
//	defer pool.Stop()
//
//	// Submit jobs
//	for _, file := range files {
//	    pool.Submit(GenerateJob{SourcePath: file})
//	}
//	pool.FinishSubmitting()
//
//	// Collect results
//	for i := 0; i < len(files); i++ {
//	    select {
//	    case result := <-pool.Results():
//	        // Process result
//	    case err := <-pool.Errors():
//	        // Handle error
//	    }
//	}
type WorkerPool struct {
	numWorkers int
	jobs       chan GenerateJob
	results    chan *GenerateResult
	errors     chan FileError
	wg         sync.WaitGroup
	runner     *Runner
	logger     *slog.Logger

	// Lifecycle management
	ctx        context.Context
	cancel     context.CancelFunc
	started    atomic.Bool
	stopped    atomic.Bool
	jobsClosed atomic.Bool // Tracks if jobs channel has been closed

	// Statistics
	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
}

// NewWorkerPool creates a new worker pool.
//
// Parameters:
//   - ctx: Parent context; cancelling it aborts in-flight generation
//   - numWorkers: Number of worker goroutines (0 = auto-detect)
//   - runner: Runner whose pipeline processes each entry
//   - logger: Logger for worker messages
//
// Auto-detection uses util.GetOptimalPoolSize(), which matches the parser
// pool size. Worker count above the parser pool size would leave workers
// blocked waiting for parsers, so the sizes are kept in sync.
func NewWorkerPool(ctx context.Context, numWorkers int, runner *Runner, logger *slog.Logger) *WorkerPool {
	if numWorkers == 0 {
		numWorkers = util.GetOptimalPoolSize()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan GenerateJob, numWorkers*2), // Buffered for smooth pipeline
		results:    make(chan *GenerateResult, numWorkers),
		errors:     make(chan FileError, numWorkers),
		runner:     runner,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start spawns all worker goroutines.
//
// **IMPORTANT:** Must be called before submitting jobs.
//
// Workers process jobs from the jobs channel until Stop() is called or the
// jobs channel is closed and drained.
func (wp *WorkerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("WorkerPool already started")
		return
	}

	wp.logger.Info("Starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// worker is the main worker goroutine function.
//
// Each worker:
//  1. Receives jobs from the jobs channel
//  2. Runs the load → generate → write pipeline for the entry
//  3. Sends the result or error to the respective channel
//  4. Continues until the jobs channel is closed or the context cancelled
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.Debug("Worker started", "worker_id", id)

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug("Worker cancelled", "worker_id", id)
			return

		case job, ok := <-wp.jobs:
			if !ok {
				// Jobs channel closed, worker exits
				wp.logger.Debug("Worker exiting (jobs closed)", "worker_id", id)
				return
			}

			wp.logger.Debug("Worker received job", "worker_id", id, "file", job.SourcePath, "job_id", job.JobID)
			wp.processJob(id, job)
			wp.logger.Debug("Worker finished job", "worker_id", id, "job_id", job.JobID)
		}
	}
}

// processJob generates the declaration for a single entry.
func (wp *WorkerPool) processJob(workerID int, job GenerateJob) {
	result, err := wp.runner.generateFile(wp.ctx, job.SourcePath)
	if err != nil {
		wp.logger.Debug("Generation error", "worker_id", workerID, "file", job.SourcePath, "error", err)
		wp.jobsFailed.Add(1)
		// Guarded send: after cancellation nobody drains the channel
		select {
		case wp.errors <- FileError{FilePath: job.SourcePath, Error: err}:
		case <-wp.ctx.Done():
		}
		return
	}

	result.JobID = job.JobID
	wp.jobsProcessed.Add(1)
	select {
	case wp.results <- result:
	case <-wp.ctx.Done():
	}
}

// Submit enqueues a job for processing.
//
// **Thread Safety:** Safe for concurrent calls.
//
// **Blocking:** Will block if the jobs channel is full.
func (wp *WorkerPool) Submit(job GenerateJob) error {
	if wp.stopped.Load() {
		return errors.New("worker pool is stopped")
	}

	wp.jobsSubmitted.Add(1)

	select {
	case <-wp.ctx.Done():
		return errors.New("worker pool cancelled")
	case wp.jobs <- job:
		return nil
	}
}

// Results returns the results channel.
//
// Consumers should read from this channel to collect finished entries.
func (wp *WorkerPool) Results() <-chan *GenerateResult {
	return wp.results
}

// Errors returns the errors channel.
//
// Consumers should read from this channel to collect per-entry failures.
func (wp *WorkerPool) Errors() <-chan FileError {
	return wp.errors
}

// FinishSubmitting closes the jobs channel to signal no more jobs will be
// submitted, letting workers exit once the queue drains.
//
// **IMPORTANT:** Must be called after all jobs have been submitted and
// before waiting for results.
//
// **Thread Safety:** Safe to call multiple times (idempotent).
func (wp *WorkerPool) FinishSubmitting() {
	// Only close once - use CAS to ensure thread safety
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
		wp.logger.Debug("Jobs channel closed", "total_submitted", wp.jobsSubmitted.Load())
	}
}

// Wait blocks until all workers have finished.
//
// Call this after all jobs have been submitted and FinishSubmitting() has
// been called.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Stop gracefully shuts down the worker pool.
//
// **Steps:**
//  1. Closes jobs channel if not already closed (no new jobs accepted)
//  2. Waits for in-flight jobs to complete
//  3. Closes result and error channels
//
// **Thread Safety:** Safe to call multiple times (idempotent).
func (wp *WorkerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return // Already stopped
	}

	wp.logger.Debug("Stopping worker pool")

	// Signal workers to stop (close jobs channel if not already closed)
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
	}

	// Wait for all workers to finish
	wp.wg.Wait()

	// Close result and error channels
	close(wp.results)
	close(wp.errors)

	// Cancel context
	wp.cancel()

	wp.logger.Info("Worker pool stopped",
		"jobs_submitted", wp.jobsSubmitted.Load(),
		"jobs_processed", wp.jobsProcessed.Load(),
		"jobs_failed", wp.jobsFailed.Load())
}

// GetStats returns current worker pool statistics.
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:    wp.numWorkers,
		JobsSubmitted: wp.jobsSubmitted.Load(),
		JobsProcessed: wp.jobsProcessed.Load(),
		JobsFailed:    wp.jobsFailed.Load(),
		QueueLength:   len(wp.jobs),
		ResultsQueued: len(wp.results),
		ErrorsQueued:  len(wp.errors),
	}
}

// WorkerPoolStats contains statistics about the worker pool.
type WorkerPoolStats struct {
	NumWorkers    int
	JobsSubmitted int64
	JobsProcessed int64
	JobsFailed    int64
	QueueLength   int // Current jobs in queue
	ResultsQueued int // Results waiting to be consumed
	ErrorsQueued  int // Errors waiting to be consumed
}
