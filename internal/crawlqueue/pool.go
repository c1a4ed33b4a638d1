package crawlqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"birdwatcher/pkg/logger"
	"birdwatcher/pkg/ratelimit"
)

// CrawlJob represents a single account crawl task
type CrawlJob struct {
	Username string
	MaxItems int
}

// CrawlResult represents the outcome of a crawl job
type CrawlResult struct {
	Job      CrawlJob
	NewPosts int
	Err      error
	Duration time.Duration
}

// Crawler runs one end-to-end crawl (extract + ingest) for an account
type Crawler interface {
	FetchAndStore(username string, limit int) (int, error)
}

// WorkerPool executes crawl jobs on a fixed set of workers. The scheduler
// runs it with a single worker, which together with the gate guarantees at
// most one crawl in flight system-wide.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan CrawlJob
	resultQueue chan CrawlResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	crawler     Crawler
	gate        *ratelimit.Gate
	logger      logger.Logger

	mu      sync.Mutex
	stopped bool
}

// NewWorkerPool creates a crawl worker pool
func NewWorkerPool(numWorkers int, crawler Crawler, gate *ratelimit.Gate, log logger.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan CrawlJob, numWorkers*2),
		resultQueue: make(chan CrawlResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		crawler:     crawler,
		gate:        gate,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("starting crawl worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop gracefully shuts down the worker pool, draining queued jobs
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.logger.Info("stopping crawl worker pool")

	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Info("crawl worker pool stopped")
}

// Submit adds a crawl job to the queue, blocking while the queue is full.
// It fails once the pool has been stopped.
func (wp *WorkerPool) Submit(job CrawlJob) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.stopped {
		return fmt.Errorf("worker pool is shutting down")
	}

	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("crawl job submitted", map[string]interface{}{
			"username": job.Username,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming crawl outcomes
func (wp *WorkerPool) Results() <-chan CrawlResult {
	return wp.resultQueue
}

// QueueSize returns the current number of queued jobs
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob runs a single crawl under the gate: it waits out the previous
// crawl's cooldown, runs the crawl to completion, then arms the next
// cooldown. A crawl is never cancelled once started.
func (wp *WorkerPool) processJob(job CrawlJob, workerID int) CrawlResult {
	wp.gate.Acquire()
	defer wp.gate.Release()

	start := time.Now()
	wp.logger.DebugWithFields("worker processing crawl", map[string]interface{}{
		"worker_id": workerID,
		"username":  job.Username,
	})

	newPosts, err := wp.crawler.FetchAndStore(job.Username, job.MaxItems)

	return CrawlResult{
		Job:      job,
		NewPosts: newPosts,
		Err:      err,
		Duration: time.Since(start),
	}
}
