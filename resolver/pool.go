package resolver

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"truelink/internal"
)

// ErrPoolClosed is returned by Do after Shutdown.
var ErrPoolClosed = errors.New("worker pool is shut down")

// Job is one blocking scrape.
type Job func(ctx context.Context) (*internal.Result, error)

type poolJob struct {
	ctx  context.Context
	fn   Job
	done chan jobResult
}

type jobResult struct {
	result *internal.Result
	err    error
}

// WorkerPool runs scrapes on a fixed set of goroutines so a burst of
// requests cannot spawn unbounded scraping work.
type WorkerPool struct {
	workers  int
	jobs     chan poolJob
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	shutdown sync.Once
}

// NewWorkerPool starts a pool with the given number of workers.
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	wp := &WorkerPool{
		workers: workers,
		jobs:    make(chan poolJob, workers*2),
		ctx:     ctx,
		cancel:  cancel,
	}
	wp.start()
	return wp
}

func (wp *WorkerPool) start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Shutdown stops the workers after their current job.
func (wp *WorkerPool) Shutdown() {
	wp.shutdown.Do(func() {
		wp.cancel()
		wp.wg.Wait()
	})
}

// Size returns the number of workers.
func (wp *WorkerPool) Size() int {
	return wp.workers
}

// Do submits fn and waits for its result. Both the submission and the wait
// give up when ctx is done; the job itself sees the same ctx.
func (wp *WorkerPool) Do(ctx context.Context, fn Job) (*internal.Result, error) {
	j := poolJob{ctx: ctx, fn: fn, done: make(chan jobResult, 1)}

	select {
	case wp.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wp.ctx.Done():
		return nil, ErrPoolClosed
	}

	select {
	case r := <-j.done:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wp.ctx.Done():
		return nil, ErrPoolClosed
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case j := <-wp.jobs:
			j.done <- wp.processJob(id, j)
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob runs one job, turning a panic into an error.
func (wp *WorkerPool) processJob(id int, j poolJob) (res jobResult) {
	defer func() {
		if r := recover(); r != nil {
			internal.LogError("worker %d: scraper panic: %v\n%s", id, r, debug.Stack())
			res = jobResult{err: fmt.Errorf("scraper panic: %v", r)}
		}
	}()

	if err := j.ctx.Err(); err != nil {
		return jobResult{err: err}
	}
	result, err := j.fn(j.ctx)
	return jobResult{result: result, err: err}
}
