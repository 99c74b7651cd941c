// Package workqueue runs indexing tasks with a fixed concurrency
// ceiling, automatic retry with fixed delay, and per-task isolation:
// one task exhausting its retries never cancels its siblings.
package workqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
)

// Task is one unit of work. Tasks must be safe to re-run: a failed
// attempt is retried from the start.
type Task func(ctx context.Context) (any, error)

// Result is delivered exactly once on the channel returned by Submit.
type Result struct {
	Value any
	Err   error
}

// Config tunes the queue.
type Config struct {
	// Concurrency is the maximum number of in-flight tasks.
	Concurrency int

	// MaxRetries is how many times a failed task is re-attempted.
	MaxRetries int

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration

	// Limiter, when set, is consumed before every attempt so external
	// API rate limits are respected. Waiting on the limiter suspends
	// the task cooperatively and is independent of the retry budget.
	Limiter *rate.Limiter
}

type job struct {
	ctx  context.Context
	task Task
	out  chan Result
}

// Queue is a bounded worker pool.
type Queue struct {
	cfg  Config
	jobs chan job

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
	wg      sync.WaitGroup
}

// New starts a queue with cfg.Concurrency workers.
func New(cfg Config) *Queue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	q := &Queue{
		cfg:  cfg,
		jobs: make(chan job),
	}
	q.wg.Add(cfg.Concurrency)
	for i := 0; i < cfg.Concurrency; i++ {
		go q.worker()
	}
	return q
}

// Submit enqueues task and returns a channel that receives its Result
// exactly once. Submission blocks only while all workers are busy and
// the handoff channel is contended, never for the task's duration.
func (q *Queue) Submit(ctx context.Context, task Task) <-chan Result {
	out := make(chan Result, 1)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		out <- Result{Err: fmt.Errorf("submit: queue closed")}
		return out
	}
	// Registered under the same lock that guards closed, so Close
	// cannot shut the jobs channel while this handoff is in flight.
	q.pending.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.pending.Done()
		select {
		case q.jobs <- job{ctx: ctx, task: task, out: out}:
		case <-ctx.Done():
			out <- Result{Err: ctx.Err()}
		}
	}()
	return out
}

// Close stops accepting tasks and waits for in-flight tasks to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// Blocked handoffs from earlier Submit calls must land on a worker
	// (or bail out via their context) before the channel can be shut.
	q.pending.Wait()
	close(q.jobs)

	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		j.out <- q.run(j.ctx, j.task)
	}
}

func (q *Queue) run(ctx context.Context, task Task) Result {
	var lastErr error

	for attempt := 0; attempt <= q.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Err: err}
		}

		if q.cfg.Limiter != nil {
			if err := q.cfg.Limiter.Wait(ctx); err != nil {
				return Result{Err: err}
			}
		}

		value, err := task(ctx)
		if err == nil {
			return Result{Value: value}
		}
		lastErr = err

		if attempt < q.cfg.MaxRetries {
			logger.Debug("task attempt %d/%d failed, retrying in %s: %v",
				attempt+1, q.cfg.MaxRetries+1, q.cfg.RetryDelay, err)
			select {
			case <-ctx.Done():
				return Result{Err: ctx.Err()}
			case <-time.After(q.cfg.RetryDelay):
			}
		}
	}

	return Result{Err: fmt.Errorf("%w after %d attempts: %v",
		domain.ErrRetriesExhausted, q.cfg.MaxRetries+1, lastErr)}
}
