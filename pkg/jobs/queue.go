package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueStopped is returned when enqueueing onto a queue that is not running.
var ErrQueueStopped = errors.New("queue not running")

// Job is a queued unit of work carrying a typed payload.
type Job[T any] struct {
	ID       string
	Type     string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler[T any] func(context.Context, Job[T]) error

// FailureHook is called once a job has exhausted its retries.
type FailureHook[T any] func(Job[T], error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = c.Workers * 4
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Queue is an in-memory job dispatcher backed by a fixed goroutine pool.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	onFail  FailureHook[T]
	cfg     QueueConfig

	jobs    chan Job[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue with the provided handler.
func NewQueue[T any](name string, handler Handler[T], cfg QueueConfig) *Queue[T] {
	cfg = cfg.withDefaults()
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		jobs:    make(chan Job[T], cfg.BufferSize),
	}
}

// OnFailure registers a hook for jobs that failed permanently.
func (q *Queue[T]) OnFailure(hook FailureHook[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onFail = hook
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.cfg.Logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Stop cancels workers and waits for them to exit.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.started = false
	q.mu.Unlock()
	q.wg.Wait()
	q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name))
}

// Enqueue pushes a job onto the queue, blocking while the buffer is full.
func (q *Queue[T]) Enqueue(job Job[T]) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("%w: %s", ErrQueueStopped, q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrQueueStopped, q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

// Pending returns the number of buffered jobs.
func (q *Queue[T]) Pending() int {
	return len(q.jobs)
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

func (q *Queue[T]) handleFailure(job Job[T], err error) {
	job.Attempt++
	log := q.cfg.Logger.With(zap.String("queue", q.name), zap.String("job_id", job.ID), zap.String("type", job.Type))
	if job.Attempt > q.cfg.MaxRetries {
		log.Error("job exceeded retries", zap.Int("attempt", job.Attempt), zap.Error(err))
		q.mu.Lock()
		hook := q.onFail
		q.mu.Unlock()
		if hook != nil {
			hook(job, err)
		}
		return
	}
	log.Warn("job failed, retrying", zap.Int("attempt", job.Attempt), zap.Error(err))

	q.wg.Add(1)
	go func(j Job[T]) {
		defer q.wg.Done()
		timer := time.NewTimer(q.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				log.Error("failed to requeue job", zap.Error(err))
			}
		}
	}(job)
}
