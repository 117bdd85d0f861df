package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/pkg/config"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the buffer has no room; the platform retries the delivery
	ErrQueueFull = apperror.Unavailable("ingestion queue is full")
	// ErrQueueClosed is returned after Stop
	ErrQueueClosed = apperror.Unavailable("ingestion queue is shutting down")
)

// Handler applies one task
type Handler interface {
	Process(ctx context.Context, task *Task) error
}

// Queue is a bounded in-process task queue drained by a fixed worker pool.
// Failed tasks are retried with exponential backoff, then dead-lettered.
type Queue struct {
	cfg     config.QueueConfig
	handler Handler
	dlq     DeadLetterSink
	log     *zap.Logger

	tasks  chan Task
	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once
}

// NewQueue creates a queue. Call Start to launch the workers.
func NewQueue(cfg config.QueueConfig, handler Handler, dlq DeadLetterSink, log *zap.Logger) *Queue {
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:     cfg,
		handler: handler,
		dlq:     dlq,
		log:     log,
		tasks:   make(chan Task, cfg.Capacity),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool
func (q *Queue) Start() {
	q.start.Do(func() {
		for i := 0; i < q.cfg.Workers; i++ {
			q.wg.Add(1)
			go q.worker()
		}
		q.log.Info("Ingestion queue started",
			zap.Int("workers", q.cfg.Workers),
			zap.Int("capacity", q.cfg.Capacity))
	})
}

// Enqueue adds a task without blocking
func (q *Queue) Enqueue(task Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.ReceivedAt.IsZero() {
		task.ReceivedAt = time.Now().UTC()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		prometheus.QueueDepth.Set(float64(len(q.tasks)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of buffered tasks
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Stop refuses new tasks and waits for buffered and in-flight tasks to finish.
// When ctx expires first, in-flight work is cancelled and dead-lettered.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.log.Info("Ingestion queue drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		q.log.Warn("Ingestion queue stopped before draining")
		return ctx.Err()
	}
}

// Replay re-enqueues a dead-lettered task with its attempts reset and removes the entry
func (q *Queue) Replay(ctx context.Context, id string) (*Task, error) {
	entry, err := q.dlq.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	task := entry.Task
	task.Attempts = 0
	if entry.Reason == ReasonTenantNotFound {
		// let the processor resolve the store again
		task.TenantID = 0
	}
	if err := q.Enqueue(task); err != nil {
		return nil, err
	}
	if err := q.dlq.Delete(ctx, id); err != nil {
		return nil, err
	}
	return &task, nil
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		prometheus.QueueDepth.Set(float64(len(q.tasks)))
		q.run(task)
	}
}

func (q *Queue) run(task Task) {
	log := q.log.With(
		zap.String("task_id", task.ID),
		zap.Uint("tenant_id", task.TenantID),
		zap.String("topic", task.Topic))
	ctx := logger.WithContext(q.ctx, log)
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = q.cfg.RetryBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = q.cfg.RetryBase << 6

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		task.Attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, q.cfg.TaskTimeout)
		defer cancel()

		err := q.handler.Process(attemptCtx, &task)
		if errors.Is(err, ErrInvalidPayload) || errors.Is(err, ErrTenantNotFound) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(q.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn("Webhook task failed, retrying",
				zap.Int("attempt", task.Attempts),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)

	if err == nil {
		prometheus.RecordTask(task.Topic, "success", time.Since(start))
		log.Debug("Webhook task applied", zap.Int("attempts", task.Attempts))
		return
	}

	reason := ReasonMaxRetries
	switch {
	case errors.Is(err, ErrInvalidPayload):
		reason = ReasonInvalidPayload
	case errors.Is(err, ErrTenantNotFound):
		reason = ReasonTenantNotFound
	case q.ctx.Err() != nil:
		reason = ReasonShutdown
	}
	prometheus.RecordTask(task.Topic, "dead_lettered", time.Since(start))

	// the queue context may already be cancelled; the dead letter must still be written
	dlqCtx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), 5*time.Second)
	defer cancel()
	if _, dlqErr := q.dlq.Add(dlqCtx, &DeadLetter{Task: task, Reason: reason, Error: err.Error()}); dlqErr != nil {
		log.Error("Failed to dead-letter webhook task", zap.Error(dlqErr), zap.NamedError("cause", err))
	}
}
