package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Worker polls Queue and dispatches tasks to Registry-bound handlers
// under a bounded concurrency semaphore.
type Worker struct {
	id              string
	queue           *Queue
	registry        *Registry
	concurrency     int
	pollInterval    time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	tasksProcessed atomic.Int64
	tasksFailed    atomic.Int64
	tasksSucceeded atomic.Int64
	activeTasks    atomic.Int32
	running        atomic.Bool
}

// WorkerConfig customizes a Worker; zero values fall back to defaults
// (concurrency 5, poll interval 1s, shutdown timeout 30s).
type WorkerConfig struct {
	ID              string
	Concurrency     int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// NewWorker constructs a Worker over queue and registry.
func NewWorker(queue *Queue, registry *Registry, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ID == "" {
		cfg.ID = "worker"
	}

	return &Worker{
		id:              cfg.ID,
		queue:           queue,
		registry:        registry,
		concurrency:     cfg.Concurrency,
		pollInterval:    cfg.PollInterval,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          cfg.Logger,
	}
}

// Run polls for tasks until ctx is cancelled, waiting up to
// shutdownTimeout for in-flight tasks to finish before returning.
func (w *Worker) Run(ctx context.Context) error {
	w.running.Store(true)
	defer w.running.Store(false)

	w.logger.Info("worker starting", "id", w.id, "concurrency", w.concurrency)

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	cleanupTicker := time.NewTicker(5 * time.Minute)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping, waiting for active tasks", "active_tasks", w.activeTasks.Load())
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				w.logger.Info("all tasks completed")
			case <-time.After(w.shutdownTimeout):
				w.logger.Warn("shutdown timeout exceeded", "active_tasks", w.activeTasks.Load())
			}
			return ctx.Err()

		case <-cleanupTicker.C:
			if _, err := w.queue.CleanupStale(ctx); err != nil {
				w.logger.Error("cleanup stale tasks", "error", err)
			}

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				task, err := w.queue.Dequeue(ctx)
				if err != nil {
					<-sem
					if !errors.Is(err, ErrNoTasksAvailable) {
						w.logger.Error("dequeue task", "error", err)
					}
					continue
				}

				wg.Add(1)
				w.activeTasks.Add(1)
				go func(t *Task) {
					defer func() {
						<-sem
						wg.Done()
						w.activeTasks.Add(-1)
					}()
					w.process(ctx, t)
				}(task)

			default:
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, task *Task) {
	start := time.Now()
	logger := w.logger.With("task_id", task.ID, "task_type", task.Type)
	logger.Info("processing task")

	handler, err := w.registry.Get(task.Type)
	if err != nil {
		logger.Error("no handler for task type", "error", err)
		_ = w.queue.Fail(ctx, task.ID, fmt.Sprintf("no handler for task type: %s", task.Type))
		w.tasksFailed.Add(1)
		w.tasksProcessed.Add(1)
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, time.Duration(task.TimeoutSeconds)*time.Second)
	defer cancel()

	var execErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				execErr = fmt.Errorf("task panicked: %v", r)
				logger.Error("task panicked", "panic", r)
			}
		}()
		_, execErr = handler.Handle(taskCtx, task)
	}()

	w.tasksProcessed.Add(1)
	duration := time.Since(start)

	if execErr != nil {
		logger.Error("task failed", "error", execErr, "duration", duration)
		if err := w.queue.Fail(ctx, task.ID, execErr.Error()); err != nil {
			logger.Error("mark task failed", "error", err)
		}
		w.tasksFailed.Add(1)
		return
	}

	if err := w.queue.Complete(ctx, task.ID); err != nil {
		logger.Error("mark task completed", "error", err)
		w.tasksFailed.Add(1)
		return
	}

	w.tasksSucceeded.Add(1)
	logger.Info("task completed", "duration", duration)
}

// Metrics returns a snapshot of the worker's throughput counters.
func (w *Worker) Metrics(ctx context.Context) Metrics {
	queueLength, _ := w.queue.QueueLength(ctx)
	return Metrics{
		TasksProcessed: w.tasksProcessed.Load(),
		TasksFailed:    w.tasksFailed.Load(),
		TasksSucceeded: w.tasksSucceeded.Load(),
		QueueLength:    queueLength,
		ActiveTasks:    int(w.activeTasks.Load()),
	}
}
