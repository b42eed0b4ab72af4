package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrDuplicateTask   = errors.New("duplicate task (idempotency key)")
	ErrNoTasksAvailable = errors.New("no tasks available")
)

// Queue manages the PostgreSQL-backed task table.
type Queue struct {
	db       *pgxpool.Pool
	workerID string
	logger   *slog.Logger
}

// NewQueue constructs a Queue. logger may be nil, defaulting to slog.Default().
func NewQueue(db *pgxpool.Pool, workerID string, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if workerID == "" {
		workerID = "default"
	}
	return &Queue{db: db, workerID: workerID, logger: logger}
}

// Enqueue inserts a new task. If opts.IdempotencyKey collides with any
// existing task, whatever its status, the insert is silently dropped and
// ErrDuplicateTask is returned so callers can treat it as a no-op.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload any, opts EnqueueOptions) (*Task, error) {
	if opts.RunAt.IsZero() {
		opts.RunAt = time.Now()
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.TimeoutSeconds == 0 {
		opts.TimeoutSeconds = 1800
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	task := &Task{
		ID:             uuid.New(),
		Type:           taskType,
		Payload:        payloadBytes,
		Status:         StatusPending,
		MaxRetries:     opts.MaxRetries,
		RetryCount:     0,
		RunAt:          opts.RunAt,
		TimeoutSeconds: opts.TimeoutSeconds,
		IdempotencyKey: opts.IdempotencyKey,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	query := `
		INSERT INTO tasks (
			id, type, payload, status, max_retries, retry_count,
			run_at, timeout_seconds, idempotency_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (idempotency_key) WHERE idempotency_key IS NOT NULL
		DO NOTHING
		RETURNING id
	`

	var returnedID uuid.UUID
	err = q.db.QueryRow(ctx, query,
		task.ID, task.Type, task.Payload, task.Status, task.MaxRetries, task.RetryCount,
		task.RunAt, task.TimeoutSeconds, nullString(task.IdempotencyKey), task.CreatedAt, task.UpdatedAt,
	).Scan(&returnedID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDuplicateTask
		}
		return nil, fmt.Errorf("insert task: %w", err)
	}

	q.logger.Debug("task enqueued", "task_id", task.ID, "type", task.Type, "run_at", task.RunAt)
	return task, nil
}

// Dequeue claims the next runnable task using SELECT ... FOR UPDATE
// SKIP LOCKED, so concurrent workers never race on the same row.
func (q *Queue) Dequeue(ctx context.Context) (*Task, error) {
	query := `
		UPDATE tasks
		SET status = $1, started_at = $2, worker_id = $3, updated_at = $2
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = $4 AND run_at <= $2
			ORDER BY run_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, type, payload, status, max_retries, retry_count,
		          last_error, run_at, started_at, timeout_seconds, worker_id,
		          idempotency_key, created_at, updated_at
	`

	now := time.Now()
	task := &Task{}
	var lastError, idempotencyKey, workerID *string

	err := q.db.QueryRow(ctx, query, StatusRunning, now, q.workerID, StatusPending).Scan(
		&task.ID, &task.Type, &task.Payload, &task.Status, &task.MaxRetries, &task.RetryCount,
		&lastError, &task.RunAt, &task.StartedAt, &task.TimeoutSeconds, &workerID,
		&idempotencyKey, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoTasksAvailable
		}
		return nil, fmt.Errorf("dequeue task: %w", err)
	}

	if lastError != nil {
		task.LastError = *lastError
	}
	if idempotencyKey != nil {
		task.IdempotencyKey = *idempotencyKey
	}
	if workerID != nil {
		task.WorkerID = *workerID
	}

	q.logger.Debug("task dequeued", "task_id", task.ID, "type", task.Type)
	return task, nil
}

// Complete marks a task done.
func (q *Queue) Complete(ctx context.Context, taskID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE tasks SET status = $1, completed_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3
	`, StatusCompleted, taskID, StatusRunning)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Fail records a failure and either reschedules with exponential
// backoff (2s, 4s, 8s, ...) or moves the task to the dead state once
// max_retries is exhausted.
func (q *Queue) Fail(ctx context.Context, taskID uuid.UUID, errMsg string) error {
	task, err := q.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	newRetryCount := task.RetryCount + 1
	if newRetryCount >= task.MaxRetries {
		_, err := q.db.Exec(ctx, `
			UPDATE tasks SET status = $1, last_error = $2, completed_at = now(), updated_at = now()
			WHERE id = $3
		`, StatusDead, errMsg, taskID)
		if err != nil {
			return fmt.Errorf("move task to dead: %w", err)
		}
		q.logger.Warn("task moved to dead letter", "task_id", taskID, "type", task.Type, "error", errMsg)
		return nil
	}

	delay := time.Duration(1<<uint(newRetryCount)) * time.Second
	nextRunAt := time.Now().Add(delay)

	_, err = q.db.Exec(ctx, `
		UPDATE tasks
		SET status = $1, retry_count = $2, last_error = $3, run_at = $4,
		    started_at = NULL, worker_id = NULL, updated_at = now()
		WHERE id = $5
	`, StatusPending, newRetryCount, errMsg, nextRunAt, taskID)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}

	q.logger.Info("task failed, will retry",
		"task_id", taskID, "retry_count", newRetryCount, "max_retries", task.MaxRetries, "next_run_at", nextRunAt)
	return nil
}

// GetByID fetches one task by id.
func (q *Queue) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	query := `
		SELECT id, type, payload, status, max_retries, retry_count,
		       last_error, run_at, started_at, completed_at, timeout_seconds, worker_id,
		       idempotency_key, created_at, updated_at
		FROM tasks WHERE id = $1
	`
	task := &Task{}
	var lastError, idempotencyKey, workerID *string

	err := q.db.QueryRow(ctx, query, id).Scan(
		&task.ID, &task.Type, &task.Payload, &task.Status, &task.MaxRetries, &task.RetryCount,
		&lastError, &task.RunAt, &task.StartedAt, &task.CompletedAt, &task.TimeoutSeconds, &workerID,
		&idempotencyKey, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	if lastError != nil {
		task.LastError = *lastError
	}
	if idempotencyKey != nil {
		task.IdempotencyKey = *idempotencyKey
	}
	if workerID != nil {
		task.WorkerID = *workerID
	}
	return task, nil
}

// QueueLength returns the number of pending tasks.
func (q *Queue) QueueLength(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE status = $1`, StatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending tasks: %w", err)
	}
	return count, nil
}

// CleanupStale puts tasks that overran their timeout back to pending so
// they're retried rather than stuck in running forever. The timeout
// counts as a retry, and a task whose retries are exhausted goes to the
// dead state instead, as in Fail.
func (q *Queue) CleanupStale(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE tasks
		SET status = CASE WHEN retry_count + 1 >= max_retries THEN $1 ELSE $2 END,
		    retry_count = retry_count + 1, last_error = 'task timed out',
		    started_at = NULL, worker_id = NULL, updated_at = now()
		WHERE status = $3 AND started_at IS NOT NULL
		  AND started_at + (timeout_seconds || ' seconds')::interval < now()
	`, StatusDead, StatusPending, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale tasks: %w", err)
	}
	affected := tag.RowsAffected()
	if affected > 0 {
		q.logger.Warn("cleaned up stale tasks", "count", affected)
	}
	return affected, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
