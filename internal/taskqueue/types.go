// Package taskqueue is a small PostgreSQL-backed job queue: enqueue
// with idempotency dedupe, claim with FOR UPDATE SKIP LOCKED, retry
// with exponential backoff, dead-letter after exhausting retries.
// It backs the live webhook pipeline; backfill runs call the backfill
// runner directly rather than going through the queue.
package taskqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job lifecycle states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDead      = "dead"
)

// Task types this engine enqueues.
const (
	TypeExtractMessage     = "extract_message"
	TypeBackfillUser       = "backfill_user"
	TypeReconcileTriggers  = "reconcile_triggers"
)

// Task is one unit of background work.
type Task struct {
	ID             uuid.UUID
	Type           string
	Payload        json.RawMessage
	Status         string
	MaxRetries     int
	RetryCount     int
	LastError      string
	RunAt          time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	TimeoutSeconds int
	WorkerID       string
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PayloadTo unmarshals the task payload into v.
func (t *Task) PayloadTo(v any) error {
	return json.Unmarshal(t.Payload, v)
}

// EnqueueOptions customizes a single Enqueue call; the zero value of
// each field falls back to DefaultEnqueueOptions.
type EnqueueOptions struct {
	RunAt          time.Time
	MaxRetries     int
	TimeoutSeconds int
	IdempotencyKey string
}

// DefaultEnqueueOptions returns the queue's baseline retry/timeout policy.
func DefaultEnqueueOptions() EnqueueOptions {
	return EnqueueOptions{
		RunAt:          time.Now(),
		MaxRetries:     3,
		TimeoutSeconds: 1800,
	}
}

// Handler processes one dequeued task.
type Handler interface {
	Handle(ctx context.Context, task *Task) (json.RawMessage, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, task *Task) (json.RawMessage, error)

// Handle calls f(ctx, task).
func (f HandlerFunc) Handle(ctx context.Context, task *Task) (json.RawMessage, error) {
	return f(ctx, task)
}

// Metrics is a point-in-time snapshot of worker throughput.
type Metrics struct {
	TasksProcessed int64
	TasksFailed    int64
	TasksSucceeded int64
	QueueLength    int64
	ActiveTasks    int
}
