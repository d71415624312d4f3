package driven

import (
	"context"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

// TaskQueue handles background ingestion task queuing and processing.
// Tasks are routed to named queues (cpu, gpu) by their type; a worker
// subscribes to one or more queues.
type TaskQueue interface {
	// Enqueue adds a task to its type's queue for processing.
	Enqueue(ctx context.Context, task *domain.Task) error

	// Dequeue retrieves the next available task from the subscribed queues.
	// Returns nil, nil if no tasks are available.
	Dequeue(ctx context.Context) (*domain.Task, error)

	// DequeueWithTimeout retrieves the next available task, waiting up to
	// timeout seconds. Returns nil, nil if the timeout elapses.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack acknowledges successful completion of a task.
	Ack(ctx context.Context, taskID string) error

	// Nack records failed processing. The task is retried if attempts
	// remain, otherwise marked failed.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask retrieves a task by ID (for status checking).
	// Returns domain.ErrNotFound for unknown task IDs.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}
