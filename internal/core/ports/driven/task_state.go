package driven

import (
	"context"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

// TaskStateStore is the side channel the orchestrator reports progress
// through. States are created implicitly on first write and evicted by the
// backend's TTL, not by the core.
type TaskStateStore interface {
	// Set overwrites the state record for a task.
	Set(ctx context.Context, state *domain.TaskState) error

	// Get retrieves the latest state for a task.
	// Returns domain.ErrNotFound if no state was ever recorded.
	Get(ctx context.Context, taskID string) (*domain.TaskState, error)

	// Ping checks if the state backend is healthy.
	Ping(ctx context.Context) error
}

// ProgressFunc reports one progress event for a running task. Progress is
// advisory telemetry only; it never drives control flow.
type ProgressFunc func(status domain.TaskStatus, details string, percent float64)
