package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driving"
)

// Ensure TaskService implements the driving port
var _ driving.TaskService = (*TaskService)(nil)

// TaskService reports background task status by merging two records: the
// durable queue entry and the ephemeral progress state the orchestrator
// writes. The progress record wins when both exist since it is the fresher
// of the two; the queue record covers tasks that never started.
type TaskService struct {
	queue      driven.TaskQueue
	taskStates driven.TaskStateStore
	logger     *slog.Logger
}

// NewTaskService creates a task status service.
func NewTaskService(queue driven.TaskQueue, taskStates driven.TaskStateStore, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		queue:      queue,
		taskStates: taskStates,
		logger:     logger,
	}
}

// Status returns the merged status of one task.
func (s *TaskService) Status(ctx context.Context, taskID string) (*domain.TaskState, error) {
	state, stateErr := s.taskStates.Get(ctx, taskID)
	task, taskErr := s.queue.GetTask(ctx, taskID)

	if stateErr != nil && !errors.Is(stateErr, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to read task state: %w", stateErr)
	}
	if taskErr != nil && !errors.Is(taskErr, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to read task record: %w", taskErr)
	}
	if state == nil && task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}

	if state == nil {
		state = &domain.TaskState{
			TaskID:    taskID,
			Status:    task.Status,
			UpdatedAt: task.UpdatedAt,
		}
	}

	// The queue record carries the terminal verdict and failure reason; the
	// progress record carries stage details and artifacts.
	if task != nil {
		if task.Status.Terminal() {
			state.Status = task.Status
			if task.Status == domain.TaskStatusSuccess {
				state.ProgressPercent = 100
			}
		}
		if task.Error != "" && state.Errors == "" {
			state.Errors = task.Error
		}
	}
	return state, nil
}
