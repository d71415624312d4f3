// Package redis implements the task state channel and distributed lock.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskStateStore = (*TaskStateStore)(nil)

const stateKeyPrefix = "overtone:task-state:"

// TaskStateStore implements driven.TaskStateStore on Redis. Each state is a
// single JSON value with a TTL; terminal states age out on their own rather
// than being deleted.
type TaskStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTaskStateStore creates a Redis-backed task state store.
func NewTaskStateStore(client *redis.Client, ttl time.Duration) *TaskStateStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TaskStateStore{client: client, ttl: ttl}
}

// Set overwrites the state record for a task.
func (s *TaskStateStore) Set(ctx context.Context, state *domain.TaskState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal task state: %w", err)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+state.TaskID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store task state: %w", err)
	}
	return nil
}

// Get retrieves the latest state for a task.
func (s *TaskStateStore) Get(ctx context.Context, taskID string) (*domain.TaskState, error) {
	data, err := s.client.Get(ctx, stateKeyPrefix+taskID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("task state %s: %w", taskID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task state: %w", err)
	}

	var state domain.TaskState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task state: %w", err)
	}
	return &state, nil
}

// Ping checks if the state backend is healthy.
func (s *TaskStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
