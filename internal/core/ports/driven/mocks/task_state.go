package mocks

import (
	"context"
	"sync"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

// MockTaskStateStore is an in-memory implementation of TaskStateStore for
// testing. It additionally records the full write history per task so tests
// can assert on progress sequences.
type MockTaskStateStore struct {
	mu      sync.RWMutex
	states  map[string]*domain.TaskState
	history map[string][]*domain.TaskState
}

// NewMockTaskStateStore creates a new MockTaskStateStore
func NewMockTaskStateStore() *MockTaskStateStore {
	return &MockTaskStateStore{
		states:  make(map[string]*domain.TaskState),
		history: make(map[string][]*domain.TaskState),
	}
}

func (m *MockTaskStateStore) Set(ctx context.Context, state *domain.TaskState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.states[state.TaskID] = &copied
	m.history[state.TaskID] = append(m.history[state.TaskID], &copied)
	return nil
}

func (m *MockTaskStateStore) Get(ctx context.Context, taskID string) (*domain.TaskState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *state
	return &copied, nil
}

func (m *MockTaskStateStore) Ping(ctx context.Context) error {
	return nil
}

// Helper methods for testing

// History returns every state written for a task, in order.
func (m *MockTaskStateStore) History(taskID string) []*domain.TaskState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history[taskID]
}
