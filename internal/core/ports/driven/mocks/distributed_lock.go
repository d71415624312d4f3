package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockDistributedLock is a mock implementation of DistributedLock for testing.
// It simulates lock behavior with in-memory state and supports custom behavior injection.
type MockDistributedLock struct {
	mu      sync.Mutex
	locks   map[string]mockLease
	minted  int
	extends int

	// Custom behavior hooks (optional)
	AcquireFn func(name string, ttl time.Duration) (string, error)
	ReleaseFn func(name, token string) error
}

type mockLease struct {
	token  string
	expiry time.Time
}

// NewMockDistributedLock creates a new mock distributed lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		locks: make(map[string]mockLease),
	}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if lease, exists := m.locks[name]; exists && time.Now().Before(lease.expiry) {
		return "", nil
	}
	m.minted++
	token := fmt.Sprintf("mock-token-%d", m.minted)
	m.locks[name] = mockLease{token: token, expiry: time.Now().Add(ttl)}
	return token, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name, token string) error {
	if m.ReleaseFn != nil {
		return m.ReleaseFn(name, token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if lease, exists := m.locks[name]; exists && lease.token == token {
		delete(m.locks, name)
	}
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lease, exists := m.locks[name]
	if !exists || lease.token != token {
		return fmt.Errorf("lock %s not held under this acquisition", name)
	}
	lease.expiry = time.Now().Add(ttl)
	m.locks[name] = lease
	m.extends++
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return nil
}

// Helper methods for testing

// Held reports whether a named lock is currently held.
func (m *MockDistributedLock) Held(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	lease, exists := m.locks[name]
	return exists && time.Now().Before(lease.expiry)
}

// ExtendCount returns how many successful Extend calls were made.
func (m *MockDistributedLock) ExtendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extends
}
