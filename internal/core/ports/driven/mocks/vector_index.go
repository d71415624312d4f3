package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// MockVectorIndex is an in-memory implementation of VectorIndex for testing.
// It honors the ordinal ID and -1 padding contracts of the real index.
type MockVectorIndex struct {
	mu        sync.RWMutex
	dim       int
	vectors   [][]float32
	saves     int
	refreshes int

	// Custom behavior hooks (optional)
	AddFn     func(vectors [][]float32) ([]int64, error)
	SaveFn    func() error
	RefreshFn func() error
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex(dimensions int) *MockVectorIndex {
	return &MockVectorIndex{dim: dimensions}
}

func (m *MockVectorIndex) Add(ctx context.Context, vectors [][]float32) ([]int64, error) {
	if m.AddFn != nil {
		return m.AddFn(vectors)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, len(vectors))
	for i, v := range vectors {
		if len(v) != m.dim {
			return nil, fmt.Errorf("%w: got %d, index has %d", domain.ErrDimensionMismatch, len(v), m.dim)
		}
		ids[i] = int64(len(m.vectors))
		m.vectors = append(m.vectors, v)
	}
	return ids, nil
}

func (m *MockVectorIndex) Search(ctx context.Context, query []float32, k int) ([]float64, []int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(query) != m.dim {
		return nil, nil, fmt.Errorf("%w: got %d, index has %d", domain.ErrDimensionMismatch, len(query), m.dim)
	}

	type hit struct {
		id    int64
		score float64
	}
	hits := make([]hit, len(m.vectors))
	for i, v := range m.vectors {
		var dot float64
		for j := range v {
			dot += float64(v[j]) * float64(query[j])
		}
		hits[i] = hit{id: int64(i), score: dot}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	scores := make([]float64, k)
	ids := make([]int64, k)
	for i := 0; i < k; i++ {
		if i < len(hits) {
			scores[i] = hits[i].score
			ids[i] = hits[i].id
		} else {
			ids[i] = driven.SearchNoMatch
		}
	}
	return scores, ids, nil
}

func (m *MockVectorIndex) Save(ctx context.Context) error {
	if m.SaveFn != nil {
		return m.SaveFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return nil
}

func (m *MockVectorIndex) Refresh(ctx context.Context) error {
	if m.RefreshFn != nil {
		return m.RefreshFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	return nil
}

func (m *MockVectorIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.vectors))
}

func (m *MockVectorIndex) Dimensions() int {
	return m.dim
}

// Helper methods for testing

// SaveCount returns how many times Save was called.
func (m *MockVectorIndex) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// RefreshCount returns how many times Refresh was called.
func (m *MockVectorIndex) RefreshCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshes
}
