package mocks

import (
	"context"
	"sync"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// MockDocumentStore is an in-memory implementation of DocumentStore and
// ChunkStore for testing. Chunks only appear through Complete, mirroring
// the transactional contract of the real store.
type MockDocumentStore struct {
	mu       sync.RWMutex
	nextID   int64
	docs     map[int64]*domain.Document
	bySource map[string]*domain.Document
	chunks   map[int64][]*domain.TextChunk // by document ID

	// Custom behavior hooks (optional)
	CreateFn   func(doc *domain.Document) error
	CompleteFn func(docID int64, chunks []*domain.TextChunk) error
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		nextID:   1,
		docs:     make(map[int64]*domain.Document),
		bySource: make(map[string]*domain.Document),
		chunks:   make(map[int64][]*domain.TextChunk),
	}
}

func (m *MockDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	if m.CreateFn != nil {
		return m.CreateFn(doc)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.bySource[doc.SourceID]; ok {
		if existing.Status != domain.DocStatusFailed {
			return domain.ErrAlreadyExists
		}
		// Reuse the failed document's row.
		existing.Status = domain.DocStatusProcessing
		existing.SourceFileName = doc.SourceFileName
		existing.DocType = doc.DocType
		existing.StoragePath = doc.StoragePath
		delete(m.chunks, existing.ID)
		*doc = *existing
		return nil
	}

	doc.ID = m.nextID
	m.nextID++
	stored := *doc
	m.docs[doc.ID] = &stored
	m.bySource[doc.SourceID] = &stored
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id int64) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *MockDocumentStore) GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.bySource[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *MockDocumentStore) Complete(ctx context.Context, docID int64, chunks []*domain.TextChunk) error {
	if m.CompleteFn != nil {
		return m.CompleteFn(docID, chunks)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docID]
	if !ok {
		return domain.ErrNotFound
	}
	stored := make([]*domain.TextChunk, len(chunks))
	for i, c := range chunks {
		copied := *c
		copied.ID = int64(i + 1)
		copied.DocumentID = docID
		stored[i] = &copied
	}
	m.chunks[docID] = stored
	doc.Status = domain.DocStatusCompleted
	return nil
}

func (m *MockDocumentStore) MarkFailed(ctx context.Context, docID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docID]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = domain.DocStatusFailed
	return nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, docID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.bySource, doc.SourceID)
	delete(m.chunks, docID)
	delete(m.docs, docID)
	return nil
}

// ChunkStore implementation

func (m *MockDocumentStore) GetByVectorIDs(ctx context.Context, ids []int64, filter driven.ChunkFilter) ([]*domain.RetrievedChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var result []*domain.RetrievedChunk
	for docID, chunks := range m.chunks {
		doc := m.docs[docID]
		if doc.Status != domain.DocStatusCompleted {
			continue
		}
		if filter.SourceID != "" && doc.SourceID != filter.SourceID {
			continue
		}
		if filter.DocType != "" && doc.DocType != filter.DocType {
			continue
		}
		if filter.DateFrom != nil && doc.CreatedAt.Unix() < *filter.DateFrom {
			continue
		}
		if filter.DateTo != nil && doc.CreatedAt.Unix() > *filter.DateTo {
			continue
		}
		for _, c := range chunks {
			if wanted[c.VectorID] {
				chunkCopy := *c
				docCopy := *doc
				result = append(result, &domain.RetrievedChunk{
					Chunk:    &chunkCopy,
					Document: &docCopy,
				})
			}
		}
	}
	return result, nil
}

func (m *MockDocumentStore) CountByDocument(ctx context.Context, docID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[docID]), nil
}

// Helper methods for testing

// Chunks returns the chunks committed for a document.
func (m *MockDocumentStore) Chunks(docID int64) []*domain.TextChunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunks[docID]
}
