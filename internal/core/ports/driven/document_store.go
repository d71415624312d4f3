package driven

import (
	"context"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

// DocumentStore persists documents in the relational metadata store.
type DocumentStore interface {
	// Create inserts a new document in the processing state and assigns its ID.
	// Returns domain.ErrAlreadyExists if the source_id is already taken by a
	// document that is not in the failed state. A failed document with the
	// same source_id is reused: its status is reset to processing and its
	// assigned ID returned (failed documents own no chunks, so no stale
	// chunk rows can survive the reset).
	Create(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by its store-assigned ID.
	Get(ctx context.Context, id int64) (*domain.Document, error)

	// GetBySourceID retrieves a document by its caller-visible source ID.
	GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error)

	// Complete marks the document completed and inserts all of its staged
	// chunks in the same transaction. A reader can therefore never observe a
	// completed document with missing chunks.
	Complete(ctx context.Context, docID int64, chunks []*domain.TextChunk) error

	// MarkFailed flips the document to the failed state. It commits only the
	// status change; no chunk rows are written for a failed document.
	MarkFailed(ctx context.Context, docID int64) error

	// Delete removes a document and, via cascade, all of its chunks.
	Delete(ctx context.Context, docID int64) error
}

// ChunkFilter narrows a chunk lookup by attributes of the owning document.
type ChunkFilter struct {
	SourceID string
	DocType  domain.DocType
	DateFrom *int64 // unix seconds, inclusive
	DateTo   *int64 // unix seconds, inclusive
}

// ChunkStore reads text chunks joined to their owning documents.
// Chunks are written only through DocumentStore.Complete.
type ChunkStore interface {
	// GetByVectorIDs retrieves the chunks whose vector_id is in ids, each
	// joined to its owning document in a single query. The filter is applied
	// in SQL, not on the returned slice. IDs with no matching row are
	// silently absent from the result.
	GetByVectorIDs(ctx context.Context, ids []int64, filter ChunkFilter) ([]*domain.RetrievedChunk, error)

	// CountByDocument returns the number of chunks linked to a document.
	CountByDocument(ctx context.Context, docID int64) (int, error)
}
