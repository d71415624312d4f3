package driven

import "context"

// SearchNoMatch is the sentinel ID emitted by the index for result slots
// beyond the number of stored vectors.
const SearchNoMatch int64 = -1

// VectorIndex is an append-only similarity index over pre-normalized vectors.
// IDs are ordinal: the Nth vector ever added receives ID size-before-insert+N-1.
// There is no delete or update; retraction is not supported.
type VectorIndex interface {
	// Add appends vectors and returns their newly assigned ordinal IDs.
	// All vectors must match the index dimension.
	Add(ctx context.Context, vectors [][]float32) ([]int64, error)

	// Search returns the k most similar vector IDs with their inner-product
	// scores, sorted descending. When fewer than k vectors exist, the tail
	// is padded with SearchNoMatch IDs.
	Search(ctx context.Context, query []float32, k int) (scores []float64, ids []int64, err error)

	// Save persists the index to durable storage.
	Save(ctx context.Context) error

	// Refresh reloads the index from durable storage if another writer has
	// persisted a newer generation. Used by read-only processes.
	Refresh(ctx context.Context) error

	// Size returns the number of vectors currently in the index.
	Size() int64

	// Dimensions returns the fixed vector dimension of the index.
	Dimensions() int
}
