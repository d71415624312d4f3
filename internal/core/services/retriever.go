package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
	"github.com/overtone-labs/overtone-core/internal/runtime"
)

// Retriever answers a query by embedding it, searching the vector index,
// and joining the hits back to metadata store rows.
type Retriever struct {
	index      driven.VectorIndex
	chunkStore driven.ChunkStore
	services   *runtime.Services
	logger     *slog.Logger
}

// NewRetriever creates a retriever.
// The embedding service is resolved dynamically via runtime.Services.
func NewRetriever(
	index driven.VectorIndex,
	chunkStore driven.ChunkStore,
	services *runtime.Services,
	logger *slog.Logger,
) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		index:      index,
		chunkStore: chunkStore,
		services:   services,
		logger:     logger,
	}
}

// Retrieve returns the topK most relevant chunks for the query, enriched
// with their owning documents and sorted by score descending (index rank as
// tiebreak). An empty index yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter domain.QueryFilter) ([]*domain.RetrievedChunk, error) {
	embedder := r.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("retrieve: %w: no embedding service configured", domain.ErrServiceUnavailable)
	}

	// Readers may lag behind the index writer; pick up a newer persisted
	// generation before searching.
	if err := r.index.Refresh(ctx); err != nil {
		r.logger.Warn("vector index refresh failed", "error", err)
	}

	queryVector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scores, ids, err := r.index.Search(ctx, queryVector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	// Discard the no-match sentinels the index emits when it holds fewer
	// than topK vectors, keeping an id -> (score, rank) map because the
	// metadata rows come back in arbitrary order.
	type hit struct {
		score float64
		rank  int
	}
	hits := make(map[int64]hit, len(ids))
	validIDs := make([]int64, 0, len(ids))
	for i, id := range ids {
		if id == driven.SearchNoMatch {
			continue
		}
		hits[id] = hit{score: scores[i], rank: i}
		validIDs = append(validIDs, id)
	}

	if len(validIDs) == 0 {
		r.logger.Info("no relevant vectors found", "query_len", len(query))
		return []*domain.RetrievedChunk{}, nil
	}

	chunks, err := r.chunkStore.GetByVectorIDs(ctx, validIDs, chunkFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk metadata: %w", err)
	}

	for _, c := range chunks {
		h := hits[c.Chunk.VectorID]
		c.Score = h.score
		c.Rank = h.rank
	}

	// Score descending; equal scores keep their original index rank.
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Rank < chunks[j].Rank
	})

	r.logger.Info("retrieved chunks",
		"requested", topK,
		"index_hits", len(validIDs),
		"returned", len(chunks),
	)
	return chunks, nil
}

// chunkFilter translates the API-level filter into the store-level one.
func chunkFilter(f domain.QueryFilter) driven.ChunkFilter {
	cf := driven.ChunkFilter{
		SourceID: f.SourceID,
		DocType:  f.DocType,
	}
	if f.DateFrom != nil {
		from := f.DateFrom.Unix()
		cf.DateFrom = &from
	}
	if f.DateTo != nil {
		to := f.DateTo.Unix()
		cf.DateTo = &to
	}
	return cf
}
