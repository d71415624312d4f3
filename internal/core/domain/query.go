package domain

import (
	"fmt"
	"time"
)

const (
	// MinQueryLength is the shortest accepted natural-language query.
	MinQueryLength = 3

	// DefaultTopK is the number of chunks retrieved when unspecified.
	DefaultTopK = 5

	// MaxTopK bounds how many chunks a single query may retrieve.
	MaxTopK = 20
)

// QueryFilter narrows the retrieval candidate set. Filters are applied in
// the metadata store query, not post-hoc on the result list.
type QueryFilter struct {
	SourceID string     `json:"source_id,omitempty"`
	DocType  DocType    `json:"doc_type,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
}

// Empty reports whether no filters are set.
func (f QueryFilter) Empty() bool {
	return f.SourceID == "" && f.DocType == "" && f.DateFrom == nil && f.DateTo == nil
}

// QueryRequest is a natural-language query against the ingested corpus.
type QueryRequest struct {
	Query   string      `json:"query"`
	Filters QueryFilter `json:"filters"`
	TopK    int         `json:"top_k"`
}

// Normalize applies defaults and validates the request.
func (r *QueryRequest) Normalize() error {
	if len(r.Query) < MinQueryLength {
		return fmt.Errorf("%w: query must be at least %d characters", ErrInvalidInput, MinQueryLength)
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	if r.TopK < 1 || r.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k must be between 1 and %d", ErrInvalidInput, MaxTopK)
	}
	if r.Filters.DocType != "" && !r.Filters.DocType.Valid() {
		return fmt.Errorf("%w: unknown doc_type %q", ErrInvalidInput, r.Filters.DocType)
	}
	return nil
}

// SourceChunk references one piece of retrieved context used for an answer.
type SourceChunk struct {
	SourceFile string            `json:"source_file"`
	ChunkText  string            `json:"chunk_text"`
	StartTime  *float64          `json:"start_time,omitempty"`
	EndTime    *float64          `json:"end_time,omitempty"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// QueryResponse is the synthesized answer plus the sources it was grounded on.
type QueryResponse struct {
	Answer  string        `json:"answer"`
	Sources []SourceChunk `json:"sources"`
	QueryID string        `json:"query_id"`
}
