package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.ChunkStore using PostgreSQL
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// GetByVectorIDs retrieves chunks joined to their owning documents. Filters
// are applied here, in SQL, so the caller never post-filters result rows.
// Only completed documents are visible to retrieval.
func (s *ChunkStore) GetByVectorIDs(ctx context.Context, ids []int64, filter driven.ChunkFilter) ([]*domain.RetrievedChunk, error) {
	if len(ids) == 0 {
		return []*domain.RetrievedChunk{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT c.id, c.document_id, c.vector_id, c.text_content, c.start_time, c.end_time, c.page_number,
		       d.id, d.source_id, d.source_file_name, d.doc_type, d.storage_path, d.status, d.created_at
		FROM text_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.vector_id = ANY($1)
		  AND d.status = 'completed'
	`)
	args := []any{pq.Array(ids)}

	if filter.SourceID != "" {
		args = append(args, filter.SourceID)
		fmt.Fprintf(&sb, " AND d.source_id = $%d", len(args))
	}
	if filter.DocType != "" {
		args = append(args, string(filter.DocType))
		fmt.Fprintf(&sb, " AND d.doc_type = $%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, time.Unix(*filter.DateFrom, 0).UTC())
		fmt.Fprintf(&sb, " AND d.created_at >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, time.Unix(*filter.DateTo, 0).UTC())
		fmt.Fprintf(&sb, " AND d.created_at <= $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	results := []*domain.RetrievedChunk{}
	for rows.Next() {
		var (
			chunk     domain.TextChunk
			doc       domain.Document
			startTime sql.NullFloat64
			endTime   sql.NullFloat64
			pageNum   sql.NullInt32
		)
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.VectorID,
			&chunk.TextContent,
			&startTime,
			&endTime,
			&pageNum,
			&doc.ID,
			&doc.SourceID,
			&doc.SourceFileName,
			&doc.DocType,
			&doc.StoragePath,
			&doc.Status,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if startTime.Valid {
			chunk.StartTime = &startTime.Float64
		}
		if endTime.Valid {
			chunk.EndTime = &endTime.Float64
		}
		if pageNum.Valid {
			page := int(pageNum.Int32)
			chunk.PageNumber = &page
		}

		results = append(results, &domain.RetrievedChunk{
			Chunk:    &chunk,
			Document: &doc,
		})
	}
	return results, rows.Err()
}

// CountByDocument returns the number of chunks linked to a document
func (s *ChunkStore) CountByDocument(ctx context.Context, docID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM text_chunks WHERE document_id = $1`, docID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
