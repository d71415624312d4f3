package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL.
// Embeddings live in the vector index; this store holds only metadata
// and chunk text linked to vectors by ordinal ID.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create inserts the document in the processing state. A failed document
// with the same source_id is reused: failed documents never own chunk rows,
// so resetting the row cannot leave stale chunks behind.
func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		insert := `
			INSERT INTO documents (source_id, source_file_name, doc_type, storage_path, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (source_id) DO NOTHING
			RETURNING id
		`
		err := tx.QueryRowContext(ctx, insert,
			doc.SourceID,
			doc.SourceFileName,
			doc.DocType,
			doc.StoragePath,
			doc.Status,
			doc.CreatedAt,
		).Scan(&doc.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to insert document: %w", err)
		}

		// The source_id is taken. Reuse the row only if its document failed.
		reuse := `
			UPDATE documents
			SET source_file_name = $2,
			    doc_type = $3,
			    storage_path = $4,
			    status = $5
			WHERE source_id = $1 AND status = 'failed'
			RETURNING id, created_at
		`
		err = tx.QueryRowContext(ctx, reuse,
			doc.SourceID,
			doc.SourceFileName,
			doc.DocType,
			doc.StoragePath,
			domain.DocStatusProcessing,
		).Scan(&doc.ID, &doc.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("source_id %s: %w", doc.SourceID, domain.ErrAlreadyExists)
		}
		if err != nil {
			return fmt.Errorf("failed to reuse failed document: %w", err)
		}
		doc.Status = domain.DocStatusProcessing
		return nil
	})
}

// Get retrieves a document by its assigned ID
func (s *DocumentStore) Get(ctx context.Context, id int64) (*domain.Document, error) {
	query := `
		SELECT id, source_id, source_file_name, doc_type, storage_path, status, created_at
		FROM documents
		WHERE id = $1
	`
	return s.scanDocument(s.db.QueryRowContext(ctx, query, id))
}

// GetBySourceID retrieves a document by its caller-visible source ID
func (s *DocumentStore) GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error) {
	query := `
		SELECT id, source_id, source_file_name, doc_type, storage_path, status, created_at
		FROM documents
		WHERE source_id = $1
	`
	return s.scanDocument(s.db.QueryRowContext(ctx, query, sourceID))
}

// Complete marks the document completed and inserts its chunks atomically.
func (s *DocumentStore) Complete(ctx context.Context, docID int64, chunks []*domain.TextChunk) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE documents SET status = $2 WHERE id = $1 AND status = $3`,
			docID, domain.DocStatusCompleted, domain.DocStatusProcessing,
		)
		if err != nil {
			return fmt.Errorf("failed to mark document completed: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("document %d not in processing state: %w", docID, domain.ErrNotFound)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO text_chunks (document_id, vector_id, text_content, start_time, end_time, page_number)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			err := stmt.QueryRowContext(ctx,
				docID,
				chunk.VectorID,
				chunk.TextContent,
				NullFloat(chunk.StartTime),
				NullFloat(chunk.EndTime),
				NullInt(chunk.PageNumber),
			).Scan(&chunk.ID)
			if err != nil {
				return fmt.Errorf("failed to insert chunk (vector %d): %w", chunk.VectorID, err)
			}
			chunk.DocumentID = docID
		}
		return nil
	})
}

// MarkFailed flips the document to the failed state
func (s *DocumentStore) MarkFailed(ctx context.Context, docID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = $2 WHERE id = $1`,
		docID, domain.DocStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document %d: %w", docID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a document; chunks cascade
func (s *DocumentStore) Delete(ctx context.Context, docID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document %d: %w", docID, domain.ErrNotFound)
	}
	return nil
}

func (s *DocumentStore) scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	err := row.Scan(
		&doc.ID,
		&doc.SourceID,
		&doc.SourceFileName,
		&doc.DocType,
		&doc.StoragePath,
		&doc.Status,
		&doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
