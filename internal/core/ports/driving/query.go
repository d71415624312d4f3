package driving

import (
	"context"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

// QueryService answers natural-language queries against the ingested corpus
type QueryService interface {
	// Query retrieves relevant chunks and synthesizes a grounded answer.
	// An empty corpus yields a fallback answer with no sources, not an error.
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error)
}

// TaskService reports the status of background ingestion tasks
type TaskService interface {
	// Status merges the queue record and the progress channel record for a
	// task. Returns domain.ErrNotFound for unknown task IDs.
	Status(ctx context.Context, taskID string) (*domain.TaskState, error)
}
