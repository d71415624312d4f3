package driven

import (
	"context"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

// AnswerGenerator synthesizes a grounded answer from retrieved context.
type AnswerGenerator interface {
	// GenerateAnswer produces an answer to the query using only the given
	// source chunks as context.
	GenerateAnswer(ctx context.Context, query string, sources []domain.SourceChunk) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the service
	Close() error
}
