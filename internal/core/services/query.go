package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driving"
	"github.com/overtone-labs/overtone-core/internal/runtime"
)

// fallbackAnswer is returned when retrieval finds nothing relevant.
const fallbackAnswer = "I could not find any relevant information in the ingested content to answer your question."

// Ensure QueryService implements the driving port
var _ driving.QueryService = (*QueryService)(nil)

// QueryService answers natural-language queries: retrieve relevant chunks,
// then synthesize a grounded answer with the LLM. The LLM is optional at
// runtime; without it (or when it errors) the response degrades to the raw
// sources with an explanatory answer instead of failing the request.
type QueryService struct {
	retriever *Retriever
	services  *runtime.Services
	logger    *slog.Logger
}

// NewQueryService creates a query service.
func NewQueryService(retriever *Retriever, services *runtime.Services, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		retriever: retriever,
		services:  services,
		logger:    logger,
	}
}

// Query answers one query request.
func (s *QueryService) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	queryID := domain.GenerateID()
	logger := s.logger.With("query_id", queryID)

	retrieved, err := s.retriever.Retrieve(ctx, req.Query, req.TopK, req.Filters)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	sources := make([]domain.SourceChunk, len(retrieved))
	for i, rc := range retrieved {
		sources[i] = domain.SourceChunk{
			SourceFile: rc.Document.SourceFileName,
			ChunkText:  rc.Chunk.TextContent,
			StartTime:  rc.Chunk.StartTime,
			EndTime:    rc.Chunk.EndTime,
			Score:      rc.Score,
		}
	}

	if len(sources) == 0 {
		logger.Info("query matched no sources")
		return &domain.QueryResponse{
			Answer:  fallbackAnswer,
			Sources: []domain.SourceChunk{},
			QueryID: queryID,
		}, nil
	}

	answer := s.generateAnswer(ctx, logger, req.Query, sources)
	return &domain.QueryResponse{
		Answer:  answer,
		Sources: sources,
		QueryID: queryID,
	}, nil
}

// generateAnswer asks the LLM for a grounded answer, degrading to a canned
// explanation when the LLM is absent or fails. Sources are still returned
// either way.
func (s *QueryService) generateAnswer(ctx context.Context, logger *slog.Logger, query string, sources []domain.SourceChunk) string {
	generator := s.services.AnswerGenerator()
	if generator == nil {
		logger.Warn("no answer generator configured, returning sources only")
		return "Answer generation is unavailable; the most relevant sources are included below."
	}

	answer, err := generator.GenerateAnswer(ctx, query, sources)
	if err != nil {
		logger.Error("answer generation failed", "error", err)
		return "Answer generation failed; the most relevant sources are included below."
	}
	logger.Info("answer generated", "model", generator.Model(), "sources", len(sources))
	return answer
}
