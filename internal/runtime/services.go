package runtime

import (
	"context"
	"sync"

	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// Services is the process-wide registry of AI collaborator services.
// It replaces ad-hoc singletons: constructed once per process and passed by
// reference into the orchestrator and retriever. Thread-safe; services may
// be swapped at runtime (e.g. after reconfiguration) without restarting.
type Services struct {
	mu sync.RWMutex

	embeddingService driven.EmbeddingService
	answerGenerator  driven.AnswerGenerator
	visionService    driven.VisionService
	transcriber      driven.Transcriber
}

// NewServices creates an empty registry.
func NewServices() *Services {
	return &Services{}
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// AnswerGenerator returns the current answer generator (may be nil)
func (s *Services) AnswerGenerator() driven.AnswerGenerator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answerGenerator
}

// VisionService returns the current vision service (may be nil)
func (s *Services) VisionService() driven.VisionService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visionService
}

// Transcriber returns the current transcriber (may be nil)
func (s *Services) Transcriber() driven.Transcriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcriber
}

// SetEmbeddingService updates the embedding service, closing the old one.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
}

// SetAnswerGenerator updates the answer generator, closing the old one.
func (s *Services) SetAnswerGenerator(svc driven.AnswerGenerator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answerGenerator != nil {
		_ = s.answerGenerator.Close()
	}
	s.answerGenerator = svc
}

// SetVisionService updates the vision service.
func (s *Services) SetVisionService(svc driven.VisionService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visionService = svc
}

// SetTranscriber updates the transcriber.
func (s *Services) SetTranscriber(svc driven.Transcriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcriber = svc
}

// ValidateAndSetEmbedding verifies connectivity before installing the
// embedding service.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}
	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}
	s.SetEmbeddingService(svc)
	return nil
}

// Close shuts down all services.
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.answerGenerator != nil {
		_ = s.answerGenerator.Close()
		s.answerGenerator = nil
	}
	s.visionService = nil
	s.transcriber = nil
	return nil
}
