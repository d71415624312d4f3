package mocks

import (
	"context"
	"fmt"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

// MockAnswerGenerator is a mock implementation of AnswerGenerator for testing
type MockAnswerGenerator struct {
	Answer   string
	failNext bool

	// Custom behavior hooks (optional)
	GenerateFn func(query string, sources []domain.SourceChunk) (string, error)

	// LastQuery and LastSources record the most recent call.
	LastQuery   string
	LastSources []domain.SourceChunk
}

// NewMockAnswerGenerator creates a new MockAnswerGenerator
func NewMockAnswerGenerator() *MockAnswerGenerator {
	return &MockAnswerGenerator{Answer: "mock answer"}
}

func (m *MockAnswerGenerator) GenerateAnswer(ctx context.Context, query string, sources []domain.SourceChunk) (string, error) {
	m.LastQuery = query
	m.LastSources = sources
	if m.GenerateFn != nil {
		return m.GenerateFn(query, sources)
	}
	if m.failNext {
		m.failNext = false
		return "", fmt.Errorf("llm service unavailable")
	}
	return m.Answer, nil
}

func (m *MockAnswerGenerator) Model() string {
	return "mock-answer-model"
}

func (m *MockAnswerGenerator) Ping(ctx context.Context) error {
	return nil
}

func (m *MockAnswerGenerator) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockAnswerGenerator) SetFailNext(fail bool) {
	m.failNext = fail
}
