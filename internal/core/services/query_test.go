package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven/mocks"
)

type queryFixture struct {
	service   *QueryService
	retriever *retrieverFixture
	answerer  *mocks.MockAnswerGenerator
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	rf := newRetrieverFixture(t)
	answerer := mocks.NewMockAnswerGenerator()
	rf.services.SetAnswerGenerator(answerer)
	return &queryFixture{
		service:   NewQueryService(rf.retriever, rf.services, nil),
		retriever: rf,
		answerer:  answerer,
	}
}

func TestQueryReturnsAnswerWithSources(t *testing.T) {
	f := newQueryFixture(t)
	f.retriever.ingestTexts(t, "src-1", domain.DocTypeText, []string{
		"the service listens on port 8080 by default",
	})
	f.answerer.Answer = "It listens on port 8080."

	resp, err := f.service.Query(context.Background(), domain.QueryRequest{
		Query: "what port does the service use",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if resp.Answer != "It listens on port 8080." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(resp.Sources))
	}
	if resp.Sources[0].SourceFile != "src-1.txt" {
		t.Errorf("source file = %q", resp.Sources[0].SourceFile)
	}
	if resp.QueryID == "" {
		t.Error("query ID not set")
	}
	if f.answerer.LastQuery != "what port does the service use" {
		t.Errorf("LLM received query %q", f.answerer.LastQuery)
	}
}

func TestQueryEmptyCorpusFallback(t *testing.T) {
	f := newQueryFixture(t)

	resp, err := f.service.Query(context.Background(), domain.QueryRequest{Query: "anything relevant"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources = %d, want 0", len(resp.Sources))
	}
	if !strings.Contains(resp.Answer, "could not find") {
		t.Errorf("fallback answer = %q", resp.Answer)
	}
	if f.answerer.LastQuery != "" {
		t.Error("LLM was called for an empty result set")
	}
}

func TestQueryLLMFailureDegradesToSources(t *testing.T) {
	f := newQueryFixture(t)
	f.retriever.ingestTexts(t, "src-1", domain.DocTypeText, []string{"some indexed content"})
	f.answerer.SetFailNext(true)

	resp, err := f.service.Query(context.Background(), domain.QueryRequest{Query: "some indexed content"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(resp.Sources))
	}
	if !strings.Contains(resp.Answer, "Answer generation failed") {
		t.Errorf("degraded answer = %q", resp.Answer)
	}
}

func TestQueryNoAnswerGeneratorStillReturnsSources(t *testing.T) {
	f := newQueryFixture(t)
	f.retriever.ingestTexts(t, "src-1", domain.DocTypeText, []string{"some indexed content"})
	f.retriever.services.SetAnswerGenerator(nil)

	resp, err := f.service.Query(context.Background(), domain.QueryRequest{Query: "some indexed content"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(resp.Sources))
	}
	if !strings.Contains(resp.Answer, "unavailable") {
		t.Errorf("answer = %q", resp.Answer)
	}
}

func TestQueryValidation(t *testing.T) {
	f := newQueryFixture(t)

	cases := []struct {
		name string
		req  domain.QueryRequest
	}{
		{"too short", domain.QueryRequest{Query: "hi"}},
		{"topk too large", domain.QueryRequest{Query: "valid query", TopK: domain.MaxTopK + 1}},
		{"negative topk", domain.QueryRequest{Query: "valid query", TopK: -1}},
		{"bad doc type", domain.QueryRequest{Query: "valid query", Filters: domain.QueryFilter{DocType: "pdf"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Query(context.Background(), tc.req)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}
