package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

func TestChunk_Empty(t *testing.T) {
	chunker := NewTextChunker(0, 0)

	if got := chunker.Chunk(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := chunker.Chunk("   \n\n  \t "); got != nil {
		t.Errorf("expected nil for whitespace input, got %v", got)
	}
}

func TestChunk_SingleParagraph(t *testing.T) {
	chunker := NewTextChunker(500, 50)

	chunks := chunker.Chunk("A short paragraph.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "A short paragraph." {
		t.Errorf("unexpected chunk: %q", chunks[0])
	}
}

func TestChunk_Deterministic(t *testing.T) {
	chunker := NewTextChunker(100, 20)
	text := strings.Repeat("One sentence here. Another one follows. ", 20)

	first := chunker.Chunk(text)
	for i := 0; i < 5; i++ {
		again := chunker.Chunk(text)
		if len(again) != len(first) {
			t.Fatalf("run %d: chunk count changed: %d vs %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d: chunk %d changed", i, j)
			}
		}
	}
}

func TestChunk_SizeBound(t *testing.T) {
	chunker := NewTextChunker(120, 20)

	var paragraphs []string
	for i := 0; i < 12; i++ {
		paragraphs = append(paragraphs, fmt.Sprintf("Paragraph number %d talks about topic %d in brief.", i, i))
	}
	chunks := chunker.Chunk(strings.Join(paragraphs, "\n\n"))

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		// Overlap seeding may add up to chunkOverlap characters on top of
		// the accumulation bound.
		if len(chunk) > 120+20 {
			t.Errorf("chunk %d exceeds bound: %d chars", i, len(chunk))
		}
	}
}

func TestChunk_OversizedSentencePassedThrough(t *testing.T) {
	chunker := NewTextChunker(50, 10)
	sentence := "This single sentence is deliberately much longer than the configured chunk size and has no inner period"

	chunks := chunker.Chunk(sentence)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "no inner period") {
		t.Errorf("oversized sentence was truncated: %q", chunks[0])
	}
}

func TestChunk_LongParagraphSplitAtSentences(t *testing.T) {
	chunker := NewTextChunker(60, 10)
	paragraph := "First sentence of the block. Second sentence of the block. Third sentence of the block."

	chunks := chunker.Chunk(paragraph)
	if len(chunks) < 2 {
		t.Fatalf("expected the paragraph to be split, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if strings.Contains(chunk, "of the blo.") {
			t.Errorf("chunk %d was cut mid-word: %q", i, chunk)
		}
	}
}

func TestChunk_ContentPreserved(t *testing.T) {
	chunker := NewTextChunker(80, 15)
	paragraphs := []string{
		"Alpha paragraph content one.",
		"Beta paragraph content two.",
		"Gamma paragraph content three.",
		"Delta paragraph content four.",
	}
	chunks := chunker.Chunk(strings.Join(paragraphs, "\n\n"))

	// Every paragraph must survive somewhere; overlap may duplicate text
	// but never drop it.
	joined := strings.Join(chunks, " ")
	for _, p := range paragraphs {
		if !strings.Contains(joined, p) {
			t.Errorf("paragraph lost during chunking: %q", p)
		}
	}
}

func TestChunkTranscript_TimestampsTrack(t *testing.T) {
	chunker := NewTextChunker(60, 10)
	transcript := domain.Transcript{
		Text: "ignored when segments are present",
		Segments: []domain.Segment{
			{Text: "The quarterly revenue grew steadily.", Start: 0, End: 12},
			{Text: "Costs were flat across the board.", Start: 12, End: 25},
			{Text: "Margins therefore widened again.", Start: 25, End: 41},
			{Text: "Questions came at the end.", Start: 41, End: 55},
		},
	}

	chunks := chunker.ChunkTranscript(transcript)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple timed chunks, got %d", len(chunks))
	}

	if chunks[0].Start != 0 {
		t.Errorf("expected first chunk to start at 0, got %f", chunks[0].Start)
	}
	last := chunks[len(chunks)-1]
	if last.End != 55 {
		t.Errorf("expected last chunk to end at 55, got %f", last.End)
	}

	// Start times must be non-decreasing across consecutive chunks.
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start < chunks[i-1].Start {
			t.Errorf("chunk %d start %f precedes chunk %d start %f",
				i, chunks[i].Start, i-1, chunks[i-1].Start)
		}
	}

	// Each chunk's range covers its own segments.
	for i, c := range chunks {
		if c.End < c.Start {
			t.Errorf("chunk %d has end %f before start %f", i, c.End, c.Start)
		}
	}
}

func TestChunkTranscript_NoSegmentsFallsBack(t *testing.T) {
	chunker := NewTextChunker(500, 50)
	transcript := domain.Transcript{Text: "Hello world. This is a test."}

	chunks := chunker.ChunkTranscript(transcript)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Start != 0 || chunks[0].End != 0 {
		t.Errorf("expected zero-valued timestamps, got [%f, %f]", chunks[0].Start, chunks[0].End)
	}
	if !strings.Contains(chunks[0].Text, "Hello world") {
		t.Errorf("unexpected chunk text: %q", chunks[0].Text)
	}
}

func TestChunkTranscript_Empty(t *testing.T) {
	chunker := NewTextChunker(500, 50)
	if got := chunker.ChunkTranscript(domain.Transcript{}); got != nil {
		t.Errorf("expected nil for empty transcript, got %v", got)
	}
}

func TestChunkTranscript_SingleChunkSpansAllSegments(t *testing.T) {
	chunker := NewTextChunker(500, 50)
	transcript := domain.Transcript{
		Text: "Hello world. This is a test.",
		Segments: []domain.Segment{
			{Text: "Hello world.", Start: 0, End: 15},
			{Text: "This is a test.", Start: 15, End: 30},
		},
	}

	chunks := chunker.ChunkTranscript(transcript)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if !strings.Contains(c.Text, "Hello world.") || !strings.Contains(c.Text, "This is a test.") {
		t.Errorf("chunk should contain both sentences: %q", c.Text)
	}
	if c.Start != 0 || c.End != 30 {
		t.Errorf("expected range [0, 30], got [%f, %f]", c.Start, c.End)
	}
}
