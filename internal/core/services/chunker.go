package services

import (
	"strings"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

const (
	// DefaultChunkSize is the target number of characters per chunk.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is the target number of characters carried over
	// between consecutive chunks to preserve context.
	DefaultChunkOverlap = 50
)

// TextChunker splits text and transcripts into bounded retrieval units.
// It combines paragraph-equivalent blocks into chunks of a target size,
// preserving block integrity where possible. Chunking is pure: identical
// input always yields identical output.
type TextChunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewTextChunker creates a chunker. Non-positive arguments fall back to the
// defaults.
func NewTextChunker(chunkSize, chunkOverlap int) *TextChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap <= 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &TextChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits plain text into chunks of at most chunkSize characters,
// except when a single sentence alone exceeds the limit - such a sentence
// is emitted whole, never cut mid-word.
func (c *TextChunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	current := ""

	for _, paragraph := range paragraphs {
		switch {
		// The next paragraph still fits.
		case len(current)+len(paragraph)+1 <= c.chunkSize:
			current += paragraph + "\n\n"

		// An oversized paragraph with nothing accumulated: split it at
		// sentence boundaries.
		case current == "" && len(paragraph) > c.chunkSize:
			chunks = append(chunks, c.splitLongParagraph(paragraph)...)

		// Overflow: finalize the chunk and seed the next one with the
		// overlap suffix.
		default:
			chunks = append(chunks, strings.TrimSpace(current))
			current = c.overlapSuffix(current) + paragraph + "\n\n"
		}
	}

	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// splitLongParagraph splits a paragraph that exceeds chunkSize at sentence
// boundaries. A single sentence longer than chunkSize is emitted whole.
func (c *TextChunker) splitLongParagraph(paragraph string) []string {
	var sentences []string
	for _, s := range strings.Split(paragraph, ". ") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return []string{paragraph}
	}

	var chunks []string
	current := ""
	for _, sentence := range sentences {
		switch {
		case len(current)+len(sentence)+2 <= c.chunkSize:
			current += sentence + ". "
		case current == "":
			chunks = append(chunks, sentence+".")
		default:
			chunks = append(chunks, strings.TrimSpace(current))
			current = sentence + ". "
		}
	}
	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// overlapSuffix returns the trailing ~chunkOverlap characters of a finalized
// chunk, trimmed backward to the nearest sentence boundary, then the nearest
// word boundary, then a raw character cut.
func (c *TextChunker) overlapSuffix(chunk string) string {
	point := len(chunk) - c.chunkOverlap
	if point < 0 {
		point = 0
	}

	if i := strings.LastIndex(chunk[:point], ". "); i != -1 {
		return chunk[i+2:]
	}

	wordLimit := point + 10
	if wordLimit > len(chunk) {
		wordLimit = len(chunk)
	}
	if i := strings.LastIndex(chunk[:wordLimit], " "); i != -1 {
		return chunk[i+1:]
	}

	return chunk[point:]
}

// ChunkTranscript chunks a timestamped transcript. Accumulation mirrors
// Chunk, but each chunk tracks the min start / max end of the segments it
// absorbed. The declared range may be narrower than the chunk's overlap
// text; overlap is text-only by design of the chunker contract.
// Transcripts without segments fall back to plain chunking with zero times.
func (c *TextChunker) ChunkTranscript(t domain.Transcript) []domain.TimedChunk {
	if len(t.Segments) == 0 {
		var chunks []domain.TimedChunk
		for _, text := range c.Chunk(t.Text) {
			chunks = append(chunks, domain.TimedChunk{Text: text})
		}
		return chunks
	}

	var chunks []domain.TimedChunk
	current := ""
	start := t.Segments[0].Start
	end := 0.0

	for _, segment := range t.Segments {
		text := strings.TrimSpace(segment.Text)
		if len(current)+len(text)+1 <= c.chunkSize {
			current += text + " "
			end = segment.End
			continue
		}

		chunks = append(chunks, domain.TimedChunk{
			Text:  strings.TrimSpace(current),
			Start: start,
			End:   end,
		})
		current = text + " "
		start = segment.Start
		end = segment.End
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, domain.TimedChunk{
			Text:  strings.TrimSpace(current),
			Start: start,
			End:   end,
		})
	}
	return chunks
}
