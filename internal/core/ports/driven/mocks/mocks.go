// Package mocks provides in-memory implementations of the driven ports
// for service-level tests.
package mocks

import "github.com/overtone-labs/overtone-core/internal/core/ports/driven"

// Compile-time interface compliance checks
var (
	_ driven.DocumentStore    = (*MockDocumentStore)(nil)
	_ driven.ChunkStore       = (*MockDocumentStore)(nil)
	_ driven.EmbeddingService = (*MockEmbeddingService)(nil)
	_ driven.VectorIndex      = (*MockVectorIndex)(nil)
	_ driven.AudioProcessor   = (*MockAudioProcessor)(nil)
	_ driven.FrameExtractor   = (*MockFrameExtractor)(nil)
	_ driven.Transcriber      = (*MockTranscriber)(nil)
	_ driven.VisionService    = (*MockVisionService)(nil)
	_ driven.AnswerGenerator  = (*MockAnswerGenerator)(nil)
	_ driven.TaskStateStore   = (*MockTaskStateStore)(nil)
	_ driven.DistributedLock  = (*MockDistributedLock)(nil)
)
