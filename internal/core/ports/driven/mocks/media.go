package mocks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// MockAudioProcessor is a mock implementation of AudioProcessor for testing.
// It fabricates segment paths without touching the filesystem.
type MockAudioProcessor struct {
	mu           sync.Mutex
	SegmentCount int

	// Custom behavior hooks (optional)
	PrepareFn func(inputPath, outputDir, sourceID string) (string, error)
	SegmentFn func(inputPath, outputDir string, segmentSeconds int) ([]string, error)
}

// NewMockAudioProcessor creates a mock that yields two segments by default.
func NewMockAudioProcessor() *MockAudioProcessor {
	return &MockAudioProcessor{SegmentCount: 2}
}

func (m *MockAudioProcessor) Prepare(ctx context.Context, inputPath, outputDir, sourceID string) (string, error) {
	if m.PrepareFn != nil {
		return m.PrepareFn(inputPath, outputDir, sourceID)
	}
	return filepath.Join(outputDir, sourceID+".mp3"), nil
}

func (m *MockAudioProcessor) Segment(ctx context.Context, inputPath, outputDir string, segmentSeconds int) ([]string, error) {
	if m.SegmentFn != nil {
		return m.SegmentFn(inputPath, outputDir, segmentSeconds)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	segments := make([]string, m.SegmentCount)
	for i := range segments {
		segments[i] = filepath.Join(outputDir, fmt.Sprintf("segment_%03d.mp3", i))
	}
	return segments, nil
}

// MockFrameExtractor is a mock implementation of FrameExtractor for testing
type MockFrameExtractor struct {
	Frames []driven.Frame

	// Custom behavior hooks (optional)
	ExtractFn func(inputPath, outputDir string, intervalSeconds int) ([]driven.Frame, error)
}

// NewMockFrameExtractor creates a new MockFrameExtractor
func NewMockFrameExtractor() *MockFrameExtractor {
	return &MockFrameExtractor{}
}

func (m *MockFrameExtractor) ExtractFrames(ctx context.Context, inputPath, outputDir string, intervalSeconds int) ([]driven.Frame, error) {
	if m.ExtractFn != nil {
		return m.ExtractFn(inputPath, outputDir, intervalSeconds)
	}
	return m.Frames, nil
}

// MockTranscriber is a mock implementation of Transcriber for testing.
// Transcripts are returned per segment path in call order.
type MockTranscriber struct {
	mu          sync.Mutex
	Transcripts []domain.Transcript
	calls       int
	failNext    bool

	// Custom behavior hooks (optional)
	TranscribeFn func(filePath, languageCode string) (domain.Transcript, error)
}

// NewMockTranscriber creates a new MockTranscriber
func NewMockTranscriber(transcripts ...domain.Transcript) *MockTranscriber {
	return &MockTranscriber{Transcripts: transcripts}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, filePath, languageCode string) (domain.Transcript, error) {
	if m.TranscribeFn != nil {
		return m.TranscribeFn(filePath, languageCode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return domain.Transcript{}, fmt.Errorf("transcription provider unavailable")
	}
	if m.calls >= len(m.Transcripts) {
		return domain.Transcript{}, nil
	}
	t := m.Transcripts[m.calls]
	m.calls++
	return t, nil
}

func (m *MockTranscriber) HealthCheck(ctx context.Context) error {
	return nil
}

// Helper methods for testing

func (m *MockTranscriber) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

// MockVisionService is a mock implementation of VisionService for testing
type MockVisionService struct {
	Captions map[string]string // by image path
	Default  string

	// Custom behavior hooks (optional)
	CaptionFn func(path string) (string, error)
}

// NewMockVisionService creates a new MockVisionService
func NewMockVisionService() *MockVisionService {
	return &MockVisionService{
		Captions: make(map[string]string),
		Default:  "a mock description of the image",
	}
}

func (m *MockVisionService) Caption(ctx context.Context, path string) (string, error) {
	if m.CaptionFn != nil {
		return m.CaptionFn(path)
	}
	if caption, ok := m.Captions[path]; ok {
		return caption, nil
	}
	return m.Default, nil
}

func (m *MockVisionService) HealthCheck(ctx context.Context) error {
	return nil
}
