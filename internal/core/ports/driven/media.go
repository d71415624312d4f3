package driven

import (
	"context"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

// AudioProcessor prepares media files for transcription.
type AudioProcessor interface {
	// Prepare extracts the audio track, downmixes to mono at the sample rate
	// the transcription provider expects, and writes the result under
	// outputDir. Returns the path of the prepared file.
	Prepare(ctx context.Context, inputPath, outputDir, sourceID string) (string, error)

	// Segment splits a prepared audio file into fixed-duration pieces
	// strictly under the transcription provider's per-request limit.
	// Returns the segment paths in playback order.
	Segment(ctx context.Context, inputPath, outputDir string, segmentSeconds int) ([]string, error)
}

// Frame is one still image sampled from a video.
type Frame struct {
	Path string
	// Timestamp is the frame's position in the video, in seconds, derived
	// from the sequence number in its generated file name.
	Timestamp float64
}

// FrameExtractor samples still frames from a video at a fixed interval.
type FrameExtractor interface {
	// ExtractFrames writes one JPEG per interval to outputDir and returns
	// the frames in timestamp order.
	ExtractFrames(ctx context.Context, inputPath, outputDir string, intervalSeconds int) ([]Frame, error)
}

// Transcriber converts one audio segment to text.
type Transcriber interface {
	// Transcribe submits a single audio file and returns its transcript.
	// An empty transcript is a valid result, not an error.
	Transcribe(ctx context.Context, filePath, languageCode string) (domain.Transcript, error)

	// HealthCheck verifies the transcription provider is reachable.
	HealthCheck(ctx context.Context) error
}

// VisionService generates text descriptions of images.
type VisionService interface {
	// Caption returns an objective description of the image at path.
	Caption(ctx context.Context, path string) (string, error)

	// HealthCheck verifies the vision provider is reachable.
	HealthCheck(ctx context.Context) error
}
