// Package media shells out to ffmpeg for audio preparation, segmenting
// and frame extraction. ffmpeg must be on PATH; construction fails fast
// when it is not.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// Ensure FFmpeg implements the media ports
var (
	_ driven.AudioProcessor = (*FFmpeg)(nil)
	_ driven.FrameExtractor = (*FFmpeg)(nil)
)

const (
	// transcriptionSampleRate is the sample rate the speech-to-text
	// provider expects.
	transcriptionSampleRate = 16000

	framePattern = "frame_%04d.jpg"
)

// FFmpeg implements AudioProcessor and FrameExtractor by invoking the
// ffmpeg binary.
type FFmpeg struct {
	binary string
}

// NewFFmpeg locates ffmpeg on PATH.
func NewFFmpeg() (*FFmpeg, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found on PATH: %w", err)
	}
	return &FFmpeg{binary: path}, nil
}

// Prepare extracts the audio track from inputPath, downmixed to mono at
// 16kHz, and writes it as <sourceID>_audio.mp3 under outputDir.
func (f *FFmpeg) Prepare(ctx context.Context, inputPath, outputDir, sourceID string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, sourceID+"_audio.mp3")

	err := f.run(ctx,
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(transcriptionSampleRate),
		"-y",
		outputPath,
	)
	if err != nil {
		return "", fmt.Errorf("audio extraction failed: %w", err)
	}
	return outputPath, nil
}

// Segment splits a prepared audio file into segmentSeconds pieces using
// ffmpeg's segment muxer. Returns the segment paths in playback order.
func (f *FFmpeg) Segment(ctx context.Context, inputPath, outputDir string, segmentSeconds int) ([]string, error) {
	if segmentSeconds <= 0 {
		return nil, fmt.Errorf("segment duration must be positive, got %d", segmentSeconds)
	}
	segmentDir := filepath.Join(outputDir, "segments")
	if err := os.MkdirAll(segmentDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create segment directory: %w", err)
	}

	err := f.run(ctx,
		"-i", inputPath,
		"-f", "segment",
		"-segment_time", strconv.Itoa(segmentSeconds),
		"-c", "copy",
		"-y",
		filepath.Join(segmentDir, "segment_%04d.mp3"),
	)
	if err != nil {
		return nil, fmt.Errorf("audio segmenting failed: %w", err)
	}

	entries, err := os.ReadDir(segmentDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	var segments []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "segment_") {
			continue
		}
		segments = append(segments, filepath.Join(segmentDir, entry.Name()))
	}
	// ReadDir sorts lexically; the zero-padded names keep that in
	// playback order, but be explicit about it.
	sort.Strings(segments)
	return segments, nil
}

// ExtractFrames samples one JPEG every intervalSeconds from the video at
// inputPath. Frame timestamps are derived from the sequence number and
// the sampling interval.
func (f *FFmpeg) ExtractFrames(ctx context.Context, inputPath, outputDir string, intervalSeconds int) ([]driven.Frame, error) {
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("frame interval must be positive, got %d", intervalSeconds)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}

	err := f.run(ctx,
		"-i", inputPath,
		"-vf", fmt.Sprintf("fps=1/%d", intervalSeconds),
		"-q:v", "2",
		"-y",
		filepath.Join(outputDir, framePattern),
	)
	if err != nil {
		return nil, fmt.Errorf("frame extraction failed: %w", err)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "frame_") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	frames := make([]driven.Frame, 0, len(names))
	for _, name := range names {
		seq, err := frameSequence(name)
		if err != nil {
			continue
		}
		frames = append(frames, driven.Frame{
			Path: filepath.Join(outputDir, name),
			// ffmpeg numbers output frames from 1; the first sampled
			// frame sits at t=0.
			Timestamp: float64((seq - 1) * intervalSeconds),
		})
	}
	return frames, nil
}

// frameSequence parses the sequence number out of a generated frame file
// name such as "frame_0003.jpg".
func frameSequence(name string) (int, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	num := strings.TrimPrefix(base, "frame_")
	seq, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("unexpected frame name %q: %w", name, err)
	}
	return seq, nil
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := lastLine(stderr.String())
		if detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
		return err
	}
	return nil
}

// lastLine returns the final non-empty line of ffmpeg's stderr, which
// usually carries the actual failure reason.
func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
