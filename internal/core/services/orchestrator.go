package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driving"
	"github.com/overtone-labs/overtone-core/internal/runtime"
)

// indexWriterLock is the distributed lock name guarding all vector index
// mutations. Exactly one process may run load-mutate-persist at a time.
const indexWriterLock = "vector-index-writer"

// lockRetryMaxDelay caps the backoff between lock acquisition attempts.
const lockRetryMaxDelay = 5 * time.Second

// Ensure IngestionOrchestrator implements the driving port
var _ driving.IngestionOrchestrator = (*IngestionOrchestrator)(nil)

// IngestionOrchestrator drives one source file through the ingestion
// pipeline: prepare -> transcribe -> chunk -> embed -> link -> persist,
// plus the visual stage for video. It owns the consistency contract
// between the vector index and the metadata store: a document is marked
// completed in the same transaction that links all of its chunks, and is
// marked failed on any stage error with no chunk rows committed.
type IngestionOrchestrator struct {
	documentStore driven.DocumentStore
	index         driven.VectorIndex
	chunker       *TextChunker
	audio         driven.AudioProcessor
	frames        driven.FrameExtractor
	services      *runtime.Services
	taskStates    driven.TaskStateStore
	lock          driven.DistributedLock
	logger        *slog.Logger

	transcriptDir   string
	frameDir        string
	segmentSeconds  int
	frameInterval   int
	defaultLanguage string
	lockTTL         time.Duration
	lockRetryDelay  time.Duration
}

// OrchestratorConfig holds dependencies for IngestionOrchestrator.
type OrchestratorConfig struct {
	DocumentStore driven.DocumentStore
	Index         driven.VectorIndex
	Chunker       *TextChunker
	Audio         driven.AudioProcessor
	Frames        driven.FrameExtractor
	Services      *runtime.Services
	TaskStates    driven.TaskStateStore
	Lock          driven.DistributedLock
	Logger        *slog.Logger

	// TranscriptDir receives prepared audio, segments, and the combined
	// transcript artifact.
	TranscriptDir string

	// FrameDir receives extracted video frames, one subdirectory per source.
	FrameDir string

	// SegmentSeconds is the audio segment duration. It must stay strictly
	// under the transcription provider's 30s per-request limit.
	SegmentSeconds int

	// FrameIntervalSeconds is the sampling interval for video frames.
	FrameIntervalSeconds int

	// DefaultLanguage is the transcription language when the task has none.
	DefaultLanguage string

	// LockTTL bounds how long the index writer lock is held before expiry.
	// The lease is extended while the locked section runs.
	LockTTL time.Duration

	// LockRetryDelay is the initial wait between attempts to take a busy
	// writer lock. It doubles per attempt up to a cap.
	LockRetryDelay time.Duration
}

// NewIngestionOrchestrator creates an orchestrator.
func NewIngestionOrchestrator(cfg OrchestratorConfig) *IngestionOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	segmentSeconds := cfg.SegmentSeconds
	if segmentSeconds <= 0 || segmentSeconds >= 30 {
		segmentSeconds = 29
	}
	frameInterval := cfg.FrameIntervalSeconds
	if frameInterval <= 0 {
		frameInterval = 7
	}
	language := cfg.DefaultLanguage
	if language == "" {
		language = "en-IN"
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	lockRetryDelay := cfg.LockRetryDelay
	if lockRetryDelay <= 0 {
		lockRetryDelay = 250 * time.Millisecond
	}

	return &IngestionOrchestrator{
		documentStore:   cfg.DocumentStore,
		index:           cfg.Index,
		chunker:         cfg.Chunker,
		audio:           cfg.Audio,
		frames:          cfg.Frames,
		services:        cfg.Services,
		taskStates:      cfg.TaskStates,
		lock:            cfg.Lock,
		logger:          logger,
		transcriptDir:   cfg.TranscriptDir,
		frameDir:        cfg.FrameDir,
		segmentSeconds:  segmentSeconds,
		frameInterval:   frameInterval,
		defaultLanguage: language,
		lockTTL:         lockTTL,
		lockRetryDelay:  lockRetryDelay,
	}
}

// Process runs the pipeline for one task to success or failure.
// The returned artifacts map is surfaced through the task status API.
func (o *IngestionOrchestrator) Process(ctx context.Context, task *domain.Task) (map[string]string, error) {
	docType := task.Type.DocType()
	logger := o.logger.With("task_id", task.ID, "source_id", task.SourceID, "doc_type", docType)
	logger.Info("starting ingestion pipeline")

	// The document row is committed before any heavy processing so a crash
	// mid-pipeline still leaves a traceable record.
	doc := domain.NewDocument(task.SourceID, task.FileName, docType, task.FilePath)
	if err := o.documentStore.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	artifacts := make(map[string]string)
	run := func() error {
		switch {
		case docType.HasAudioTrack():
			return o.runAudioPipeline(ctx, task, doc, artifacts)
		case docType == domain.DocTypeImage:
			return o.runImagePipeline(ctx, task, doc, artifacts)
		default:
			return o.runTextPipeline(ctx, task, doc, artifacts)
		}
	}

	if err := run(); err != nil {
		logger.Error("ingestion failed", "error", err)

		// Only the status flips to failed; no chunk rows were committed.
		// Vectors already added to the index are not retracted - they
		// become orphans, a documented limitation of the append-only index.
		// The failure record must land even when the pipeline died of a
		// canceled or expired context.
		failCtx := context.WithoutCancel(ctx)
		if markErr := o.documentStore.MarkFailed(failCtx, doc.ID); markErr != nil {
			logger.Error("failed to mark document failed", "error", markErr)
		}
		o.progress(failCtx, task.ID, domain.TaskStatusFailure, err.Error(), 0, artifacts)
		return artifacts, err
	}

	logger.Info("ingestion completed", "document_id", doc.ID)
	return artifacts, nil
}

// runAudioPipeline handles audio and video sources.
func (o *IngestionOrchestrator) runAudioPipeline(ctx context.Context, task *domain.Task, doc *domain.Document, artifacts map[string]string) error {
	embedder := o.services.EmbeddingService()
	transcriber := o.services.Transcriber()
	if embedder == nil || transcriber == nil {
		return fmt.Errorf("%w: embedding and transcription services are required", domain.ErrServiceUnavailable)
	}

	// Stage: normalize audio.
	o.progress(ctx, task.ID, domain.TaskStatusProcessing, "Extracting and standardizing audio", 10, artifacts)
	prepared, err := o.audio.Prepare(ctx, task.FilePath, o.transcriptDir, task.SourceID)
	if err != nil {
		return fmt.Errorf("audio preparation failed: %w", err)
	}

	// Stage: segment audio under the provider's duration limit.
	o.progress(ctx, task.ID, domain.TaskStatusProcessing, "Splitting audio into segments", 20, artifacts)
	segments, err := o.audio.Segment(ctx, prepared, o.transcriptDir, o.segmentSeconds)
	if err != nil {
		return fmt.Errorf("audio segmentation failed: %w", err)
	}
	if len(segments) == 0 {
		return fmt.Errorf("audio segmentation produced no segments")
	}

	// Stage: transcribe each segment sequentially. An empty segment
	// transcript contributes nothing but does not abort the document.
	language := task.Language
	if language == "" {
		language = o.defaultLanguage
	}
	var combined domain.Transcript
	for i, segment := range segments {
		percent := 40 + float64(i)/float64(len(segments))*10
		o.progress(ctx, task.ID, domain.TaskStatusProcessing,
			fmt.Sprintf("Transcribing segment %d/%d", i+1, len(segments)), percent, artifacts)

		transcript, err := transcriber.Transcribe(ctx, segment, language)
		if err != nil {
			return fmt.Errorf("transcription failed for segment %d/%d: %w", i+1, len(segments), err)
		}

		// Providers return times relative to the submitted segment; shift
		// them onto the recording's timeline. A provider that returns bare
		// text gets one synthetic segment spanning the whole piece.
		if transcript.Text != "" && len(transcript.Segments) == 0 {
			transcript.Segments = []domain.Segment{
				{Text: transcript.Text, Start: 0, End: float64(o.segmentSeconds)},
			}
		}
		offset := float64(i * o.segmentSeconds)
		for j := range transcript.Segments {
			transcript.Segments[j].Start += offset
			transcript.Segments[j].End += offset
		}
		combined.Append(transcript)
	}
	if combined.Empty() {
		return fmt.Errorf("%w: no segment produced text", domain.ErrEmptyTranscript)
	}

	if path, err := o.writeTranscriptArtifact(task.SourceID, combined); err != nil {
		o.logger.Warn("failed to write transcript artifact", "error", err)
	} else {
		artifacts["transcript_path"] = path
	}

	// Stage: chunk and embed.
	o.progress(ctx, task.ID, domain.TaskStatusProcessing, "Chunking and embedding transcript", 55, artifacts)
	timedChunks := o.chunker.ChunkTranscript(combined)
	if len(timedChunks) == 0 {
		return fmt.Errorf("%w: transcript could not be chunked", domain.ErrEmptyTranscript)
	}

	texts := make([]string, len(timedChunks))
	for i, c := range timedChunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	// Stage: visual analysis for video. Runs before the writer lock so the
	// slow caption calls never hold up other writers.
	var visual *visualStageResult
	if doc.DocType == domain.DocTypeVideo {
		visual, err = o.runVisualStage(ctx, task, artifacts)
		if err != nil {
			return err
		}
	}

	// All index mutations for this document run under the writer lock,
	// kept as narrow as Add + finalize.
	release, err := o.acquireIndexLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	vectorIDs, err := o.index.Add(ctx, vectors)
	if err != nil {
		return fmt.Errorf("failed to add vectors to index: %w", err)
	}

	chunks := make([]*domain.TextChunk, len(timedChunks))
	for i, c := range timedChunks {
		start, end := c.Start, c.End
		chunks[i] = &domain.TextChunk{
			DocumentID:  doc.ID,
			VectorID:    vectorIDs[i],
			TextContent: c.Text,
			StartTime:   &start,
			EndTime:     &end,
		}
	}

	if visual != nil {
		frameIDs, err := o.index.Add(ctx, visual.vectors)
		if err != nil {
			return fmt.Errorf("failed to add caption vectors: %w", err)
		}
		for i, caption := range visual.captions {
			start, end := visual.timestamps[i], visual.timestamps[i]
			chunks = append(chunks, &domain.TextChunk{
				DocumentID:  doc.ID,
				VectorID:    frameIDs[i],
				TextContent: caption,
				StartTime:   &start,
				EndTime:     &end,
			})
		}
		artifacts["visual_count"] = fmt.Sprintf("%d", len(visual.captions))
	}

	return o.finalize(ctx, task, doc, chunks, artifacts)
}

// visualStageResult carries captioned, embedded frames staged for indexing.
type visualStageResult struct {
	captions   []string
	timestamps []float64
	vectors    [][]float32
}

// runVisualStage extracts, captions, and embeds video frames. The resulting
// vectors are staged for the caller to add under the index writer lock; a
// frame chunk's start and end times are both the frame's timestamp.
func (o *IngestionOrchestrator) runVisualStage(ctx context.Context, task *domain.Task, artifacts map[string]string) (*visualStageResult, error) {
	vision := o.services.VisionService()
	if vision == nil {
		return nil, fmt.Errorf("%w: vision service is required for video", domain.ErrServiceUnavailable)
	}
	embedder := o.services.EmbeddingService()

	o.progress(ctx, task.ID, domain.TaskStatusProcessing, "Extracting video frames", 70, artifacts)
	frameOutputDir := filepath.Join(o.frameDir, task.SourceID)
	frames, err := o.frames.ExtractFrames(ctx, task.FilePath, frameOutputDir, o.frameInterval)
	if err != nil {
		return nil, fmt.Errorf("frame extraction failed: %w", err)
	}
	artifacts["frames_dir"] = frameOutputDir
	if len(frames) == 0 {
		return nil, nil
	}

	o.progress(ctx, task.ID, domain.TaskStatusProcessing, "Captioning video frames", 80, artifacts)
	captions := make([]string, 0, len(frames))
	timestamps := make([]float64, 0, len(frames))
	for _, frame := range frames {
		caption, err := vision.Caption(ctx, frame.Path)
		if err != nil {
			return nil, fmt.Errorf("frame captioning failed for %s: %w", filepath.Base(frame.Path), err)
		}
		if caption == "" {
			continue
		}
		captions = append(captions, caption)
		timestamps = append(timestamps, frame.Timestamp)
	}
	if len(captions) == 0 {
		return nil, nil
	}

	vectors, err := embedder.Embed(ctx, captions)
	if err != nil {
		return nil, fmt.Errorf("caption embedding failed: %w", err)
	}
	return &visualStageResult{captions: captions, timestamps: timestamps, vectors: vectors}, nil
}

// runImagePipeline is the reduced caption -> embed -> link variant.
func (o *IngestionOrchestrator) runImagePipeline(ctx context.Context, task *domain.Task, doc *domain.Document, artifacts map[string]string) error {
	embedder := o.services.EmbeddingService()
	vision := o.services.VisionService()
	if embedder == nil || vision == nil {
		return fmt.Errorf("%w: embedding and vision services are required", domain.ErrServiceUnavailable)
	}

	o.progress(ctx, task.ID, domain.TaskStatusProcessing, "Analyzing image", 30, artifacts)
	caption, err := vision.Caption(ctx, task.FilePath)
	if err != nil {
		return fmt.Errorf("image captioning failed: %w", err)
	}
	if caption == "" {
		return fmt.Errorf("image captioning produced no description")
	}

	o.progress(ctx, task.ID, domain.TaskStatusProcessing, "Embedding image description", 60, artifacts)
	vectors, err := embedder.Embed(ctx, []string{caption})
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	release, err := o.acquireIndexLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	vectorIDs, err := o.index.Add(ctx, vectors)
	if err != nil {
		return fmt.Errorf("failed to add vectors to index: %w", err)
	}

	chunks := []*domain.TextChunk{{
		DocumentID:  doc.ID,
		VectorID:    vectorIDs[0],
		TextContent: caption,
	}}
	return o.finalize(ctx, task, doc, chunks, artifacts)
}

// runTextPipeline is the reduced read -> chunk -> embed -> link variant.
func (o *IngestionOrchestrator) runTextPipeline(ctx context.Context, task *domain.Task, doc *domain.Document, artifacts map[string]string) error {
	embedder := o.services.EmbeddingService()
	if embedder == nil {
		return fmt.Errorf("%w: embedding service is required", domain.ErrServiceUnavailable)
	}

	o.progress(ctx, task.ID, domain.TaskStatusProcessing, "Reading text file", 20, artifacts)
	content, err := os.ReadFile(task.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read text file: %w", err)
	}

	o.progress(ctx, task.ID, domain.TaskStatusProcessing, "Chunking and embedding text", 50, artifacts)
	texts := o.chunker.Chunk(string(content))
	if len(texts) == 0 {
		return fmt.Errorf("text file contained no chunkable content")
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	release, err := o.acquireIndexLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	vectorIDs, err := o.index.Add(ctx, vectors)
	if err != nil {
		return fmt.Errorf("failed to add vectors to index: %w", err)
	}

	chunks := make([]*domain.TextChunk, len(texts))
	for i, text := range texts {
		chunks[i] = &domain.TextChunk{
			DocumentID:  doc.ID,
			VectorID:    vectorIDs[i],
			TextContent: text,
		}
	}
	return o.finalize(ctx, task, doc, chunks, artifacts)
}

// finalize marks the document completed and links all staged chunks in one
// transaction, then persists the index. A reader can never observe a
// completed document with missing chunks. Caller must hold the writer lock.
func (o *IngestionOrchestrator) finalize(ctx context.Context, task *domain.Task, doc *domain.Document, chunks []*domain.TextChunk, artifacts map[string]string) error {
	o.progress(ctx, task.ID, domain.TaskStatusProcessing, "Saving index and finalizing record", 95, artifacts)

	if err := o.documentStore.Complete(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("failed to finalize document: %w", err)
	}
	if err := o.index.Save(ctx); err != nil {
		// The document is already committed as completed; an unsaved index
		// is recovered on the next successful Save, so surface but do not
		// unwind the completion.
		return fmt.Errorf("failed to persist vector index: %w", err)
	}

	artifacts["vector_count"] = fmt.Sprintf("%d", o.index.Size())
	artifacts["metadata_count"] = fmt.Sprintf("%d", len(chunks))
	return nil
}

// acquireIndexLock takes the single-writer lock for the vector index,
// waiting with backoff while another writer holds it. Once acquired it
// reloads the index from disk so this writer assigns ordinal IDs after the
// previous holder's vectors, and keeps the lease extended until release.
func (o *IngestionOrchestrator) acquireIndexLock(ctx context.Context) (func(), error) {
	token, err := o.waitForIndexLock(ctx)
	if err != nil {
		return nil, err
	}

	// Without this refresh, a writer whose in-memory view predates the
	// previous holder's Save would reuse its vector IDs and clobber its
	// persisted index file.
	if err := o.index.Refresh(ctx); err != nil {
		if relErr := o.lock.Release(context.WithoutCancel(ctx), indexWriterLock, token); relErr != nil {
			o.logger.Warn("failed to release index lock", "error", relErr)
		}
		return nil, fmt.Errorf("failed to refresh index under writer lock: %w", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go o.keepLockAlive(ctx, token, stop, done)

	return func() {
		close(stop)
		<-done
		if err := o.lock.Release(context.WithoutCancel(ctx), indexWriterLock, token); err != nil {
			o.logger.Warn("failed to release index lock", "error", err)
		}
	}, nil
}

// waitForIndexLock polls Acquire with doubling backoff until the lock is
// free or ctx expires.
func (o *IngestionOrchestrator) waitForIndexLock(ctx context.Context) (string, error) {
	delay := o.lockRetryDelay
	for attempt := 1; ; attempt++ {
		token, err := o.lock.Acquire(ctx, indexWriterLock, o.lockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to acquire index lock: %w", err)
		}
		if token != "" {
			return token, nil
		}

		if attempt == 1 {
			o.logger.Info("index writer lock busy, waiting", "retry_delay", delay)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", domain.ErrIndexLocked, ctx.Err())
		case <-time.After(delay):
		}
		if delay < lockRetryMaxDelay {
			delay *= 2
		}
	}
}

// keepLockAlive re-extends the lock lease at a third of its TTL so a locked
// section that outlasts the TTL does not silently lose the lock.
func (o *IngestionOrchestrator) keepLockAlive(ctx context.Context, token string, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(o.lockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.lock.Extend(ctx, indexWriterLock, token, o.lockTTL); err != nil {
				o.logger.Warn("failed to extend index lock", "error", err)
			}
		}
	}
}

// progress writes one advisory progress event to the task state channel.
func (o *IngestionOrchestrator) progress(ctx context.Context, taskID string, status domain.TaskStatus, details string, percent float64, artifacts map[string]string) {
	state := &domain.TaskState{
		TaskID:          taskID,
		Status:          status,
		Details:         details,
		ProgressPercent: percent,
		UpdatedAt:       time.Now(),
	}
	if len(artifacts) > 0 {
		state.Artifacts = artifacts
	}
	if status == domain.TaskStatusFailure {
		state.Errors = details
	}
	if err := o.taskStates.Set(ctx, state); err != nil {
		o.logger.Warn("failed to report task progress", "task_id", taskID, "error", err)
	}
}

// writeTranscriptArtifact saves the combined transcript as JSON next to the
// prepared audio.
func (o *IngestionOrchestrator) writeTranscriptArtifact(sourceID string, t domain.Transcript) (string, error) {
	if err := os.MkdirAll(o.transcriptDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(o.transcriptDir, sourceID+"_transcript.json")
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
