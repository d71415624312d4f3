package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driving"
)

// Ensure IngestionService implements the driving port
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService accepts uploads, stores them, and enqueues the matching
// ingestion task. All input validation happens here, synchronously, before
// anything is queued; workers can assume a well-formed task.
type IngestionService struct {
	queue      driven.TaskQueue
	taskStates driven.TaskStateStore
	uploadDir  string
	logger     *slog.Logger
}

// NewIngestionService creates an ingestion submission service.
func NewIngestionService(queue driven.TaskQueue, taskStates driven.TaskStateStore, uploadDir string, logger *slog.Logger) *IngestionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionService{
		queue:      queue,
		taskStates: taskStates,
		uploadDir:  uploadDir,
		logger:     logger,
	}
}

// Submit validates the request, persists the upload, and enqueues the task.
func (s *IngestionService) Submit(ctx context.Context, req driving.IngestRequest) (*driving.IngestReceipt, error) {
	if !req.DocType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMediaType, req.DocType)
	}
	if req.FileName == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrInvalidInput)
	}
	if req.Content == nil {
		return nil, fmt.Errorf("%w: upload content is required", domain.ErrInvalidInput)
	}

	metadata, err := parseMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	taskType, ok := domain.TaskTypeForDocType(req.DocType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMediaType, req.DocType)
	}

	sourceID := req.SourceID
	if sourceID == "" {
		sourceID = uuid.NewString()
	}

	// The upload is stored under its source ID so the worker can locate it
	// without a directory listing, keeping the original extension for the
	// media tooling.
	storagePath, err := s.storeUpload(sourceID, req.FileName, req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	task := domain.NewIngestTask(taskType, sourceID, storagePath, req.FileName)
	task.Language = req.Language
	task.Metadata = metadata

	if err := s.queue.Enqueue(ctx, task); err != nil {
		// The stored file is removed so a failed enqueue leaves no trace.
		if rmErr := os.Remove(storagePath); rmErr != nil {
			s.logger.Warn("failed to remove stored upload after enqueue failure", "path", storagePath, "error", rmErr)
		}
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	if err := s.taskStates.Set(ctx, &domain.TaskState{
		TaskID:          task.ID,
		Status:          domain.TaskStatusPending,
		Details:         "Task queued for processing",
		ProgressPercent: 0,
		UpdatedAt:       time.Now(),
	}); err != nil {
		s.logger.Warn("failed to record initial task state", "task_id", task.ID, "error", err)
	}

	s.logger.Info("ingestion task queued",
		"task_id", task.ID,
		"source_id", sourceID,
		"doc_type", req.DocType,
		"queue", taskType.Queue(),
	)

	return &driving.IngestReceipt{
		TaskID:    task.ID,
		SourceID:  sourceID,
		StatusURL: "/api/v1/tasks/" + task.ID,
		Message:   "File accepted for processing",
	}, nil
}

// storeUpload writes the payload to uploadDir as <sourceID><ext>.
func (s *IngestionService) storeUpload(sourceID, fileName string, content io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.uploadDir, sourceID+filepath.Ext(fileName))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// parseMetadata validates the raw metadata payload as a flat JSON object.
func parseMetadata(raw string) (map[string]string, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: metadata must be a JSON object: %v", domain.ErrInvalidInput, err)
	}
	metadata := make(map[string]string, len(parsed))
	for k, v := range parsed {
		metadata[k] = fmt.Sprintf("%v", v)
	}
	return metadata, nil
}
