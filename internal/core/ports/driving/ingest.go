package driving

import (
	"context"
	"io"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

// IngestRequest is one media upload accepted for asynchronous processing.
type IngestRequest struct {
	// DocType is the declared media type of the upload.
	DocType domain.DocType

	// FileName is the original upload file name.
	FileName string

	// Content is the upload payload.
	Content io.Reader

	// SourceID optionally fixes the caller-visible handle; generated when empty.
	SourceID string

	// Language is the optional transcription language hint (e.g. "en-IN").
	Language string

	// Metadata is the raw JSON metadata object from the request ("{}" when absent).
	Metadata string
}

// IngestReceipt acknowledges a queued ingestion.
type IngestReceipt struct {
	TaskID    string `json:"task_id"`
	SourceID  string `json:"source_id"`
	StatusURL string `json:"status_url"`
	Message   string `json:"message"`
}

// IngestionService accepts media uploads and queues them for processing
type IngestionService interface {
	// Submit validates the request, stores the upload, and enqueues the
	// matching ingestion task. Input errors are rejected synchronously,
	// before anything is queued.
	Submit(ctx context.Context, req IngestRequest) (*IngestReceipt, error)
}

// IngestionOrchestrator drives one queued task through the full pipeline
type IngestionOrchestrator interface {
	// Process runs the pipeline for one task to success or failure,
	// reporting progress through the task state channel.
	Process(ctx context.Context, task *domain.Task) (map[string]string, error)
}
