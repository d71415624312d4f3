package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// TaskType identifies the type of background ingestion task
type TaskType string

const (
	TaskTypeIngestVideo TaskType = "ingest_video"
	TaskTypeIngestAudio TaskType = "ingest_audio"
	TaskTypeIngestImage TaskType = "ingest_image"
	TaskTypeIngestText  TaskType = "ingest_text"
)

// TaskTypeForDocType maps a media type to its ingestion task type.
func TaskTypeForDocType(t DocType) (TaskType, bool) {
	switch t {
	case DocTypeVideo:
		return TaskTypeIngestVideo, true
	case DocTypeAudio:
		return TaskTypeIngestAudio, true
	case DocTypeImage:
		return TaskTypeIngestImage, true
	case DocTypeText:
		return TaskTypeIngestText, true
	}
	return "", false
}

// DocType maps the task type back to the media type it processes.
func (t TaskType) DocType() DocType {
	switch t {
	case TaskTypeIngestVideo:
		return DocTypeVideo
	case TaskTypeIngestAudio:
		return DocTypeAudio
	case TaskTypeIngestImage:
		return DocTypeImage
	default:
		return DocTypeText
	}
}

// QueueName routes a task to its worker queue. Video and image work is
// GPU-bound (frame captioning), everything else runs on the CPU queue.
type QueueName string

const (
	QueueCPU QueueName = "cpu"
	QueueGPU QueueName = "gpu"
)

// Queue returns the queue this task type is routed to.
func (t TaskType) Queue() QueueName {
	switch t {
	case TaskTypeIngestVideo, TaskTypeIngestImage:
		return QueueGPU
	default:
		return QueueCPU
	}
}

// TaskStatus represents the current state of a background task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusReceived   TaskStatus = "received"
	TaskStatusStarted    TaskStatus = "started"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSuccess    TaskStatus = "success"
	TaskStatusFailure    TaskStatus = "failure"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailure
}

// Task represents a background ingestion job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// SourceID is the caller-visible handle for the ingested file
	SourceID string `json:"source_id"`

	// FilePath is where the uploaded file was stored
	FilePath string `json:"file_path"`

	// FileName is the original upload file name
	FileName string `json:"file_name"`

	// Language is the transcription language hint (e.g. "en-IN")
	Language string `json:"language,omitempty"`

	// Metadata carries free-form caller metadata
	Metadata map[string]string `json:"metadata,omitempty"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	// CreatedAt is when the task was enqueued
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last modified
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewIngestTask creates an ingestion task for one uploaded file.
func NewIngestTask(taskType TaskType, sourceID, filePath, fileName string) *Task {
	now := time.Now()
	return &Task{
		ID:          GenerateID(),
		Type:        taskType,
		SourceID:    sourceID,
		FilePath:    filePath,
		FileName:    fileName,
		Status:      TaskStatusPending,
		MaxAttempts: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// MarkStarted updates the task to started state
func (t *Task) MarkStarted() {
	now := time.Now()
	t.Status = TaskStatusStarted
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkSuccess updates the task to the terminal success state
func (t *Task) MarkSuccess() {
	now := time.Now()
	t.Status = TaskStatusSuccess
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailure updates the task to the terminal failure state
func (t *Task) MarkFailure(err string) {
	now := time.Now()
	t.Status = TaskStatusFailure
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = err
}

// TaskState is the ephemeral progress record for one task, written
// incrementally by the orchestrator and read by the status endpoint.
// It lives in the task state channel (redis), not the relational store.
type TaskState struct {
	TaskID          string            `json:"task_id"`
	Status          TaskStatus        `json:"status"`
	Details         string            `json:"details"`
	ProgressPercent float64           `json:"progress_percent"`
	Artifacts       map[string]string `json:"artifacts,omitempty"`
	Errors          string            `json:"errors,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
