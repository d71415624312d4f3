package domain

import (
	"testing"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == "" || id2 == "" {
		t.Error("expected non-empty IDs")
	}
	if id1 == id2 {
		t.Error("expected unique IDs")
	}
	// Base64 URL encoding of 16 bytes = 22 chars
	if len(id1) != 22 {
		t.Errorf("expected ID length 22, got %d", len(id1))
	}
}

func TestNewIngestTask(t *testing.T) {
	task := NewIngestTask(TaskTypeIngestAudio, "src-1", "/data/uploads/src-1.mp3", "meeting.mp3")

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypeIngestAudio {
		t.Errorf("expected type %s, got %s", TaskTypeIngestAudio, task.Type)
	}
	if task.SourceID != "src-1" {
		t.Errorf("expected source ID src-1, got %s", task.SourceID)
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Attempts != 0 {
		t.Errorf("expected attempts 0, got %d", task.Attempts)
	}
	if task.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestTaskType_Queue(t *testing.T) {
	tests := []struct {
		taskType TaskType
		queue    QueueName
	}{
		{TaskTypeIngestVideo, QueueGPU},
		{TaskTypeIngestImage, QueueGPU},
		{TaskTypeIngestAudio, QueueCPU},
		{TaskTypeIngestText, QueueCPU},
	}

	for _, tt := range tests {
		if got := tt.taskType.Queue(); got != tt.queue {
			t.Errorf("%s: expected queue %s, got %s", tt.taskType, tt.queue, got)
		}
	}
}

func TestTaskTypeForDocType(t *testing.T) {
	for _, docType := range []DocType{DocTypeVideo, DocTypeAudio, DocTypeImage, DocTypeText} {
		taskType, ok := TaskTypeForDocType(docType)
		if !ok {
			t.Errorf("expected task type for %s", docType)
		}
		if taskType.DocType() != docType {
			t.Errorf("round trip failed: %s -> %s -> %s", docType, taskType, taskType.DocType())
		}
	}

	if _, ok := TaskTypeForDocType(DocType("hologram")); ok {
		t.Error("expected no task type for unknown doc type")
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewIngestTask(TaskTypeIngestVideo, "src-2", "/data/uploads/src-2.mp4", "talk.mp4")

	task.MarkStarted()
	if task.Status != TaskStatusStarted {
		t.Errorf("expected status started, got %s", task.Status)
	}
	if task.Attempts != 1 {
		t.Errorf("expected attempts 1, got %d", task.Attempts)
	}
	if task.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}

	task.MarkSuccess()
	if task.Status != TaskStatusSuccess {
		t.Errorf("expected status success, got %s", task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if !task.Status.Terminal() {
		t.Error("expected success to be terminal")
	}
}

func TestTask_MarkFailure(t *testing.T) {
	task := NewIngestTask(TaskTypeIngestAudio, "src-3", "/data/uploads/src-3.wav", "call.wav")
	task.MarkStarted()
	task.MarkFailure("transcription failed")

	if task.Status != TaskStatusFailure {
		t.Errorf("expected status failure, got %s", task.Status)
	}
	if task.Error != "transcription failed" {
		t.Errorf("expected error message, got %q", task.Error)
	}
	if !task.Status.Terminal() {
		t.Error("expected failure to be terminal")
	}
	if task.CanRetry() {
		t.Error("expected no retries with default max attempts")
	}
}
