package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

func setupTestQueue(t *testing.T, queues ...domain.QueueName) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	if len(queues) == 0 {
		queues = []domain.QueueName{domain.QueueCPU, domain.QueueGPU}
	}
	q, err := NewQueue(client, "test-worker", queues)
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	return q, mr
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewIngestTask(domain.TaskTypeIngestAudio, "src-1", "/data/src-1.mp3", "a.mp3")
	task.Metadata = map[string]string{"course": "cs101"}
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got == nil {
		t.Fatal("dequeued nil task")
	}
	if got.ID != task.ID {
		t.Errorf("task ID = %q, want %q", got.ID, task.ID)
	}
	if got.Status != domain.TaskStatusStarted {
		t.Errorf("status = %q, want started", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.Metadata["course"] != "cs101" {
		t.Errorf("metadata lost: %v", got.Metadata)
	}
}

func TestDequeueEmptyQueue(t *testing.T) {
	q, _ := setupTestQueue(t)

	got, err := q.DequeueWithTimeout(context.Background(), 1)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got != nil {
		t.Errorf("dequeued %+v from empty queue", got)
	}
}

func TestQueueRouting(t *testing.T) {
	// A CPU-only worker must not see GPU tasks.
	q, mr := setupTestQueue(t, domain.QueueCPU)
	ctx := context.Background()

	video := domain.NewIngestTask(domain.TaskTypeIngestVideo, "src-v", "/data/v.mp4", "v.mp4")
	audio := domain.NewIngestTask(domain.TaskTypeIngestAudio, "src-a", "/data/a.mp3", "a.mp3")
	if err := q.Enqueue(ctx, video); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, audio); err != nil {
		t.Fatal(err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got == nil || got.ID != audio.ID {
		t.Fatalf("cpu worker dequeued %+v, want the audio task", got)
	}

	// The video task sits untouched on the gpu stream.
	if !mr.Exists(streamPrefix + "gpu") {
		t.Error("gpu stream missing")
	}
	got, err = q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("cpu worker dequeued gpu task %+v", got)
	}
}

func TestAckMarksSuccess(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewIngestTask(domain.TaskTypeIngestText, "src-1", "/data/a.txt", "a.txt")
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatal(err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if err := q.Ack(ctx, task.ID); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	got, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != domain.TaskStatusSuccess {
		t.Errorf("status = %q, want success", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("completed timestamp not set")
	}

	// Acked task is gone from the stream.
	if task2, _ := q.DequeueWithTimeout(ctx, 1); task2 != nil {
		t.Errorf("acked task redelivered: %+v", task2)
	}
}

func TestNackExhaustedMarksFailure(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	// MaxAttempts is 1, so a single nack is terminal.
	task := domain.NewIngestTask(domain.TaskTypeIngestAudio, "src-1", "/data/a.mp3", "a.mp3")
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatal(err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if err := q.Nack(ctx, task.ID, "transcription failed"); err != nil {
		t.Fatalf("Nack failed: %v", err)
	}

	got, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TaskStatusFailure {
		t.Errorf("status = %q, want failure", got.Status)
	}
	if got.Error != "transcription failed" {
		t.Errorf("error = %q", got.Error)
	}

	if task2, _ := q.DequeueWithTimeout(ctx, 1); task2 != nil {
		t.Errorf("exhausted task redelivered: %+v", task2)
	}
}

func TestNackWithRetriesRequeues(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewIngestTask(domain.TaskTypeIngestAudio, "src-1", "/data/a.mp3", "a.mp3")
	task.MaxAttempts = 2
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatal(err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := q.Nack(ctx, task.ID, "transient failure"); err != nil {
		t.Fatalf("Nack failed: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != task.ID {
		t.Fatalf("retried task not redelivered, got %+v", got)
	}
	if got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.Attempts)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	q, _ := setupTestQueue(t)

	_, err := q.GetTask(context.Background(), "no-such-task")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
