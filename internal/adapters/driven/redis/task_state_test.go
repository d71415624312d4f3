package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestTaskStateSetGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewTaskStateStore(client, time.Hour)
	ctx := context.Background()

	state := &domain.TaskState{
		TaskID:          "task-1",
		Status:          domain.TaskStatusProcessing,
		Details:         "Transcribing segment 3/7",
		ProgressPercent: 44.3,
		Artifacts:       map[string]string{"transcript_path": "/data/t.json"},
		UpdatedAt:       time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Set(ctx, state); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.TaskStatusProcessing || got.ProgressPercent != 44.3 {
		t.Errorf("state mismatch: %+v", got)
	}
	if got.Artifacts["transcript_path"] != "/data/t.json" {
		t.Errorf("artifacts lost: %v", got.Artifacts)
	}
}

func TestTaskStateOverwrite(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewTaskStateStore(client, time.Hour)
	ctx := context.Background()

	for _, pct := range []float64{10, 55, 95} {
		if err := store.Set(ctx, &domain.TaskState{
			TaskID:          "task-1",
			Status:          domain.TaskStatusProcessing,
			ProgressPercent: pct,
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ProgressPercent != 95 {
		t.Errorf("progress = %v, want the latest write (95)", got.ProgressPercent)
	}
}

func TestTaskStateNotFound(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewTaskStateStore(client, time.Hour)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestTaskStateExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewTaskStateStore(client, time.Minute)
	ctx := context.Background()

	if err := store.Set(ctx, &domain.TaskState{
		TaskID: "task-1",
		Status: domain.TaskStatusSuccess,
	}); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "task-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expired state still present: %v", err)
	}
}
