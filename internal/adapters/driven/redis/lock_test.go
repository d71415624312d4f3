package redis

import (
	"context"
	"testing"
	"time"
)

func TestLockAcquireRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	lock := NewLock(client)
	token, err := lock.Acquire(ctx, "index-writer", time.Minute)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if token == "" {
		t.Fatal("fresh lock not acquired")
	}

	// Second instance cannot take the held lock.
	other := NewLock(client)
	otherToken, err := other.Acquire(ctx, "index-writer", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if otherToken != "" {
		t.Fatal("held lock acquired by second instance")
	}

	if err := lock.Release(ctx, "index-writer", token); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	otherToken, err = other.Acquire(ctx, "index-writer", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if otherToken == "" {
		t.Error("released lock not acquirable")
	}
}

func TestLockReleaseRequiresMatchingToken(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	lock := NewLock(client)
	token, _ := lock.Acquire(ctx, "index-writer", time.Minute)
	if token == "" {
		t.Fatal("setup: acquire failed")
	}

	// A release under the wrong token is a silent no-op; the lock stays held.
	if err := lock.Release(ctx, "index-writer", token+"x"); err != nil {
		t.Fatalf("mismatched Release errored: %v", err)
	}
	if got, _ := lock.Acquire(ctx, "index-writer", time.Minute); got != "" {
		t.Error("lock was released under a mismatched token")
	}
}

func TestLockExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock := NewLock(client)
	if token, _ := lock.Acquire(ctx, "index-writer", time.Minute); token == "" {
		t.Fatal("setup: acquire failed")
	}

	mr.FastForward(2 * time.Minute)

	other := NewLock(client)
	token, err := other.Acquire(ctx, "index-writer", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Error("expired lock not acquirable")
	}
}

func TestLockExtend(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	lock := NewLock(client)
	token, _ := lock.Acquire(ctx, "index-writer", time.Minute)
	if token == "" {
		t.Fatal("setup: acquire failed")
	}
	if err := lock.Extend(ctx, "index-writer", token, 2*time.Minute); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}

	// A stale token cannot extend.
	if err := lock.Extend(ctx, "index-writer", token+"x", time.Minute); err == nil {
		t.Error("Extend succeeded under a mismatched token")
	}
}

func TestLockStaleHolderCannotReleaseNewAcquisition(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	// Tokens are minted per acquisition, so even within one process a
	// holder whose lock expired cannot release the re-acquired lock.
	lock := NewLock(client)
	staleToken, _ := lock.Acquire(ctx, "index-writer", time.Minute)
	if staleToken == "" {
		t.Fatal("setup: acquire failed")
	}

	mr.FastForward(2 * time.Minute)

	freshToken, _ := lock.Acquire(ctx, "index-writer", time.Minute)
	if freshToken == "" {
		t.Fatal("setup: re-acquire after expiry failed")
	}
	if freshToken == staleToken {
		t.Fatal("re-acquisition reused the expired token")
	}

	if err := lock.Release(ctx, "index-writer", staleToken); err != nil {
		t.Fatalf("stale Release errored: %v", err)
	}
	if got, _ := lock.Acquire(ctx, "index-writer", time.Minute); got != "" {
		t.Error("stale holder released the re-acquired lock")
	}
}
