package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "overtone:lock:"

// Lock implements DistributedLock using Redis SETNX with TTL.
// Every successful Acquire mints a fresh token, so release and extend are
// scoped to one acquisition rather than one process: a goroutine whose lock
// expired cannot delete the lock a sibling has since re-acquired.
type Lock struct {
	client *redis.Client
}

// NewLock creates a new Redis-backed distributed lock.
func NewLock(client *redis.Client) *Lock {
	return &Lock{client: client}
}

// generateToken creates a unique identifier for one lock acquisition.
// Format: hostname:pid:random; the prefix exists only for debuggability.
func generateToken() string {
	hostname, _ := os.Hostname()
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(randomBytes))
}

// Acquire attempts to acquire a named lock with the given TTL.
// Uses Redis SETNX (SET if Not eXists) for atomic lock acquisition.
// Returns the acquisition token, or an empty string if the lock is held.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	key := lockPrefix + name
	token := generateToken()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		return "", nil
	}
	return token, nil
}

// releaseScript is a Lua script for safe lock release.
// It only deletes the lock if the stored token matches, preventing
// accidental release of locks held under other acquisitions.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release releases a named lock if still held under token.
// Safe to call even if the lock is not held or has expired.
func (l *Lock) Release(ctx context.Context, name, token string) error {
	key := lockPrefix + name
	_, err := releaseScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// extendScript is a Lua script for safe lock TTL extension.
// It only extends the TTL if the stored token matches.
var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Extend resets the TTL of a lock held under token.
// Returns an error if the lock is no longer held under this acquisition.
func (l *Lock) Extend(ctx context.Context, name, token string, ttl time.Duration) error {
	key := lockPrefix + name
	result, err := extendScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if result.(int64) == 0 {
		return fmt.Errorf("lock %s not held under this acquisition", name)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
