package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates work across instances. Its one consumer here
// is the vector index: all load-mutate-persist sequences run under the
// index writer lock so exactly one process mutates the index at a time.
//
// Acquire hands back an opaque token identifying that single acquisition.
// Release and Extend only act when presented with the matching token, so a
// holder whose lock expired cannot release or extend a lock someone else
// has since acquired.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns a non-empty token on success, or an empty token if the lock
	// is already held elsewhere. The lock auto-expires after TTL.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, err error)

	// Release releases a named lock held under token. Best-effort; a
	// no-op when the lock expired or is held under a different token.
	Release(ctx context.Context, name, token string) error

	// Extend resets the TTL of a lock held under token.
	Extend(ctx context.Context, name, token string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
