package redis

import "context"

// KeywordLock defines interface for distributed per-keyword locking.
// This allows swapping implementations (Redis, PostgreSQL, etcd, etc.)
type KeywordLock interface {
	// TryAcquire attempts to acquire exclusive lock for the keyword.
	// Returns true if lock was acquired, false if already locked
	TryAcquire(ctx context.Context) (bool, error)

	// Release releases the lock
	Release(ctx context.Context) error

	// GetKeyword returns the normalized keyword this lock is for
	GetKeyword() string
}
