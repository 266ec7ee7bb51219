package redis

import (
	"context"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
)

// LockFactory creates distributed locks for keywords
type LockFactory interface {
	CreateKeywordLock(keyword string) KeywordLock
}

// RedisLockFactory creates Redis-based distributed locks
type RedisLockFactory struct {
	lockManager *redlock.RedLock
	ttl         time.Duration
}

// NewRedisLockFactory creates new Redis lock factory
func NewRedisLockFactory(lockManager *redlock.RedLock, ttl time.Duration) *RedisLockFactory {
	return &RedisLockFactory{
		lockManager: lockManager,
		ttl:         ttl,
	}
}

// CreateKeywordLock creates a distributed lock for a specific keyword
func (f *RedisLockFactory) CreateKeywordLock(keyword string) KeywordLock {
	return NewDistributedLock(f.lockManager, keyword, f.ttl)
}

// NoopLockFactory is used when Redis is disabled or in tests; locks always
// succeed so a single-pod deployment runs without coordination overhead
type NoopLockFactory struct{}

// NewNoopLockFactory creates lock factory whose locks always succeed
func NewNoopLockFactory() *NoopLockFactory {
	return &NoopLockFactory{}
}

// CreateKeywordLock creates a lock that always succeeds
func (f *NoopLockFactory) CreateKeywordLock(keyword string) KeywordLock {
	return &NoopLock{keyword: keyword}
}

// NoopLock is a no-op lock
type NoopLock struct {
	keyword string
}

func (l *NoopLock) TryAcquire(ctx context.Context) (bool, error) {
	return true, nil
}

func (l *NoopLock) Release(ctx context.Context) error {
	return nil
}

func (l *NoopLock) GetKeyword() string {
	return l.keyword
}
