package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/selivandex/trendcast/pkg/logger"
)

// DistributedLock guards one keyword's forecast computation across pods
// using the Redlock algorithm. The lock is strictly time-bounded: there is
// no renewal, so a crashed holder frees the keyword after TTL and the
// computation itself must finish within it.
type DistributedLock struct {
	lockManager *redlock.RedLock
	keyword     string
	lockName    string
	ttl         time.Duration
	locked      bool
}

// NewDistributedLock creates new distributed lock for a normalized keyword
func NewDistributedLock(lockManager *redlock.RedLock, keyword string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		lockManager: lockManager,
		keyword:     keyword,
		lockName:    fmt.Sprintf("forecast:lock:%s", keyword),
		ttl:         ttl,
		locked:      false,
	}
}

// TryAcquire attempts to acquire exclusive lock for the keyword.
// Returns false without error when another pod holds it.
func (dl *DistributedLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := dl.lockManager.Lock(ctx, dl.lockName, dl.ttl)
	if err != nil {
		logger.Debug("keyword lock already held by another pod",
			zap.String("keyword", dl.keyword),
			zap.String("lock_name", dl.lockName),
		)
		return false, nil
	}

	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock: invalid expiry %v", expiry)
	}

	dl.locked = true

	logger.Debug("keyword lock acquired",
		zap.String("keyword", dl.keyword),
		zap.Duration("ttl", dl.ttl),
		zap.Duration("expiry", expiry),
	)

	return true, nil
}

// Release releases the Redis distributed lock
func (dl *DistributedLock) Release(ctx context.Context) error {
	if !dl.locked {
		return nil
	}

	err := dl.lockManager.UnLock(ctx, dl.lockName)
	if err != nil {
		logger.Warn("failed to release keyword lock (may have already expired)",
			zap.String("keyword", dl.keyword),
			zap.Error(err),
		)
		// Lock may have expired naturally, not an error for the caller
	} else {
		logger.Debug("keyword lock released",
			zap.String("keyword", dl.keyword),
		)
	}

	dl.locked = false
	return nil
}

// GetKeyword returns the normalized keyword this lock is for
func (dl *DistributedLock) GetKeyword() string {
	return dl.keyword
}
