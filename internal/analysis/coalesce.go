package analysis

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/trendcast/internal/adapters/redis"
	"github.com/selivandex/trendcast/pkg/logger"
	"github.com/selivandex/trendcast/pkg/models"
)

// computeFunc produces a fresh forecast for one keyword
type computeFunc func(ctx context.Context) (*models.Forecast, error)

// inflight tracks one in-progress computation other callers can join
type inflight struct {
	done     chan struct{}
	forecast *models.Forecast
	err      error
}

// Coalescer deduplicates concurrent forecast computations for the same
// normalized keyword. In-process callers join the leader's result; across
// pods a best-effort, TTL-bounded distributed lock keeps duplicate work
// rare. It is injected into the service, never process-global, so tests
// and multi-tenant setups get isolated instances.
type Coalescer struct {
	locks redis.LockFactory

	mu    sync.Mutex
	calls map[string]*inflight
}

// NewCoalescer creates a coalescer. A nil lock factory disables cross-pod
// coordination; in-process coalescing always applies.
func NewCoalescer(locks redis.LockFactory) *Coalescer {
	if locks == nil {
		locks = redis.NewNoopLockFactory()
	}
	return &Coalescer{
		locks: locks,
		calls: make(map[string]*inflight),
	}
}

// Do runs compute for the keyword, or joins an identical computation
// already in flight. The second return reports whether the result was
// shared from another caller's computation.
func (c *Coalescer) Do(ctx context.Context, keyword string, compute computeFunc) (*models.Forecast, bool, error) {
	key := models.NormalizeKeyword(keyword)

	c.mu.Lock()
	if call, ok := c.calls[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.forecast, true, call.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	call := &inflight{done: make(chan struct{})}
	c.calls[key] = call
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.calls, key)
		c.mu.Unlock()
		close(call.done)
	}()

	// Cross-pod guard. Failure to acquire means another pod is already
	// computing; recomputing locally is wasteful but correct, so the lock
	// never blocks the caller.
	lock := c.locks.CreateKeywordLock(key)
	if acquired, err := lock.TryAcquire(ctx); err == nil && acquired {
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = lock.Release(releaseCtx)
		}()
	} else {
		logger.Debug("keyword being computed on another pod, recomputing locally",
			zap.String("keyword", key),
		)
	}

	call.forecast, call.err = compute(ctx)
	return call.forecast, false, call.err
}
