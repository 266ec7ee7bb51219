package analysis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/selivandex/trendcast/pkg/models"
)

func TestCoalescerDeduplicatesConcurrentRequests(t *testing.T) {
	c := NewCoalescer(nil)

	var computations int32
	compute := func(ctx context.Context) (*models.Forecast, error) {
		atomic.AddInt32(&computations, 1)
		time.Sleep(50 * time.Millisecond)
		return &models.Forecast{Keyword: "ai tools", Confidence: 80}, nil
	}

	const callers = 8
	results := make([]*models.Forecast, callers)
	shared := make([]bool, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fc, coalesced, err := c.Do(context.Background(), "ai tools", compute)
			if err != nil {
				t.Errorf("caller %d failed: %v", i, err)
				return
			}
			results[i] = fc
			shared[i] = coalesced
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&computations); got != 1 {
		t.Errorf("expected 1 computation, got %d", got)
	}

	leaders := 0
	for i, fc := range results {
		if fc == nil {
			t.Fatalf("caller %d got nil forecast", i)
		}
		if fc != results[0] {
			t.Errorf("caller %d got a different forecast instance", i)
		}
		if !shared[i] {
			leaders++
		}
	}
	if leaders != 1 {
		t.Errorf("expected exactly 1 leader, got %d", leaders)
	}
}

func TestCoalescerNormalizesKeys(t *testing.T) {
	c := NewCoalescer(nil)

	var computations int32
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		c.Do(context.Background(), "AI  Tools", func(ctx context.Context) (*models.Forecast, error) {
			atomic.AddInt32(&computations, 1)
			close(started)
			<-release
			return &models.Forecast{Keyword: "AI  Tools"}, nil
		})
	}()

	<-started

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, coalesced, err := c.Do(context.Background(), "ai tools", func(ctx context.Context) (*models.Forecast, error) {
			atomic.AddInt32(&computations, 1)
			return &models.Forecast{Keyword: "ai tools"}, nil
		})
		if err != nil {
			t.Errorf("joiner failed: %v", err)
		}
		if !coalesced {
			t.Error("expected differently cased keyword to join the in-flight computation")
		}
	}()

	close(release)
	<-done

	if got := atomic.LoadInt32(&computations); got != 1 {
		t.Errorf("expected 1 computation across keyword spellings, got %d", got)
	}
}

func TestCoalescerDistinctKeywordsRunIndependently(t *testing.T) {
	c := NewCoalescer(nil)

	var computations int32
	compute := func(ctx context.Context) (*models.Forecast, error) {
		atomic.AddInt32(&computations, 1)
		return &models.Forecast{}, nil
	}

	if _, _, err := c.Do(context.Background(), "golang", compute); err != nil {
		t.Fatalf("first keyword failed: %v", err)
	}
	if _, _, err := c.Do(context.Background(), "rust", compute); err != nil {
		t.Fatalf("second keyword failed: %v", err)
	}

	if got := atomic.LoadInt32(&computations); got != 2 {
		t.Errorf("expected 2 computations, got %d", got)
	}
}

func TestCoalescerJoinerHonorsContext(t *testing.T) {
	c := NewCoalescer(nil)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		c.Do(context.Background(), "slow", func(ctx context.Context) (*models.Forecast, error) {
			close(started)
			<-release
			return &models.Forecast{}, nil
		})
	}()

	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.Do(ctx, "slow", func(ctx context.Context) (*models.Forecast, error) {
		return &models.Forecast{}, nil
	})
	if err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded for waiting joiner, got %v", err)
	}
}

func TestCoalescerSequentialCallsRecompute(t *testing.T) {
	c := NewCoalescer(nil)

	var computations int32
	compute := func(ctx context.Context) (*models.Forecast, error) {
		atomic.AddInt32(&computations, 1)
		return &models.Forecast{}, nil
	}

	for i := 0; i < 3; i++ {
		if _, coalesced, err := c.Do(context.Background(), "repeat", compute); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		} else if coalesced {
			t.Errorf("sequential call %d should not be coalesced", i)
		}
	}

	if got := atomic.LoadInt32(&computations); got != 3 {
		t.Errorf("coalescing must only span concurrent callers; got %d computations", got)
	}
}
