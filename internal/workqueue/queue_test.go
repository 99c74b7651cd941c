package workqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
)

func TestSubmitDeliversResult(t *testing.T) {
	q := New(Config{Concurrency: 2})
	defer q.Close()

	res := <-q.Submit(context.Background(), func(context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 42, res.Value)
}

func TestRetryUntilSuccess(t *testing.T) {
	q := New(Config{Concurrency: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	defer q.Close()

	var attempts int32
	res := <-q.Submit(context.Background(), func(context.Context) (any, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	})
	require.NoError(t, res.Err)
	assert.Equal(t, "ok", res.Value)
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestRetriesExhausted(t *testing.T) {
	q := New(Config{Concurrency: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	defer q.Close()

	var attempts int32
	res := <-q.Submit(context.Background(), func(context.Context) (any, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("permanent")
	})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, domain.ErrRetriesExhausted)
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestFailureDoesNotAffectSiblings(t *testing.T) {
	q := New(Config{Concurrency: 2, MaxRetries: 1, RetryDelay: time.Millisecond})
	defer q.Close()

	ctx := context.Background()
	bad := q.Submit(ctx, func(context.Context) (any, error) {
		return nil, errors.New("doomed")
	})
	good := q.Submit(ctx, func(context.Context) (any, error) {
		return "fine", nil
	})

	assert.Error(t, (<-bad).Err)
	res := <-good
	require.NoError(t, res.Err)
	assert.Equal(t, "fine", res.Value)
}

func TestConcurrencyCeiling(t *testing.T) {
	const limit = 3
	q := New(Config{Concurrency: limit})
	defer q.Close()

	var inFlight, peak int32
	var mu sync.Mutex
	ctx := context.Background()

	var results []<-chan Result
	for i := 0; i < 12; i++ {
		results = append(results, q.Submit(ctx, func(context.Context) (any, error) {
			n := atomic.AddInt32(&inFlight, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil, nil
		}))
	}
	for _, ch := range results {
		require.NoError(t, (<-ch).Err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, int32(limit))
}

func TestLimiterIsConsulted(t *testing.T) {
	// 1 token refilled every 20ms: three tasks need >= ~40ms.
	limiter := rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
	q := New(Config{Concurrency: 3, Limiter: limiter})
	defer q.Close()

	ctx := context.Background()
	start := time.Now()
	var chans []<-chan Result
	for i := 0; i < 3; i++ {
		chans = append(chans, q.Submit(ctx, func(context.Context) (any, error) {
			return nil, nil
		}))
	}
	for _, ch := range chans {
		require.NoError(t, (<-ch).Err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSubmitAfterClose(t *testing.T) {
	q := New(Config{Concurrency: 1})
	q.Close()

	res := <-q.Submit(context.Background(), func(context.Context) (any, error) {
		return nil, nil
	})
	assert.Error(t, res.Err)
}

func TestCloseWaitsForBlockedHandoffs(t *testing.T) {
	q := New(Config{Concurrency: 1})

	gate := make(chan struct{})
	ctx := context.Background()
	first := q.Submit(ctx, func(context.Context) (any, error) {
		<-gate
		return "first", nil
	})
	// Give the first task time to occupy the only worker so the second
	// submission is stuck handing off when Close runs.
	time.Sleep(10 * time.Millisecond)
	second := q.Submit(ctx, func(context.Context) (any, error) {
		return "second", nil
	})

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()
	time.Sleep(10 * time.Millisecond)
	close(gate)

	res := <-first
	require.NoError(t, res.Err)
	assert.Equal(t, "first", res.Value)

	res = <-second
	require.NoError(t, res.Err)
	assert.Equal(t, "second", res.Value)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	q := New(Config{Concurrency: 1, MaxRetries: 100, RetryDelay: 50 * time.Millisecond})
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Submit(ctx, func(context.Context) (any, error) {
		return nil, errors.New("failing")
	})
	time.Sleep(10 * time.Millisecond)
	cancel()

	res := <-ch
	assert.ErrorIs(t, res.Err, context.Canceled)
}
