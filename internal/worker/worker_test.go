package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_ProcessesAllJobs(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool(2, 10, func(ctx context.Context, job int) error {
		processed.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for i := 0; i < 5; i++ {
		pool.Submit(i)
	}

	time.Sleep(50 * time.Millisecond)

	cancel()
	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 jobs processed, got %d", processed.Load())
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool(4, 100, func(ctx context.Context, job int) error {
		processed.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for i := 0; i < 100; i++ {
		go func(n int) {
			pool.Submit(n)
		}(i)
	}

	time.Sleep(100 * time.Millisecond)

	cancel()
	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 jobs processed, got %d", processed.Load())
	}
}

func TestPool_TrySubmitFullBuffer(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, 1, func(ctx context.Context, job int) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	pool.Submit(1) // picked up by the worker, then blocks
	time.Sleep(20 * time.Millisecond)
	pool.Submit(2) // fills the buffer

	if pool.TrySubmit(3) {
		t.Error("expected TrySubmit to reject on full buffer")
	}

	close(block)
	cancel()
	pool.Stop()
}

func TestPool_StopDrainsInFlight(t *testing.T) {
	var processed atomic.Int64
	pool := NewPool(2, 50, func(ctx context.Context, job int) error {
		time.Sleep(5 * time.Millisecond)
		processed.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 20; i++ {
		pool.Submit(i)
	}

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}
}
