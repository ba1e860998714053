package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipdigest/internal/services"
)

func TestCPUPoolReusesModelPerWorker(t *testing.T) {
	pool := NewCPUPool(1, nil)
	defer pool.Close()

	var loads atomic.Int32
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := pool.Run(ctx, func(_ context.Context, w *Worker) error {
			_, err := w.Model("base", func() (any, error) {
				loads.Add(1)
				return "model", nil
			})
			return err
		})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if got := loads.Load(); got != 1 {
		t.Fatalf("model loaded %d times, want 1", got)
	}
}

func TestCPUPoolModelLoadErrorIsNotCached(t *testing.T) {
	pool := NewCPUPool(1, nil)
	defer pool.Close()

	calls := 0
	load := func() (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("load failed")
		}
		return "model", nil
	}

	ctx := context.Background()
	err := pool.Run(ctx, func(_ context.Context, w *Worker) error {
		_, err := w.Model("m", load)
		return err
	})
	if err == nil {
		t.Fatal("first load should fail")
	}
	err = pool.Run(ctx, func(_ context.Context, w *Worker) error {
		_, err := w.Model("m", load)
		return err
	})
	if err != nil {
		t.Fatalf("second load should retry and succeed: %v", err)
	}
}

func TestCPUPoolBoundsConcurrency(t *testing.T) {
	pool := NewCPUPool(2, nil)
	defer pool.Close()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Run(context.Background(), func(_ context.Context, _ *Worker) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	if p := peak.Load(); p > 2 {
		t.Fatalf("peak concurrency %d exceeds pool size 2", p)
	}
}

func TestCPUPoolHonorsCancellationWhileQueued(t *testing.T) {
	pool := NewCPUPool(1, nil)
	defer pool.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Run(context.Background(), func(_ context.Context, _ *Worker) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Run(ctx, func(_ context.Context, _ *Worker) error { return nil })
	close(release)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("want timeout error for cancelled wait, got %v", err)
	}
}

func TestIOPoolTimesOut(t *testing.T) {
	pool := NewIOPool(1, 20*time.Millisecond)

	err := pool.Run(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("want timeout error, got %v", err)
	}
}

func TestIOPoolPassesThroughErrors(t *testing.T) {
	pool := NewIOPool(1, time.Second)
	boom := errors.New("boom")

	err := pool.Run(context.Background(), func(_ context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if errors.Is(err, services.ErrTimeout) {
		t.Fatalf("non-deadline failure should not look like a timeout: %v", err)
	}
}

func TestIOPoolBoundsConcurrency(t *testing.T) {
	pool := NewIOPool(2, time.Second)

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Run(context.Background(), func(_ context.Context) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	if p := peak.Load(); p > 2 {
		t.Fatalf("peak concurrency %d exceeds pool size 2", p)
	}
}
