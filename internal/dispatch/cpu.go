// Package dispatch provides the two execution pools pipeline stages run on.
// CPU-bound work runs on a small fixed pool whose workers each own a private
// model arena, so loaded models are reused without cross-worker locking.
// IO-bound work runs on a wider slot pool with a per-call deadline.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"clipdigest/internal/logging"
	"clipdigest/internal/services"
)

// Worker is the execution context handed to CPU-bound jobs. Each pool worker
// owns exactly one Worker value for its lifetime; jobs running on the same
// worker see the same arena.
type Worker struct {
	id     int
	models map[string]any
}

// Model returns the cached value under name, calling load on first use. Only
// the owning worker goroutine touches the arena, so no locking is needed.
func (w *Worker) Model(name string, load func() (any, error)) (any, error) {
	if v, ok := w.models[name]; ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	w.models[name] = v
	return v, nil
}

// CPUTask is a unit of CPU-bound work.
type CPUTask func(ctx context.Context, w *Worker) error

type cpuJob struct {
	ctx  context.Context
	fn   CPUTask
	done chan error
}

// CPUPool runs CPU-bound stage work on a fixed set of worker goroutines.
type CPUPool struct {
	jobs   chan cpuJob
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewCPUPool starts size worker goroutines. Size must be at least one.
func NewCPUPool(size int, logger *slog.Logger) *CPUPool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	pool := &CPUPool{
		jobs:   make(chan cpuJob),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		worker := &Worker{id: i, models: make(map[string]any)}
		pool.wg.Add(1)
		go pool.runWorker(worker)
	}
	return pool
}

func (p *CPUPool) runWorker(w *Worker) {
	defer p.wg.Done()
	for job := range p.jobs {
		if err := job.ctx.Err(); err != nil {
			job.done <- err
			continue
		}
		job.done <- job.fn(job.ctx, w)
	}
}

// Run blocks until a worker picks up fn and it finishes, or ctx is cancelled
// while waiting for a worker.
func (p *CPUPool) Run(ctx context.Context, fn CPUTask) error {
	job := cpuJob{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return services.Wrap(services.ErrTimeout, "dispatch", "cpu",
			"cancelled while waiting for a cpu worker", ctx.Err())
	}
	return <-job.done
}

// Close stops accepting work and waits for in-flight jobs to finish.
func (p *CPUPool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
