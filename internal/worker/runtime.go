// Package worker owns background task execution: a bounded set of in-flight
// tasks, a poll loop feeding pending work, and reclaim of tasks a previous
// run left stranded.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipdigest/internal/config"
	"clipdigest/internal/logging"
	"clipdigest/internal/pipeline"
	"clipdigest/internal/services"
	"clipdigest/internal/tasks"
)

// Options tune a single submitted execution.
type Options struct {
	// Entry selects the pipeline entry point.
	Entry pipeline.Entry
	// Force bypasses artifact cache hits.
	Force bool
	// CustomPrompt overrides the summarization instruction.
	CustomPrompt string
}

// Runtime schedules pipeline executions.
type Runtime struct {
	store    *tasks.Store
	pipeline *pipeline.Pipeline
	logger   *slog.Logger

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	stuckTimeout       time.Duration

	slots chan struct{}

	mu     sync.Mutex
	active map[int64]struct{}

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(store *tasks.Store, pipe *pipeline.Pipeline, cfg config.Workflow, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runtime{
		store:              store,
		pipeline:           pipe,
		logger:             logger,
		pollInterval:       time.Duration(cfg.PollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.ErrorRetryInterval) * time.Second,
		stuckTimeout:       time.Duration(cfg.StuckTaskTimeout) * time.Second,
		slots:              make(chan struct{}, cfg.MaxConcurrentTasks),
		active:             make(map[int64]struct{}),
	}
}

// Start reclaims tasks stranded by a previous run and begins polling for
// pending work. Call Stop to shut down.
func (r *Runtime) Start(ctx context.Context) error {
	reset, err := r.store.ResetStuckProcessing(ctx, 0)
	if err != nil {
		return err
	}
	if reset > 0 {
		r.logger.Info("reset stranded tasks to pending", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.pollLoop(runCtx)
	return nil
}

// Stop halts polling and waits for in-flight tasks to finish.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Runtime) pollLoop(ctx context.Context) {
	defer r.wg.Done()

	interval := r.pollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.dispatchPending(ctx); err != nil {
			r.logger.Error("poll pass failed", logging.Error(err))
			ticker.Reset(r.errorRetryInterval)
		} else {
			ticker.Reset(interval)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatchPending reclaims aged stuck tasks and starts pending ones while
// slots are free.
func (r *Runtime) dispatchPending(ctx context.Context) error {
	if r.stuckTimeout > 0 {
		reset, err := r.store.ResetStuckProcessing(ctx, r.stuckTimeout)
		if err != nil {
			return err
		}
		if reset > 0 {
			r.logger.Warn("reclaimed stuck tasks", logging.Int64("count", reset))
		}
	}

	for {
		select {
		case r.slots <- struct{}{}:
		case <-ctx.Done():
			return nil
		default:
			return nil
		}

		task, err := r.store.ClaimNextPending(ctx)
		if err != nil {
			<-r.slots
			return err
		}
		if task == nil {
			<-r.slots
			return nil
		}

		if !r.markActive(task.ID) {
			// Already running via an explicit Submit; put the slot back.
			<-r.slots
			continue
		}
		r.wg.Add(1)
		// Executions get a fresh context so Stop drains in-flight work
		// instead of cancelling it mid-stage.
		go r.run(context.Background(), task, Options{Entry: pipeline.EntryFull}, true)
	}
}

// Submit schedules an execution for the given task. It returns immediately;
// the run happens in the background. A task already executing yields a
// Conflict error.
func (r *Runtime) Submit(ctx context.Context, taskID int64, opts Options) error {
	task, err := r.store.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	if !r.markActive(taskID) {
		return services.Wrap(services.ErrConflict, "worker", "submit",
			fmt.Sprintf("task %d is already executing", taskID), nil)
	}

	r.wg.Add(1)
	go func() {
		r.slots <- struct{}{}
		r.run(context.Background(), task, opts, true)
	}()
	return nil
}

func (r *Runtime) markActive(taskID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[taskID]; busy {
		return false
	}
	r.active[taskID] = struct{}{}
	return true
}

func (r *Runtime) releaseActive(taskID int64) {
	r.mu.Lock()
	delete(r.active, taskID)
	r.mu.Unlock()
}

// run executes one task. ownsSlot indicates the caller reserved a slot that
// must be returned.
func (r *Runtime) run(ctx context.Context, task *tasks.Task, opts Options, ownsSlot bool) {
	defer r.wg.Done()
	defer r.releaseActive(task.ID)
	if ownsSlot {
		defer func() { <-r.slots }()
	}

	correlationID := uuid.NewString()
	ctx = services.WithRequestID(ctx, correlationID)
	ctx = services.WithForce(ctx, opts.Force)
	ctx = services.WithCustomPrompt(ctx, opts.CustomPrompt)

	logger := r.logger.With(
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldCorrelationID, correlationID))
	logger.Info("task execution started")

	if err := r.pipeline.Process(ctx, task, opts.Entry); err != nil {
		// The pipeline already persisted the failure; nothing propagates
		// past this point.
		logger.Warn("task execution failed", logging.Error(err))
		return
	}
	logger.Info("task execution finished")
}

// Stats reports the runtime's current load.
type Stats struct {
	Active int
	Slots  int
}

func (r *Runtime) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Active: len(r.active), Slots: cap(r.slots)}
}
