// Package daemon wires the whole system together and runs it: single
// instance lock, task store, blob store, execution pools, worker runtime,
// and the HTTP API.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"clipdigest/internal/api"
	"clipdigest/internal/audio"
	"clipdigest/internal/blobstore"
	"clipdigest/internal/config"
	"clipdigest/internal/dispatch"
	"clipdigest/internal/download"
	"clipdigest/internal/extract"
	"clipdigest/internal/llm"
	"clipdigest/internal/logging"
	"clipdigest/internal/pipeline"
	"clipdigest/internal/services"
	"clipdigest/internal/source"
	"clipdigest/internal/summarize"
	"clipdigest/internal/tasks"
	"clipdigest/internal/transcribe"
	"clipdigest/internal/whisper"
	"clipdigest/internal/worker"
)

// Daemon owns the assembled system.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	lock    *flock.Flock
	store   *tasks.Store
	cpuPool *dispatch.CPUPool
	runtime *worker.Runtime
	server  *APIServer
	pipe    *pipeline.Pipeline
}

// New builds the daemon from config. External services are connected here;
// the pipeline itself starts in Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "init", "create directories", err)
	}

	store, err := tasks.Open(ctx, filepath.Join(cfg.Paths.DataDir, "tasks.db"))
	if err != nil {
		return nil, err
	}

	blobs, err := blobstore.NewMinioStore(ctx, cfg.Blob)
	if err != nil {
		store.Close()
		return nil, err
	}

	cpuPool := dispatch.NewCPUPool(cfg.Workflow.CPUWorkers, logger)
	ioPool := dispatch.NewIOPool(cfg.Workflow.IOWorkers,
		time.Duration(cfg.Workflow.IOTimeout)*time.Second)

	resolver := source.NewYTDLP(cfg.Source, logger)
	extractor := audio.NewFFmpeg(cfg.Audio, logger)
	transcriber := whisper.NewCLI(cfg.Whisper, logger)
	summarizer := llm.NewHTTPClient(cfg.LLM, logger)

	pipe := pipeline.New(store,
		download.NewHandler(resolver, blobs, ioPool, cfg.Paths.ScratchDir, logger),
		extract.NewHandler(blobs, extractor, ioPool, cfg.Paths.ScratchDir, logger),
		transcribe.NewHandler(blobs, transcriber, cpuPool, cfg.Paths.ScratchDir, logger),
		summarize.NewHandler(blobs, summarizer, ioPool, store, logger),
		logger)

	runtime := worker.New(store, pipe, cfg.Workflow, logger)
	service := api.NewTaskService(store, blobs, resolver, runtime,
		time.Duration(cfg.Blob.SignedURLSeconds)*time.Second,
		cfg.Source.MaxBatchItems, logger)

	return &Daemon{
		cfg:     cfg,
		logger:  logger,
		lock:    flock.New(filepath.Join(cfg.Paths.DataDir, "clipdigest.lock")),
		store:   store,
		cpuPool: cpuPool,
		runtime: runtime,
		server:  NewAPIServer(cfg.Paths.APIBind, service, logger),
		pipe:    pipe,
	}, nil
}

// Run starts everything and blocks until ctx is cancelled, then shuts down
// in reverse order.
func (d *Daemon) Run(ctx context.Context) error {
	locked, err := d.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "lock", "acquire instance lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrConflict, "daemon", "lock",
			fmt.Sprintf("another instance holds %s", d.lock.Path()), nil)
	}
	defer d.lock.Unlock()

	if err := d.pipe.HealthCheck(ctx); err != nil {
		d.logger.Warn("tool health check failed, continuing anyway", logging.Error(err))
	}

	if err := d.runtime.Start(ctx); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- d.server.Start() }()

	d.logger.Info("daemon running",
		logging.String("api", d.cfg.Paths.APIBind),
		logging.Int("pid", os.Getpid()))

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			d.shutdown()
			return err
		}
	}

	d.shutdown()
	return nil
}

func (d *Daemon) shutdown() {
	d.logger.Info("daemon shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("api shutdown", logging.Error(err))
	}

	d.runtime.Stop()
	d.cpuPool.Close()
	if err := d.store.Close(); err != nil {
		d.logger.Warn("store close", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}
