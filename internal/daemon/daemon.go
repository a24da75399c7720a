package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"weft/internal/capture"
	"weft/internal/catalog"
	"weft/internal/config"
	"weft/internal/ingest"
	"weft/internal/logging"
	"weft/internal/reconcile"
	"weft/internal/session"
)

// Daemon owns the long-running pieces: both stores, the domain services, and
// the HTTP API. It enforces single-instance execution through a file lock.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	capture *capture.Store
	catalog *catalog.Store

	sessions   *session.Manager
	aggregator *ingest.Aggregator
	engine     *reconcile.Engine

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	CaptureDBPath string
	CatalogDBPath string
	LockFilePath  string
	Sessions      capture.SessionCounts
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, captureStore *capture.Store, catalogStore *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || captureStore == nil || catalogStore == nil || logger == nil {
		return nil, errors.New("daemon requires config, stores, and logger")
	}

	sessions := session.NewManager(captureStore, logger, cfg.StaleThreshold())
	guard := ingest.Guard{
		HardLimit: cfg.Capture.HardLimit,
		WarnLimit: cfg.Capture.WarnLimit,
	}
	aggregator := ingest.NewAggregator(sessions, captureStore, catalogStore, guard, cfg.Capture.MaxBatchEvents, logger)
	engine := reconcile.NewEngine(captureStore, catalogStore, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "weftd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		capture:    captureStore,
		catalog:    catalogStore,
		sessions:   sessions,
		aggregator: aggregator,
		engine:     engine,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and brings up the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another weft daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("weft daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts the API down and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("weft daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.capture != nil {
		if err := d.capture.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.catalog != nil {
		if err := d.catalog.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status reports runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		CaptureDBPath: d.capture.Path(),
		CatalogDBPath: d.catalog.Path(),
		LockFilePath:  d.lockPath,
	}
	if counts, err := d.capture.SessionCountsByStatus(ctx); err == nil {
		status.Sessions = counts
	}
	return status
}
