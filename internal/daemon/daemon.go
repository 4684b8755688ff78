package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"docdesk/internal/config"
	"docdesk/internal/ingest"
	"docdesk/internal/layout"
	"docdesk/internal/logging"
	"docdesk/internal/triage"
)

// Daemon coordinates the poller and API server and enforces single-instance
// execution per storage root.
type Daemon struct {
	cfg    *config.Config
	svc    *triage.Service
	poller *ingest.Poller
	api    *apiServer
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	Address      string `json:"address,omitempty"`
	Root         string `json:"root"`
	LockFilePath string `json:"lockFile"`
}

// New constructs a daemon around svc.
func New(cfg *config.Config, svc *triage.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("daemon requires config and triage service")
	}
	lockPath := filepath.Join(layout.New(cfg.Paths.Root).LogsDir(), "docdesk.lock")
	return &Daemon{
		cfg:      cfg,
		svc:      svc,
		poller:   ingest.NewPoller(cfg, svc.Ingester(), logger),
		api:      newAPIServer(cfg, svc, logger),
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, then launches the poller and API server.
// Both stop when ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another docdesk daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	if err := d.api.start(groupCtx, group); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.poller.Start(groupCtx); err != nil {
		cancel()
		_ = group.Wait()
		_ = d.lock.Unlock()
		return fmt.Errorf("start poller: %w", err)
	}
	group.Go(func() error {
		<-groupCtx.Done()
		d.poller.Stop()
		return nil
	})

	d.cancel = cancel
	d.group = group
	d.running.Store(true)
	d.logger.Info("docdesk daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
	)
	return nil
}

// Wait blocks until the daemon stops and returns the first server error.
func (d *Daemon) Wait() error {
	d.mu.Lock()
	group := d.group
	d.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.cancel()
	if err := d.group.Wait(); err != nil {
		d.logger.Warn("daemon stopped with error", logging.Error(err))
	}
	<-d.poller.Done()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.cancel = nil
	d.group = nil
	d.running.Store(false)
	d.logger.Info("docdesk daemon stopped")
}

// Run starts the daemon and blocks until ctx is cancelled or a server fails.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	err := d.Wait()
	d.Stop()
	return err
}

// Handler returns the API handler, for mounting under a test server.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Address:      d.api.address(),
		Root:         d.cfg.Paths.Root,
		LockFilePath: d.lockPath,
	}
}
