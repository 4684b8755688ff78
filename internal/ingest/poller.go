package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docdesk/internal/config"
	"docdesk/internal/logging"
)

// TickResult summarizes one scan of the source directory.
type TickResult struct {
	Ingested int
	Unstable int
	Failed   int
}

// Poller ingests stable PDFs from the scanner source directory.
type Poller struct {
	ingester  *Ingester
	sourceDir string
	interval  time.Duration
	stability time.Duration
	watch     bool
	logger    *slog.Logger

	// tickMu keeps a watcher nudge from overlapping a running tick.
	tickMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	nudge   chan struct{}
}

// NewPoller builds a poller from the [paths] and [ingest] sections.
func NewPoller(cfg *config.Config, ingester *Ingester, logger *slog.Logger) *Poller {
	interval := cfg.PollInterval()
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		ingester:  ingester,
		sourceDir: cfg.Paths.SourceDir,
		interval:  interval,
		stability: cfg.StabilityDelay(),
		watch:     cfg.Ingest.Watch,
		logger:    logging.NewComponentLogger(logger, "poller"),
		nudge:     make(chan struct{}, 1),
	}
}

// Start runs one tick immediately and then one per interval until Stop is
// called or ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("poller already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.done = make(chan struct{})

	var watcher *fsnotify.Watcher
	if p.watch {
		watcher = p.startWatcher()
	}
	go p.loop(runCtx, watcher, p.done)

	p.logger.Info("poller started",
		logging.String(logging.FieldEventType, "poller_started"),
		logging.String("source_dir", p.sourceDir),
		logging.Duration("interval", p.interval),
		logging.Bool("watch", watcher != nil),
	)
	return nil
}

// Stop cancels future ticks. A tick already in progress is not awaited.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Done is closed once the loop started by the last Start has exited.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.done
}

func (p *Poller) loop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	if watcher != nil {
		defer watcher.Close()
		go p.forwardEvents(ctx, watcher)
	}

	p.Tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		case <-p.nudge:
			p.Tick(ctx)
		}
	}
}

func (p *Poller) startWatcher() *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		err = watcher.Add(p.sourceDir)
		if err != nil {
			_ = watcher.Close()
		}
	}
	if err != nil {
		logging.WarnWithContext(p.logger, "source watcher unavailable; polling only",
			"watcher_unavailable",
			logging.String("source_dir", p.sourceDir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that source_dir exists and inotify limits are not exhausted"),
			logging.String(logging.FieldImpact, "new scans are picked up on the next poll interval"),
		)
		return nil
	}
	return watcher
}

func (p *Poller) forwardEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsPDFName(event.Name) {
				continue
			}
			select {
			case p.nudge <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("source watcher error",
				logging.String(logging.FieldEventType, "watcher_error"),
				logging.Error(err),
			)
		}
	}
}

// Tick scans the source directory once and ingests every stable PDF.
func (p *Poller) Tick(ctx context.Context) TickResult {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	var result TickResult
	candidates, err := p.candidates()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("source scan failed",
				logging.String(logging.FieldEventType, "source_scan_failed"),
				logging.String("source_dir", p.sourceDir),
				logging.Error(err),
			)
		}
		return result
	}
	if len(candidates) == 0 {
		return result
	}

	if p.stability > 0 {
		timer := time.NewTimer(p.stability)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result
		case <-timer.C:
		}
	}

	for _, c := range candidates {
		if ctx.Err() != nil {
			return result
		}
		info, err := os.Stat(c.path)
		if err != nil || info.Size() != c.size {
			result.Unstable++
			continue
		}
		if _, err := p.ingester.ingestPath(ctx, c.path, OriginScanner); err != nil {
			result.Failed++
			logging.WarnWithContext(p.logger, "scanner file ingestion failed",
				"ingest_failed",
				logging.String("path", c.path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file stays in the source directory and is retried next tick"),
			)
			continue
		}
		result.Ingested++
	}
	return result
}

type candidate struct {
	path string
	size int64
}

func (p *Poller) candidates() ([]candidate, error) {
	entries, err := os.ReadDir(p.sourceDir)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsPDFName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, candidate{path: filepath.Join(p.sourceDir, entry.Name()), size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}
