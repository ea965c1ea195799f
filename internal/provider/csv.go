package provider

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/terraclean-dev/remwatch/internal/dataset"
)

// CSVProvider serves snapshots from a CSV export and optionally watches the
// file for changes, swapping in a freshly-parsed snapshot on each change.
type CSVProvider struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	snap *dataset.Snapshot

	onSwap func(*dataset.Snapshot)

	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewCSVProvider(path string, debounce time.Duration, logger *slog.Logger) *CSVProvider {
	return &CSVProvider{
		path:     path,
		debounce: debounce,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// OnSwap registers a callback invoked after each successful snapshot swap.
// Must be called before Start.
func (p *CSVProvider) OnSwap(fn func(*dataset.Snapshot)) {
	p.onSwap = fn
}

func (p *CSVProvider) Current() *dataset.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

func (p *CSVProvider) Reload(_ context.Context) error {
	snap, err := dataset.LoadCSV(p.path, p.logger)
	if err != nil {
		reloadFailuresTotal.Inc()
		p.logger.Warn("dataset reload failed, keeping previous snapshot", "path", p.path, "error", err)
		return err
	}
	p.swap(snap)
	return nil
}

func (p *CSVProvider) swap(snap *dataset.Snapshot) {
	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()
	reloadsTotal.Inc()
	if p.onSwap != nil {
		p.onSwap(snap)
	}
}

// Start performs the initial load and, when watch is enabled, begins
// monitoring the file for changes. An initial load failure is not fatal: the
// provider stays in the explicit no-data state until the file appears.
func (p *CSVProvider) Start(ctx context.Context, watch bool) error {
	if err := p.Reload(ctx); err != nil {
		p.logger.Warn("initial dataset load failed", "path", p.path, "error", err)
	}
	if !watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors and export jobs typically replace the
	// file, which would detach a watch on the file itself.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}
	p.watcher = watcher

	p.wg.Add(1)
	go p.watchLoop(ctx)
	p.logger.Info("watching dataset file", "path", p.path)
	return nil
}

func (p *CSVProvider) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	if p.watcher != nil {
		_ = p.watcher.Close()
	}
}

func (p *CSVProvider) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	var pending *time.Timer
	var pendingCh <-chan time.Time
	target := filepath.Clean(p.path)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: export jobs write in bursts.
			if pending == nil {
				pending = time.NewTimer(p.debounce)
				pendingCh = pending.C
			} else {
				if !pending.Stop() {
					select {
					case <-pending.C:
					default:
					}
				}
				pending.Reset(p.debounce)
			}
		case <-pendingCh:
			pending = nil
			pendingCh = nil
			p.logger.Info("dataset file changed, reloading", "path", p.path)
			_ = p.Reload(ctx)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("file watcher error", "error", err)
		}
	}
}
