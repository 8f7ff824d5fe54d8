package tools

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ManifestWatcher watches the manifest directory and hot-reloads tool
// descriptors when manifests change. Rapid saves are debounced so a
// half-written file is not loaded mid-edit.
type ManifestWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	registry    *Registry
	dir         string
	logger      *zap.Logger
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	// known maps manifest path -> tool names it registered, so a
	// deleted manifest can be unregistered cleanly.
	known map[string][]string
}

// NewManifestWatcher creates a watcher over the given manifest directory.
func NewManifestWatcher(registry *Registry, dir string, logger *zap.Logger) (*ManifestWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManifestWatcher{
		watcher:     w,
		registry:    registry,
		dir:         dir,
		logger:      logger,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		known:       make(map[string][]string),
	}, nil
}

// Start begins watching. Non-blocking; events are handled in a goroutine.
func (mw *ManifestWatcher) Start(ctx context.Context) error {
	mw.mu.Lock()
	if mw.running {
		mw.mu.Unlock()
		return nil
	}
	mw.running = true
	mw.mu.Unlock()

	if err := mw.watcher.Add(mw.dir); err != nil {
		mw.logger.Warn("Manifest watch failed (dir may not exist)",
			zap.String("dir", mw.dir), zap.Error(err))
	}

	go mw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (mw *ManifestWatcher) Stop() {
	mw.mu.Lock()
	if !mw.running {
		mw.mu.Unlock()
		return
	}
	mw.running = false
	mw.mu.Unlock()

	close(mw.stopCh)
	<-mw.doneCh
	_ = mw.watcher.Close()
}

func (mw *ManifestWatcher) run(ctx context.Context) {
	defer close(mw.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-mw.stopCh:
			return
		case event, ok := <-mw.watcher.Events:
			if !ok {
				return
			}
			mw.handleEvent(event)
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			mw.logger.Error("Manifest watcher error", zap.Error(err))
		case <-ticker.C:
			mw.processSettled()
		}
	}
}

func (mw *ManifestWatcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	mw.mu.Lock()
	mw.debounceMap[event.Name] = time.Now()
	mw.mu.Unlock()
}

func (mw *ManifestWatcher) processSettled() {
	mw.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range mw.debounceMap {
		if now.Sub(at) >= mw.debounceDur {
			settled = append(settled, path)
			delete(mw.debounceMap, path)
		}
	}
	mw.mu.Unlock()

	for _, path := range settled {
		mw.reload(path)
	}
}

// reload re-reads one manifest, replacing its descriptors in the
// registry. A missing file unregisters what it previously provided.
func (mw *ManifestWatcher) reload(path string) {
	m, err := LoadManifest(path)
	if err != nil {
		mw.mu.Lock()
		previous := mw.known[path]
		delete(mw.known, path)
		mw.mu.Unlock()

		for _, name := range previous {
			mw.registry.Unregister(name)
		}
		mw.logger.Warn("Manifest removed or unreadable, tools unregistered",
			zap.String("manifest", filepath.Base(path)),
			zap.Int("removed", len(previous)),
			zap.Error(err))
		return
	}

	names := make([]string, 0, len(m.Tools))
	for _, d := range m.Tools {
		if err := mw.registry.Replace(d); err != nil {
			mw.logger.Warn("Manifest tool rejected",
				zap.String("tool", d.Name), zap.Error(err))
			continue
		}
		names = append(names, d.Name)
	}

	// Unregister tools that disappeared from this manifest.
	mw.mu.Lock()
	previous := mw.known[path]
	mw.known[path] = names
	mw.mu.Unlock()

	current := make(map[string]bool, len(names))
	for _, n := range names {
		current[n] = true
	}
	for _, n := range previous {
		if !current[n] {
			mw.registry.Unregister(n)
		}
	}

	mw.logger.Info("Manifest reloaded",
		zap.String("manifest", filepath.Base(path)),
		zap.Int("tools", len(names)))
}
