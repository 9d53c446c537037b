package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/josephgoksu/guidedmodules/internal/module"
)

// ReloadFunc is called after each reload attempt with the modules that were
// loaded, or the error that kept the previous catalog in place.
type ReloadFunc func(mods []*module.Module, err error)

// Watcher reloads a catalog from a FileSource on the OS filesystem whenever
// definition files change. Bursts of events are coalesced.
type Watcher struct {
	source   *FileSource
	catalog  *module.Catalog
	onReload ReloadFunc
	delay    time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher. Call Run to start it.
func NewWatcher(source *FileSource, catalog *module.Catalog, onReload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if onReload == nil {
		onReload = func([]*module.Module, error) {}
	}
	return &Watcher{
		source:   source,
		catalog:  catalog,
		onReload: onReload,
		delay:    300 * time.Millisecond,
		watcher:  fw,
	}, nil
}

// Run watches until ctx is cancelled. It performs an initial reload.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	if err := w.addRecursive(w.source.BaseDir()); err != nil {
		return fmt.Errorf("add watch paths: %w", err)
	}
	w.Reload(ctx)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.onReload(nil, fmt.Errorf("watch error: %w", err))

		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			w.wg.Wait()
			return nil
		}
	}
}

// Reload loads the source and swaps it into the catalog.
func (w *Watcher) Reload(ctx context.Context) {
	mods, err := w.source.Load(ctx)
	if err == nil {
		err = w.catalog.Replace(ctx, mods)
	}
	if err != nil {
		w.onReload(nil, err)
		return
	}
	w.onReload(mods, nil)
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			w.schedule(ctx)
			return
		}
	}
	if formatOf(event.Name) == "" || strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.schedule(ctx)
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		w.wg.Add(1)
		defer w.wg.Done()
		if ctx.Err() != nil {
			return
		}
		w.Reload(ctx)
	})
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}
