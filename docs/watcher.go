package docs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for more changes before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a Store whenever doc files under its directory change.
type Watcher struct {
	store    *Store
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// reloaded receives a value after every reload; used by tests.
	reloaded chan struct{}
}

// NewWatcher creates a watcher for dir. Call Run to start it.
func NewWatcher(store *Store, dir string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		store:    store,
		dir:      dir,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		reloaded: make(chan struct{}, 1),
	}, nil
}

// Run watches until ctx is cancelled. It returns an error only if the initial watches cannot
// be installed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addWatchesRecursive(w.dir); err != nil {
		return err
	}
	w.logger.Info("Docs watcher started", "dir", w.dir, "debounce", w.debounce)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Docs watcher error", "error", err)

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

// relevant reports whether an event should trigger a reload, adding watches for new
// directories as a side effect.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return false
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".md" || ext == ".txt"
}

func (w *Watcher) reload() {
	n, err := w.store.LoadDir(w.dir)
	if err != nil {
		w.logger.Warn("Docs reload failed", "dir", w.dir, "error", err)
		return
	}
	w.logger.Info("Docs reloaded", "dir", w.dir, "files", n)

	select {
	case w.reloaded <- struct{}{}:
	default:
	}
}

// addWatchesRecursive adds watches to every non-hidden directory under root.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
