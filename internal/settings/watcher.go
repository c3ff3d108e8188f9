package settings

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kestrel-vision/stereolink/pkg/log"
)

// debounceDelay coalesces the write bursts editors produce into one reload.
const debounceDelay = 100 * time.Millisecond

// Watcher monitors a settings file and delivers reloaded Settings to a
// callback. The callback runs on the watcher goroutine; keep it short.
type Watcher struct {
	path     string
	onChange func(Settings)
	logger   log.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for the settings file at path.
func NewWatcher(path string, onChange func(Settings), logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Watcher{path: path, onChange: onChange, logger: logger}
}

// Run watches until ctx is canceled. The directory is watched rather than
// the file itself so atomic save-and-rename editors keep triggering events.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("settings watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	s, err := Load(w.path)
	if err != nil {
		w.logger.Warn("settings reload failed",
			log.String("path", w.path),
			log.Err(err),
		)
		return
	}
	w.logger.Info("settings reloaded", log.String("path", w.path))
	w.onChange(s)
}
