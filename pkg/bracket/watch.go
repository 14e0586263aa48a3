package bracket

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/fpv-racedash/log"
)

// Watcher keeps a format loaded from a file up to date. Invalid versions
// of the file are logged and ignored; the last valid format stays active.
type Watcher struct {
	path     string
	mu       sync.RWMutex
	current  *Format
	onChange func(*Format)
	log      *log.Logger
}

type WatcherOption func(*Watcher)

// WithOnChange registers a callback invoked after each successful reload.
func WithOnChange(cb func(*Format)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = cb
	}
}

func WithWatcherLogger(l *log.Logger) WatcherOption {
	return func(w *Watcher) {
		w.log = l
	}
}

// NewWatcher loads the file once. A load error is returned to the caller
// since a broken format at startup is a configuration error.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path: path,
		log:  log.Default().Named("bracket.watch"),
	}
	for _, opt := range opts {
		opt(w)
	}
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	w.current = f
	return w, nil
}

func (w *Watcher) Current() *Format {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) reload() bool {
	f, err := Load(w.path)
	if err != nil {
		w.log.Error("keeping previous bracket format",
			log.String("file", w.path), log.ErrorField(err))
		return false
	}
	w.mu.Lock()
	w.current = f
	w.mu.Unlock()
	w.log.Info("bracket format reloaded",
		log.String("file", w.path), log.String("format", f.Name))
	if w.onChange != nil {
		w.onChange(f)
	}
	return true
}

// Run watches the file until ctx is done. The directory is watched since
// editors often replace files instead of writing them in place.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("context done, stopping bracket watch")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			w.log.Debug("change detected",
				log.String("file", event.Name), log.String("op", event.Op.String()))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", log.ErrorField(err))
		}
	}
}
