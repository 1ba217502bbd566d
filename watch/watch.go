// Package watch monitors the loaded media file and reports when it
// changes, so a running session can be reloaded with fresh decoder state.
package watch

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce coalesces the burst of events most editors and copy tools emit
// for a single logical file replacement.
const debounce = 250 * time.Millisecond

// OnChangeFunc is invoked after the watched file has been written,
// created, or replaced.
type OnChangeFunc func(path string)

// Watcher observes a single media file. The parent directory is watched
// rather than the file itself so replace-by-rename (the common atomic
// save) is still observed.
type Watcher struct {
	log      *slog.Logger
	path     string
	fw       *fsnotify.Watcher
	onChange OnChangeFunc
	stopCh   chan struct{}
}

// New creates a watcher for path. The callback fires on the watcher's
// goroutine after Start. If log is nil, slog.Default() is used.
func New(path string, onChange OnChangeFunc, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		log:      log.With("component", "watcher"),
		path:     path,
		fw:       fw,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start blocks processing events until Stop is called.
func (w *Watcher) Start() error {
	var pending <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			return nil

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(debounce)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-pending:
			pending = nil
			w.log.Info("media file changed", "path", w.path)
			w.onChange(w.path)
		}
	}
}

// Stop terminates the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	w.fw.Close()
}
