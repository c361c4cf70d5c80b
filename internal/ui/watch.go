package ui

import (
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher coalesces filesystem events under a set of directories into a
// single "something changed" signal.
type Watcher struct {
	watcher *fsnotify.Watcher
	changed chan struct{}
	done    chan struct{}
}

// NewWatcher watches dirs. Directories that do not exist yet are skipped;
// the periodic refresh still covers them.
func NewWatcher(dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			slog.Debug("not watching directory", "dir", dir, "error", err)
		}
	}
	w := &Watcher{
		watcher: fw,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Changed fires at least once after any batch of events. It is closed when
// the watcher stops.
func (w *Watcher) Changed() <-chan struct{} { return w.changed }

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer close(w.changed)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			select {
			case w.changed <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error", "error", err)
		}
	}
}
