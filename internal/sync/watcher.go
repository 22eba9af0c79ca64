package sync

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of filesystem events (editors commonly
// write-then-rename) into a single push per file.
const debounceWindow = 200 * time.Millisecond

// Watcher implements SyncMode::Realtime (original_source crates/client/src/
// sync/watcher.rs): it pushes a fresh FileChunk sequence to p whenever a
// file under root changes.
type Watcher struct {
	fsw  *fsnotify.Watcher
	root string
	done chan struct{}
}

// NewWatcher starts watching root and pushing changed files to p until
// Close is called.
func NewWatcher(root string, p Pusher) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, root: root, done: make(chan struct{})}
	go w.loop(p)
	return w, nil
}

func (w *Watcher) loop(p Pusher) {
	pending := make(map[string]*time.Timer)
	for {
		select {
		case <-w.done:
			for _, t := range pending {
				t.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := ev.Name
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(debounceWindow, func() {
				rel, err := filepath.Rel(w.root, path)
				if err != nil {
					return
				}
				if err := SendFile(p, path, rel); err != nil {
					slog.Debug("sync: realtime push failed", "path", path, "error", err)
				}
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("sync: watcher error", "error", err)
		}
	}
}

// Close stops the watcher. Safe to call once.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
