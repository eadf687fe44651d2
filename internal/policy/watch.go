package policy

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kafkasder-git/panel/internal/obs"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the engine's table when the policy file changes. A file
// that fails to parse leaves the previous snapshot in place.
type Watcher struct {
	engine  *Engine
	path    string
	watcher *fsnotify.Watcher
}

// NewWatcher constructs a Watcher for the given policy file.
func NewWatcher(engine *Engine, path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files and the direct watch
	// would be lost on rename.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{engine: engine, path: path, watcher: fsw}, nil
}

// Start blocks until ctx is cancelled, swapping in new table snapshots as
// the file changes.
func (w *Watcher) Start(ctx context.Context) {
	var timer *time.Timer
	reload := make(chan struct{}, 1)
	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			obs.LogRequest(map[string]any{
				"ts":    time.Now().UTC().Format(time.RFC3339Nano),
				"level": "error",
				"msg":   "policy_watch_error",
				"error": err.Error(),
			})
		case <-reload:
			w.reload()
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) reload() {
	table, err := LoadFile(w.path)
	if err != nil {
		obs.LogRequest(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "policy_reload_failed",
			"path":  w.path,
			"error": err.Error(),
		})
		return
	}
	w.engine.Swap(table)
	obs.LogRequest(map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"msg":   "policy_reloaded",
		"path":  w.path,
		"roles": len(table.Roles()),
	})
}
