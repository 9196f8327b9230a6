package daemon

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchPolicyFile watches the policy file's directory and enqueues a reload
// when the file is written, created, or renamed into place. Watching the
// directory instead of the file survives editors that replace the file.
func (d *Daemon) watchPolicyFile() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(d.settings.PolicyFile)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	target := filepath.Clean(d.settings.PolicyFile)

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				slog.Debug("policy file changed", "op", ev.Op.String())
				d.RequestReload()
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("policy file watcher error", "error", werr)
			}
		}
	}()
	return func() { _ = w.Close() }, nil
}
