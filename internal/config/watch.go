package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch re-reads path into store whenever it changes on disk, adapting
// the teacher's internal/stream.Tailer write-event-plus-ticker-fallback
// loop from watching a log file to watching the config file. Only the
// hot-reloadable tunables in Store are expected to change at runtime;
// process-topology fields are captured once by the caller at startup.
func Watch(ctx context.Context, path string, store *Store, log *zap.Logger) {
	if path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("config watcher unavailable", zap.Error(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		log.Warn("failed to watch config file", zap.String("path", path), zap.Error(err))
		return
	}

	reload := func() {
		cfg, err := LoadConfig(path)
		if err != nil {
			log.Warn("config reload failed, keeping previous config", zap.Error(err))
			return
		}
		store.Set(cfg)
		log.Info("config reloaded", zap.String("path", path))
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				reload()
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// Editors often replace-by-rename; re-arm the watch.
				_ = watcher.Add(path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", zap.Error(err))
		case <-ticker.C:
			// Fallback in case the filesystem notifier misses an event
			// (network filesystems, some container overlays).
			reload()
		}
	}
}
