// SPDX-License-Identifier: MIT
package config

import (
	"context"
	"fmt"

	applog "micscope/internal/log"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file at path whenever it is written or
// recreated and passes the new, validated configuration to onReload.
// Invalid files are logged and skipped. Watch returns once the
// watcher is registered; it stops when ctx is cancelled.
func Watch(ctx context.Context, path string, onReload func(*Config)) error {
	if path == "" {
		return fmt.Errorf("config watch: no config file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("config watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					applog.Errorf("Config: reload of %s failed: %v", path, err)
					continue
				}
				applog.Infof("Config: reloaded %s", path)
				onReload(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				applog.Errorf("Config: watcher error: %v", err)
			}
		}
	}()

	return nil
}
