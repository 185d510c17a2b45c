package i18n

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay batches the burst of events an editor save produces.
const reloadDelay = 200 * time.Millisecond

// Watch reloads the catalog whenever a YAML file in the override directory
// changes. It blocks until ctx is done. Without an override directory it
// returns immediately.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.overrideDir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("dictionary watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.overrideDir); err != nil {
		return fmt.Errorf("watch %s: %w", c.overrideDir, err)
	}
	c.logger.Info("watching dictionary overrides", zap.String("dir", c.overrideDir))

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".yaml") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			c.logger.Debug("dictionary changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
			timer.Reset(reloadDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("dictionary watcher error", zap.Error(err))

		case <-timer.C:
			if err := c.Reload(); err != nil {
				c.logger.Error("dictionary reload failed, keeping previous", zap.Error(err))
				continue
			}
			c.logger.Info("dictionaries reloaded")
		}
	}
}
