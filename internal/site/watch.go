package site

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDuration is how long Watch waits after the last change before it
// reloads the index.
const DebounceDuration = 500 * time.Millisecond

// Watch reloads index whenever files below dir change, until ctx is done.
// Only the listing is refreshed; rendered pages stay cached.
func Watch(ctx context.Context, dir string, index *Index, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("error walking content directory", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		if d.IsDir() {
			if watchErr := watcher.Add(path); watchErr != nil {
				logger.Warn("failed to watch directory", slog.String("path", path), slog.Any("error", watchErr))
			}
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to walk %s for watching: %w", dir, err)
	}

	go func() {
		defer watcher.Close()

		var mu sync.Mutex
		var timer *time.Timer
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
					continue
				}
				logger.Debug("content change detected", slog.String("path", event.Name), slog.String("op", event.Op.String()))

				if event.Has(fsnotify.Create) && isDir(event.Name) {
					if err := watcher.Add(event.Name); err != nil {
						logger.Warn("failed to watch new directory", slog.String("path", event.Name), slog.Any("error", err))
					}
				}

				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(DebounceDuration, func() {
					if err := index.Reload(ctx); err != nil {
						logger.Error("failed to reload post index", slog.Any("error", err))
						return
					}
					logger.Info("post index reloaded", slog.Int("posts", len(index.Posts())))
				})
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher error", slog.Any("error", err))
			}
		}
	}()

	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
