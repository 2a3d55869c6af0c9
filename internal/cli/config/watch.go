package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watch calls onChange after any of files is written, created or replaced.
// It watches the containing directories so editors that save by rename are
// seen too. Blocks until ctx is cancelled.
func Watch(ctx context.Context, files []string, onChange func(), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	wanted := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		if f == "" {
			continue
		}
		abs := absOrClean(f)
		wanted[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			// Don't fail - continue without watching this directory
			logger.Debug("failed to watch config directory", "dir", dir, "error", err)
		}
	}

	// Debounce timer
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !wanted[absOrClean(event.Name)] {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				logger.Debug("config file changed", "file", name)
				onChange()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

// WatchedFiles returns every file whose change affects cfg: the files that
// were loaded plus the locations that would be picked up if created.
func (c *Config) WatchedFiles(globalFile string) []string {
	if globalFile == "" {
		globalFile = GlobalConfigPath()
	}
	seen := make(map[string]bool)
	var files []string
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	for _, f := range c.Files {
		add(f)
	}
	add(globalFile)
	add(filepath.Join(c.WorkspaceRoot, WorkspaceFile))
	add(filepath.Join(c.FolderRoot, FolderFile))
	return files
}
