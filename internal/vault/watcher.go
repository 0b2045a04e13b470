package vault

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"cerebro/internal/contextutil"
)

// defaultDebounce batches bursts of filesystem events (editors often write a
// file several times in quick succession) into one sync pass.
const defaultDebounce = 2 * time.Second

// SyncFunc is invoked after the debounce window once at least one eligible
// note changed on disk.
type SyncFunc func(ctx context.Context) error

// Watch starts an fsnotify watcher on the vault root and invokes sync after
// each debounced batch of note changes until ctx is cancelled. Directories
// created at runtime are added to the watch list. Watcher errors are logged;
// they stop the watcher but never the caller.
func Watch(ctx context.Context, scanner *Scanner, debounce time.Duration, sync SyncFunc) error {
	logger := contextutil.LoggerFromContext(ctx)

	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Close()
	}()

	if err := addDirsRecursive(w, scanner.Root()); err != nil {
		return err
	}

	logger.InfoContext(ctx, "vault watcher started", "root", scanner.Root())

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.InfoContext(ctx, "vault watcher stopped")
			return nil

		case <-timerCh:
			if err := sync(ctx); err != nil {
				logger.ErrorContext(ctx, "watcher-triggered sync failed", "error", err)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.WarnContext(ctx, "failed to watch new directory", "path", ev.Name, "error", addErr)
					}
					schedule()
					continue
				}
			}

			if !Eligible(filepath.Base(ev.Name)) {
				continue
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.DebugContext(ctx, "note change observed", "path", ev.Name, "op", ev.Op.String())
				schedule()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "watcher error", "error", err)
		}
	}
}

// addDirsRecursive registers root and all its subdirectories with the
// watcher, skipping the .obsidian configuration directory.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".obsidian" {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
