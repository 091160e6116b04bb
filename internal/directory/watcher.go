package directory

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/gatewarden/internal/log"
)

// reloadDebounce coalesces editor write bursts into one reload.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the directory when either backing file changes.
// Blocks until ctx is cancelled. A failed reload keeps the previous
// snapshot and is logged, never fatal.
func (d *Directory) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch parent directories: editors often replace files via rename,
	// which drops a watch registered on the file itself.
	dirs := map[string]bool{}
	for _, p := range []string{d.contactsPath, d.employeesPath} {
		if p == "" {
			continue
		}
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	logger := log.WithComponent("directory")

	// Single debounce timer, reset on each relevant event.
	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	relevant := func(name string) bool {
		return name == d.contactsPath || name == d.employeesPath ||
			filepath.Base(name) == filepath.Base(d.contactsPath) ||
			filepath.Base(name) == filepath.Base(d.employeesPath)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if relevant(event.Name) {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watch error")
		case <-timer.C:
			if err := d.Reload(); err != nil {
				logger.Warn().Err(err).Msg("reload failed, keeping previous snapshot")
				continue
			}
			logger.Info().Msg("directory reloaded")
		}
	}
}
