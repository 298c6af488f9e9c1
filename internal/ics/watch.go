package ics

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "confsched/internal/log"
)

// watchDebounce coalesces the burst of events editors emit on save.
const watchDebounce = 250 * time.Millisecond

// WatchLocal calls onChange whenever one of the local agenda files changes.
// The parent directories are watched so that atomic rename-on-save is seen.
// It blocks until ctx is done. With no local sources it returns immediately.
func WatchLocal(ctx context.Context, sources []Source, onChange func()) error {
	files := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, src := range sources {
		if !src.IsLocal() {
			continue
		}
		p, err := filepath.Abs(src.LocalPath())
		if err != nil {
			return err
		}
		files[p] = struct{}{}
		dirs[filepath.Dir(p)] = struct{}{}
	}
	if len(files) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}
	appLog.Info("watching local agenda files", "files", len(files))

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
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
			if _, tracked := files[filepath.Clean(event.Name)]; !tracked {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			appLog.Debug("agenda file changed", "path", event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			appLog.Error("agenda watch error", err)
		}
	}
}
