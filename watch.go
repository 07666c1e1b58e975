package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/renderer"
)

// watchDebounce collapses the burst of events editors emit on save
const watchDebounce = 200 * time.Millisecond

// watchScene renders once, then again after every change to path, until
// ctx is cancelled. Render errors are logged and do not stop the watch.
// The parent directory is watched because editors often replace the file.
func watchScene(ctx context.Context, path string, render func(context.Context) error, logger core.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	runRender := func() {
		if err := render(ctx); err != nil && !renderer.IsCancelled(err) {
			logger.Printf("Error rendering %s: %v\n", path, err)
		}
	}

	runRender()
	logger.Printf("Watching %s for changes\n", path)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("Warning: file watcher: %v\n", err)
		case <-debounce:
			debounce = nil
			logger.Printf("%s changed, re-rendering\n", path)
			runRender()
		}
	}
}
