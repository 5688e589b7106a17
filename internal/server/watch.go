package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/manifestkit/internal/templatefile"
)

// watchDebounce is how long the watcher waits for writes to settle before
// importing a changed file.
const watchDebounce = 100 * time.Millisecond

// watchTemplates imports every template file in dir, then re-imports files
// as they are written or created until ctx is cancelled. Import failures are
// logged and do not stop the watcher.
func (s *Server) watchTemplates(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && templatefile.IsTemplateFile(e.Name()) {
			s.importTemplateFile(ctx, filepath.Join(dir, e.Name()))
		}
	}

	s.logger.Info("watching template directory", slog.String("dir", dir))

	pending := make(map[string]struct{})
	timer := time.NewTimer(watchDebounce)
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
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !templatefile.IsTemplateFile(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(watchDebounce)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)
			for _, p := range paths {
				s.importTemplateFile(ctx, p)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("template watcher error", slog.String("error", err.Error()))
		}
	}
}

func (s *Server) importTemplateFile(ctx context.Context, path string) {
	res, err := templatefile.ImportFile(ctx, s.store, path, s.logger)
	if err != nil {
		s.logger.Warn("failed to import template file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	s.metrics.TemplatesSaved.Add(float64(res.Created + res.Updated))
	s.logger.Info("imported template file",
		slog.String("path", path),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated))
}
