package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/roomfinder/internal/watcher"
)

// Watch re-imports the catalog at path whenever it changes, until ctx ends.
// Removing the file keeps the rooms already imported.
func (im *Importer) Watch(ctx context.Context, path string, opts ...watcher.WatcherOption) (*watcher.Watcher, error) {
	onChange := func(p string) {
		if _, err := im.Import(ctx, p, false); err != nil {
			im.logger.Warn("catalog re-import failed", zap.String("path", p), zap.Error(err))
		}
	}
	onRemove := func(p string) {
		im.logger.Info("catalog file removed; keeping imported rooms", zap.String("path", p))
	}
	w := watcher.NewWatcher([]string{path}, onChange, onRemove, append([]watcher.WatcherOption{watcher.WithLogger(im.logger)}, opts...)...)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
