package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/roomfinder/internal/models"
)

// RoomWriter stores rooms; *indexer.Indexer satisfies it.
type RoomWriter interface {
	UpsertRoom(ctx context.Context, input *models.RoomInput) (*models.Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// RoomLister lists stored rooms; used for pruning.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]*models.Room, error)
}

// ImportStats reports the outcome of an import.
type ImportStats struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
	Pruned   int `json:"pruned"`
}

// Importer loads catalog files into storage.
type Importer struct {
	writer RoomWriter
	lister RoomLister
	logger *zap.Logger
}

// NewImporter creates an importer. lister may be nil when pruning is never requested.
func NewImporter(writer RoomWriter, lister RoomLister, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{writer: writer, lister: lister, logger: logger}
}

// Import upserts every room in the catalog at path. A room that fails is logged and counted;
// the rest are still imported. With prune set, stored rooms missing from the catalog are deleted.
func (im *Importer) Import(ctx context.Context, path string, prune bool) (*ImportStats, error) {
	rooms, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	stats := &ImportStats{}
	seen := make(map[string]struct{}, len(rooms))
	var failures []error
	for i := range rooms {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		room, err := im.writer.UpsertRoom(ctx, &rooms[i])
		if err != nil {
			stats.Failed++
			failures = append(failures, fmt.Errorf("room %q: %w", rooms[i].Name, err))
			im.logger.Warn("catalog room failed", zap.String("name", rooms[i].Name), zap.Error(err))
			continue
		}
		seen[room.ID] = struct{}{}
		stats.Imported++
	}

	if prune && stats.Failed == 0 {
		if im.lister == nil {
			return stats, errors.New("pruning requires a room lister")
		}
		stored, err := im.lister.ListRooms(ctx)
		if err != nil {
			return stats, fmt.Errorf("failed to list rooms: %w", err)
		}
		for _, r := range stored {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			if err := im.writer.DeleteRoom(ctx, r.ID); err != nil {
				return stats, err
			}
			stats.Pruned++
		}
	}

	im.logger.Info("catalog imported",
		zap.String("path", path),
		zap.Int("imported", stats.Imported),
		zap.Int("failed", stats.Failed),
		zap.Int("pruned", stats.Pruned))
	return stats, errors.Join(failures...)
}
