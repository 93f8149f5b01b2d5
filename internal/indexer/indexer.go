// Package indexer embeds rooms and writes them to storage.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/roomfinder/internal/embedding"
	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
	"github.com/hyperjump/roomfinder/internal/storage"
)

// Indexer keeps stored rooms and their embeddings in sync.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	modelVersion string
	logger       *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (room indexed, room deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer. modelVersion is recorded with every embedding so vectors
// from another model can be detected and re-embedded.
func NewIndexer(storage storage.Storage, embedder embedding.Embedder, modelVersion string, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage:      storage,
		embedder:     embedder,
		modelVersion: modelVersion,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// UpsertRoom validates input, embeds the room and stores it. A room without an ID gets a new UUID.
// If the stored room has the same metadata and was embedded by the current model, the
// embedding is reused.
func (idx *Indexer) UpsertRoom(ctx context.Context, input *models.RoomInput) (*models.Room, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	room := &models.Room{
		ID:          input.ID,
		Name:        input.Name,
		Description: Preprocess(input.Description),
		Capacity:    input.Capacity,
		Equipment:   input.Equipment,
		Location:    input.Location,
	}

	existing, err := idx.storage.GetRoom(ctx, room.ID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	if existing != nil && idx.current(existing) && sameMetadata(existing, room) {
		idx.logger.Debug("indexer skipping unchanged room", zap.String("id", room.ID))
		return existing, nil
	}
	if existing != nil {
		room.CreatedAt = existing.CreatedAt
	}

	if err := idx.embed(ctx, room); err != nil {
		return nil, err
	}
	if err := idx.storage.UpsertRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to store room: %w", err)
	}
	idx.logger.Debug("indexer room indexed", zap.String("id", room.ID), zap.String("name", room.Name))
	return room, nil
}

// DeleteRoom removes a room and its embedding.
func (idx *Indexer) DeleteRoom(ctx context.Context, id string) error {
	idx.logger.Debug("indexer deleting room", zap.String("id", id))
	if err := idx.storage.DeleteRoom(ctx, id); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

// ReindexStats reports what Reindex did.
type ReindexStats struct {
	Embedded int `json:"embedded"`
	Skipped  int `json:"skipped"`
}

// Reindex embeds every room that has no embedding or was embedded by another model.
// With force set, every room is re-embedded.
func (idx *Indexer) Reindex(ctx context.Context, force bool) (*ReindexStats, error) {
	rooms, err := idx.storage.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	stats := &ReindexStats{}
	for _, room := range rooms {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !force && idx.current(room) {
			stats.Skipped++
			continue
		}
		if err := idx.embed(ctx, room); err != nil {
			return stats, err
		}
		if err := idx.storage.UpdateEmbedding(ctx, room.ID, room.Embedding, room.EmbeddingModel); err != nil {
			return stats, fmt.Errorf("failed to store embedding for %s: %w", room.ID, err)
		}
		stats.Embedded++
	}
	idx.logger.Info("reindex finished", zap.Int("embedded", stats.Embedded), zap.Int("skipped", stats.Skipped))
	return stats, nil
}

func (idx *Indexer) embed(ctx context.Context, room *models.Room) error {
	vec, err := idx.embedder.Embed(ctx, room.IndexText())
	if err != nil {
		return fmt.Errorf("failed to embed room %s: %w", room.ID, err)
	}
	if want := idx.embedder.Dimensions(); want > 0 && len(vec) != want {
		return fmt.Errorf("%w: room %s embedded to %d dimensions, expected %d", errs.ErrDimensionMismatch, room.ID, len(vec), want)
	}
	room.Embedding = vec
	room.EmbeddingModel = idx.modelVersion
	return nil
}

func (idx *Indexer) current(room *models.Room) bool {
	return room.Indexed() && room.EmbeddingModel == idx.modelVersion &&
		(idx.embedder.Dimensions() == 0 || len(room.Embedding) == idx.embedder.Dimensions())
}

func sameMetadata(a, b *models.Room) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.Capacity == b.Capacity &&
		a.Location == b.Location &&
		slices.Equal(a.Equipment, b.Equipment)
}
