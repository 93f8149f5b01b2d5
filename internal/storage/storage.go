// Package storage defines the persistence interface for rooms and their embeddings.
package storage

import (
	"context"

	"github.com/hyperjump/roomfinder/internal/models"
)

// Storage defines room persistence operations.
type Storage interface {
	// UpsertRoom inserts or replaces a room, keeping the original created_at on update.
	UpsertRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	DeleteRoom(ctx context.Context, id string) error
	// UpdateEmbedding replaces only the stored vector and the model that produced it.
	UpdateEmbedding(ctx context.Context, id string, embedding []float32, model string) error

	// ListRooms returns every room ordered by ID ascending.
	ListRooms(ctx context.Context) ([]*models.Room, error)
	// ListIndexedRooms returns rooms that have an embedding, ordered by ID ascending.
	ListIndexedRooms(ctx context.Context) ([]*models.Room, error)

	// Stats
	CountRooms(ctx context.Context) (int64, error)
	CountIndexedRooms(ctx context.Context) (int64, error)

	Close() error
}
