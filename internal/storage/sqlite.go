// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
	"github.com/hyperjump/roomfinder/internal/vector"
)

const roomColumns = `id, name, description, capacity, equipment, location, embedding, embedding_model, created_at, updated_at`

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL DEFAULT 0,
		equipment TEXT NOT NULL DEFAULT '[]',
		location TEXT NOT NULL DEFAULT '',
		embedding BLOB,
		embedding_model TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_embedding_model ON rooms(embedding_model);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertRoom inserts a room or updates it in place.
func (s *SQLiteStorage) UpsertRoom(ctx context.Context, room *models.Room) error {
	equipmentJSON, err := json.Marshal(nonNil(room.Equipment))
	if err != nil {
		return fmt.Errorf("failed to marshal equipment: %w", err)
	}
	var blob []byte
	if len(room.Embedding) > 0 {
		blob = vector.EncodeFloat32s(room.Embedding)
	}

	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (`+roomColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   capacity = excluded.capacity,
		   equipment = excluded.equipment,
		   location = excluded.location,
		   embedding = excluded.embedding,
		   embedding_model = excluded.embedding_model,
		   updated_at = excluded.updated_at`,
		room.ID, room.Name, room.Description, room.Capacity, string(equipmentJSON), room.Location,
		blob, room.EmbeddingModel, room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert room %s: %w", room.ID, err)
	}
	return nil
}

// GetRoom returns a room by ID.
func (s *SQLiteStorage) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

// DeleteRoom removes a room by ID.
func (s *SQLiteStorage) DeleteRoom(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("room %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

// UpdateEmbedding stores a new vector for an existing room.
func (s *SQLiteStorage) UpdateEmbedding(ctx context.Context, id string, embedding []float32, model string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET embedding = ?, embedding_model = ?, updated_at = ? WHERE id = ?`,
		vector.EncodeFloat32s(embedding), model, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("room %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

// ListRooms returns all rooms ordered by ID.
func (s *SQLiteStorage) ListRooms(ctx context.Context) ([]*models.Room, error) {
	return s.queryRooms(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY id ASC`)
}

// ListIndexedRooms returns rooms with a stored embedding ordered by ID.
func (s *SQLiteStorage) ListIndexedRooms(ctx context.Context) ([]*models.Room, error) {
	return s.queryRooms(ctx,
		`SELECT `+roomColumns+` FROM rooms
		 WHERE embedding IS NOT NULL AND length(embedding) > 0
		 ORDER BY id ASC`)
}

func (s *SQLiteStorage) queryRooms(ctx context.Context, query string) ([]*models.Room, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]*models.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(sc scanner) (*models.Room, error) {
	var room models.Room
	var equipmentJSON string
	var blob []byte
	if err := sc.Scan(&room.ID, &room.Name, &room.Description, &room.Capacity, &equipmentJSON,
		&room.Location, &blob, &room.EmbeddingModel, &room.CreatedAt, &room.UpdatedAt); err != nil {
		return nil, err
	}
	if equipmentJSON != "" {
		if err := json.Unmarshal([]byte(equipmentJSON), &room.Equipment); err != nil {
			return nil, fmt.Errorf("failed to unmarshal equipment for room %s: %w", room.ID, err)
		}
	}
	emb, err := vector.DecodeFloat32s(blob)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", room.ID, err)
	}
	room.Embedding = emb
	return &room, nil
}

// CountRooms returns the total number of rooms.
func (s *SQLiteStorage) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count)
	return count, err
}

// CountIndexedRooms returns the number of rooms with an embedding.
func (s *SQLiteStorage) CountIndexedRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rooms WHERE embedding IS NOT NULL AND length(embedding) > 0`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
