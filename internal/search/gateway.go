// Package search ranks rooms against a natural-language query.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
	"github.com/hyperjump/roomfinder/internal/vector"
)

// Embedder turns the query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RoomSource supplies the rooms to search.
type RoomSource interface {
	ListRooms(ctx context.Context) ([]*models.Room, error)
	ListIndexedRooms(ctx context.Context) ([]*models.Room, error)
}

// Options holds ranking settings.
type Options struct {
	// MinScore is the default relevance threshold; nil disables filtering.
	MinScore     *float64
	TieTolerance float64
	MaxLimit     int
	// ModelVersion restricts ranking to rooms embedded by this model. Empty accepts any.
	ModelVersion string
}

// Gateway runs room searches. Each call works on its own snapshot of the rooms.
type Gateway struct {
	rooms    RoomSource
	embedder Embedder
	opts     Options
	logger   *zap.Logger
}

// NewGateway creates a gateway. A nil logger disables logging.
func NewGateway(rooms RoomSource, embedder Embedder, opts Options, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{rooms: rooms, embedder: embedder, opts: opts, logger: logger}
}

// Search ranks rooms by cosine similarity to the query. An empty or whitespace query lists every
// room by ID without calling the embedder. A non-empty query against a corpus with no indexed
// rooms fails with errs.ErrNoRoomsIndexed.
func (g *Gateway) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := ProcessQuery(query, g.opts.MaxLimit); err != nil {
		return nil, err
	}
	if query.IsReset() {
		return g.listAll(ctx, query, start)
	}

	rooms, err := g.rooms.ListIndexedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}
	rooms = g.currentRooms(rooms)
	if len(rooms) == 0 {
		return nil, errs.ErrNoRoomsIndexed
	}

	queryVec, err := g.embedder.Embed(ctx, strings.TrimSpace(query.Query))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	byID := make(map[string]*models.Room, len(rooms))
	candidates := make([]vector.Candidate, len(rooms))
	for i, r := range rooms {
		byID[r.ID] = r
		candidates[i] = vector.Candidate{ID: r.ID, Vector: r.Embedding}
	}

	minScore := g.opts.MinScore
	if query.MinScore != nil {
		minScore = query.MinScore
	}
	ranked, err := vector.Rank(queryVec, candidates, vector.RankOptions{
		TieTolerance: g.opts.TieTolerance,
		MinScore:     minScore,
	})
	if err != nil {
		return nil, err
	}

	total := len(ranked)
	if query.Limit > 0 && query.Limit < len(ranked) {
		ranked = ranked[:query.Limit]
	}
	resp := &models.SearchResponse{
		Results: make([]*models.SearchResult, len(ranked)),
		Total:   total,
		Query:   query.Query,
	}
	for i, r := range ranked {
		resp.Results[i] = &models.SearchResult{Room: byID[r.ID], Score: r.Score, Rank: i + 1}
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	g.logger.Debug("search",
		zap.String("query", query.Query),
		zap.Int("candidates", len(rooms)),
		zap.Int("matches", total),
		zap.Int64("ms", resp.QueryTime))
	return resp, nil
}

// currentRooms drops rooms whose vectors came from another model version; they are not
// comparable with the query vector until a reindex.
func (g *Gateway) currentRooms(rooms []*models.Room) []*models.Room {
	if g.opts.ModelVersion == "" {
		return rooms
	}
	current := rooms[:0:0]
	for _, r := range rooms {
		if r.EmbeddingModel == g.opts.ModelVersion {
			current = append(current, r)
		}
	}
	if stale := len(rooms) - len(current); stale > 0 {
		g.logger.Warn("skipping rooms embedded by another model; run reindex",
			zap.Int("stale", stale),
			zap.String("model_version", g.opts.ModelVersion))
	}
	return current
}

func (g *Gateway) listAll(ctx context.Context, query *models.SearchQuery, start time.Time) (*models.SearchResponse, error) {
	rooms, err := g.rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}
	total := len(rooms)
	if query.Limit > 0 && query.Limit < len(rooms) {
		rooms = rooms[:query.Limit]
	}
	resp := &models.SearchResponse{
		Results: make([]*models.SearchResult, len(rooms)),
		Total:   total,
		Query:   query.Query,
		Reset:   true,
	}
	for i, r := range rooms {
		resp.Results[i] = &models.SearchResult{Room: r, Rank: i + 1}
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}
