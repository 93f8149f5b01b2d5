package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/roomfinder/internal/embedding"
	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
	"github.com/hyperjump/roomfinder/internal/storage"
)

func testIndexer(t *testing.T, version string) (*Indexer, *embedding.MockModel, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	model := embedding.NewMockModel(16)
	svc := embedding.NewService(embedding.MockLoader(model), 16)
	return NewIndexer(store, svc, version), model, store
}

func TestIndexer_UpsertRoom(t *testing.T) {
	idx, _, store := testIndexer(t, "mock-v1")
	ctx := context.Background()

	room, err := idx.UpsertRoom(ctx, &models.RoomInput{
		Name:        "  Fuji ",
		Description: "Large   boardroom\n with projector",
		Capacity:    20,
		Equipment:   []string{"projector", " ", "vc"},
	})
	if err != nil {
		t.Fatalf("UpsertRoom: %v", err)
	}
	if room.ID == "" {
		t.Error("expected a generated ID")
	}
	if room.Name != "Fuji" || room.Description != "Large boardroom with projector" {
		t.Errorf("room not normalized: %+v", room)
	}
	if len(room.Equipment) != 2 {
		t.Errorf("equipment = %v", room.Equipment)
	}

	got, err := store.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Embedding) != 16 || got.EmbeddingModel != "mock-v1" {
		t.Errorf("stored embedding len=%d model=%q", len(got.Embedding), got.EmbeddingModel)
	}
}

func TestIndexer_UpsertRoom_KeepsID(t *testing.T) {
	idx, _, _ := testIndexer(t, "mock-v1")
	room, err := idx.UpsertRoom(context.Background(), &models.RoomInput{ID: "r-42", Name: "Kyoto"})
	if err != nil {
		t.Fatal(err)
	}
	if room.ID != "r-42" {
		t.Errorf("ID = %q, want r-42", room.ID)
	}
}

func TestIndexer_UpsertRoom_Invalid(t *testing.T) {
	idx, model, _ := testIndexer(t, "mock-v1")
	_, err := idx.UpsertRoom(context.Background(), &models.RoomInput{Name: "   "})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
	if model.Calls() != 0 {
		t.Error("invalid input should not be embedded")
	}
}

func TestIndexer_UpsertRoom_SkipsUnchanged(t *testing.T) {
	idx, model, _ := testIndexer(t, "mock-v1")
	ctx := context.Background()
	in := models.RoomInput{ID: "r1", Name: "Osaka", Equipment: []string{"whiteboard"}}

	first := in
	if _, err := idx.UpsertRoom(ctx, &first); err != nil {
		t.Fatal(err)
	}
	second := in
	if _, err := idx.UpsertRoom(ctx, &second); err != nil {
		t.Fatal(err)
	}
	if model.Calls() != 1 {
		t.Errorf("embed calls = %d, want 1", model.Calls())
	}

	changed := in
	changed.Capacity = 8
	if _, err := idx.UpsertRoom(ctx, &changed); err != nil {
		t.Fatal(err)
	}
	if model.Calls() != 2 {
		t.Errorf("embed calls = %d, want 2 after a change", model.Calls())
	}
}

func TestIndexer_UpsertRoom_EmbeddingFailure(t *testing.T) {
	idx, model, store := testIndexer(t, "mock-v1")
	model.FailWith(errors.New("bad tensor"))
	_, err := idx.UpsertRoom(context.Background(), &models.RoomInput{ID: "r1", Name: "Nara"})
	if !errors.Is(err, errs.ErrInference) {
		t.Errorf("error = %v, want ErrInference", err)
	}
	if _, err := store.GetRoom(context.Background(), "r1"); !errors.Is(err, errs.ErrNotFound) {
		t.Error("room should not be stored when embedding fails")
	}
}

func TestIndexer_DeleteRoom(t *testing.T) {
	idx, _, store := testIndexer(t, "mock-v1")
	ctx := context.Background()
	if _, err := idx.UpsertRoom(ctx, &models.RoomInput{ID: "r1", Name: "Nara"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.DeleteRoom(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if n, _ := store.CountRooms(ctx); n != 0 {
		t.Errorf("CountRooms = %d, want 0", n)
	}
	if err := idx.DeleteRoom(ctx, "r1"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestIndexer_Reindex(t *testing.T) {
	ctx := context.Background()
	old, _, store := testIndexer(t, "mock-v1")
	for _, id := range []string{"r1", "r2"} {
		if _, err := old.UpsertRoom(ctx, &models.RoomInput{ID: id, Name: "Room " + id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.UpsertRoom(ctx, &models.Room{ID: "r3", Name: "Unindexed"}); err != nil {
		t.Fatal(err)
	}

	stats, err := old.Reindex(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Embedded != 1 || stats.Skipped != 2 {
		t.Errorf("stats = %+v, want 1 embedded / 2 skipped", stats)
	}

	model := embedding.NewMockModel(16)
	upgraded := NewIndexer(store, embedding.NewService(embedding.MockLoader(model), 16), "mock-v2")
	stats, err = upgraded.Reindex(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Embedded != 3 {
		t.Errorf("stats = %+v, want 3 embedded after model change", stats)
	}
	rooms, _ := store.ListIndexedRooms(ctx)
	for _, r := range rooms {
		if r.EmbeddingModel != "mock-v2" {
			t.Errorf("room %s model = %q", r.ID, r.EmbeddingModel)
		}
	}

	stats, err = upgraded.Reindex(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Embedded != 3 || stats.Skipped != 0 {
		t.Errorf("forced stats = %+v", stats)
	}
}
