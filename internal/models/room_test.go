package models

import (
	"strings"
	"testing"
)

func TestRoom_IndexText(t *testing.T) {
	r := &Room{
		Name:        "Fuji",
		Description: "Quiet room with a view",
		Location:    "Floor 3",
		Capacity:    8,
		Equipment:   []string{"projector", "whiteboard"},
	}
	got := r.IndexText()
	want := "Fuji. Quiet room with a view. Location: Floor 3. Capacity: 8 people. Equipment: projector, whiteboard"
	if got != want {
		t.Errorf("IndexText() = %q, want %q", got, want)
	}
	if r.IndexText() != got {
		t.Error("IndexText should be deterministic")
	}
	if (&Room{}).IndexText() != "" {
		t.Error("empty room should have empty index text")
	}
}

func TestRoomInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   *RoomInput
		wantErr bool
	}{
		{"valid", &RoomInput{Name: "Fuji", Capacity: 4}, false},
		{"blank name", &RoomInput{Name: "   "}, true},
		{"negative capacity", &RoomInput{Name: "Fuji", Capacity: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	in := &RoomInput{ID: " r1 ", Name: " Fuji ", Equipment: []string{" tv ", "", "  "}}
	if err := in.Validate(); err != nil {
		t.Fatal(err)
	}
	if in.ID != "r1" || in.Name != "Fuji" {
		t.Errorf("fields not trimmed: %+v", in)
	}
	if len(in.Equipment) != 1 || in.Equipment[0] != "tv" {
		t.Errorf("equipment = %v, want [tv]", in.Equipment)
	}
}

func TestSearchQuery_IsReset(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		if !(&SearchQuery{Query: q}).IsReset() {
			t.Errorf("%q should be a reset query", q)
		}
	}
	if (&SearchQuery{Query: " projector "}).IsReset() {
		t.Error("non-empty query should not be a reset")
	}
}

func TestSearchQuery_Normalize(t *testing.T) {
	q := &SearchQuery{Query: "x", Limit: 500}
	q.Normalize(100)
	if q.Limit != 100 {
		t.Errorf("limit = %d, want 100", q.Limit)
	}
	q = &SearchQuery{Query: "x", Limit: -3}
	q.Normalize(100)
	if q.Limit != 0 {
		t.Errorf("limit = %d, want 0", q.Limit)
	}
}

func TestSearchResponse_RoomIDs(t *testing.T) {
	resp := &SearchResponse{Results: []*SearchResult{
		{Room: &Room{ID: "b"}}, {Room: &Room{ID: "a"}},
	}}
	if got := strings.Join(resp.RoomIDs(), ","); got != "b,a" {
		t.Errorf("RoomIDs() = %s", got)
	}
}
