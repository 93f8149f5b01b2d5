// Package models defines core data structures for rooms, queries, and search results.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Room is a bookable conference room together with its stored embedding.
type Room struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	Capacity       int       `json:"capacity" db:"capacity"`
	Equipment      []string  `json:"equipment" db:"equipment"`
	Location       string    `json:"location" db:"location"`
	Embedding      []float32 `json:"-" db:"embedding"`
	EmbeddingModel string    `json:"embedding_model,omitempty" db:"embedding_model"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Indexed reports whether the room has a stored embedding.
func (r *Room) Indexed() bool {
	return len(r.Embedding) > 0
}

// IndexText is the text embedded for the room. Field order is fixed so the same
// room metadata always produces the same text.
func (r *Room) IndexText() string {
	var parts []string
	if r.Name != "" {
		parts = append(parts, r.Name)
	}
	if r.Description != "" {
		parts = append(parts, r.Description)
	}
	if r.Location != "" {
		parts = append(parts, "Location: "+r.Location)
	}
	if r.Capacity > 0 {
		parts = append(parts, fmt.Sprintf("Capacity: %d people", r.Capacity))
	}
	if len(r.Equipment) > 0 {
		parts = append(parts, "Equipment: "+strings.Join(r.Equipment, ", "))
	}
	return strings.Join(parts, ". ")
}

// RoomInput is the input for creating or updating a room.
type RoomInput struct {
	ID          string   `json:"id,omitempty" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Capacity    int      `json:"capacity,omitempty" yaml:"capacity"`
	Equipment   []string `json:"equipment,omitempty" yaml:"equipment"`
	Location    string   `json:"location,omitempty" yaml:"location"`
}

// Validate trims the input and rejects rooms without a name or with a negative capacity.
func (in *RoomInput) Validate() error {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	if in.Name == "" {
		return fmt.Errorf("room name cannot be empty")
	}
	if in.Capacity < 0 {
		return fmt.Errorf("room capacity cannot be negative")
	}
	equipment := in.Equipment[:0]
	for _, e := range in.Equipment {
		if e = strings.TrimSpace(e); e != "" {
			equipment = append(equipment, e)
		}
	}
	in.Equipment = equipment
	return nil
}
