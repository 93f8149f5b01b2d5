package models

import "strings"

// SearchQuery is a natural-language room search request.
type SearchQuery struct {
	Query string `json:"query"`
	// Limit caps the number of results; 0 returns the full ranked set.
	Limit int `json:"limit,omitempty"`
	// MinScore overrides the configured relevance threshold for this request.
	MinScore *float64 `json:"min_score,omitempty"`
}

// IsReset reports whether the query is empty or whitespace-only, which lists all rooms.
func (q *SearchQuery) IsReset() bool {
	return strings.TrimSpace(q.Query) == ""
}

// Normalize clamps Limit to [0, maxLimit].
func (q *SearchQuery) Normalize(maxLimit int) {
	if q.Limit < 0 {
		q.Limit = 0
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
}
