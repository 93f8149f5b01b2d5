package models

// SearchResult is a single ranked room.
type SearchResult struct {
	Room  *Room   `json:"room"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// SearchResponse is the ranked room list for a query.
// Results is never nil so an empty match serializes as [].
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	Query     string          `json:"query"`
	QueryTime int64           `json:"query_time_ms"`
	// Reset is true when the query was empty and the default listing was returned.
	Reset bool `json:"reset,omitempty"`
}

// RoomIDs returns the result room IDs in rank order.
func (r *SearchResponse) RoomIDs() []string {
	ids := make([]string, len(r.Results))
	for i, res := range r.Results {
		ids[i] = res.Room.ID
	}
	return ids
}
