// Package cli provides output formatting and an HTTP client for the roomfinder CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/roomfinder/internal/models"
	"github.com/hyperjump/roomfinder/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json" (case-insensitive).
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch SearchOutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	if response.Reset {
		fmt.Fprintf(w, "\n%d rooms\n\n", response.Total)
	} else {
		fmt.Fprintf(w, "\nFound %d rooms in %dms\n\n", response.Total, response.QueryTime)
	}
	if len(response.Results) == 0 && !response.Reset {
		fmt.Fprintln(w, "No rooms match your search.")
		return
	}
	for _, result := range response.Results {
		writeOneResult(w, result, !response.Reset)
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult, showScore bool) {
	room := result.Room
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	if showScore {
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", result.Rank, result.Score)
	}
	fmt.Fprintf(w, "%s (%s)\n", room.Name, room.ID)
	var meta []string
	if room.Location != "" {
		meta = append(meta, room.Location)
	}
	if room.Capacity > 0 {
		meta = append(meta, fmt.Sprintf("%d seats", room.Capacity))
	}
	if len(room.Equipment) > 0 {
		meta = append(meta, strings.Join(room.Equipment, ", "))
	}
	if len(meta) > 0 {
		fmt.Fprintln(w, strings.Join(meta, " | "))
	}
	if room.Description != "" {
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(room.Description, 200))
	}
	fmt.Fprintln(w)
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// Status is the /api/v1/status payload.
type Status struct {
	Rooms           int64                  `json:"rooms"`
	IndexedRooms    int64                  `json:"indexed_rooms"`
	EndpointEnabled bool                   `json:"endpoint_enabled"`
	Model           map[string]interface{} `json:"model"`
	DatabasePath    string                 `json:"database_path"`
	DiskUsageBytes  int64                  `json:"disk_usage_bytes,omitempty"`
}

// WriteStatus writes status to w in the given format.
func WriteStatus(w io.Writer, st *Status, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Rooms:          %d (%d indexed)\n", st.Rooms, st.IndexedRooms)
	if v, ok := st.Model["version"]; ok {
		fmt.Fprintf(w, "Model:          %v", v)
		if b, ok := st.Model["backend"]; ok {
			fmt.Fprintf(w, " (%v", b)
			if d, ok := st.Model["dimensions"]; ok {
				fmt.Fprintf(w, ", %v dims", d)
			}
			fmt.Fprint(w, ")")
		}
		fmt.Fprintln(w)
	}
	if s, ok := st.Model["state"]; ok {
		fmt.Fprintf(w, "Model state:    %v\n", s)
	}
	if e, ok := st.Model["last_error"]; ok {
		fmt.Fprintf(w, "Last error:     %v\n", e)
	}
	fmt.Fprintf(w, "Endpoint:       %s\n", enabled(st.EndpointEnabled))
	fmt.Fprintf(w, "Database:       %s\n", st.DatabasePath)
	if st.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "Disk usage:     %s\n", FormatBytes(st.DiskUsageBytes))
	}
	return nil
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
