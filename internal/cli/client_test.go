package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
)

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var q models.SearchQuery
		_ = json.NewDecoder(r.Body).Decode(&q)
		_ = json.NewEncoder(w).Encode(models.SearchResponse{Query: q.Query, Total: 0, Results: []*models.SearchResult{}})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL+"/", time.Second).Search(context.Background(), &models.SearchQuery{Query: "boardroom"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "boardroom" {
		t.Errorf("Query = %q", resp.Query)
	}
}

func TestClient_ErrorCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "no rooms indexed", Code: errs.CodeNoRoomsIndexed})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Search(context.Background(), &models.SearchQuery{Query: "x"})
	if !errors.Is(err, errs.ErrNoRoomsIndexed) {
		t.Errorf("error = %v, want ErrNoRoomsIndexed", err)
	}
}

func TestClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rooms":4,"indexed_rooms":4,"model":{"state":"ready"}}`))
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL, time.Second).Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Rooms != 4 || st.Model["state"] != "ready" {
		t.Errorf("status = %+v", st)
	}
}
