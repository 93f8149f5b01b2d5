package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
)

type fakeSearcher struct {
	queries []string
	resp    *models.SearchResponse
	err     error
	block   bool
}

func (f *fakeSearcher) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	f.queries = append(f.queries, q.Query)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query: "projector",
		Total: 2,
		Results: []*models.SearchResult{
			{Room: &models.Room{ID: "r1", Name: "Fuji", Capacity: 20, Location: "Floor 5", Equipment: []string{"projector"}}, Score: 0.91, Rank: 1},
			{Room: &models.Room{ID: "r2", Name: "Kyoto", Capacity: 2}, Score: 0.12, Rank: 2},
		},
	}
}

// runSearch submits query and feeds the search result back into the page.
func runSearch(t *testing.T, m RoomsPage, query string) RoomsPage {
	t.Helper()
	updated, cmd := m.Update(SearchRequestedMsg{Query: query})
	m = updated.(RoomsPage)
	if !m.searching {
		t.Fatal("expected searching state after a search request")
	}
	if cmd == nil {
		t.Fatal("expected a search command")
	}
	var result tea.Msg
	for _, msg := range drain(cmd) {
		if r, ok := msg.(searchResultMsg); ok {
			result = r
		}
	}
	if result == nil {
		t.Fatal("search command produced no result")
	}
	updated, _ = m.Update(result)
	return updated.(RoomsPage)
}

// drain runs cmd and any batched commands and collects their messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			if c == nil {
				continue
			}
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestRoomsPage_SearchShowsGrid(t *testing.T) {
	f := &fakeSearcher{resp: sampleResponse()}
	m := runSearch(t, NewRoomsPage(f, 0), "projector")

	if m.searching || m.bar.Disabled() {
		t.Error("page should be idle and the bar enabled after a result")
	}
	view := m.View()
	for _, want := range []string{"Fuji", "Kyoto", "score 0.910", "20 seats"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if len(f.queries) != 1 || f.queries[0] != "projector" {
		t.Errorf("queries = %v", f.queries)
	}
}

func TestRoomsPage_ResetListingHidesScores(t *testing.T) {
	resp := sampleResponse()
	resp.Reset = true
	m := runSearch(t, NewRoomsPage(&fakeSearcher{resp: resp}, 0), "")
	if strings.Contains(m.View(), "score") {
		t.Error("reset listing should not show scores")
	}
}

func TestRoomsPage_DisablesBarWhileSearching(t *testing.T) {
	m := NewRoomsPage(&fakeSearcher{resp: sampleResponse()}, 0)
	updated, _ := m.Update(SearchRequestedMsg{Query: "x"})
	m = updated.(RoomsPage)
	if !m.bar.Disabled() {
		t.Error("bar should be disabled while a search is in flight")
	}
	if !strings.Contains(m.View(), "Searching") {
		t.Error("view should show the spinner line")
	}
	updated, cmd := m.Update(SearchRequestedMsg{Query: "y"})
	if cmd != nil || updated.(RoomsPage).seq != m.seq {
		t.Error("a second request while searching should be ignored")
	}
}

func TestRoomsPage_ErrorShownNotRetried(t *testing.T) {
	f := &fakeSearcher{err: fmt.Errorf("embed: %w", errs.ErrModelUnavailable)}
	m := runSearch(t, NewRoomsPage(f, 0), "projector")
	if m.err == nil || !strings.Contains(m.View(), "Search failed") {
		t.Error("error should be displayed")
	}
	if len(f.queries) != 1 {
		t.Errorf("search ran %d times, want 1", len(f.queries))
	}
}

func TestRoomsPage_NoRoomsIndexedIsEmptyState(t *testing.T) {
	m := runSearch(t, NewRoomsPage(&fakeSearcher{err: errs.ErrNoRoomsIndexed}, 0), "projector")
	if m.err != nil {
		t.Error("no rooms indexed should not be an error")
	}
	if !strings.Contains(m.View(), "No rooms have been indexed yet") {
		t.Error("empty-state message missing")
	}
}

func TestRoomsPage_CtrlCCancelsInFlightSearch(t *testing.T) {
	f := &fakeSearcher{block: true}
	m := NewRoomsPage(f, 0)
	updated, cmd := m.Update(SearchRequestedMsg{Query: "x"})
	m = updated.(RoomsPage)

	done := make(chan []tea.Msg, 1)
	go func() { done <- drain(cmd) }()

	updated, quit := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = updated.(RoomsPage)
	if quit != nil {
		t.Error("ctrl+c during a search should cancel, not quit")
	}
	if m.searching || !m.cancelled {
		t.Error("page should be idle and marked cancelled")
	}

	msgs := <-done
	for _, msg := range msgs {
		if r, ok := msg.(searchResultMsg); ok {
			if !errors.Is(r.err, context.Canceled) {
				t.Errorf("search error = %v, want canceled", r.err)
			}
			updated, _ = m.Update(r)
			m = updated.(RoomsPage)
		}
	}
	if m.err != nil {
		t.Error("a cancelled search should not be reported as an error")
	}
	if !strings.Contains(m.View(), "Search cancelled") {
		t.Error("view should say the search was cancelled")
	}

	_, quit = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if quit == nil {
		t.Error("ctrl+c while idle should quit")
	}
}

func TestRoomsPage_StaleResultIgnored(t *testing.T) {
	m := NewRoomsPage(&fakeSearcher{resp: sampleResponse()}, 0)
	updated, _ := m.Update(SearchRequestedMsg{Query: "x"})
	m = updated.(RoomsPage)
	updated, _ = m.Update(searchResultMsg{seq: m.seq - 1, err: errors.New("old")})
	m = updated.(RoomsPage)
	if !m.searching || m.err != nil {
		t.Error("a result from an earlier search should be ignored")
	}
}

func TestRoomsPage_GridWrapsToWidth(t *testing.T) {
	m := runSearch(t, NewRoomsPage(&fakeSearcher{resp: sampleResponse()}, 0), "projector")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	wide := updated.(RoomsPage).grid()
	updated, _ = m.Update(tea.WindowSizeMsg{Width: 20, Height: 40})
	narrow := updated.(RoomsPage).grid()
	if strings.Count(wide, "\n") >= strings.Count(narrow, "\n") {
		t.Error("narrow terminals should stack cards vertically")
	}
}
