package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/models"
	"github.com/hyperjump/roomfinder/pkg/utils"
)

const (
	cardWidth      = 32
	descriptionLen = 80
)

// Searcher runs a room search: the local gateway or the HTTP client.
type Searcher interface {
	Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error)
}

// searchResultMsg carries the outcome of a search started with sequence number seq.
type searchResultMsg struct {
	seq  int
	resp *models.SearchResponse
	err  error
}

// cancelHolder shares the in-flight cancel func across model copies.
type cancelHolder struct {
	cancel context.CancelFunc
}

// RoomsPage is the bubbletea model of the room browser.
type RoomsPage struct {
	bar       SearchBar
	spinner   spinner.Model
	searcher  Searcher
	limit     int
	inflight  *cancelHolder
	seq       int
	searching bool
	cancelled bool
	err       error
	empty     bool
	resp      *models.SearchResponse
	width     int
	quitting  bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	nameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	cardStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).Width(cardWidth)
	headerStyle = lipgloss.NewStyle().MarginBottom(1)
)

// NewRoomsPage creates the browser. limit caps the number of cards; 0 shows all.
func NewRoomsPage(searcher Searcher, limit int) RoomsPage {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return RoomsPage{
		bar:      NewSearchBar(),
		spinner:  s,
		searcher: searcher,
		limit:    limit,
		inflight: &cancelHolder{},
		width:    80,
	}
}

// Init loads the default listing.
func (m RoomsPage) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, request(""))
}

// Update implements tea.Model.
func (m RoomsPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.searching {
				m.cancelSearch()
				m.searching = false
				m.cancelled = true
				m.bar = m.bar.SetDisabled(false)
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case SearchRequestedMsg:
		if m.searching {
			return m, nil
		}
		return m.startSearch(msg.Query)

	case searchResultMsg:
		if msg.seq != m.seq || !m.searching {
			return m, nil
		}
		m.cancelSearch()
		m.searching = false
		m.bar = m.bar.SetDisabled(false)
		switch {
		case msg.err == nil:
			m.resp = msg.resp
		case errors.Is(msg.err, errs.ErrNoRoomsIndexed):
			m.empty = true
			m.resp = nil
		case errors.Is(msg.err, context.Canceled):
			m.cancelled = true
		default:
			m.err = msg.err
		}
		return m, nil

	case spinner.TickMsg:
		if m.searching {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.bar, cmd = m.bar.Update(msg)
	return m, cmd
}

func (m RoomsPage) startSearch(query string) (tea.Model, tea.Cmd) {
	m.cancelSearch()
	ctx, cancel := context.WithCancel(context.Background())
	m.inflight.cancel = cancel
	m.seq++
	m.searching = true
	m.cancelled = false
	m.err = nil
	m.empty = false
	m.bar = m.bar.SetDisabled(true)

	seq := m.seq
	searcher := m.searcher
	q := &models.SearchQuery{Query: query, Limit: m.limit}
	search := func() tea.Msg {
		resp, err := searcher.Search(ctx, q)
		return searchResultMsg{seq: seq, resp: resp, err: err}
	}
	return m, tea.Batch(search, m.spinner.Tick)
}

func (m RoomsPage) cancelSearch() {
	if m.inflight.cancel != nil {
		m.inflight.cancel()
		m.inflight.cancel = nil
	}
}

// View implements tea.Model.
func (m RoomsPage) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(titleStyle.Render("roomfinder")))
	b.WriteString("\n")
	b.WriteString(m.bar.View())
	b.WriteString("\n\n")

	switch {
	case m.searching:
		b.WriteString(m.spinner.View())
		b.WriteString(" Searching... ")
		b.WriteString(mutedStyle.Render("(ctrl+c to cancel)"))
		b.WriteString("\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("✗ Search failed: " + m.err.Error()))
		b.WriteString("\n")
	case m.empty:
		b.WriteString(mutedStyle.Render("No rooms have been indexed yet. Import a catalog with `roomfinder import`."))
		b.WriteString("\n")
	case m.cancelled:
		b.WriteString(mutedStyle.Render("Search cancelled."))
		b.WriteString("\n")
	case m.resp != nil && len(m.resp.Results) == 0:
		if m.resp.Reset {
			b.WriteString(mutedStyle.Render("No rooms yet."))
		} else {
			b.WriteString(mutedStyle.Render("No rooms match your search."))
		}
		b.WriteString("\n")
	case m.resp != nil:
		b.WriteString(mutedStyle.Render(summary(m.resp)))
		b.WriteString("\n")
		b.WriteString(m.grid())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("ctrl+c: quit"))
	b.WriteString("\n")
	return b.String()
}

func summary(resp *models.SearchResponse) string {
	if resp.Reset {
		return fmt.Sprintf("%d rooms", resp.Total)
	}
	return fmt.Sprintf("%d of %d matches for %q in %dms", len(resp.Results), resp.Total, resp.Query, resp.QueryTime)
}

func (m RoomsPage) grid() string {
	perRow := m.width / (cardWidth + 4)
	if perRow < 1 {
		perRow = 1
	}
	var rows []string
	for i := 0; i < len(m.resp.Results); i += perRow {
		end := i + perRow
		if end > len(m.resp.Results) {
			end = len(m.resp.Results)
		}
		cards := make([]string, 0, end-i)
		for _, r := range m.resp.Results[i:end] {
			cards = append(cards, renderCard(r, !m.resp.Reset))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(r *models.SearchResult, showScore bool) string {
	room := r.Room
	lines := []string{nameStyle.Render(room.Name)}
	var meta []string
	if room.Location != "" {
		meta = append(meta, room.Location)
	}
	if room.Capacity > 0 {
		meta = append(meta, fmt.Sprintf("%d seats", room.Capacity))
	}
	if len(meta) > 0 {
		lines = append(lines, mutedStyle.Render(strings.Join(meta, " · ")))
	}
	if len(room.Equipment) > 0 {
		lines = append(lines, strings.Join(room.Equipment, ", "))
	}
	if room.Description != "" {
		lines = append(lines, utils.Truncate(room.Description, descriptionLen))
	}
	if showScore {
		lines = append(lines, scoreStyle.Render(fmt.Sprintf("score %.3f", r.Score)))
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

// Run starts the browser on the terminal and blocks until the user quits.
func Run(searcher Searcher, limit int) error {
	_, err := tea.NewProgram(NewRoomsPage(searcher, limit), tea.WithAltScreen()).Run()
	return err
}
