// Package tui implements the interactive room browser: a search bar over a grid of room cards.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SearchRequestedMsg is emitted by the search bar on submit or reset.
// An empty Query asks for the default listing.
type SearchRequestedMsg struct {
	Query string
}

// SearchBar holds the query text. While disabled it ignores keystrokes, submit and reset.
type SearchBar struct {
	input    textinput.Model
	disabled bool
}

var hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

// NewSearchBar returns a focused, empty search bar.
func NewSearchBar() SearchBar {
	in := textinput.New()
	in.Placeholder = "Describe the room you need, e.g. \"quiet room for 6 with a projector\""
	in.Prompt = "› "
	in.Width = 60
	in.Focus()
	return SearchBar{input: in}
}

// Value returns the current text.
func (b SearchBar) Value() string {
	return b.input.Value()
}

// SetValue replaces the text.
func (b SearchBar) SetValue(s string) SearchBar {
	b.input.SetValue(s)
	return b
}

// Disabled reports whether input is ignored.
func (b SearchBar) Disabled() bool {
	return b.disabled
}

// SetDisabled enables or disables the bar.
func (b SearchBar) SetDisabled(disabled bool) SearchBar {
	b.disabled = disabled
	if disabled {
		b.input.Blur()
	} else {
		b.input.Focus()
	}
	return b
}

// CanReset reports whether the reset action is offered.
func (b SearchBar) CanReset() bool {
	return !b.disabled && b.input.Value() != ""
}

// Update handles key input. Enter submits the text; Esc clears non-empty text and submits "".
func (b SearchBar) Update(msg tea.Msg) (SearchBar, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		b.input, cmd = b.input.Update(msg)
		return b, cmd
	}
	if b.disabled {
		return b, nil
	}
	switch key.Type {
	case tea.KeyEnter:
		return b, request(b.input.Value())
	case tea.KeyEscape:
		if b.input.Value() == "" {
			return b, nil
		}
		b.input.SetValue("")
		return b, request("")
	}
	var cmd tea.Cmd
	b.input, cmd = b.input.Update(msg)
	return b, cmd
}

func request(query string) tea.Cmd {
	return func() tea.Msg { return SearchRequestedMsg{Query: query} }
}

// View renders the input with its key hints.
func (b SearchBar) View() string {
	var s strings.Builder
	s.WriteString(b.input.View())
	s.WriteString("\n")
	hints := []string{"enter: search"}
	if b.CanReset() {
		hints = append(hints, "esc: reset")
	}
	s.WriteString(hintStyle.Render(strings.Join(hints, "  ·  ")))
	return s.String()
}
