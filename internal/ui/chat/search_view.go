// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley-tui/internal/search"
	"github.com/jeranaias/parley-tui/internal/ui/components"
	"github.com/jeranaias/parley-tui/internal/ui/styles"
)

// searchState is the user search screen.
type searchState struct {
	input  textinput.Model
	cursor int
}

func newSearchState() searchState {
	ti := textinput.New()
	ti.Prompt = "Search: "
	ti.Placeholder = "name or nickname"
	ti.CharLimit = 64
	return searchState{input: ti}
}

// openSearch shows the search screen, running query right away when it is
// not blank.
func (m Model) openSearch(query string) (tea.Model, tea.Cmd) {
	m.screen = ScreenSearch
	m.showHelp = false
	m.find.cursor = 0
	m.find.input.SetValue(query)
	m.find.input.CursorEnd()
	focus := m.find.input.Focus()
	if search.Normalize(query) == "" {
		m.deps.Search.Clear()
		return m, focus
	}
	return m, tea.Batch(focus, m.runSearch(query))
}

func (m Model) runSearch(query string) tea.Cmd {
	s := m.deps.Search
	ctx := m.ctx
	return func() tea.Msg {
		r, err := s.Search(ctx, query)
		return searchDoneMsg{results: r, err: err}
	}
}

func (m Model) loadMore() tea.Cmd {
	r := m.deps.Search.Results()
	if r == nil || !r.HasMore || m.deps.Search.Running() {
		return nil
	}
	s := m.deps.Search
	ctx := m.ctx
	query, next := r.Query, max(r.Page, 1)+1
	return func() tea.Msg {
		res, err := s.Page(ctx, query, next)
		return searchDoneMsg{results: res, err: err}
	}
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var users int
	if r := m.deps.Search.Results(); r != nil {
		users = len(r.Users)
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		m.debounce.Stop()
		m.find.input.Blur()
		m.screen = ScreenHome
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.find.cursor > 0 {
			m.find.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.find.cursor < users-1 {
			m.find.cursor++
			return m, nil
		}
		return m, m.loadMore()
	case key.Matches(msg, m.keys.PageDown):
		return m, m.loadMore()
	case key.Matches(msg, m.keys.Submit):
		r := m.deps.Search.Results()
		if r == nil || m.find.cursor >= len(r.Users) {
			return m, nil
		}
		m.debounce.Stop()
		m.find.input.Blur()
		return m.openThread(r.Users[m.find.cursor])
	}

	before := m.find.input.Value()
	var cmd tea.Cmd
	m.find.input, cmd = m.find.input.Update(msg)
	query := m.find.input.Value()
	if query != before {
		m.find.cursor = 0
		bridge := m.deps.Bridge
		m.debounce.Trigger(func() {
			bridge.Send(searchFireMsg{query: query})
		})
	}
	return m, cmd
}

// handleSearchFire runs a debounced query if it still matches the input.
func (m Model) handleSearchFire(msg searchFireMsg) (tea.Model, tea.Cmd) {
	if m.screen != ScreenSearch || msg.query != m.find.input.Value() {
		return m, nil
	}
	if search.Normalize(msg.query) == "" {
		m.deps.Search.Clear()
		return m, nil
	}
	return m, m.runSearch(msg.query)
}

func (m Model) handleSearchDone(msg searchDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil && !errors.Is(msg.err, search.ErrSuperseded) {
		m.log.Debug().Err(msg.err).Msg("search failed")
	}
	return m, nil
}

func (m Model) viewSearch() string {
	t := m.theme
	s := m.deps.Search
	var b strings.Builder

	b.WriteString(t.DialogTitle.Render("Find people"))
	b.WriteString("\n")
	b.WriteString(m.find.input.View())
	b.WriteString("\n\n")

	r := s.Results()
	me := m.deps.Session.Identity()
	switch {
	case s.Running() && r == nil:
		b.WriteString(t.Hint.Render("Searching..."))
	case r == nil:
		b.WriteString(t.Hint.Render("Type to search by name or nickname."))
	case len(r.Users) == 0:
		b.WriteString(t.EmptyState.Render("No users found."))
	}

	width := max(m.width/2, 30)
	if r != nil {
		for i, u := range r.Users {
			dot := t.OfflineDot.Render(styles.StatusIndicators.Offline)
			if m.deps.Session.IsOnline(u.ID) {
				dot = t.OnlineDot.Render(styles.StatusIndicators.Online)
			}
			line := dot + " " + components.Truncate(cleanName(u.DisplayName()), width-20)
			if u.Nickname != "" {
				line += " " + t.Hint.Render("@"+components.Truncate(cleanName(u.Nickname), 16))
			}
			switch {
			case me.HasBlocked(u.ID):
				line += " " + t.ErrorText.Render("blocked")
			case me.IsContact(u.ID):
				line += " " + t.StatusValue.Render("contact")
			}
			if i == m.find.cursor {
				line = t.PeerSelected.Render("> " + line)
			} else {
				line = t.PeerItem.Render("  " + line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		if r.HasMore {
			more := "More results, press PgDn"
			if r.Total > 0 {
				more = strconv.Itoa(len(r.Users)) + " of " + strconv.Itoa(r.Total) + ". " + more
			}
			b.WriteString(t.Hint.Render(more))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(t.Hint.Render("Enter open chat  /add in the chat saves the contact  Esc back"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Top,
		t.Dialog.Width(width+8).Render(b.String()))
}
