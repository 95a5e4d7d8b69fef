// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley-tui/internal/conversation"
	"github.com/jeranaias/parley-tui/internal/media"
	"github.com/jeranaias/parley-tui/internal/notify"
	"github.com/jeranaias/parley-tui/internal/search"
	"github.com/jeranaias/parley-tui/internal/session"
	"github.com/jeranaias/parley-tui/internal/settings"
	"github.com/jeranaias/parley-tui/internal/ui/components"
	"github.com/jeranaias/parley-tui/internal/ui/styles"
)

// =============================================================================
// SCREENS
// =============================================================================

// Screen identifies what the application is showing.
type Screen int

const (
	ScreenLoading Screen = iota // probing the stored session
	ScreenLogin
	ScreenSignup
	ScreenForgot
	ScreenReset
	ScreenHome
	ScreenSettings
	ScreenSearch
)

// String returns the screen name.
func (s Screen) String() string {
	switch s {
	case ScreenLoading:
		return "loading"
	case ScreenLogin:
		return "login"
	case ScreenSignup:
		return "signup"
	case ScreenForgot:
		return "forgot"
	case ScreenReset:
		return "reset"
	case ScreenHome:
		return "home"
	case ScreenSettings:
		return "settings"
	case ScreenSearch:
		return "search"
	default:
		return "unknown"
	}
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Deps are the stores and services the application runs on. Session,
// Chats, Settings, Search, Theme, Toasts and Bridge are required.
type Deps struct {
	Session  *session.Manager
	Chats    *conversation.Store
	Settings *settings.Store
	Search   *search.Searcher
	Recorder media.Recorder
	Player   notify.Player
	Theme    *styles.Theme
	Toasts   *components.ToastManager
	Bridge   *Bridge

	// ExportDir receives account archives and transcripts. Empty means
	// the working directory.
	ExportDir string

	// MaxRecording caps voice captures. Zero means media.MaxRecording.
	MaxRecording time.Duration

	// ResetToken opens the reset password form with the token filled in.
	ResetToken string

	ShowTimestamps bool
}

// Bridge forwards store notifications into the running program. Sends
// happen on their own goroutine because store hooks can fire while the
// program is inside Update.
type Bridge struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	pending atomic.Bool
}

// NewBridge creates a bridge with nothing attached.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach sets the delivery function, usually tea.Program.Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

// Send delivers msg asynchronously. It is dropped while nothing is
// attached.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send == nil {
		return
	}
	go send(msg)
}

// Changed sends a StoreChangedMsg. Calls made before the pending send
// goroutine starts collapse into its message; the model re-reads every
// store when it arrives, so the flag is cleared before delivery and a
// change made after that always schedules another message.
func (b *Bridge) Changed() {
	if !b.pending.CompareAndSwap(false, true) {
		return
	}
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send == nil {
		b.pending.Store(false)
		return
	}
	go func() {
		b.pending.Store(false)
		send(StoreChangedMsg{})
	}()
}

// Wire connects the stores to each other and to the bridge: every change
// hook refreshes the view, a new transport gets the conversation
// subscriptions and logout clears conversation and search state.
func Wire(d Deps) {
	b := d.Bridge
	d.Session.OnChange(b.Changed)
	d.Chats.OnChange(b.Changed)
	d.Settings.OnChange(b.Changed)
	d.Search.OnChange(b.Changed)
	d.Toasts.OnAdd(b.Changed)

	d.Session.OnConnect(d.Chats.SubscribeTo)
	d.Session.OnTeardown(func() {
		d.Chats.Reset()
		d.Search.Clear()
	})
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the whole application.
type Model struct {
	ctx    context.Context
	deps   Deps
	keys   KeyMap
	theme  *styles.Theme
	toasts *components.ToastManager
	status *components.StatusBar
	log    zerolog.Logger

	screen   Screen
	width    int
	height   int
	showHelp bool

	auth  authForm
	home  homeState
	prefs settingsState
	find  searchState

	debounce  *search.Debouncer
	ticking   bool
	recording bool

	now func() time.Time
}

// New creates the application model. ctx bounds every store operation the
// model starts.
func New(ctx context.Context, d Deps) Model {
	m := Model{
		ctx:      ctx,
		deps:     d,
		keys:     DefaultKeyMap(),
		theme:    d.Theme,
		toasts:   d.Toasts,
		status:   components.NewStatusBar(d.Theme),
		log:      log.With().Str("component", "ui").Logger(),
		screen:   ScreenLoading,
		home:     newHomeState(),
		prefs:    newSettingsState(),
		find:     newSearchState(),
		debounce: search.NewDebouncer(0),
		now:      time.Now,
	}
	if d.ResetToken != "" {
		m.auth = newAuthForm(ScreenReset)
		m.auth.inputs[0].SetValue(d.ResetToken)
	}
	m.theme.ApplySettings(d.Settings.Theme())
	return m
}

// Screen returns the active screen.
func (m Model) Screen() Screen { return m.screen }

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init probes the stored session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.probeSession())
}

func (m Model) probeSession() tea.Cmd {
	sess := m.deps.Session
	ctx := m.ctx
	return func() tea.Msg {
		return sessionProbedMsg{ident: sess.CheckExistingSession(ctx, true)}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.layout()
		return m, nil

	case StoreChangedMsg:
		return m.refresh()

	case components.ToastTickMsg:
		m.toasts.TickToasts()
		if !m.toasts.HasToasts() {
			m.ticking = false
			return m, nil
		}
		return m, components.ToastTickCmd()

	case sessionProbedMsg:
		if msg.ident != nil {
			return m.enterHome()
		}
		if m.screen == ScreenLoading {
			if m.deps.ResetToken != "" {
				m.screen = ScreenReset
			} else {
				m.showAuth(ScreenLogin)
			}
		}
		return m, nil

	case authDoneMsg:
		m.auth.busy = false
		if msg.err != nil {
			return m, nil
		}
		return m.enterHome()

	case formDoneMsg:
		m.auth.busy = false
		if msg.err == nil {
			m.showAuth(ScreenLogin)
		}
		return m, nil

	case opDoneMsg:
		if msg.reload {
			return m, m.loadRoster()
		}
		return m, nil

	case sentMsg:
		return m.handleSent(msg)

	case recordedMsg:
		return m.handleRecorded(msg)

	case searchFireMsg:
		return m.handleSearchFire(msg)

	case searchDoneMsg:
		return m.handleSearchDone(msg)

	case blockedLoadedMsg:
		return m.handleBlockedLoaded(msg)

	case exportDoneMsg:
		return m.handleExportDone(msg)

	case savedMsg:
		return m.handleSaved(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

// refresh re-reads the stores after a change.
func (m Model) refresh() (tea.Model, tea.Cmd) {
	m.theme.ApplySettings(m.deps.Settings.Theme())

	var cmds []tea.Cmd
	if m.toasts.HasToasts() && !m.ticking {
		m.ticking = true
		cmds = append(cmds, components.ToastTickCmd())
	}

	loggedIn := m.deps.Session.LoggedIn()
	switch {
	case !loggedIn && m.screen >= ScreenHome:
		// session ended, locally or by the server
		m.showAuth(ScreenLogin)
	case loggedIn && m.screen == ScreenHome:
		m.syncRosterCursor()
	}
	m.renderThread()
	return m, tea.Batch(cmds...)
}

func (m Model) enterHome() (tea.Model, tea.Cmd) {
	m.screen = ScreenHome
	m.home.focus = focusRoster
	m.home.composer.Blur()
	m.layout()
	return m, m.loadRoster()
}

func (m Model) loadRoster() tea.Cmd {
	chats := m.deps.Chats
	ctx := m.ctx
	return func() tea.Msg {
		_ = chats.LoadRoster(ctx)
		return nil
	}
}

// handleKey routes a key press to the active screen.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.debounce.Stop()
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Dismiss) && m.toasts.HasToasts() {
		m.toasts.DismissNewest()
		return m, nil
	}
	if key.Matches(msg, m.keys.Help) && m.screen >= ScreenHome {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp && key.Matches(msg, m.keys.Back) {
		m.showHelp = false
		return m, nil
	}

	switch m.screen {
	case ScreenLogin, ScreenSignup, ScreenForgot, ScreenReset:
		return m.handleAuthKey(msg)
	case ScreenHome:
		return m.handleHomeKey(msg)
	case ScreenSettings:
		return m.handleSettingsKey(msg)
	case ScreenSearch:
		return m.handleSearchKey(msg)
	}
	return m, nil
}

// updateFocused forwards other messages (cursor blink and the like) to the
// focused input.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.screen {
	case ScreenLogin, ScreenSignup, ScreenForgot, ScreenReset:
		if f := m.auth.focus; f < len(m.auth.inputs) {
			m.auth.inputs[f], cmd = m.auth.inputs[f].Update(msg)
		}
	case ScreenHome:
		m.home.composer, cmd = m.home.composer.Update(msg)
	case ScreenSettings:
		if m.prefs.editing != rowNone {
			m.prefs.edit, cmd = m.prefs.edit.Update(msg)
		}
	case ScreenSearch:
		m.find.input, cmd = m.find.input.Update(msg)
	}
	return m, cmd
}

// layout sizes the viewport and inputs for the window.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	threadWidth := m.width - m.theme.SidebarWidth()
	if m.theme.GetLayoutMode() == styles.LayoutNarrow {
		threadWidth = m.width
	}
	m.home.viewport.Width = max(threadWidth-2, 10)
	// header, composer and status bar
	m.home.viewport.Height = max(m.height-6, 3)
	m.home.composer.Width = max(threadWidth-6, 10)
	m.find.input.Width = max(m.width/2, 20)
	m.renderThread()
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the active screen with the toast stack on top.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var base string
	switch m.screen {
	case ScreenLoading:
		base = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.theme.Hint.Render("Checking your session..."))
	case ScreenLogin, ScreenSignup, ScreenForgot, ScreenReset:
		base = m.viewAuth()
	case ScreenHome:
		if m.showHelp {
			base = m.viewHelp()
		} else {
			base = m.viewHome()
		}
	case ScreenSettings:
		base = m.viewSettings()
	case ScreenSearch:
		base = m.viewSearch()
	}

	if !m.toasts.HasToasts() {
		return base
	}
	stack := components.RenderToastStack(m.toasts.GetToasts(), m.width, m.now())
	return overlayBottomRight(base, stack, m.width, m.height)
}
