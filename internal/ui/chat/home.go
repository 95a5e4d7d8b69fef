// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley-tui/internal/media"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/ui/components"
	"github.com/jeranaias/parley-tui/internal/ui/styles"
)

const (
	msgSelectPeer      = "Select a conversation first."
	msgRecordFailed    = "Failed to record voice message."
	msgVoiceReady      = "Voice message ready. Press Enter to send."
	msgRecording       = "Recording... press C-r again to stop."
	msgNoRecorder      = "Voice recording is not configured."
	msgAttachmentReady = "attached. Press Enter to send."
)

// =============================================================================
// HOME STATE
// =============================================================================

type focusArea int

const (
	focusRoster focusArea = iota
	focusComposer
)

type homeState struct {
	focus    focusArea
	cursor   int
	viewport viewport.Model
	composer textinput.Model
	md       *markdown

	// staged is sent with the next composer submission.
	staged *model.Attachment

	// threadOf is the peer whose messages the viewport holds; a change
	// of peer scrolls to the bottom.
	threadOf string
	count    int

	cancelRecording context.CancelFunc
}

func newHomeState() homeState {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message, or /help"
	ti.CharLimit = 4096

	return homeState{
		viewport: viewport.New(80, 20),
		composer: ti,
		md:       newMarkdown(),
	}
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleHomeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Search):
		return m.openSearch("")
	case key.Matches(msg, m.keys.Settings):
		return m.openSettings()
	case key.Matches(msg, m.keys.Record):
		return m.toggleRecording()
	case key.Matches(msg, m.keys.PageUp):
		m.home.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.home.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keys.Next):
		return m.toggleFocus()
	}

	if m.home.focus == focusRoster {
		return m.handleRosterKey(msg)
	}
	return m.handleComposerKey(msg)
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.home.focus == focusRoster {
		if m.deps.Chats.Selected() == nil {
			return m, nil
		}
		m.home.focus = focusComposer
		return m, m.home.composer.Focus()
	}
	m.home.focus = focusRoster
	m.home.composer.Blur()
	return m, nil
}

func (m Model) handleRosterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	peers := m.deps.Chats.Peers()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.home.cursor > 0 {
			m.home.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.home.cursor < len(peers)-1 {
			m.home.cursor++
		}
	case key.Matches(msg, m.keys.Submit):
		if m.home.cursor < len(peers) {
			return m.openThread(peers[m.home.cursor])
		}
	}
	return m, nil
}

// openThread selects peer, loads its history and acknowledges its
// messages.
func (m Model) openThread(peer model.Peer) (tea.Model, tea.Cmd) {
	chats := m.deps.Chats
	ctx := m.ctx
	chats.SelectPeer(&peer)

	m.screen = ScreenHome
	m.home.staged = nil
	m.home.composer.Reset()
	m.home.focus = focusComposer
	m.syncRosterCursor()
	focus := m.home.composer.Focus()

	load := func() tea.Msg {
		if err := chats.LoadHistory(ctx, peer.ID); err == nil {
			_ = chats.MarkAsRead(peer.ID)
		}
		return nil
	}
	return m, tea.Batch(focus, load)
}

func (m Model) handleComposerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		if m.home.staged != nil {
			m.home.staged = nil
			m.toasts.Status("Attachment removed.")
			return m, nil
		}
		m.home.focus = focusRoster
		m.home.composer.Blur()
		if m.theme.GetLayoutMode() == styles.LayoutNarrow {
			m.deps.Chats.SelectPeer(nil)
		}
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		text := m.home.composer.Value()
		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			m.home.composer.Reset()
			return m.handleCommand(strings.TrimSpace(text))
		}
		return m.send(text)
	}

	var cmd tea.Cmd
	before := m.home.composer.Value()
	m.home.composer, cmd = m.home.composer.Update(msg)
	if after := m.home.composer.Value(); after != before && !strings.HasPrefix(after, "/") {
		m.deps.Chats.NotifyTyping(after)
	}
	return m, cmd
}

// send posts the composer text and any staged attachment to the selected
// peer.
func (m Model) send(text string) (tea.Model, tea.Cmd) {
	peer := m.deps.Chats.Selected()
	if peer == nil {
		m.toasts.Error(msgSelectPeer)
		return m, nil
	}
	if _, _, sending := m.deps.Chats.Loading(); sending {
		return m, nil
	}
	payload := model.Payload{Text: text, Attachment: m.home.staged}
	chats := m.deps.Chats
	ctx := m.ctx
	id := peer.ID
	return m, func() tea.Msg {
		_, err := chats.Send(ctx, id, payload)
		return sentMsg{err: err}
	}
}

func (m Model) handleSent(msg sentMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, nil
	}
	m.home.composer.Reset()
	m.home.staged = nil
	m.home.viewport.GotoBottom()
	return m, nil
}

// =============================================================================
// ATTACHMENTS AND VOICE
// =============================================================================

// stage loads path as an attachment of kind.
func (m Model) stage(path string, kind model.AttachmentKind) (tea.Model, tea.Cmd) {
	if m.deps.Chats.Selected() == nil {
		m.toasts.Error(msgSelectPeer)
		return m, nil
	}
	a, err := media.LoadAttachment(path, kind)
	if err != nil {
		m.log.Debug().Err(err).Str("kind", kind.String()).Msg("attachment rejected")
		m.toasts.Error(media.LoadFailureMessage(kind))
		return m, nil
	}
	m.home.staged = a
	m.toasts.Status(kind.DisplayName() + " " + msgAttachmentReady)
	return m, nil
}

// toggleRecording starts a voice capture, or stops the running one.
func (m Model) toggleRecording() (tea.Model, tea.Cmd) {
	if m.recording {
		if m.home.cancelRecording != nil {
			m.home.cancelRecording()
		}
		return m, nil
	}
	if m.deps.Chats.Selected() == nil {
		m.toasts.Error(msgSelectPeer)
		return m, nil
	}
	rec := m.deps.Recorder
	if rec == nil {
		m.toasts.Error(msgNoRecorder)
		return m, nil
	}
	limit := m.deps.MaxRecording
	if limit <= 0 {
		limit = media.MaxRecording
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.recording = true
	m.home.cancelRecording = cancel
	m.toasts.Status(msgRecording)

	done := make(chan *media.Clip, 1)
	rec.Record(ctx, limit, func(c *media.Clip) { done <- c })
	return m, func() tea.Msg {
		clip := <-done
		cancel()
		return recordedMsg{clip: clip}
	}
}

func (m Model) handleRecorded(msg recordedMsg) (tea.Model, tea.Cmd) {
	m.recording = false
	m.home.cancelRecording = nil
	if msg.clip == nil {
		m.toasts.Error(msgRecordFailed)
		return m, nil
	}
	m.home.staged = msg.clip.Attachment()
	m.toasts.Success(msgVoiceReady)
	return m, nil
}

// =============================================================================
// THREAD
// =============================================================================

// syncRosterCursor keeps the cursor in range and on the selected peer.
func (m *Model) syncRosterCursor() {
	peers := m.deps.Chats.Peers()
	if sel := m.deps.Chats.Selected(); sel != nil {
		for i, p := range peers {
			if p.ID == sel.ID {
				m.home.cursor = i
				return
			}
		}
	}
	if m.home.cursor >= len(peers) {
		m.home.cursor = max(len(peers)-1, 0)
	}
}

// renderThread rebuilds the viewport content from the conversation store.
func (m *Model) renderThread() {
	if m.deps.Chats == nil || m.width == 0 {
		return
	}
	sel := m.deps.Chats.Selected()
	if sel == nil {
		m.home.viewport.SetContent("")
		m.home.threadOf, m.home.count = "", 0
		return
	}

	width := m.home.viewport.Width
	dark := m.deps.Settings.Theme().DarkMode || m.theme.IsDark
	m.home.md.configure(max(width*7/10-2, 12), dark)

	var meID string
	if me := m.deps.Session.Identity(); me != nil {
		meID = me.ID
	}
	msgs := m.deps.Chats.Messages()
	var b strings.Builder
	switch {
	case !m.deps.Chats.Loaded():
		b.WriteString(m.theme.EmptyState.Render("Loading messages..."))
	case len(msgs) == 0:
		b.WriteString(m.theme.EmptyState.Render("No messages yet. Say hello!"))
	}
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg, meID, width))
	}

	atBottom := m.home.viewport.AtBottom()
	m.home.viewport.SetContent(b.String())
	if sel.ID != m.home.threadOf || (len(msgs) > m.home.count && atBottom) {
		m.home.viewport.GotoBottom()
	}
	m.home.threadOf, m.home.count = sel.ID, len(msgs)
}

// =============================================================================
// HOME VIEW
// =============================================================================

func (m Model) viewHome() string {
	narrow := m.theme.GetLayoutMode() == styles.LayoutNarrow
	sel := m.deps.Chats.Selected()

	var body string
	switch {
	case narrow && (sel == nil || m.home.focus == focusRoster):
		body = m.viewRoster(m.width, m.height-1)
	case narrow:
		body = m.viewThread(m.width, m.height-1)
	default:
		sideWidth := m.theme.SidebarWidth()
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewRoster(sideWidth, m.height-1),
			m.viewThread(m.width-sideWidth-1, m.height-1),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.viewStatusBar())
}

func (m Model) viewStatusBar() string {
	me := m.deps.Session.Identity()
	sb := m.status
	sb.Width = m.width
	sb.Nickname = ""
	sb.Hidden = false
	if me != nil {
		sb.Nickname = cleanName(me.Nickname)
		sb.Hidden = !me.ShowOnlineStatus
	}
	switch {
	case m.deps.Session.Connected():
		sb.Link = components.LinkOnline
	case m.deps.Session.LoggedIn():
		sb.Link = components.LinkConnecting
	default:
		sb.Link = components.LinkOffline
	}
	sb.OnlineCount = len(m.deps.Session.OnlineUsers())
	chat := m.deps.Settings.Chat()
	sb.Muted, sb.SoundMuted = chat.Muted, chat.SoundMuted
	sb.Hint = "F1 help"
	return sb.View()
}

func (m Model) viewRoster(width, height int) string {
	t := m.theme
	chats := m.deps.Chats
	peers := chats.Peers()
	sel := chats.Selected()
	me := m.deps.Session.Identity()

	lines := []string{t.Header.Width(width).Render("Contacts")}
	rosterLoading, _, _ := chats.Loading()
	if len(peers) == 0 {
		msg := "No contacts yet. C-f to find people."
		if rosterLoading {
			msg = "Loading contacts..."
		}
		lines = append(lines, t.EmptyState.Width(width).Render(msg))
	}

	for i, p := range peers {
		dot := t.OfflineDot.Render(styles.StatusIndicators.Offline)
		if m.deps.Session.IsOnline(p.ID) {
			dot = t.OnlineDot.Render(styles.StatusIndicators.Online)
		}

		var badge string
		switch n := chats.Unread(p.ID); {
		case n > 0:
			badge = t.UnreadBadge.Render(unreadBadge(n))
		case chats.HasNewMessage(p.ID):
			badge = t.UnreadBadge.Render("new")
		}

		nameWidth := width - lipgloss.Width(badge) - 5
		name := components.PadRight(components.Truncate(cleanName(p.DisplayName()), nameWidth), nameWidth)
		row := dot + " " + name + " " + badge

		style := t.PeerItem
		switch {
		case me.HasBlocked(p.ID):
			style = t.PeerBlocked
		case sel != nil && sel.ID == p.ID:
			style = t.PeerSelected
		}
		if i == m.home.cursor && m.home.focus == focusRoster {
			row = t.FieldFocused.Render(">") + row
		} else {
			row = " " + row
		}
		lines = append(lines, style.Render(row))
	}

	return t.Sidebar.Width(width).Height(height).MaxHeight(height).
		Render(strings.Join(lines, "\n"))
}

func (m Model) viewThread(width, height int) string {
	t := m.theme
	sel := m.deps.Chats.Selected()
	if sel == nil {
		empty := t.EmptyState.Render("Select a contact to start chatting.")
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, empty)
	}

	title := t.ThreadTitle.Render(components.Truncate(cleanName(sel.DisplayName()), width/2))
	if m.deps.Session.IsOnline(sel.ID) {
		title += " " + t.OnlineDot.Render("online")
	}
	if m.deps.Chats.Typing() && m.deps.Settings.ShowTyping() {
		title += " " + t.TypingText.Render("typing"+styles.StatusIndicators.Typing)
	}
	if th := m.deps.Settings.Theme(); th.Wallpaper != "" {
		title += "  " + t.WallpaperTag.Render("wallpaper "+th.WallpaperSize+" "+th.WallpaperPosition)
	}
	header := lipgloss.NewStyle().MaxWidth(width).Render(title)

	composer := m.viewComposer(width)
	m.home.viewport.Height = max(height-lipgloss.Height(header)-lipgloss.Height(composer), 1)

	return t.Thread.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.home.viewport.View(),
		composer,
	))
}

func (m Model) viewComposer(width int) string {
	t := m.theme
	var parts []string
	if a := m.home.staged; a != nil {
		parts = append(parts, t.Attachment.Render("Attached: "+attachmentSummary(a))+t.Hint.Render("  Esc removes"))
	}
	if m.recording {
		parts = append(parts, t.ErrorText.Render("Recording voice message..."))
	}
	parts = append(parts, m.home.composer.View())
	return t.Composer.Width(max(width-2, 10)).Render(strings.Join(parts, "\n"))
}

func (m Model) viewHelp() string {
	t := m.theme
	var b strings.Builder
	b.WriteString(t.DialogTitle.Render("Keys"))
	b.WriteString("\n")
	for _, k := range m.keys.HomeHelp() {
		h := k.Help()
		b.WriteString(t.StatusKey.Render(components.PadRight(h.Key, 12)))
		b.WriteString(h.Desc)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(t.DialogTitle.Render("Commands"))
	b.WriteString("\n")
	for _, c := range commandHelp {
		b.WriteString(t.StatusKey.Render(components.PadRight(c.usage, 22)))
		b.WriteString(c.desc)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(t.Hint.Render("Esc or F1 to close"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, t.Dialog.Render(b.String()))
}

// overlayBottomRight draws overlay over the bottom-right corner of base,
// above the status bar.
func overlayBottomRight(base, overlay string, width, height int) string {
	baseLines := strings.Split(base, "\n")
	overLines := strings.Split(overlay, "\n")

	start := max(height-len(overLines)-1, 0)
	for i, line := range overLines {
		row := start + i
		if row >= len(baseLines) {
			break
		}
		w := lipgloss.Width(line)
		keep := max(width-w-1, 0)
		left := lipgloss.NewStyle().MaxWidth(keep).Render(baseLines[row])
		if pad := keep - lipgloss.Width(left); pad > 0 {
			left += strings.Repeat(" ", pad)
		}
		baseLines[row] = left + line
	}
	return strings.Join(baseLines, "\n")
}
