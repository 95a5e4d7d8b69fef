// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley-tui/internal/media"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/notify"
	"github.com/jeranaias/parley-tui/internal/settings"
	"github.com/jeranaias/parley-tui/internal/ui/components"
)

// =============================================================================
// SETTINGS ROWS
// =============================================================================

type settingRow int

const rowNone settingRow = -1

const (
	// Profile
	rowName settingRow = iota
	rowNickname
	rowEmail
	rowAvatar

	// Appearance
	rowSenderBubble
	rowReceiverBubble
	rowDarkMode
	rowWallpaper
	rowWallpaperSize
	rowWallpaperPosition
	rowWallpaperRepeat
	rowResetWallpaper

	// Notifications
	rowMute
	rowSoundMuted
	rowSound
	rowShowTyping

	// Privacy
	rowShowOnline
	rowExport
	rowLogout

	rowCount
)

var rowLabels = [rowCount]string{
	rowName:              "Name",
	rowNickname:          "Nickname",
	rowEmail:             "Email",
	rowAvatar:            "Profile picture",
	rowSenderBubble:      "My bubbles",
	rowReceiverBubble:    "Their bubbles",
	rowDarkMode:          "Dark mode",
	rowWallpaper:         "Chat wallpaper",
	rowWallpaperSize:     "Wallpaper size",
	rowWallpaperPosition: "Wallpaper position",
	rowWallpaperRepeat:   "Wallpaper repeat",
	rowResetWallpaper:    "Reset wallpaper",
	rowMute:              "Mute notifications",
	rowSoundMuted:        "Mute sound",
	rowSound:             "Notification sound",
	rowShowTyping:        "Show typing",
	rowShowOnline:        "Show online status",
	rowExport:            "Download my data",
	rowLogout:            "Log out",
}

var sections = []struct {
	title string
	first settingRow
}{
	{"Profile", rowName},
	{"Appearance", rowSenderBubble},
	{"Notifications", rowMute},
	{"Privacy", rowShowOnline},
}

// colorPicker is the bubble colour grid: one row per family, one column
// per shade.
type colorPicker struct {
	row    settingRow
	family int
	shade  int
}

type settingsState struct {
	cursor  int
	editing settingRow
	edit    textinput.Model
	picker  *colorPicker

	blocked       []model.Peer
	blockedLoaded bool
}

func newSettingsState() settingsState {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 512
	ti.Width = 40
	return settingsState{editing: rowNone, edit: ti}
}

// openSettings shows the settings screen and loads the blocked list.
func (m Model) openSettings() (tea.Model, tea.Cmd) {
	m.screen = ScreenSettings
	m.showHelp = false
	m.prefs.editing = rowNone
	m.prefs.picker = nil
	return m, m.loadBlocked()
}

func (m Model) loadBlocked() tea.Cmd {
	sess := m.deps.Session
	ctx := m.ctx
	return func() tea.Msg {
		peers, err := sess.BlockedUsers(ctx)
		return blockedLoadedMsg{peers: peers, err: err}
	}
}

func (m Model) handleBlockedLoaded(msg blockedLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, nil
	}
	m.prefs.blocked = msg.peers
	m.prefs.blockedLoaded = true
	if max := int(rowCount) + len(msg.peers) - 1; m.prefs.cursor > max {
		m.prefs.cursor = max
	}
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prefs.picker != nil {
		return m.handlePickerKey(msg)
	}
	if m.prefs.editing != rowNone {
		return m.handleEditKey(msg)
	}

	total := int(rowCount) + len(m.prefs.blocked)
	switch {
	case key.Matches(msg, m.keys.Back):
		m.screen = ScreenHome
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.prefs.cursor > 0 {
			m.prefs.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.Next):
		if m.prefs.cursor < total-1 {
			m.prefs.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Left):
		return m.cycle(-1)
	case key.Matches(msg, m.keys.Right):
		return m.cycle(1)
	case key.Matches(msg, m.keys.Toggle):
		if m.prefs.cursor >= int(rowCount) {
			return m.unblock(m.prefs.blocked[m.prefs.cursor-int(rowCount)])
		}
		return m.activate(settingRow(m.prefs.cursor))
	}
	return m, nil
}

// activate runs the action of row: toggles flip, text rows open the
// editor, bubble rows open the colour picker.
func (m Model) activate(row settingRow) (tea.Model, tea.Cmd) {
	st := m.deps.Settings
	switch row {
	case rowName, rowNickname, rowEmail, rowAvatar, rowWallpaper:
		return m.startEdit(row)
	case rowSenderBubble, rowReceiverBubble:
		b := st.Theme().SenderBubble
		if row == rowReceiverBubble {
			b = st.Theme().ReceiverBubble
		}
		m.prefs.picker = pickerAt(row, b)
		return m, nil
	case rowDarkMode:
		st.ToggleDarkMode()
	case rowResetWallpaper:
		st.ResetWallpaper()
	case rowMute:
		st.ToggleMuteNotifications()
	case rowSoundMuted:
		st.ToggleNotificationSound()
	case rowShowTyping:
		st.ToggleShowTyping()
	case rowSound:
		return m.cycle(1)
	case rowShowOnline:
		return m, m.toggleVisibility()
	case rowExport:
		return m, m.exportArchive(m.exportDir())
	case rowLogout:
		return m, m.logout()
	}
	return m, nil
}

// cycle steps a multiple-choice row through its values. Toggle rows flip.
func (m Model) cycle(dir int) (tea.Model, tea.Cmd) {
	if m.prefs.cursor >= int(rowCount) {
		return m, nil
	}
	st := m.deps.Settings
	th := st.Theme()
	row := settingRow(m.prefs.cursor)
	switch row {
	case rowWallpaperSize:
		st.SetWallpaperSize(step(settings.WallpaperSizes, th.WallpaperSize, dir))
	case rowWallpaperPosition:
		st.SetWallpaperPosition(step(settings.WallpaperPositions, th.WallpaperPosition, dir))
	case rowWallpaperRepeat:
		st.SetWallpaperRepeat(step(settings.WallpaperRepeats, th.WallpaperRepeat, dir))
	case rowSound:
		files := make([]string, len(notify.Sounds))
		for i, s := range notify.Sounds {
			files[i] = s.File
		}
		next := step(files, st.NotificationSound(), dir)
		if err := st.SetNotificationSound(next); err == nil {
			return m, m.previewSound(next)
		}
	case rowDarkMode, rowMute, rowSoundMuted, rowShowTyping, rowShowOnline:
		return m.activate(row)
	}
	return m, nil
}

// step returns the value dir places away from current, wrapping.
func step(values []string, current string, dir int) string {
	i := slices.Index(values, current)
	if i < 0 {
		return values[0]
	}
	n := len(values)
	return values[((i+dir)%n+n)%n]
}

func (m Model) previewSound(file string) tea.Cmd {
	player := m.deps.Player
	if player == nil {
		return nil
	}
	return func() tea.Msg {
		if err := player.Play(file); err != nil {
			m.log.Debug().Err(err).Str("sound", file).Msg("preview failed")
		}
		return nil
	}
}

func (m Model) toggleVisibility() tea.Cmd {
	sess := m.deps.Session
	me := sess.Identity()
	if me == nil {
		return nil
	}
	show := !me.ShowOnlineStatus
	ctx := m.ctx
	return func() tea.Msg {
		_, err := sess.UpdateVisibility(ctx, show)
		return opDoneMsg{err: err}
	}
}

func (m Model) unblock(peer model.Peer) (tea.Model, tea.Cmd) {
	sess := m.deps.Session
	ctx := m.ctx
	return m, func() tea.Msg {
		if _, err := sess.Unblock(ctx, peer.ID); err != nil {
			return opDoneMsg{err: err}
		}
		peers, err := sess.BlockedUsers(ctx)
		return blockedLoadedMsg{peers: peers, err: err}
	}
}

// =============================================================================
// TEXT EDITING
// =============================================================================

func (m Model) startEdit(row settingRow) (tea.Model, tea.Cmd) {
	me := m.deps.Session.Identity()
	if me == nil {
		return m, nil
	}
	m.prefs.editing = row
	m.prefs.edit.Reset()
	m.prefs.edit.Placeholder = "path to an image"
	switch row {
	case rowName:
		m.prefs.edit.SetValue(me.Name)
	case rowNickname:
		m.prefs.edit.SetValue(me.Nickname)
	case rowEmail:
		m.prefs.edit.SetValue(me.Email)
	}
	m.prefs.edit.CursorEnd()
	return m, m.prefs.edit.Focus()
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.prefs.editing = rowNone
		m.prefs.edit.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		row, value := m.prefs.editing, strings.TrimSpace(m.prefs.edit.Value())
		m.prefs.editing = rowNone
		m.prefs.edit.Blur()
		if value == "" {
			return m, nil
		}
		return m, m.commitEdit(row, value)
	}
	var cmd tea.Cmd
	m.prefs.edit, cmd = m.prefs.edit.Update(msg)
	return m, cmd
}

// commitEdit saves an edited value through the owning store.
func (m Model) commitEdit(row settingRow, value string) tea.Cmd {
	sess := m.deps.Session
	st := m.deps.Settings
	ctx := m.ctx
	toasts := m.toasts

	switch row {
	case rowName, rowNickname, rowEmail:
		var update model.ProfileUpdate
		switch row {
		case rowName:
			update.Name = value
		case rowNickname:
			update.Nickname = value
		default:
			update.Email = value
		}
		return func() tea.Msg {
			_, err := sess.UpdateProfile(ctx, update)
			return opDoneMsg{err: err}
		}
	case rowAvatar:
		path := expandHome(value)
		return func() tea.Msg {
			a, err := media.LoadAttachment(path, model.AttachmentImage)
			if err != nil {
				toasts.Error(media.LoadFailureMessage(model.AttachmentImage))
				return opDoneMsg{err: err}
			}
			_, err = sess.UpdateAvatar(ctx, a.Data)
			return opDoneMsg{err: err}
		}
	case rowWallpaper:
		path := expandHome(value)
		return func() tea.Msg {
			return opDoneMsg{err: st.SetWallpaperFile(ctx, path)}
		}
	}
	return nil
}

// =============================================================================
// COLOUR PICKER
// =============================================================================

func pickerAt(row settingRow, b settings.Bubble) *colorPicker {
	p := &colorPicker{row: row}
	for i, f := range settings.Families {
		if f.Name == b.Family {
			p.family = i
		}
	}
	if i := slices.Index(settings.Shades, b.Shade); i >= 0 {
		p.shade = i
	}
	return p
}

func (p *colorPicker) bubble() settings.Bubble {
	return settings.Bubble{Family: settings.Families[p.family].Name, Shade: settings.Shades[p.shade]}
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := *m.prefs.picker
	switch {
	case key.Matches(msg, m.keys.Back):
		m.prefs.picker = nil
		return m, nil
	case key.Matches(msg, m.keys.Up):
		p.family = max(p.family-1, 0)
	case key.Matches(msg, m.keys.Down):
		p.family = min(p.family+1, len(settings.Families)-1)
	case key.Matches(msg, m.keys.Left):
		p.shade = max(p.shade-1, 0)
	case key.Matches(msg, m.keys.Right):
		p.shade = min(p.shade+1, len(settings.Shades)-1)
	case key.Matches(msg, m.keys.Toggle):
		name := p.bubble().Name()
		if p.row == rowSenderBubble {
			m.deps.Settings.SetSenderBubble(name)
		} else {
			m.deps.Settings.SetReceiverBubble(name)
		}
		m.prefs.picker = nil
		return m, nil
	}
	m.prefs.picker = &p
	return m, nil
}

// =============================================================================
// SETTINGS VIEW
// =============================================================================

func (m Model) viewSettings() string {
	t := m.theme
	if p := m.prefs.picker; p != nil {
		return m.viewPicker(p)
	}

	var b strings.Builder
	b.WriteString(t.DialogTitle.Render("Settings"))
	b.WriteString("\n")

	for i, sec := range sections {
		last := rowCount
		if i+1 < len(sections) {
			last = sections[i+1].first
		}
		b.WriteString("\n")
		b.WriteString(t.HeaderBrand.Render(sec.title))
		b.WriteString("\n")
		for row := sec.first; row < last; row++ {
			b.WriteString(m.viewRow(row))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(t.HeaderBrand.Render("Blocked users"))
	b.WriteString("\n")
	switch {
	case !m.prefs.blockedLoaded:
		b.WriteString(t.Hint.Render("Loading..."))
		b.WriteString("\n")
	case len(m.prefs.blocked) == 0:
		b.WriteString(t.Hint.Render("You have not blocked anyone."))
		b.WriteString("\n")
	}
	for i, p := range m.prefs.blocked {
		line := components.Truncate(cleanName(p.DisplayName()), 30) + t.Hint.Render("  Enter unblocks")
		b.WriteString(m.cursorLine(int(rowCount)+i, line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(t.Hint.Render("up/down move  Space toggle  left/right change  Esc back"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Top, t.Dialog.Render(b.String()))
}

func (m Model) cursorLine(i int, line string) string {
	if i == m.prefs.cursor {
		return m.theme.FieldFocused.Render("> ") + line
	}
	return "  " + line
}

func (m Model) viewRow(row settingRow) string {
	t := m.theme
	th := m.deps.Settings.Theme()
	chat := m.deps.Settings.Chat()
	me := m.deps.Session.Identity()
	if me == nil {
		me = &model.Identity{}
	}

	label := t.Label.Render(components.PadRight(rowLabels[row], 20))
	var value string
	switch row {
	case rowName:
		value = cleanName(me.Name)
	case rowNickname:
		value = "@" + cleanName(me.Nickname)
	case rowEmail:
		value = me.Email
	case rowAvatar:
		value = "set"
		if me.ProfilePic == "" {
			value = "none"
		}
	case rowSenderBubble:
		value = t.SwatchStyle(th.SenderBubble, false).Render(th.SenderBubble.Name())
	case rowReceiverBubble:
		value = t.SwatchStyle(th.ReceiverBubble, false).Render(th.ReceiverBubble.Name())
	case rowDarkMode:
		value = onOff(th.DarkMode)
	case rowWallpaper:
		value = "none"
		if th.Wallpaper != "" {
			value = components.Truncate(th.Wallpaper, 30)
		}
	case rowWallpaperSize:
		value = "< " + th.WallpaperSize + " >"
	case rowWallpaperPosition:
		value = "< " + th.WallpaperPosition + " >"
	case rowWallpaperRepeat:
		value = "< " + th.WallpaperRepeat + " >"
	case rowMute:
		value = onOff(chat.Muted)
	case rowSoundMuted:
		value = onOff(chat.SoundMuted)
	case rowSound:
		label := chat.NotificationSound
		if s, ok := notify.LookupSound(chat.NotificationSound); ok {
			label = s.Label
		}
		value = "< " + label + " >"
	case rowShowTyping:
		value = onOff(chat.ShowTyping)
	case rowShowOnline:
		value = onOff(me.ShowOnlineStatus)
	}

	if m.prefs.editing == row {
		value = m.prefs.edit.View()
	}
	return m.cursorLine(int(row), label+" "+t.StatusValue.Render(value))
}

func onOff(v bool) string {
	if v {
		return "[x] on"
	}
	return "[ ] off"
}

func (m Model) viewPicker(p *colorPicker) string {
	t := m.theme
	var b strings.Builder
	b.WriteString(t.DialogTitle.Render("Pick a colour for " + strings.ToLower(rowLabels[p.row])))
	b.WriteString("\n")

	visible := max(m.height-8, 5)
	start := max(min(p.family-visible/2, len(settings.Families)-visible), 0)
	end := min(start+visible, len(settings.Families))
	for fi := start; fi < end; fi++ {
		f := settings.Families[fi]
		b.WriteString(t.Label.Render(components.PadRight(f.Name, 8)))
		for si, shade := range settings.Shades {
			sel := fi == p.family && si == p.shade
			cell := "  "
			if sel {
				cell = "<>"
			}
			b.WriteString(t.SwatchStyle(settings.Bubble{Family: f.Name, Shade: shade}, sel).Render(cell))
		}
		b.WriteString("\n")
	}

	chosen := p.bubble()
	b.WriteString("\n")
	b.WriteString(t.SwatchStyle(chosen, false).Render(" " + chosen.Name() + ": Hello there! "))
	b.WriteString("\n\n")
	b.WriteString(t.Hint.Render("arrows move  Enter apply  Esc cancel"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, t.Dialog.Render(b.String()))
}
