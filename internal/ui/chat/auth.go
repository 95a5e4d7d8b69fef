// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley-tui/internal/model"
)

// =============================================================================
// AUTH FORMS
// =============================================================================

type authField struct {
	label  string
	secret bool
}

var authFields = map[Screen][]authField{
	ScreenLogin: {
		{label: "Email"},
		{label: "Password", secret: true},
	},
	ScreenSignup: {
		{label: "Full name"},
		{label: "Nickname"},
		{label: "Email"},
		{label: "Password", secret: true},
		{label: "Confirm password", secret: true},
	},
	ScreenForgot: {
		{label: "Email"},
	},
	ScreenReset: {
		{label: "Reset token"},
		{label: "New password", secret: true},
		{label: "Confirm password", secret: true},
	},
}

var authTitles = map[Screen]string{
	ScreenLogin:  "Log in",
	ScreenSignup: "Create an account",
	ScreenForgot: "Forgot password",
	ScreenReset:  "Reset password",
}

// authForm is the state of whichever auth screen is showing.
type authForm struct {
	screen Screen
	inputs []textinput.Model
	focus  int
	busy   bool
}

func newAuthForm(screen Screen) authForm {
	fields := authFields[screen]
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		ti.Width = 36
		if f.secret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '*'
		}
		inputs[i] = ti
	}
	if len(inputs) > 0 {
		inputs[0].Focus()
	}
	return authForm{screen: screen, inputs: inputs}
}

func (f *authForm) value(i int) string {
	return f.inputs[i].Value()
}

func (f *authForm) setFocus(i int) {
	n := len(f.inputs)
	f.focus = ((i % n) + n) % n
	for j := range f.inputs {
		if j == f.focus {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
}

// showAuth switches to an auth screen with an empty form. The login email
// carries over between screens.
func (m *Model) showAuth(screen Screen) {
	var email string
	if m.auth.screen == ScreenLogin && len(m.auth.inputs) > 0 {
		email = m.auth.value(0)
	}
	if m.screen == screen && m.auth.screen == screen {
		return
	}
	m.auth = newAuthForm(screen)
	if screen == ScreenForgot && email != "" {
		m.auth.inputs[0].SetValue(email)
	}
	m.screen = screen
	m.showHelp = false
}

func (m Model) handleAuthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.auth.busy {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Back):
		if m.screen != ScreenLogin {
			m.showAuth(ScreenLogin)
		}
		return m, nil
	case m.screen == ScreenLogin && key.Matches(msg, m.keys.ToSignup):
		m.showAuth(ScreenSignup)
		return m, nil
	case m.screen == ScreenLogin && key.Matches(msg, m.keys.ToForgot):
		m.showAuth(ScreenForgot)
		return m, nil
	case m.screen == ScreenLogin && key.Matches(msg, m.keys.ToReset):
		m.showAuth(ScreenReset)
		return m, nil
	case key.Matches(msg, m.keys.Next), key.Matches(msg, m.keys.Down):
		m.auth.setFocus(m.auth.focus + 1)
		return m, nil
	case key.Matches(msg, m.keys.Prev), key.Matches(msg, m.keys.Up):
		m.auth.setFocus(m.auth.focus - 1)
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if m.auth.focus < len(m.auth.inputs)-1 {
			m.auth.setFocus(m.auth.focus + 1)
			return m, nil
		}
		return m.submitAuth()
	}

	var cmd tea.Cmd
	m.auth.inputs[m.auth.focus], cmd = m.auth.inputs[m.auth.focus].Update(msg)
	return m, cmd
}

// submitAuth sends the form. Validation happens in the session store,
// which reports failures as toasts before any request goes out.
func (m Model) submitAuth() (tea.Model, tea.Cmd) {
	sess := m.deps.Session
	ctx := m.ctx
	f := &m.auth
	f.busy = true

	switch f.screen {
	case ScreenLogin:
		creds := model.Credentials{
			Email:    strings.TrimSpace(f.value(0)),
			Password: f.value(1),
		}
		return m, func() tea.Msg {
			ident, err := sess.Authenticate(ctx, creds)
			return authDoneMsg{ident: ident, err: err}
		}
	case ScreenSignup:
		form := model.SignupForm{
			Name:            strings.TrimSpace(f.value(0)),
			Nickname:        strings.TrimSpace(f.value(1)),
			Email:           strings.TrimSpace(f.value(2)),
			Password:        f.value(3),
			PasswordConfirm: f.value(4),
		}
		return m, func() tea.Msg {
			ident, err := sess.Signup(ctx, form)
			return authDoneMsg{ident: ident, err: err}
		}
	case ScreenForgot:
		email := strings.TrimSpace(f.value(0))
		return m, func() tea.Msg {
			return formDoneMsg{screen: ScreenForgot, err: sess.ForgotPassword(ctx, email)}
		}
	case ScreenReset:
		token, pw, confirm := strings.TrimSpace(f.value(0)), f.value(1), f.value(2)
		return m, func() tea.Msg {
			return formDoneMsg{screen: ScreenReset, err: sess.ResetPassword(ctx, token, pw, confirm)}
		}
	}
	f.busy = false
	return m, nil
}

// =============================================================================
// AUTH VIEW
// =============================================================================

func (m Model) viewAuth() string {
	t := m.theme
	f := m.auth

	var b strings.Builder
	b.WriteString(t.HeaderBrand.Render("parley"))
	b.WriteString("\n\n")
	b.WriteString(t.DialogTitle.Render(authTitles[f.screen]))
	b.WriteString("\n\n")

	for i, field := range authFields[f.screen] {
		label := t.Label
		if i == f.focus {
			label = t.FieldFocused
		}
		b.WriteString(label.Render(field.label))
		b.WriteString("\n")
		b.WriteString(f.inputs[i].View())
		b.WriteString("\n\n")
	}

	if f.busy {
		b.WriteString(t.Hint.Render("Please wait..."))
	} else {
		b.WriteString(t.Hint.Render(m.authHint()))
	}

	dialog := t.Dialog.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}

func (m Model) authHint() string {
	k := m.keys
	switch m.auth.screen {
	case ScreenLogin:
		return strings.Join([]string{
			"Enter log in",
			k.ToSignup.Help().Key + " " + k.ToSignup.Help().Desc,
			k.ToForgot.Help().Key + " " + k.ToForgot.Help().Desc,
			k.ToReset.Help().Key + " " + k.ToReset.Help().Desc,
		}, "  ")
	case ScreenSignup:
		return "Enter create account  Esc back to log in"
	case ScreenForgot:
		return "Enter send reset link  Esc back to log in"
	default:
		return "Enter reset password  Esc back to log in"
	}
}
