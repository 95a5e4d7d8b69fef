// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/parley-tui/internal/conversation"
	"github.com/jeranaias/parley-tui/internal/logging"
	"github.com/jeranaias/parley-tui/internal/media"
	"github.com/jeranaias/parley-tui/internal/notify"
	"github.com/jeranaias/parley-tui/internal/search"
	"github.com/jeranaias/parley-tui/internal/settings"
	"github.com/jeranaias/parley-tui/internal/ui/chat"
	"github.com/jeranaias/parley-tui/internal/ui/components"
	"github.com/jeranaias/parley-tui/internal/ui/styles"
)

// runTUI builds every store, wires them to the UI and runs the program
// until the user quits.
func runTUI(cmd *cobra.Command, opts *options) error {
	if err := RequiresTTY("run the chat client"); err != nil {
		return err
	}
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	toasts := components.NewToastManager()
	app, err := newApp(opts, cfg, toasts, true)
	if err != nil {
		return err
	}
	defer app.Close()

	prefs, err := app.Prefs()
	if err != nil {
		return err
	}
	st := settings.New(prefs, app.Client, toasts).WithWallpaperSink(app.Session.SetWallpaperRef)
	if err := st.Load(); err != nil {
		log.Warn().Err(err).Msg("preferences unreadable, using defaults")
	}
	applyThemeMode(st, cfg.UI.Theme)

	player := notify.NewPlayer(cfg.Notifications.Player)
	recorder := &media.ExecRecorder{
		Command: cfg.Voice.Command,
		Args:    cfg.Voice.Args,
		Log:     logging.For("voice"),
	}

	deps := chat.Deps{
		Session:        app.Session,
		Chats:          conversation.New(app.Client, app.Session, st, player, toasts),
		Settings:       st,
		Search:         search.New(app.Client),
		Recorder:       recorder,
		Player:         player,
		Theme:          styles.NewTheme(),
		Toasts:         toasts,
		Bridge:         chat.NewBridge(),
		MaxRecording:   time.Duration(cfg.Voice.MaxSecs) * time.Second,
		ResetToken:     opts.resetToken,
		ShowTimestamps: cfg.UI.ShowTimestamps,
	}
	chat.Wire(deps)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	w, err := st.Watch(ctx, settings.DefaultDebounce)
	switch {
	case errors.Is(err, settings.ErrNotWatchable):
	case err != nil:
		log.Warn().Err(err).Msg("not watching preferences")
	default:
		defer w.Close()
	}

	p := tea.NewProgram(chat.New(ctx, deps), tea.WithAltScreen())
	deps.Bridge.Attach(p.Send)

	log.Info().Str("api", cfg.Server.APIURL).Msg("starting chat client")
	if _, err := p.Run(); err != nil {
		return NewCommandError("parley", "run", err)
	}
	return nil
}

// applyThemeMode pins dark or light mode when the config asks for one.
// "auto" keeps the stored preference.
func applyThemeMode(st *settings.Store, mode string) {
	var dark bool
	switch mode {
	case "dark":
		dark = true
	case "light":
	default:
		return
	}
	if st.Theme().DarkMode != dark {
		if err := st.ToggleDarkMode(); err != nil {
			log.Warn().Err(err).Msg("failed to apply theme mode")
		}
	}
}
