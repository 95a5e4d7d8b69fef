// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/parley-tui/internal/export"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/notify"
)

// =============================================================================
// SESSION HELPERS
// =============================================================================

// withSession loads the config, restores the stored session and runs fn.
// It fails with errNotLoggedIn when there is no live session.
func withSession(cmd *cobra.Command, opts *options, fn func(ctx context.Context, app *App, me *model.Identity) error) error {
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	app, err := newApp(opts, cfg, &notify.Recorder{}, false)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	me := app.Session.CheckExistingSession(ctx, true)
	if me == nil {
		return errNotLoggedIn
	}
	return fn(ctx, app, me)
}

// =============================================================================
// COMMANDS
// =============================================================================

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			err := withSession(cmd, opts, func(ctx context.Context, app *App, _ *model.Identity) error {
				if err := app.Session.EndSession(ctx); err != nil {
					// the local session is gone either way
					fmt.Fprintln(out, DimStyle.Render("Server did not confirm the logout: "+err.Error()))
				}
				fmt.Fprintf(out, "%s Logged out\n", SuccessStyle.Render("[OK]"))
				return nil
			})
			if errors.Is(err, errNotLoggedIn) {
				fmt.Fprintln(out, "Not logged in.")
				return nil
			}
			return err
		},
	}
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(_ context.Context, app *App, me *model.Identity) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, TitleStyle.Render(me.DisplayName()))
				fmt.Fprintln(out, RenderField("Nickname", "@"+me.Nickname))
				fmt.Fprintln(out, RenderField("Email", me.Email))
				fmt.Fprintln(out, RenderField("ID", me.ID))
				fmt.Fprintln(out, RenderField("Online status", visibility(me.ShowOnlineStatus)))
				fmt.Fprintln(out, RenderField("Contacts", strconv.Itoa(len(me.Contacts))))
				fmt.Fprintln(out, RenderField("Blocked", strconv.Itoa(len(me.BlockedUsers))))
				fmt.Fprintln(out, RenderField("Server", app.Config.Server.APIURL))
				return nil
			})
		},
	}
}

func visibility(show bool) string {
	if show {
		return "visible"
	}
	return "hidden"
}

func newExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Download your account data as a zip archive",
		Long: `Downloads everything the server keeps about the account. path may be a
directory, which receives ` + export.DefaultArchiveName + `, or a file name.
The default is the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := "."
			if len(args) == 1 {
				dest = args[0]
			}
			return withSession(cmd, opts, func(ctx context.Context, app *App, _ *model.Identity) error {
				sum, err := export.SaveArchive(ctx, app.Session.ExportData, dest)
				if err != nil {
					return NewCommandError("export", "download", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %s (%s, %d files)\n",
					SuccessStyle.Render("[OK]"), sum.Path, humanize.IBytes(uint64(sum.Size)), len(sum.Files))
				return nil
			})
		},
	}
}
