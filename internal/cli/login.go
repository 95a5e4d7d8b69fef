// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/notify"
)

var errAborted = errors.New("aborted")

func newLoginCmd(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Long: `Prompts for email and password, logs in and stores the session so the
chat client and the other commands start logged in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := RequiresTTY("prompt for credentials"); err != nil {
				return err
			}
			creds, err := promptCredentials(email)
			if err != nil {
				return err
			}
			return runLogin(cmd, opts, creds)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted when empty)")
	return cmd
}

// promptCredentials reads the missing fields with line editing. The
// password is not echoed.
func promptCredentials(email string) (model.Credentials, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	var err error
	if email == "" {
		email, err = line.Prompt("Email: ")
		if err != nil {
			return model.Credentials{}, promptError(err)
		}
	}
	password, err := line.PasswordPrompt("Password: ")
	if err != nil {
		return model.Credentials{}, promptError(err)
	}
	return model.Credentials{Email: strings.TrimSpace(email), Password: password}, nil
}

func promptError(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) {
		return errAborted
	}
	return fmt.Errorf("failed to read input: %w", err)
}

func runLogin(cmd *cobra.Command, opts *options, creds model.Credentials) error {
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	rec := &notify.Recorder{}
	app, err := newApp(opts, cfg, rec, false)
	if err != nil {
		return err
	}
	defer app.Close()

	ident, err := app.Session.Authenticate(cmd.Context(), creds)
	if err != nil {
		if msg := rec.LastError(); msg != "" {
			return fmt.Errorf("%s: %w", strings.TrimSuffix(msg, "."), err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Logged in as %s (@%s)\n", SuccessStyle.Render("[OK]"), ident.DisplayName(), ident.Nickname)
	return nil
}
