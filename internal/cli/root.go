// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BuildInfo is stamped into the binary at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Execute runs the command line and returns the process exit code.
func Execute(info BuildInfo, args []string) int {
	root := NewRootCmd(info)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		DisplayError(root.ErrOrStderr(), err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// NewRootCmd builds the parley command tree. Without a subcommand it
// starts the chat client.
func NewRootCmd(info BuildInfo) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "parley",
		Short: "Terminal chat client",
		Long: `parley is a terminal client for the parley chat service: contacts,
one-to-one conversations with read receipts and typing indicators,
attachments and voice messages.

Run without a command to open the chat screen.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (default is ~/.parley/config.toml)")
	pf.StringVarP(&opts.server, "server", "s", "", "API base URL, overrides server.api_url")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	root.Flags().StringVar(&opts.resetToken, "reset-token", "", "open the reset password form with this token")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newExportCmd(opts),
		newConfigCmd(opts),
	)
	return root
}
