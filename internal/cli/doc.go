// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the parley command line.
//
// The root command opens the chat client. The subcommands work without
// the TUI:
//
//	parley login [--email addr]   prompt for credentials and store the session
//	parley logout                 end the stored session
//	parley whoami                 show the logged-in account
//	parley export [path]          download the account archive (zip)
//	parley config show|get|path   inspect the configuration
//
// Persistent flags --config and --server override the config file and the
// API base URL. Errors are printed once by Execute, which maps them to
// exit codes (see GetExitCode).
package cli
