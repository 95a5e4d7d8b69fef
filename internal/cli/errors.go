// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for parley subcommands.
//
// Commands always return errors; Execute prints them once and picks the
// exit code.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jeranaias/parley-tui/internal/api"
	"github.com/jeranaias/parley-tui/internal/config"
	"github.com/jeranaias/parley-tui/internal/session"
	"github.com/jeranaias/parley-tui/internal/validate"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	// ExitUsageError covers bad arguments and rejected input
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitNotFound     = 7
	ExitTimeout      = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed subcommand with the step that failed.
type CommandError struct {
	Command string // e.g. "export"
	Action  string // e.g. "download"
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err. A nil err stays nil.
func NewCommandError(command, action string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: command, Action: action, Err: err}
}

// errNotLoggedIn is returned by commands that need a stored session.
var errNotLoggedIn = errors.New("not logged in; run `parley login` first")

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err to w. Server messages are shown as the server
// worded them.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), msg)
}

// GetExitCode maps an error to the process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		valErr  *validate.Error
		cfgErr  config.ValidateErrors
		ttyErr  *TTYRequiredError
		netErr  net.Error
		opError *net.OpError
	)
	switch {
	case errors.As(err, &valErr), errors.As(err, &ttyErr):
		return ExitUsageError
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, errNotLoggedIn), errors.Is(err, session.ErrNoIdentity),
		errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrForbidden):
		return ExitAuthError
	case errors.Is(err, api.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ExitTimeout
	case errors.As(err, &opError):
		return ExitNetworkError
	}
	return ExitGeneralError
}
