// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/parley-tui/internal/export"
	"github.com/jeranaias/parley-tui/internal/media"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/search"
)

// StoreChangedMsg reports that one of the stores changed. The model
// re-reads what it renders.
type StoreChangedMsg struct{}

// sessionProbedMsg carries the result of the startup session check.
type sessionProbedMsg struct {
	ident *model.Identity
}

// authDoneMsg is the result of a login or signup attempt.
type authDoneMsg struct {
	ident *model.Identity
	err   error
}

// formDoneMsg is the result of a forgot or reset password submission.
type formDoneMsg struct {
	screen Screen
	err    error
}

// opDoneMsg is the result of a store operation whose outcome the stores
// already reported as a toast. reload asks for a roster refresh.
type opDoneMsg struct {
	err    error
	reload bool
}

// sentMsg is the result of sending the composer payload.
type sentMsg struct {
	err error
}

// recordedMsg carries a finished voice capture, nil on failure.
type recordedMsg struct {
	clip *media.Clip
}

// searchFireMsg is sent by the debouncer once typing pauses.
type searchFireMsg struct {
	query string
}

// searchDoneMsg carries search results.
type searchDoneMsg struct {
	results *search.Results
	err     error
}

// blockedLoadedMsg carries the blocked users list for the privacy panel.
type blockedLoadedMsg struct {
	peers []model.Peer
	err   error
}

// exportDoneMsg is the result of saving the account archive. reported is
// set when the session store already showed the failure.
type exportDoneMsg struct {
	summary  *export.Summary
	err      error
	reported bool
}

// savedMsg is the result of writing a transcript or attachment to disk.
type savedMsg struct {
	path string
	err  error
}
