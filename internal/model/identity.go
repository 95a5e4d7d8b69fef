// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"slices"
	"strings"
	"time"
)

// =============================================================================
// IDENTITY
// =============================================================================

// Identity is the authenticated user as returned by the backend.
type Identity struct {
	ID               string    `json:"_id"`
	Name             string    `json:"name"`
	Nickname         string    `json:"nickname"`
	Email            string    `json:"email"`
	ProfilePic       string    `json:"profilePic,omitempty"`
	Contacts         []string  `json:"contacts"`
	BlockedUsers     []string  `json:"blockedUsers"`
	ShowOnlineStatus bool      `json:"showOnlineStatus"`
	ChatWallpaper    string    `json:"chatWallpaper,omitempty"`
	CreatedAt        time.Time `json:"createdAt,omitempty"`
}

// IsContact reports whether peerID is in the contact set.
func (i *Identity) IsContact(peerID string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(i.Contacts, peerID)
}

// HasBlocked reports whether peerID is in the block set.
func (i *Identity) HasBlocked(peerID string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(i.BlockedUsers, peerID)
}

// Clone returns a deep copy so callers can hand the identity to the view
// layer without sharing the contact and block slices.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.Contacts = slices.Clone(i.Contacts)
	c.BlockedUsers = slices.Clone(i.BlockedUsers)
	return &c
}

// DisplayName returns the name to show for the identity.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if strings.TrimSpace(i.Name) != "" {
		return i.Name
	}
	return i.Nickname
}

// =============================================================================
// PEER
// =============================================================================

// Peer is another user, as listed in the contact roster or search results.
// Online is derived client-side from the transport's online roster and is
// never sent by the server.
type Peer struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Nickname   string `json:"nickname,omitempty"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`

	Online bool `json:"-"`
}

// DisplayName returns the name to show for the peer.
func (p Peer) DisplayName() string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.ID
}

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupForm is the account creation form.
type SignupForm struct {
	Name            string `json:"name"`
	Nickname        string `json:"nickname"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// ProfileUpdate carries the editable profile fields. Empty fields are
// omitted so the server leaves them unchanged.
type ProfileUpdate struct {
	Name     string `json:"name,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
}
