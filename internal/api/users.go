// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jeranaias/parley-tui/internal/model"
)

type usersData struct {
	Users      []model.Peer `json:"users"`
	TotalUsers int          `json:"totalUsers"`
}

type wallpaperData struct {
	Wallpaper string `json:"wallpaper"`
}

// SearchResult is one page of user search results.
type SearchResult struct {
	Users []model.Peer
	// Total is the server's count of all matches. Zero when the server
	// did not report it (unpaginated search).
	Total int
}

// identityCall performs a request whose response carries data.user.
func (c *Client) identityCall(ctx context.Context, method, path string, body any) (*model.Identity, error) {
	var resp envelope[userData]
	if err := c.do(ctx, method, path, nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Data.User == nil {
		return nil, fmt.Errorf("%w: %s %s returned no user", ErrMalformedResponse, method, path)
	}
	return resp.Data.User, nil
}

// Contacts lists the roster of the signed-in user.
func (c *Client) Contacts(ctx context.Context) ([]model.Peer, error) {
	var resp envelope[usersData]
	if err := c.do(ctx, http.MethodGet, "/users/contacts", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Users, nil
}

// AddContact adds peerID to the contact set and returns the updated identity.
func (c *Client) AddContact(ctx context.Context, peerID string) (*model.Identity, error) {
	return c.identityCall(ctx, http.MethodPut, "/users/contacts"+segment(peerID), nil)
}

// RemoveContact removes peerID from the contact set.
func (c *Client) RemoveContact(ctx context.Context, peerID string) (*model.Identity, error) {
	return c.identityCall(ctx, http.MethodDelete, "/users/contacts"+segment(peerID), nil)
}

// Block adds peerID to the block set.
func (c *Client) Block(ctx context.Context, peerID string) (*model.Identity, error) {
	return c.identityCall(ctx, http.MethodPut, "/users/block"+segment(peerID), nil)
}

// Unblock removes peerID from the block set.
func (c *Client) Unblock(ctx context.Context, peerID string) (*model.Identity, error) {
	return c.identityCall(ctx, http.MethodPut, "/users/unblock"+segment(peerID), nil)
}

// BlockedUsers lists the peers the user has blocked.
func (c *Client) BlockedUsers(ctx context.Context) ([]model.Peer, error) {
	var resp envelope[usersData]
	if err := c.do(ctx, http.MethodGet, "/users/blockedusers", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Users, nil
}

// UpdateUser changes name, nickname or email.
func (c *Client) UpdateUser(ctx context.Context, update model.ProfileUpdate) (*model.Identity, error) {
	return c.identityCall(ctx, http.MethodPatch, "/users/updateUser", update)
}

// UpdateProfilePic uploads a new avatar given as a data URL.
func (c *Client) UpdateProfilePic(ctx context.Context, dataURL string) (*model.Identity, error) {
	return c.identityCall(ctx, http.MethodPatch, "/users/updateProfilePic", map[string]string{"profilePic": dataURL})
}

// UpdateOnlineStatus toggles whether peers see the user as online.
func (c *Client) UpdateOnlineStatus(ctx context.Context, showOnline bool) (*model.Identity, error) {
	return c.identityCall(ctx, http.MethodPatch, "/users/updateOnlineStatus", map[string]bool{"showOnlineStatus": showOnline})
}

// SetChatWallpaper uploads a wallpaper (data URL) and returns the
// reference the server stored.
func (c *Client) SetChatWallpaper(ctx context.Context, dataURL string) (string, error) {
	var resp envelope[wallpaperData]
	if err := c.do(ctx, http.MethodPost, "/users/setChatWallpaper", nil, map[string]string{"wallpaper": dataURL}, &resp); err != nil {
		return "", err
	}
	return resp.Data.Wallpaper, nil
}

// SearchUsers runs an unpaginated search, as the sidebar does.
func (c *Client) SearchUsers(ctx context.Context, query string) (*SearchResult, error) {
	return c.searchUsers(ctx, url.Values{"search": {query}})
}

// SearchUsersPage fetches one page of results (pages start at 1).
func (c *Client) SearchUsersPage(ctx context.Context, query string, page, limit int) (*SearchResult, error) {
	return c.searchUsers(ctx, url.Values{
		"search": {query},
		"page":   {strconv.Itoa(page)},
		"limit":  {strconv.Itoa(limit)},
	})
}

func (c *Client) searchUsers(ctx context.Context, q url.Values) (*SearchResult, error) {
	var resp envelope[usersData]
	if err := c.do(ctx, http.MethodGet, "/users/searchUsers", q, nil, &resp); err != nil {
		return nil, err
	}
	return &SearchResult{Users: resp.Data.Users, Total: resp.Data.TotalUsers}, nil
}

// ExportData streams the account's data export (a zip archive).
// The caller must close the returned reader.
func (c *Client) ExportData(ctx context.Context) (io.ReadCloser, error) {
	return c.stream(ctx, "/users/export")
}
