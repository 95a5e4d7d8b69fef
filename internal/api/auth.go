// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/parley-tui/internal/model"
)

// authResponse is what /auth/login, /auth/signup and /auth/resetPassword
// return: the user at the top level, not inside data.
type authResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    *model.Identity `json:"user"`
}

type userData struct {
	User *model.Identity `json:"user"`
}

// Login exchanges credentials for a session cookie and the identity.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*model.Identity, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("%w: login returned no user", ErrMalformedResponse)
	}
	return resp.User, nil
}

// Signup creates an account and opens a session for it.
func (c *Client) Signup(ctx context.Context, form model.SignupForm) (*model.Identity, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", nil, form, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("%w: signup returned no user", ErrMalformedResponse)
	}
	return resp.User, nil
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// CheckAuth re-validates the current session cookie.
func (c *Client) CheckAuth(ctx context.Context) (*model.Identity, error) {
	var resp envelope[userData]
	if err := c.do(ctx, http.MethodGet, "/auth/check", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data.User == nil {
		return nil, fmt.Errorf("%w: check returned no user", ErrMalformedResponse)
	}
	return resp.Data.User, nil
}

// ForgotPassword asks the server to mail a reset link. It returns the
// server's confirmation text.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	body := map[string]string{"email": strings.ToLower(strings.TrimSpace(email))}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/forgotPassword", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ResetPassword sets a new password using the token from the reset mail.
func (c *Client) ResetPassword(ctx context.Context, token, password, confirm string) error {
	body := map[string]string{"password": password, "passwordConfirm": confirm}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/resetPassword"+segment(token), nil, body, &resp); err != nil {
		return err
	}
	if resp.User == nil {
		return fmt.Errorf("%w: reset returned no user", ErrMalformedResponse)
	}
	return nil
}
