// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley-tui/internal/api"
	"github.com/jeranaias/parley-tui/internal/api/apitest"
	"github.com/jeranaias/parley-tui/internal/model"
)

func newClient(t *testing.T, b *apitest.Backend) *api.Client {
	t.Helper()
	c, err := api.NewClient(b.URL())
	require.NoError(t, err)
	return c
}

func seed(b *apitest.Backend) (*model.Identity, *model.Identity) {
	alice := b.AddUser(model.Identity{Name: "Alice Smith", Nickname: "alice", Email: "alice@example.com", ShowOnlineStatus: true}, "secret123")
	bob := b.AddUser(model.Identity{Name: "Bob Jones", Nickname: "bobby", Email: "bob@example.com", ShowOnlineStatus: true}, "hunter22")
	return alice, bob
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := api.NewClient("ftp://example.com")
	assert.Error(t, err)
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	b := apitest.New(t)
	alice, _ := seed(b)
	c := newClient(t, b)
	ctx := context.Background()

	ident, err := c.Login(ctx, model.Credentials{Email: "alice@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, ident.ID)
	require.Len(t, c.Cookies(), 1)
	assert.Equal(t, apitest.SessionCookie, c.Cookies()[0].Name)

	checked, err := c.CheckAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, checked.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	b := apitest.New(t)
	seed(b)
	c := newClient(t, b)

	_, err := c.Login(context.Background(), model.Credentials{Email: "alice@example.com", Password: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrUnauthorized))
	assert.Equal(t, "Incorrect email or password.", api.UserMessage(err, "fallback"))
}

func TestCheckAuth_WithoutSession(t *testing.T) {
	b := apitest.New(t)
	c := newClient(t, b)
	_, err := c.CheckAuth(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestCookies_RoundTrip(t *testing.T) {
	b := apitest.New(t)
	alice, _ := seed(b)
	ctx := context.Background()

	first := newClient(t, b)
	_, err := first.Login(ctx, model.Credentials{Email: alice.Email, Password: "secret123"})
	require.NoError(t, err)

	// A fresh process restores the exported cookie.
	second := newClient(t, b)
	var restored []*http.Cookie
	for _, ck := range first.Cookies() {
		restored = append(restored, &http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	second.SetCookies(restored)
	ident, err := second.CheckAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, ident.ID)

	second.ClearCookies()
	assert.Empty(t, second.Cookies())
	_, err = second.CheckAuth(ctx)
	assert.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestContactMutations(t *testing.T) {
	b := apitest.New(t)
	alice, bob := seed(b)
	c := newClient(t, b)
	ctx := context.Background()
	_, err := c.Login(ctx, model.Credentials{Email: alice.Email, Password: "secret123"})
	require.NoError(t, err)

	ident, err := c.AddContact(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, ident.IsContact(bob.ID))

	peers, err := c.Contacts(ctx)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "bobby", peers[0].Nickname)

	ident, err = c.Block(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, ident.HasBlocked(bob.ID))

	blocked, err := c.BlockedUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, blocked, 1)

	ident, err = c.Unblock(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, ident.HasBlocked(bob.ID))

	ident, err = c.RemoveContact(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, ident.IsContact(bob.ID))

	_, err = c.AddContact(ctx, "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestSendAndHistory(t *testing.T) {
	b := apitest.New(t)
	alice, bob := seed(b)
	c := newClient(t, b)
	ctx := context.Background()
	_, err := c.Login(ctx, model.Credentials{Email: alice.Email, Password: "secret123"})
	require.NoError(t, err)

	msg, err := c.SendMessage(ctx, bob.ID, model.Payload{Text: "  hi bob  "})
	require.NoError(t, err)
	assert.Equal(t, "hi bob", msg.Text)
	assert.Equal(t, alice.ID, msg.SenderID)

	_, err = c.SendMessage(ctx, bob.ID, model.Payload{
		Attachment: &model.Attachment{Kind: model.AttachmentFile, Data: "data:text/plain;base64,aGk=", FileName: "notes.txt"},
	})
	require.NoError(t, err)

	history, err := c.Messages(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "notes.txt", history[1].FileName)
	assert.NotEmpty(t, history[1].File)

	_, err = c.SendMessage(ctx, bob.ID, model.Payload{Text: "   "})
	assert.ErrorIs(t, err, model.ErrEmptyPayload)
	assert.Equal(t, 2, b.Hits("POST /messages/{id}"), "empty payload must not reach the server")

	require.NoError(t, c.DeleteChats(ctx, bob.ID, true))
	assert.Empty(t, b.History(alice.ID, bob.ID))
}

func TestSearchUsersPage(t *testing.T) {
	b := apitest.New(t)
	alice, _ := seed(b)
	for _, nick := range []string{"johnny1", "johnny2", "johnny3"} {
		b.AddUser(model.Identity{Name: "John " + nick, Nickname: nick, Email: nick + "@example.com"}, "pw")
	}
	c := newClient(t, b)
	ctx := context.Background()
	_, err := c.Login(ctx, model.Credentials{Email: alice.Email, Password: "secret123"})
	require.NoError(t, err)

	res, err := c.SearchUsersPage(ctx, "john", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "johnny3", res.Users[0].Nickname)
}

func TestExportData(t *testing.T) {
	b := apitest.New(t)
	alice, _ := seed(b)
	b.SetExport([]byte("zip-bytes"))
	c := newClient(t, b)
	ctx := context.Background()
	_, err := c.Login(ctx, model.Credentials{Email: alice.Email, Password: "secret123"})
	require.NoError(t, err)

	rc, err := c.ExportData(ctx)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))
}

func TestForgotAndResetPassword(t *testing.T) {
	b := apitest.New(t)
	seed(b)
	c := newClient(t, b)
	ctx := context.Background()

	msg, err := c.ForgotPassword(ctx, "  ALICE@example.com ")
	require.NoError(t, err)
	assert.Contains(t, msg, "alice@example.com")

	assert.NoError(t, c.ResetPassword(ctx, "valid-token", "pw1", "pw1"))
	err = c.ResetPassword(ctx, "stale", "pw1", "pw1")
	assert.ErrorIs(t, err, api.ErrBadRequest)
	assert.Equal(t, "Token is invalid or has expired.", api.UserMessage(err, ""))
}

func TestRetry_GetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"users":[{"_id":"p1","name":"Pat"}]}}`))
	}))
	defer srv.Close()

	c, err := api.NewClient(srv.URL)
	require.NoError(t, err)
	peers, err := c.Contacts(context.Background())
	require.NoError(t, err)
	assert.Len(t, peers, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_PostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := api.NewClient(srv.URL)
	require.NoError(t, err)
	_, err = c.SendMessage(context.Background(), "p1", model.Payload{Text: "hi"})
	assert.ErrorIs(t, err, api.ErrServer)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRequestHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "/api/messages/a%2Fb", r.URL.EscapedPath())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"success","data":{"message":{"_id":"m1","text":"hi"}}}`))
	}))
	defer srv.Close()

	c, err := api.NewClient(srv.URL + "/api/")
	require.NoError(t, err)
	msg, err := c.SendMessage(context.Background(), "a/b", model.Payload{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
}
