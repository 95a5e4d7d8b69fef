// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley-tui/internal/api"
	"github.com/jeranaias/parley-tui/internal/api/apitest"
	"github.com/jeranaias/parley-tui/internal/model"
)

const searchRoute = "GET /users/searchUsers"

func setup(t *testing.T) (*Searcher, *apitest.Backend) {
	t.Helper()
	b := apitest.New(t)
	b.AddUser(model.Identity{Name: "Alice Liddell", Nickname: "alice", Email: "alice@example.com"}, "pw")
	b.AddUser(model.Identity{Name: "John Smith", Nickname: "johnsmith", Email: "john@example.com"}, "pw")
	b.AddUser(model.Identity{Name: "Johnny Cash", Nickname: "johnnycash", Email: "johnny@example.com"}, "pw")

	client, err := api.NewClient(b.URL())
	require.NoError(t, err)
	client.WithMaxRetries(0)
	_, err = client.Login(context.Background(), model.Credentials{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	return New(client), b
}

func addTesters(b *apitest.Backend, n int) {
	for i := 0; i < n; i++ {
		b.AddUser(model.Identity{
			Name:     fmt.Sprintf("Tester Number%02d", i),
			Nickname: fmt.Sprintf("tester%02d", i),
			Email:    fmt.Sprintf("tester%02d@example.com", i),
		}, "pw")
	}
}

func nicknames(peers []model.Peer) []string {
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.Nickname
	}
	return out
}

func TestSearch(t *testing.T) {
	s, _ := setup(t)
	var changes atomic.Int32
	s.OnChange(func() { changes.Add(1) })

	r, err := s.Search(context.Background(), "  john ")
	require.NoError(t, err)
	assert.Equal(t, "john", r.Query)
	assert.Equal(t, []string{"johnnycash", "johnsmith"}, nicknames(r.Users))
	assert.False(t, r.HasMore)
	assert.Equal(t, r, s.Results())
	assert.False(t, s.Running())
	assert.EqualValues(t, 1, changes.Load())
}

func TestSearch_BlankClears(t *testing.T) {
	s, b := setup(t)
	_, err := s.Search(context.Background(), "john")
	require.NoError(t, err)
	hits := b.Hits(searchRoute)

	r, err := s.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Nil(t, s.Results())
	assert.Equal(t, hits, b.Hits(searchRoute))
}

func TestSearch_CapsQuickResults(t *testing.T) {
	s, b := setup(t)
	addTesters(b, 12)

	r, err := s.Search(context.Background(), "tester")
	require.NoError(t, err)
	assert.Len(t, r.Users, QuickLimit)
	assert.True(t, r.HasMore)
}

func TestSearch_NewestQueryWins(t *testing.T) {
	s, b := setup(t)
	release := make(chan struct{})
	b.OnSearch = func(r *http.Request) {
		if r.URL.Query().Get("search") == "john" {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}
	}
	defer close(release)

	first := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "john")
		first <- err
	}()
	require.True(t, apitest.WaitFor(2*time.Second, func() bool { return b.Hits(searchRoute) == 1 }))

	r, err := s.Search(context.Background(), "johnny")
	require.NoError(t, err)
	assert.Equal(t, []string{"johnnycash"}, nicknames(r.Users))

	select {
	case err := <-first:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first search never returned")
	}
	assert.Equal(t, "johnny", s.Results().Query)
	assert.Equal(t, []string{"johnnycash"}, nicknames(s.Results().Users))
}

func TestSearch_ClearDropsLateResults(t *testing.T) {
	s, b := setup(t)
	started := make(chan struct{})
	b.OnSearch = func(r *http.Request) {
		close(started)
		<-r.Context().Done()
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "john")
		done <- err
	}()
	<-started
	s.Clear()

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Nil(t, s.Results())
	assert.False(t, s.Running())
}

func TestSearch_ServerError(t *testing.T) {
	s, b := setup(t)
	b.Fail(searchRoute, http.StatusInternalServerError, "boom")

	_, err := s.Search(context.Background(), "john")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, s.Running())
	assert.Nil(t, s.Results())
}

func TestPage(t *testing.T) {
	s, b := setup(t)
	addTesters(b, 12)

	r, err := s.Page(context.Background(), "tester", 1)
	require.NoError(t, err)
	assert.Len(t, r.Users, PageSize)
	assert.Equal(t, 12, r.Total)
	assert.True(t, r.HasMore)

	r, err = s.Page(context.Background(), "tester", 2)
	require.NoError(t, err)
	assert.Len(t, r.Users, 12)
	assert.Equal(t, "tester11", r.Users[11].Nickname)
	assert.False(t, r.HasMore)

	// A new query starts over.
	r, err = s.Page(context.Background(), "john", 2)
	require.NoError(t, err)
	assert.Empty(t, r.Users)
	assert.False(t, r.HasMore)
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Value

	for _, q := range []string{"j", "jo", "joh", "john"} {
		d.Trigger(func() {
			calls.Add(1)
			last.Store(q)
		})
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, "john", last.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())
	assert.Equal(t, DefaultDelay, NewDebouncer(0).delay)
}
