// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search finds users by name or nickname. A Searcher keeps only
// the newest query's results: starting a search cancels the one in flight,
// and a generation counter drops any response that still arrives late.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/parley-tui/internal/api"
	"github.com/jeranaias/parley-tui/internal/model"
)

const (
	// QuickLimit caps the results shown under the search bar.
	QuickLimit = 10
	// PageSize is the page length of the full search screen.
	PageSize = 10
	// DefaultDelay is the debounce applied to keystrokes.
	DefaultDelay = 400 * time.Millisecond
)

// ErrSuperseded is returned when a newer search replaced this one.
var ErrSuperseded = errors.New("search: superseded by a newer query")

// Results is what a search produced.
type Results struct {
	Query   string
	Users   []model.Peer
	HasMore bool
	// Page and Total are set for paged searches.
	Page  int
	Total int
}

// Normalize trims and NFC-normalises a query.
func Normalize(query string) string {
	return norm.NFC.String(strings.TrimSpace(query))
}

// =============================================================================
// SEARCHER
// =============================================================================

// Searcher runs quick and paged user searches.
type Searcher struct {
	client *api.Client
	log    zerolog.Logger

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	results  *Results
	running  bool
	onChange []func()
}

// New creates a Searcher.
func New(client *api.Client) *Searcher {
	return &Searcher{
		client: client,
		log:    log.With().Str("component", "search").Logger(),
	}
}

// WithLogger replaces the component logger.
func (s *Searcher) WithLogger(l zerolog.Logger) *Searcher {
	s.log = l
	return s
}

// OnChange registers fn to run whenever results or the running flag change.
func (s *Searcher) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Searcher) changed() {
	s.mu.Lock()
	hooks := append([]func(){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Results returns the newest delivered results, or nil.
func (s *Searcher) Results() *Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return nil
	}
	r := *s.results
	r.Users = append([]model.Peer(nil), s.results.Users...)
	return &r
}

// Running reports whether a search is in flight.
func (s *Searcher) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// begin supersedes the current search and returns the new generation and
// its context.
func (s *Searcher) begin(ctx context.Context) (uint64, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	return s.gen, ctx
}

// finish stores r if gen is still current. It reports false for stale
// generations.
func (s *Searcher) finish(gen uint64, r *Results) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	if r != nil {
		s.results = r
	}
	s.running = false
	s.cancel = nil
	s.mu.Unlock()
	s.changed()
	return true
}

// Clear cancels any search in flight and drops the results.
func (s *Searcher) Clear() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.results = nil
	s.running = false
	s.mu.Unlock()
	s.changed()
}

// Search runs the quick search shown under the search bar: at most
// QuickLimit users, with HasMore set when the server found more. A blank
// query clears the results.
func (s *Searcher) Search(ctx context.Context, query string) (*Results, error) {
	query = Normalize(query)
	if query == "" {
		s.Clear()
		return nil, nil
	}
	gen, ctx := s.begin(ctx)

	res, err := s.client.SearchUsers(ctx, query)
	if err != nil {
		return nil, s.failed(gen, query, err)
	}
	r := &Results{Query: query, Users: res.Users}
	if len(r.Users) > QuickLimit {
		r.Users = r.Users[:QuickLimit]
		r.HasMore = true
	}
	if !s.finish(gen, r) {
		return nil, ErrSuperseded
	}
	return r, nil
}

// Page loads one page of the full search screen. Page 1 replaces the
// results; later pages append to them when the query is unchanged.
func (s *Searcher) Page(ctx context.Context, query string, page int) (*Results, error) {
	query = Normalize(query)
	if query == "" {
		s.Clear()
		return nil, nil
	}
	if page < 1 {
		page = 1
	}
	gen, ctx := s.begin(ctx)

	res, err := s.client.SearchUsersPage(ctx, query, page, PageSize)
	if err != nil {
		return nil, s.failed(gen, query, err)
	}

	r := &Results{Query: query, Page: page, Total: res.Total, HasMore: page*PageSize < res.Total}
	if prev := s.Results(); page > 1 && prev != nil && prev.Query == query {
		r.Users = append(prev.Users, res.Users...)
	} else {
		r.Users = res.Users
	}
	if !s.finish(gen, r) {
		return nil, ErrSuperseded
	}
	return r, nil
}

// failed handles a search error. Cancellations and stale errors are
// reported as ErrSuperseded so callers can ignore them.
func (s *Searcher) failed(gen uint64, query string, err error) error {
	if api.IsCanceled(err) {
		return ErrSuperseded
	}
	if !s.finish(gen, nil) {
		return ErrSuperseded
	}
	s.log.Warn().Err(err).Int("query_len", len(query)).Msg("search failed")
	return err
}

// =============================================================================
// DEBOUNCER
// =============================================================================

// Debouncer runs the last function triggered once the input has been
// quiet for its delay.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

// NewDebouncer creates a Debouncer; a zero delay means DefaultDelay.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay}
}

// Trigger schedules fn, replacing anything scheduled before.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels anything scheduled.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
