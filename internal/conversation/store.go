// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the selected peer, its message list, unread
// bookkeeping and the typing flag. Inbound transport events mutate it
// directly; it attaches to the session's transport but never owns it.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jeranaias/parley-tui/internal/api"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/notify"
	"github.com/jeranaias/parley-tui/internal/transport"
	"github.com/jeranaias/parley-tui/internal/validate"
)

// =============================================================================
// CAPABILITIES
// =============================================================================

// TransportProvider yields the live transport, or nil.
type TransportProvider interface {
	CurrentTransport() transport.Conn
}

// Session is the part of the session store the conversation needs.
type Session interface {
	TransportProvider
	Identity() *model.Identity
	IsOnline(peerID string) bool
	EndSession(ctx context.Context) error
}

// Preferences are the notification settings consulted on inbound events.
type Preferences interface {
	// NotificationsMuted suppresses unread counters for unselected peers.
	NotificationsMuted() bool
	// SoundMuted silences the inbound message sound.
	SoundMuted() bool
	// NotificationSound is the sound file handed to the player.
	NotificationSound() string
	// ShowTyping reports whether typing indicators are shown.
	ShowTyping() bool
}

const (
	msgRosterFailed  = "Failed to load contacts."
	msgHistoryFailed = "Failed to load messages."
	msgSendFailed    = "Failed to send message."
	msgChatsDeleted  = "Chats deleted successfully."
	msgDeleteFailed  = "Failed to delete chats."
)

// DefaultTypingInterval spaces outbound typing signals.
const DefaultTypingInterval = 2 * time.Second

// =============================================================================
// STORE
// =============================================================================

// Store is the conversation state container. It is safe for concurrent
// use; its mutex is never held across network calls, emissions or hooks.
type Store struct {
	mu sync.Mutex

	client  *api.Client
	session Session
	prefs   Preferences
	player  notify.Player
	notify  notify.Notifier
	log     zerolog.Logger

	peers    []model.Peer
	selected *model.Peer
	messages []model.Message
	loaded   bool
	unread   map[string]int
	newFrom  []string
	typing   bool

	loadingRoster  bool
	loadingHistory bool
	sending        bool

	subConn transport.Conn
	tokens  []transport.Token

	typingLimit *rate.Limiter
	typingTo    string

	onChange []func()
}

// New creates an empty store.
func New(client *api.Client, sess Session, prefs Preferences, player notify.Player, n notify.Notifier) *Store {
	return &Store{
		client:      client,
		session:     sess,
		prefs:       prefs,
		player:      player,
		notify:      n,
		log:         log.With().Str("component", "conversation").Logger(),
		unread:      make(map[string]int),
		typingLimit: rate.NewLimiter(rate.Every(DefaultTypingInterval), 1),
	}
}

// WithTypingInterval changes the minimum spacing of typing signals.
func (s *Store) WithTypingInterval(d time.Duration) *Store {
	s.typingLimit = rate.NewLimiter(rate.Every(d), 1)
	return s
}

// WithLogger overrides the component logger.
func (s *Store) WithLogger(l zerolog.Logger) *Store {
	s.log = l
	return s
}

// OnChange registers fn to run after any state change.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Store) changed() {
	s.mu.Lock()
	hooks := slices.Clone(s.onChange)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (s *Store) fail(err error, fallback string) {
	if api.IsCanceled(err) {
		return
	}
	s.notify.Error(api.UserMessage(err, fallback))
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Peers returns the roster with the online flag filled in.
func (s *Store) Peers() []model.Peer {
	s.mu.Lock()
	peers := slices.Clone(s.peers)
	s.mu.Unlock()
	for i := range peers {
		peers[i].Online = s.session.IsOnline(peers[i].ID)
	}
	return peers
}

// Peer looks a roster entry up by id.
func (s *Store) Peer(id string) (model.Peer, bool) {
	for _, p := range s.Peers() {
		if p.ID == id {
			return p, true
		}
	}
	return model.Peer{}, false
}

// Selected returns the active peer, or nil.
func (s *Store) Selected() *model.Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	p := *s.selected
	return &p
}

// Messages returns a copy of the visible list in arrival order.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Loaded reports whether history for the selected peer has arrived.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Unread returns the unread counter for peerID.
func (s *Store) Unread(peerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[peerID]
}

// HasNewMessage reports the "has new message" flag for peerID.
func (s *Store) HasNewMessage(peerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.newFrom, peerID)
}

// Typing reports whether the selected peer is typing.
func (s *Store) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Loading reports in-flight roster, history and send requests.
func (s *Store) Loading() (roster, history, sending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingRoster, s.loadingHistory, s.sending
}

// Subscribed reports whether event handlers are attached.
func (s *Store) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subConn != nil
}

// =============================================================================
// REQUESTS
// =============================================================================

// LoadRoster fetches the contact list. An unauthorized answer ends the
// session.
func (s *Store) LoadRoster(ctx context.Context) error {
	if s.session.Identity() == nil {
		return nil
	}
	s.setLoading(&s.loadingRoster, true)
	defer s.setLoading(&s.loadingRoster, false)

	peers, err := s.client.Contacts(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			if s.session.Identity() != nil {
				s.log.Info().Msg("roster unauthorized, ending session")
				_ = s.session.EndSession(ctx)
			}
			return err
		}
		s.fail(err, msgRosterFailed)
		return err
	}
	if s.session.Identity() == nil {
		// logged out while the request was in flight
		return nil
	}
	s.mu.Lock()
	s.peers = peers
	s.mu.Unlock()
	return nil
}

// LoadHistory replaces the visible list with the full history for
// peerID. A result for a peer that is no longer selected is dropped.
func (s *Store) LoadHistory(ctx context.Context, peerID string) error {
	s.setLoading(&s.loadingHistory, true)
	defer s.setLoading(&s.loadingHistory, false)

	msgs, err := s.client.Messages(ctx, peerID)
	if err != nil {
		s.fail(err, msgHistoryFailed)
		return err
	}
	s.mu.Lock()
	if s.selected == nil || s.selected.ID != peerID {
		s.mu.Unlock()
		s.log.Debug().Str("peer", peerID).Msg("dropping history for deselected peer")
		return nil
	}
	s.messages = msgs
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Send posts payload to peerID and appends the server's copy. An empty
// payload is rejected without a request.
func (s *Store) Send(ctx context.Context, peerID string, payload model.Payload) (*model.Message, error) {
	if err := validate.Payload(payload); err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			s.notify.Error(verr.Message)
		}
		return nil, err
	}
	s.setLoading(&s.sending, true)
	defer s.setLoading(&s.sending, false)

	msg, err := s.client.SendMessage(ctx, peerID, payload)
	if err != nil {
		s.fail(err, msgSendFailed)
		return nil, fmt.Errorf("send: %w", err)
	}

	s.mu.Lock()
	if s.selected != nil && s.selected.ID == peerID {
		s.messages = append(s.messages, *msg)
	}
	s.typingTo = ""
	s.mu.Unlock()

	_ = s.emit(transport.EventStopTyping, transport.TypingSignal{ToUserID: peerID})
	return msg, nil
}

// ClearChats deletes the conversation with forUserID.
func (s *Store) ClearChats(ctx context.Context, forUserID string, onlyForMe bool) error {
	if err := s.client.DeleteChats(ctx, forUserID, onlyForMe); err != nil {
		s.fail(err, msgDeleteFailed)
		return err
	}
	s.mu.Lock()
	if s.selected != nil && s.selected.ID == forUserID {
		s.messages = nil
	}
	s.mu.Unlock()
	s.notify.Success(msgChatsDeleted)
	s.changed()
	return nil
}

func (s *Store) setLoading(flag *bool, v bool) {
	s.mu.Lock()
	*flag = v
	s.mu.Unlock()
	s.changed()
}

// =============================================================================
// SELECTION
// =============================================================================

// SelectPeer changes the active peer and clears its unread state. nil
// selects nothing.
func (s *Store) SelectPeer(peer *model.Peer) {
	s.mu.Lock()
	prev := s.typingTo
	s.typingTo = ""
	if peer == nil {
		s.selected = nil
	} else {
		p := *peer
		s.selected = &p
		delete(s.unread, p.ID)
		s.newFrom = slices.DeleteFunc(s.newFrom, func(id string) bool { return id == p.ID })
	}
	s.messages = nil
	s.loaded = false
	s.typing = false
	s.mu.Unlock()

	if prev != "" {
		_ = s.emit(transport.EventStopTyping, transport.TypingSignal{ToUserID: prev})
	}
	s.changed()
}

// =============================================================================
// OUTBOUND SIGNALS
// =============================================================================

func (s *Store) emit(event string, payload any) error {
	conn := s.session.CurrentTransport()
	if conn == nil {
		return transport.ErrNotConnected
	}
	if err := conn.Emit(event, payload); err != nil {
		s.log.Debug().Err(err).Str("event", event).Msg("emit failed")
		return err
	}
	return nil
}

// MarkAsRead acknowledges the messages received from peerID. The read
// flags change when the peer's messagesRead comes back.
func (s *Store) MarkAsRead(peerID string) error {
	return s.emit(transport.EventMarkAsRead, transport.MarkRead{FromUserID: peerID})
}

// NotifyTyping reports composer input to the selected peer: typing for
// non-blank text, at most once per interval, and stopTyping once the text
// is blank again. It does nothing while typing indicators are hidden.
func (s *Store) NotifyTyping(text string) {
	if !s.prefs.ShowTyping() {
		return
	}
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return
	}
	peerID := s.selected.ID
	blank := strings.TrimSpace(text) == ""
	var event string
	switch {
	case blank && s.typingTo != "":
		event, s.typingTo = transport.EventStopTyping, ""
	case !blank && s.typingLimit.Allow():
		event, s.typingTo = transport.EventTyping, peerID
	}
	s.mu.Unlock()

	if event != "" {
		_ = s.emit(event, transport.TypingSignal{ToUserID: peerID})
	}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe attaches the event handlers to the session's current
// transport.
func (s *Store) Subscribe() {
	s.SubscribeTo(s.session.CurrentTransport())
}

// SubscribeTo attaches the event handlers to conn, first releasing any
// previous subscription, so an inbound event is handled exactly once.
func (s *Store) SubscribeTo(conn transport.Conn) {
	if conn == nil {
		return
	}
	s.Unsubscribe()
	toks := []transport.Token{
		conn.Subscribe(transport.EventNewMessage, s.handleNewMessage),
		conn.Subscribe(transport.EventMessagesRead, s.handleMessagesRead),
		conn.Subscribe(transport.EventTyping, s.typingHandler(true)),
		conn.Subscribe(transport.EventStopTyping, s.typingHandler(false)),
	}
	s.mu.Lock()
	s.subConn, s.tokens = conn, toks
	s.mu.Unlock()
}

// Unsubscribe releases the event handlers. Safe to call when not
// subscribed.
func (s *Store) Unsubscribe() {
	s.mu.Lock()
	conn, toks := s.subConn, s.tokens
	s.subConn, s.tokens = nil, nil
	s.mu.Unlock()
	if conn == nil {
		return
	}
	for _, tok := range toks {
		conn.Unsubscribe(tok)
	}
}

func (s *Store) handleNewMessage(data json.RawMessage) {
	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Debug().Err(err).Msg("malformed newMessage")
		return
	}
	muted := s.prefs.NotificationsMuted()

	s.mu.Lock()
	if s.selected == nil || msg.SenderID != s.selected.ID {
		if msg.SenderID != "" && !muted {
			s.unread[msg.SenderID]++
			if !slices.Contains(s.newFrom, msg.SenderID) {
				s.newFrom = append(s.newFrom, msg.SenderID)
			}
		}
		s.mu.Unlock()
		s.playSound()
		s.changed()
		return
	}
	s.messages = append(s.messages, msg)
	peerID := s.selected.ID
	s.mu.Unlock()

	s.playSound()
	_ = s.MarkAsRead(peerID)
	s.changed()
}

func (s *Store) handleMessagesRead(data json.RawMessage) {
	var rr transport.ReadReceipt
	if err := json.Unmarshal(data, &rr); err != nil || rr.ByUserID == "" {
		return
	}
	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ReceiverID == rr.ByUserID {
			s.messages[i].IsRead = true
		}
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Store) typingHandler(typing bool) transport.Handler {
	return func(data json.RawMessage) {
		var sig transport.PeerSignal
		if err := json.Unmarshal(data, &sig); err != nil {
			return
		}
		s.mu.Lock()
		if s.selected == nil || s.selected.ID != sig.FromUserID {
			s.mu.Unlock()
			return
		}
		s.typing = typing
		s.mu.Unlock()
		s.changed()
	}
}

func (s *Store) playSound() {
	if s.prefs.SoundMuted() {
		return
	}
	if err := s.player.Play(s.prefs.NotificationSound()); err != nil {
		s.log.Debug().Err(err).Msg("notification sound failed")
	}
}

// =============================================================================
// TEARDOWN
// =============================================================================

// Reset detaches from the transport and forgets all conversation state.
// It runs on logout.
func (s *Store) Reset() {
	s.Unsubscribe()
	s.mu.Lock()
	s.peers = nil
	s.selected = nil
	s.messages = nil
	s.loaded = false
	s.unread = make(map[string]int)
	s.newFrom = nil
	s.typing = false
	s.typingTo = ""
	s.mu.Unlock()
	s.changed()
}
