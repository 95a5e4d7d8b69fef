// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley-tui/internal/api"
	"github.com/jeranaias/parley-tui/internal/api/apitest"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/notify"
	"github.com/jeranaias/parley-tui/internal/transport"
	"github.com/jeranaias/parley-tui/internal/transport/transporttest"
)

// =============================================================================
// FIXTURES
// =============================================================================

type fakeSession struct {
	mu     sync.Mutex
	ident  *model.Identity
	conn   transport.Conn
	online map[string]bool
	ended  int
}

func (f *fakeSession) CurrentTransport() transport.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn
}

func (f *fakeSession) Identity() *model.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ident.Clone()
}

func (f *fakeSession) IsOnline(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[id]
}

func (f *fakeSession) EndSession(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended++
	f.ident = nil
	return nil
}

type fakePrefs struct {
	muted      bool
	soundMuted bool
	showTyping bool
}

func (p *fakePrefs) NotificationsMuted() bool  { return p.muted }
func (p *fakePrefs) SoundMuted() bool          { return p.soundMuted }
func (p *fakePrefs) NotificationSound() string { return "bell-notification.mp3" }
func (p *fakePrefs) ShowTyping() bool          { return p.showTyping }

type fixture struct {
	backend *apitest.Backend
	store   *Store
	session *fakeSession
	prefs   *fakePrefs
	conn    *transporttest.Fake
	rec     *notify.Recorder

	alice, bob, carol *model.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := apitest.New(t)
	f := &fixture{backend: b, prefs: &fakePrefs{showTyping: true}, rec: &notify.Recorder{}}
	f.bob = b.AddUser(model.Identity{Name: "Bob Stone", Nickname: "bobstone", Email: "bob@example.com"}, "pw")
	f.carol = b.AddUser(model.Identity{Name: "Carol Reed", Nickname: "carolreed", Email: "carol@example.com"}, "pw")
	f.alice = b.AddUser(model.Identity{
		Name: "Alice Liddell", Nickname: "alice", Email: "alice@example.com",
		Contacts: []string{f.bob.ID, f.carol.ID},
	}, "pw")

	client, err := api.NewClient(b.URL())
	require.NoError(t, err)
	client.WithMaxRetries(0)
	_, err = client.Login(context.Background(), model.Credentials{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)

	f.conn = transporttest.New(f.alice.ID)
	f.session = &fakeSession{ident: f.alice.Clone(), conn: f.conn, online: map[string]bool{f.bob.ID: true}}
	f.store = New(client, f.session, f.prefs, f.rec, f.rec).WithTypingInterval(time.Hour)
	f.store.Subscribe()
	return f
}

func (f *fixture) peer(ident *model.Identity) *model.Peer {
	return &model.Peer{ID: ident.ID, Name: ident.Name, Nickname: ident.Nickname}
}

func (f *fixture) deliverFrom(sender *model.Identity, text string) {
	f.conn.Deliver(transport.EventNewMessage, model.Message{
		ID: text, SenderID: sender.ID, ReceiverID: f.alice.ID, Text: text, CreatedAt: time.Now(),
	})
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// =============================================================================
// INBOUND EVENT TESTS
// =============================================================================

func TestNewMessage_FromOtherPeerCountsUnread(t *testing.T) {
	f := newFixture(t)
	f.store.SelectPeer(f.peer(f.bob))
	require.NoError(t, f.store.LoadHistory(context.Background(), f.bob.ID))
	before := f.store.Messages()

	f.deliverFrom(f.carol, "hi")

	assert.Equal(t, 1, f.store.Unread(f.carol.ID))
	assert.True(t, f.store.HasNewMessage(f.carol.ID))
	assert.Equal(t, before, f.store.Messages(), "visible list must not change")
	assert.Equal(t, []string{"bell-notification.mp3"}, f.rec.Played())
	assert.Empty(t, f.conn.EmittedEvents(transport.EventMarkAsRead))
}

func TestNewMessage_IncrementsByExactlyOnePerEvent(t *testing.T) {
	f := newFixture(t)
	f.store.SelectPeer(f.peer(f.bob))

	dave := &model.Identity{ID: "dave", Nickname: "dave"}
	for _, sender := range []*model.Identity{f.carol, dave} {
		for i := 1; i <= 3; i++ {
			f.deliverFrom(sender, "m")
			assert.Equal(t, i, f.store.Unread(sender.ID), "sender %s", sender.Nickname)
		}
	}
	assert.Zero(t, f.store.Unread(f.bob.ID))
}

func TestNewMessage_NothingSelected(t *testing.T) {
	f := newFixture(t)
	f.deliverFrom(f.bob, "hello")
	assert.Equal(t, 1, f.store.Unread(f.bob.ID))
	assert.Empty(t, f.store.Messages())
}

func TestNewMessage_FromSelectedPeerAppendsAndMarksRead(t *testing.T) {
	f := newFixture(t)
	f.store.SelectPeer(f.peer(f.bob))

	f.deliverFrom(f.bob, "first")
	f.deliverFrom(f.bob, "second")

	msgs := f.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)
	assert.Zero(t, f.store.Unread(f.bob.ID))
	assert.Len(t, f.rec.Played(), 2)

	marks := f.conn.EmittedEvents(transport.EventMarkAsRead)
	require.Len(t, marks, 2)
	assert.Equal(t, f.bob.ID, decode[transport.MarkRead](t, marks[0].Payload).FromUserID)
}

func TestNewMessage_MuteFlags(t *testing.T) {
	t.Run("master mute suppresses unread", func(t *testing.T) {
		f := newFixture(t)
		f.prefs.muted, f.prefs.soundMuted = true, true
		f.deliverFrom(f.carol, "psst")
		assert.Zero(t, f.store.Unread(f.carol.ID))
		assert.False(t, f.store.HasNewMessage(f.carol.ID))
		assert.Empty(t, f.rec.Played())
	})
	t.Run("sound mute keeps counting", func(t *testing.T) {
		f := newFixture(t)
		f.prefs.soundMuted = true
		f.deliverFrom(f.carol, "psst")
		assert.Equal(t, 1, f.store.Unread(f.carol.ID))
		assert.Empty(t, f.rec.Played())
	})
}

func TestMessagesRead_FlipsOnlyAddressedMessages(t *testing.T) {
	f := newFixture(t)
	f.backend.AddMessage(model.Message{SenderID: f.alice.ID, ReceiverID: f.bob.ID, Text: "to bob"})
	f.backend.AddMessage(model.Message{SenderID: f.bob.ID, ReceiverID: f.alice.ID, Text: "to alice"})
	f.backend.AddMessage(model.Message{SenderID: f.alice.ID, ReceiverID: f.bob.ID, Text: "to bob again"})
	f.store.SelectPeer(f.peer(f.bob))
	require.NoError(t, f.store.LoadHistory(context.Background(), f.bob.ID))

	f.conn.Deliver(transport.EventMessagesRead, transport.ReadReceipt{ByUserID: f.bob.ID})

	for _, m := range f.store.Messages() {
		if m.ReceiverID == f.bob.ID {
			assert.True(t, m.IsRead, m.Text)
		} else {
			assert.False(t, m.IsRead, m.Text)
		}
	}
}

func TestTypingSignals_OnlyForSelectedPeer(t *testing.T) {
	f := newFixture(t)
	f.store.SelectPeer(f.peer(f.bob))

	f.conn.Deliver(transport.EventTyping, transport.PeerSignal{FromUserID: f.carol.ID})
	assert.False(t, f.store.Typing())

	f.conn.Deliver(transport.EventTyping, transport.PeerSignal{FromUserID: f.bob.ID})
	assert.True(t, f.store.Typing())

	f.conn.Deliver(transport.EventStopTyping, transport.PeerSignal{FromUserID: f.carol.ID})
	assert.True(t, f.store.Typing())

	f.conn.Deliver(transport.EventStopTyping, transport.PeerSignal{FromUserID: f.bob.ID})
	assert.False(t, f.store.Typing())
}

func TestMalformedFramesIgnored(t *testing.T) {
	f := newFixture(t)
	f.conn.Dispatch(transport.EventNewMessage, json.RawMessage(`"nope"`))
	f.conn.Dispatch(transport.EventMessagesRead, json.RawMessage(`[]`))
	assert.Empty(t, f.store.Messages())
	assert.Empty(t, f.rec.Played())
}

// =============================================================================
// SUBSCRIPTION TESTS
// =============================================================================

func TestSubscribe_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.store.Subscribe()
	f.store.Subscribe()

	for _, ev := range []string{transport.EventNewMessage, transport.EventMessagesRead, transport.EventTyping, transport.EventStopTyping} {
		assert.Equal(t, 1, f.conn.Count(ev), ev)
	}

	f.deliverFrom(f.carol, "once")
	assert.Equal(t, 1, f.store.Unread(f.carol.ID))
	assert.Len(t, f.rec.Played(), 1)
}

func TestSubscribeTo_ReleasesPreviousTransport(t *testing.T) {
	f := newFixture(t)
	next := transporttest.New(f.alice.ID)
	f.store.SubscribeTo(next)

	assert.Zero(t, f.conn.Count(transport.EventNewMessage))
	assert.Equal(t, 1, next.Count(transport.EventNewMessage))

	f.deliverFrom(f.carol, "stale socket")
	assert.Zero(t, f.store.Unread(f.carol.ID))

	next.Deliver(transport.EventNewMessage, model.Message{SenderID: f.carol.ID, ReceiverID: f.alice.ID})
	assert.Equal(t, 1, f.store.Unread(f.carol.ID))
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t)
	f.store.Unsubscribe()
	f.store.Unsubscribe()
	assert.False(t, f.store.Subscribed())
	assert.Zero(t, f.conn.Deliver(transport.EventNewMessage, model.Message{SenderID: f.bob.ID}))
}

// =============================================================================
// SELECTION TESTS
// =============================================================================

func TestSelectPeer_ResetsUnread(t *testing.T) {
	f := newFixture(t)
	f.deliverFrom(f.bob, "1")
	f.deliverFrom(f.bob, "2")
	require.Equal(t, 2, f.store.Unread(f.bob.ID))

	f.store.SelectPeer(f.peer(f.bob))
	assert.Zero(t, f.store.Unread(f.bob.ID))
	assert.False(t, f.store.HasNewMessage(f.bob.ID))

	// selecting again with a zero counter stays zero
	f.store.SelectPeer(f.peer(f.bob))
	assert.Zero(t, f.store.Unread(f.bob.ID))

	f.store.SelectPeer(nil)
	assert.Nil(t, f.store.Selected())
	assert.False(t, f.store.Loaded())
}

func TestLoadHistory_DroppedAfterSelectionChange(t *testing.T) {
	f := newFixture(t)
	f.backend.AddMessage(model.Message{SenderID: f.bob.ID, ReceiverID: f.alice.ID, Text: "from bob"})
	f.store.SelectPeer(f.peer(f.bob))
	f.store.SelectPeer(f.peer(f.carol))

	require.NoError(t, f.store.LoadHistory(context.Background(), f.bob.ID))
	assert.Empty(t, f.store.Messages())
	assert.False(t, f.store.Loaded())

	f.store.SelectPeer(f.peer(f.bob))
	require.NoError(t, f.store.LoadHistory(context.Background(), f.bob.ID))
	require.Len(t, f.store.Messages(), 1)
	assert.True(t, f.store.Loaded())
}

func TestLoadHistory_Failure(t *testing.T) {
	f := newFixture(t)
	f.store.SelectPeer(f.peer(f.bob))
	f.backend.Fail("GET /messages/{id}", http.StatusInternalServerError, "")
	require.Error(t, f.store.LoadHistory(context.Background(), f.bob.ID))
	assert.Equal(t, msgHistoryFailed, f.rec.LastError())
}

// =============================================================================
// ROSTER TESTS
// =============================================================================

func TestLoadRoster(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.LoadRoster(context.Background()))

	peers := f.store.Peers()
	require.Len(t, peers, 2)
	bob, ok := f.store.Peer(f.bob.ID)
	require.True(t, ok)
	assert.True(t, bob.Online)
	carol, _ := f.store.Peer(f.carol.ID)
	assert.False(t, carol.Online)
}

func TestLoadRoster_UnauthorizedEndsSession(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail("GET /users/contacts", http.StatusUnauthorized, "Session expired.")

	err := f.store.LoadRoster(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, 1, f.session.ended)
	assert.Empty(t, f.store.Peers())
}

func TestLoadRoster_NoIdentityIsNoop(t *testing.T) {
	f := newFixture(t)
	f.session.ident = nil
	require.NoError(t, f.store.LoadRoster(context.Background()))
	assert.Zero(t, f.backend.Hits("GET /users/contacts"))
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_AppendsServerMessage(t *testing.T) {
	f := newFixture(t)
	f.store.SelectPeer(f.peer(f.bob))

	msg, err := f.store.Send(context.Background(), f.bob.ID, model.Payload{Text: "  hello  "})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "hello", msg.Text)

	msgs := f.store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)

	stops := f.conn.EmittedEvents(transport.EventStopTyping)
	require.Len(t, stops, 1)
	assert.Equal(t, f.bob.ID, decode[transport.TypingSignal](t, stops[0].Payload).ToUserID)
}

func TestSend_Attachment(t *testing.T) {
	f := newFixture(t)
	f.store.SelectPeer(f.peer(f.bob))
	msg, err := f.store.Send(context.Background(), f.bob.ID, model.Payload{
		Attachment: &model.Attachment{Kind: model.AttachmentImage, Data: "data:image/png;base64,AAAA"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.Image)
}

func TestSend_EmptyRejectedLocally(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Send(context.Background(), f.bob.ID, model.Payload{Text: "   "})
	require.Error(t, err)
	assert.Zero(t, f.backend.Hits("POST /messages/{id}"))
	assert.NotEmpty(t, f.rec.LastError())
}

func TestSend_FailureLeavesListUnchanged(t *testing.T) {
	f := newFixture(t)
	f.store.SelectPeer(f.peer(f.bob))
	f.backend.Fail("POST /messages/{id}", http.StatusInternalServerError, "")

	_, err := f.store.Send(context.Background(), f.bob.ID, model.Payload{Text: "lost"})
	require.Error(t, err)
	assert.Empty(t, f.store.Messages())
	assert.Equal(t, msgSendFailed, f.rec.LastError())
	assert.Empty(t, f.conn.EmittedEvents(transport.EventStopTyping))
}

// =============================================================================
// OUTBOUND SIGNAL TESTS
// =============================================================================

func TestNotifyTyping_Throttled(t *testing.T) {
	f := newFixture(t)
	f.store.SelectPeer(f.peer(f.bob))

	f.store.NotifyTyping("h")
	f.store.NotifyTyping("he")
	f.store.NotifyTyping("hel")
	assert.Len(t, f.conn.EmittedEvents(transport.EventTyping), 1)

	f.store.NotifyTyping("  ")
	f.store.NotifyTyping("")
	stops := f.conn.EmittedEvents(transport.EventStopTyping)
	require.Len(t, stops, 1)
	assert.Equal(t, f.bob.ID, decode[transport.TypingSignal](t, stops[0].Payload).ToUserID)
}

func TestNotifyTyping_HiddenIndicators(t *testing.T) {
	f := newFixture(t)
	f.prefs.showTyping = false
	f.store.SelectPeer(f.peer(f.bob))
	f.store.NotifyTyping("hello")
	assert.Empty(t, f.conn.Emitted())
}

func TestMarkAsRead(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.MarkAsRead(f.bob.ID))
	marks := f.conn.EmittedEvents(transport.EventMarkAsRead)
	require.Len(t, marks, 1)
	assert.Equal(t, f.bob.ID, decode[transport.MarkRead](t, marks[0].Payload).FromUserID)

	f.session.conn = nil
	assert.ErrorIs(t, f.store.MarkAsRead(f.bob.ID), transport.ErrNotConnected)
}

// =============================================================================
// CLEAR / RESET TESTS
// =============================================================================

func TestClearChats(t *testing.T) {
	f := newFixture(t)
	f.backend.AddMessage(model.Message{SenderID: f.bob.ID, ReceiverID: f.alice.ID, Text: "x"})
	f.store.SelectPeer(f.peer(f.bob))
	require.NoError(t, f.store.LoadHistory(context.Background(), f.bob.ID))

	require.NoError(t, f.store.ClearChats(context.Background(), f.bob.ID, true))
	assert.Empty(t, f.store.Messages())
	assert.Empty(t, f.backend.History(f.alice.ID, f.bob.ID))
	assert.Contains(t, f.rec.Successes(), msgChatsDeleted)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.LoadRoster(context.Background()))
	f.deliverFrom(f.carol, "x")
	f.store.SelectPeer(f.peer(f.bob))

	f.store.Reset()
	assert.Empty(t, f.store.Peers())
	assert.Nil(t, f.store.Selected())
	assert.Zero(t, f.store.Unread(f.carol.ID))
	assert.False(t, f.store.Subscribed())
	assert.Zero(t, f.conn.Count(transport.EventNewMessage))
}
