// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley-tui/internal/api"
	"github.com/jeranaias/parley-tui/internal/model"
	"github.com/jeranaias/parley-tui/internal/notify"
	"github.com/jeranaias/parley-tui/internal/transport"
	"github.com/jeranaias/parley-tui/internal/validate"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Channel is a transport connection the manager owns.
type Channel interface {
	transport.Conn
	Close() error
	Done() <-chan struct{}
}

// DialFunc opens a channel for userID. init must run before any inbound
// frame is dispatched.
type DialFunc func(ctx context.Context, userID string, init func(transport.Conn)) (Channel, error)

// CookieStore persists the session cookie between runs.
type CookieStore interface {
	Save(cookies []*http.Cookie) error
	Load() ([]*http.Cookie, error)
	Clear() error
}

// SocketDialer dials the websocket at socketURL, presenting the client's
// session cookie on the upgrade request.
func SocketDialer(socketURL string, client *api.Client) DialFunc {
	return func(ctx context.Context, userID string, init func(transport.Conn)) (Channel, error) {
		header := http.Header{}
		for _, c := range client.Cookies() {
			header.Add("Cookie", c.String())
		}
		return transport.Dial(ctx, socketURL, userID, transport.Options{Header: header, Init: init})
	}
}

// =============================================================================
// USER-FACING MESSAGES
// =============================================================================

const (
	msgLoggedIn       = "Logged in successfully!"
	msgSignedUp       = "Account created successfully!"
	msgLoggedOut      = "Logged out successfully!"
	msgSessionExpired = "Session expired. Please log in again."

	msgContactAdded       = "User added to contacts successfully!"
	msgContactAddFailed   = "Failed to add user to contacts. please relogin and try again."
	msgContactRemoved     = "User removed from contacts successfully!"
	msgContactRemoveFail  = "Failed to remove user from contacts. please relogin and try again."
	msgBlocked            = "User blocked successfully!"
	msgBlockFailed        = "Failed to block user. please relogin and try again."
	msgUnblocked          = "User unblocked successfully!"
	msgUnblockFailed      = "Failed to unblock user. please relogin and try again."
	msgProfileUpdated     = "Profile information updated successfully!"
	msgAvatarUpdated      = "Profile picture updated successfully!"
	msgVisibilityUpdated  = "Online status updated successfully!"
	msgResetMailSent      = "Insructions sent to your email successfuly."
	msgResetMailFailed    = "Failed to send reset link. Please try again."
	msgPasswordReset      = "Password reset successfuly"
	msgPasswordResetFail  = "Failed to reset password. Try again."
	msgExportFailed       = "Failed to download your data."
	msgBlockedListFailed  = "Failed to load blocked users."
	msgLogoutServerFailed = "Logged out locally, but the server could not be reached."
)

// ErrNoIdentity is returned by operations that need a logged-in user.
var ErrNoIdentity = errors.New("session: not logged in")

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager holds the authenticated identity, the live transport and the
// roster of online peer ids. It is safe for concurrent use; its mutex is
// never held across network calls or hooks.
type Manager struct {
	mu sync.Mutex

	client  *api.Client
	dial    DialFunc
	notify  notify.Notifier
	cookies CookieStore
	log     zerolog.Logger

	identity     *model.Identity
	checkingAuth bool

	conn      Channel
	onlineTok transport.Token
	online    map[string]bool

	// connectMu serialises connect and disconnect so two dials never race.
	connectMu       sync.Mutex
	reconnectBase   time.Duration
	cancelReconnect context.CancelFunc

	onChange   []func()
	onConnect  []func(transport.Conn)
	onTeardown []func()
}

// New creates a manager. n receives every user-facing notification.
func New(client *api.Client, dial DialFunc, n notify.Notifier) *Manager {
	return &Manager{
		client:        client,
		dial:          dial,
		notify:        n,
		log:           log.With().Str("component", "session").Logger(),
		reconnectBase: time.Second,
	}
}

// WithCookieStore persists the session cookie so a restart can re-probe
// the session.
func (m *Manager) WithCookieStore(cs CookieStore) *Manager {
	m.cookies = cs
	return m
}

// WithLogger overrides the component logger.
func (m *Manager) WithLogger(l zerolog.Logger) *Manager {
	m.log = l
	return m
}

// WithReconnect sets the base delay for redialing after the server drops
// the transport. Zero disables reconnecting.
func (m *Manager) WithReconnect(base time.Duration) *Manager {
	m.reconnectBase = base
	return m
}

// OnChange registers fn to run after any state change.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// OnConnect registers fn to run for every new transport, before its first
// inbound frame is dispatched.
func (m *Manager) OnConnect(fn func(transport.Conn)) {
	m.mu.Lock()
	m.onConnect = append(m.onConnect, fn)
	m.mu.Unlock()
}

// OnTeardown registers fn to run when the session ends.
func (m *Manager) OnTeardown(fn func()) {
	m.mu.Lock()
	m.onTeardown = append(m.onTeardown, fn)
	m.mu.Unlock()
}

func (m *Manager) changed() {
	m.mu.Lock()
	hooks := slices.Clone(m.onChange)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// fail reports err through the notifier unless it is a cancellation.
func (m *Manager) fail(err error, fallback string) {
	if api.IsCanceled(err) {
		return
	}
	m.notify.Error(api.UserMessage(err, fallback))
}

// invalid reports a local validation failure.
func (m *Manager) invalid(err error) {
	var verr *validate.Error
	if errors.As(err, &verr) {
		m.notify.Error(verr.Message)
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Identity returns a copy of the current identity, or nil.
func (m *Manager) Identity() *model.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity.Clone()
}

// LoggedIn reports whether an identity is present.
func (m *Manager) LoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity != nil
}

// CheckingAuth reports whether a session probe is in flight.
func (m *Manager) CheckingAuth() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkingAuth
}

// CurrentTransport returns the live transport, or nil when disconnected.
func (m *Manager) CurrentTransport() transport.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil || !m.conn.Connected() {
		return nil
	}
	return m.conn
}

// Connected reports whether the transport is open.
func (m *Manager) Connected() bool {
	return m.CurrentTransport() != nil
}

// IsOnline reports whether peerID is in the server's online roster.
func (m *Manager) IsOnline(peerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online[peerID]
}

// OnlineUsers returns the online roster, sorted.
func (m *Manager) OnlineUsers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.online))
	for id := range m.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// Authenticate logs in and opens the transport.
func (m *Manager) Authenticate(ctx context.Context, creds model.Credentials) (*model.Identity, error) {
	if err := validate.Login(creds); err != nil {
		m.invalid(err)
		return nil, err
	}
	ident, err := m.client.Login(ctx, creds)
	if err != nil {
		m.fail(err, "")
		return nil, fmt.Errorf("login: %w", err)
	}
	m.establish(ctx, ident)
	m.notify.Success(msgLoggedIn)
	return ident.Clone(), nil
}

// Signup validates form locally, creates the account and opens the
// transport.
func (m *Manager) Signup(ctx context.Context, form model.SignupForm) (*model.Identity, error) {
	if err := validate.Signup(form); err != nil {
		m.invalid(err)
		return nil, err
	}
	form.Nickname = validate.NormalizeNickname(form.Nickname)
	ident, err := m.client.Signup(ctx, form)
	if err != nil {
		m.fail(err, "")
		return nil, fmt.Errorf("signup: %w", err)
	}
	m.establish(ctx, ident)
	m.notify.Success(msgSignedUp)
	return ident.Clone(), nil
}

// establish installs ident, persists the cookie and connects.
func (m *Manager) establish(ctx context.Context, ident *model.Identity) {
	m.mu.Lock()
	m.identity = ident.Clone()
	m.mu.Unlock()

	m.persistCookies()
	if err := m.ConnectTransport(ctx); err != nil {
		m.log.Warn().Err(err).Msg("transport connect failed")
	}
	m.changed()
}

func (m *Manager) persistCookies() {
	if m.cookies == nil {
		return
	}
	if err := m.cookies.Save(m.client.Cookies()); err != nil {
		m.log.Warn().Err(err).Msg("could not persist session cookie")
	}
}

// CheckExistingSession re-validates a stored session. On the initial
// probe an absent session is expected and no notification is shown.
func (m *Manager) CheckExistingSession(ctx context.Context, isInitialProbe bool) *model.Identity {
	m.mu.Lock()
	m.checkingAuth = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.checkingAuth = false
		m.mu.Unlock()
		m.changed()
	}()

	if m.cookies != nil && len(m.client.Cookies()) == 0 {
		stored, err := m.cookies.Load()
		if err != nil {
			m.log.Warn().Err(err).Msg("stored session unreadable")
		} else if len(stored) > 0 {
			m.client.SetCookies(stored)
		}
	}

	ident, err := m.client.CheckAuth(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			m.mu.Lock()
			m.identity = nil
			m.mu.Unlock()
		}
		if !isInitialProbe {
			m.fail(err, msgSessionExpired)
		}
		m.log.Debug().Err(err).Bool("initial", isInitialProbe).Msg("session check failed")
		return nil
	}

	m.mu.Lock()
	m.identity = ident.Clone()
	m.mu.Unlock()
	if err := m.ConnectTransport(ctx); err != nil {
		m.log.Warn().Err(err).Msg("transport connect failed")
	}
	return ident.Clone()
}

// EndSession logs out. Local state is cleared even when the server call
// fails.
func (m *Manager) EndSession(ctx context.Context) error {
	serverErr := m.client.Logout(ctx)

	m.DisconnectTransport()
	m.mu.Lock()
	m.identity = nil
	hooks := slices.Clone(m.onTeardown)
	m.mu.Unlock()

	m.client.ClearCookies()
	if m.cookies != nil {
		if err := m.cookies.Clear(); err != nil {
			m.log.Warn().Err(err).Msg("could not clear stored session")
		}
	}
	for _, fn := range hooks {
		fn()
	}

	if serverErr != nil && !api.IsCanceled(serverErr) {
		m.log.Warn().Err(serverErr).Msg("server logout failed")
		m.notify.Error(msgLogoutServerFailed)
	} else {
		m.notify.Success(msgLoggedOut)
	}
	m.changed()
	if serverErr != nil {
		return fmt.Errorf("logout: %w", serverErr)
	}
	return nil
}

// ForgotPassword asks the server to mail reset instructions.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	if err := validate.Email(email); err != nil {
		m.invalid(err)
		return err
	}
	if _, err := m.client.ForgotPassword(ctx, email); err != nil {
		m.fail(err, msgResetMailFailed)
		return fmt.Errorf("forgot password: %w", err)
	}
	m.notify.Success(msgResetMailSent)
	return nil
}

// ResetPassword sets a new password with a mailed token. It does not log
// in.
func (m *Manager) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if err := validate.ResetPassword(password, confirm); err != nil {
		m.invalid(err)
		return err
	}
	if err := m.client.ResetPassword(ctx, token, password, confirm); err != nil {
		m.fail(err, msgPasswordResetFail)
		return fmt.Errorf("reset password: %w", err)
	}
	m.notify.Success(msgPasswordReset)
	return nil
}

// =============================================================================
// TRANSPORT LIFECYCLE
// =============================================================================

// ConnectTransport opens the transport for the current identity. It is a
// no-op when already connected or logged out.
func (m *Manager) ConnectTransport(ctx context.Context) error {
	m.stopReconnect()
	return m.connect(ctx)
}

func (m *Manager) connect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	if m.identity == nil || (m.conn != nil && m.conn.Connected()) {
		m.mu.Unlock()
		return nil
	}
	userID := m.identity.ID
	hooks := slices.Clone(m.onConnect)
	m.mu.Unlock()

	var onlineTok transport.Token
	c, err := m.dial(ctx, userID, func(conn transport.Conn) {
		onlineTok = conn.Subscribe(transport.EventGetOnlineUsers, m.handleOnline)
		for _, fn := range hooks {
			fn(conn)
		}
	})
	if err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}

	m.mu.Lock()
	if m.identity == nil || m.identity.ID != userID {
		m.mu.Unlock()
		_ = c.Close()
		return nil
	}
	m.conn = c
	m.onlineTok = onlineTok
	m.mu.Unlock()

	m.log.Debug().Str("user", userID).Msg("transport connected")
	go m.watch(c, userID)
	m.changed()
	return nil
}

// DisconnectTransport closes the transport. It is a no-op when not
// connected.
func (m *Manager) DisconnectTransport() {
	m.stopReconnect()

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	c, tok := m.conn, m.onlineTok
	m.conn, m.onlineTok, m.online = nil, "", nil
	m.mu.Unlock()
	if c == nil {
		return
	}
	c.Unsubscribe(tok)
	_ = c.Close()
	m.changed()
}

func (m *Manager) handleOnline(data json.RawMessage) {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		m.log.Debug().Err(err).Msg("malformed online roster")
		return
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	m.mu.Lock()
	m.online = set
	m.mu.Unlock()
	m.changed()
}

// watch notices a channel the server dropped and redials.
func (m *Manager) watch(c Channel, userID string) {
	<-c.Done()

	m.mu.Lock()
	if m.conn != c {
		// closed by DisconnectTransport
		m.mu.Unlock()
		return
	}
	m.conn, m.onlineTok, m.online = nil, "", nil
	var ctx context.Context
	if m.reconnectBase > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		m.cancelReconnect = cancel
	}
	m.mu.Unlock()

	m.log.Warn().Str("user", userID).Msg("transport dropped")
	m.changed()
	if ctx != nil {
		go m.reconnectLoop(ctx)
	}
}

func (m *Manager) reconnectLoop(ctx context.Context) {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.backoff(attempt)):
		}
		if !m.LoggedIn() {
			return
		}
		if err := m.connect(ctx); err != nil {
			m.log.Debug().Err(err).Int("attempt", attempt+1).Msg("reconnect failed")
			continue
		}
		return
	}
}

func (m *Manager) backoff(attempt int) time.Duration {
	const maxDelay = 30 * time.Second
	d := m.reconnectBase << min(attempt, 5)
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

func (m *Manager) stopReconnect() {
	m.mu.Lock()
	cancel := m.cancelReconnect
	m.cancelReconnect = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// =============================================================================
// IDENTITY MUTATIONS
// =============================================================================

// mutate runs an identity-returning call and installs the result. On
// failure the current identity is left untouched.
func (m *Manager) mutate(ctx context.Context, call func(context.Context) (*model.Identity, error), success, failure string) (*model.Identity, error) {
	if !m.LoggedIn() {
		return nil, ErrNoIdentity
	}
	ident, err := call(ctx)
	if err != nil {
		m.fail(err, failure)
		return nil, err
	}
	m.mu.Lock()
	m.identity = ident.Clone()
	m.mu.Unlock()
	if success != "" {
		m.notify.Success(success)
	}
	m.changed()
	return ident.Clone(), nil
}

// AddContact adds peerID to the contact list.
func (m *Manager) AddContact(ctx context.Context, peerID string) (*model.Identity, error) {
	return m.mutate(ctx, func(ctx context.Context) (*model.Identity, error) {
		return m.client.AddContact(ctx, peerID)
	}, msgContactAdded, msgContactAddFailed)
}

// RemoveContact removes peerID from the contact list.
func (m *Manager) RemoveContact(ctx context.Context, peerID string) (*model.Identity, error) {
	return m.mutate(ctx, func(ctx context.Context) (*model.Identity, error) {
		return m.client.RemoveContact(ctx, peerID)
	}, msgContactRemoved, msgContactRemoveFail)
}

// Block blocks peerID.
func (m *Manager) Block(ctx context.Context, peerID string) (*model.Identity, error) {
	return m.mutate(ctx, func(ctx context.Context) (*model.Identity, error) {
		return m.client.Block(ctx, peerID)
	}, msgBlocked, msgBlockFailed)
}

// Unblock unblocks peerID.
func (m *Manager) Unblock(ctx context.Context, peerID string) (*model.Identity, error) {
	return m.mutate(ctx, func(ctx context.Context) (*model.Identity, error) {
		return m.client.Unblock(ctx, peerID)
	}, msgUnblocked, msgUnblockFailed)
}

// UpdateProfile changes name, nickname or email.
func (m *Manager) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (*model.Identity, error) {
	if update.Nickname != "" {
		if err := validate.Nickname(update.Nickname); err != nil {
			m.invalid(err)
			return nil, err
		}
		update.Nickname = validate.NormalizeNickname(update.Nickname)
	}
	return m.mutate(ctx, func(ctx context.Context) (*model.Identity, error) {
		return m.client.UpdateUser(ctx, update)
	}, msgProfileUpdated, "")
}

// UpdateAvatar replaces the profile picture with an image data URL.
func (m *Manager) UpdateAvatar(ctx context.Context, dataURL string) (*model.Identity, error) {
	return m.mutate(ctx, func(ctx context.Context) (*model.Identity, error) {
		return m.client.UpdateProfilePic(ctx, dataURL)
	}, msgAvatarUpdated, "")
}

// UpdateVisibility stores the online-visibility preference, then
// reconnects the transport under the same identity id so the server
// recomputes what other users see.
func (m *Manager) UpdateVisibility(ctx context.Context, showOnline bool) (*model.Identity, error) {
	ident, err := m.mutate(ctx, func(ctx context.Context) (*model.Identity, error) {
		return m.client.UpdateOnlineStatus(ctx, showOnline)
	}, msgVisibilityUpdated, "")
	if err != nil {
		return nil, err
	}
	m.DisconnectTransport()
	if err := m.ConnectTransport(ctx); err != nil {
		m.log.Warn().Err(err).Msg("reconnect after visibility change failed")
	}
	return ident, nil
}

// SetWallpaperRef records the server's wallpaper reference on the local
// identity.
func (m *Manager) SetWallpaperRef(ref string) {
	m.mu.Lock()
	if m.identity != nil {
		m.identity.ChatWallpaper = ref
	}
	m.mu.Unlock()
	m.changed()
}

// =============================================================================
// PRIVACY
// =============================================================================

// BlockedUsers lists the peers the user has blocked.
func (m *Manager) BlockedUsers(ctx context.Context) ([]model.Peer, error) {
	if !m.LoggedIn() {
		return nil, ErrNoIdentity
	}
	peers, err := m.client.BlockedUsers(ctx)
	if err != nil {
		m.fail(err, msgBlockedListFailed)
		return nil, err
	}
	return peers, nil
}

// ExportData streams the account export archive into w and returns the
// number of bytes written.
func (m *Manager) ExportData(ctx context.Context, w io.Writer) (int64, error) {
	if !m.LoggedIn() {
		return 0, ErrNoIdentity
	}
	body, err := m.client.ExportData(ctx)
	if err != nil {
		m.fail(err, msgExportFailed)
		return 0, err
	}
	defer body.Close()
	n, err := io.Copy(w, body)
	if err != nil {
		m.fail(err, msgExportFailed)
		return n, fmt.Errorf("export: %w", err)
	}
	return n, nil
}
