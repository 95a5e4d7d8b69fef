// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest provides an in-memory chat backend for tests: the REST
// API routed with chi plus the websocket endpoint, served by httptest.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jeranaias/parley-tui/internal/model"
)

// SessionCookie is the cookie the fake backend issues on login.
const SessionCookie = "jwt"

type failure struct {
	status  int
	message string
}

// Frame is a websocket frame as the backend sends and receives it.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Backend is a fake chat server. All exported methods are safe for
// concurrent use.
type Backend struct {
	t      testing.TB
	server *httptest.Server

	mu        sync.Mutex
	users     map[string]*model.Identity
	passwords map[string]string // email -> password
	sessions  map[string]string // cookie -> user id
	messages  map[string][]model.Message
	hits      map[string]int
	failures  map[string]failure
	export    []byte
	wallpaper string

	// socket state
	conns    map[string][]*socketConn
	connLog  []string
	inbound  chan InboundFrame
	upgrader websocket.Upgrader

	// OnSearch runs before a search is answered. Tests use it to stall a
	// request; it should return when ctx is done.
	OnSearch func(r *http.Request)
}

// InboundFrame is a frame a client sent over the socket.
type InboundFrame struct {
	UserID string
	Frame
}

type socketConn struct {
	userID string
	ws     *websocket.Conn
	wmu    sync.Mutex
}

// New starts a backend and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		t:         t,
		users:     make(map[string]*model.Identity),
		passwords: make(map[string]string),
		sessions:  make(map[string]string),
		messages:  make(map[string][]model.Message),
		hits:      make(map[string]int),
		failures:  make(map[string]failure),
		conns:     make(map[string][]*socketConn),
		inbound:   make(chan InboundFrame, 256),
		export:    []byte("PK\x05\x06" + strings.Repeat("\x00", 18)), // empty zip
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.Close)
	return b
}

// Close shuts the server and all sockets down.
func (b *Backend) Close() {
	b.mu.Lock()
	for _, list := range b.conns {
		for _, c := range list {
			c.ws.Close()
		}
	}
	b.conns = make(map[string][]*socketConn)
	b.mu.Unlock()
	b.server.CloseClientConnections()
	b.server.Close()
}

// URL returns the API root to hand to api.NewClient.
func (b *Backend) URL() string { return b.server.URL + "/api" }

// SocketURL returns the websocket endpoint.
func (b *Backend) SocketURL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http") + "/socket"
}

// =============================================================================
// FIXTURES
// =============================================================================

// AddUser registers an account. ident.ID is generated when empty.
func (b *Backend) AddUser(ident model.Identity, password string) *model.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	if ident.Contacts == nil {
		ident.Contacts = []string{}
	}
	if ident.BlockedUsers == nil {
		ident.BlockedUsers = []string{}
	}
	u := ident
	b.users[u.ID] = &u
	b.passwords[strings.ToLower(u.Email)] = password
	return u.Clone()
}

// User returns a copy of the stored identity.
func (b *Backend) User(id string) *model.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.users[id].Clone()
}

// AddMessage seeds history between two users.
func (b *Backend) AddMessage(msg model.Message) model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	key := pairKey(msg.SenderID, msg.ReceiverID)
	b.messages[key] = append(b.messages[key], msg)
	return msg
}

// History returns the stored conversation between a and b.
func (b *Backend) History(a, c string) []model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Message(nil), b.messages[pairKey(a, c)]...)
}

// SetExport sets the bytes served by /users/export.
func (b *Backend) SetExport(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.export = data
}

// Fail makes route answer with status and message until ClearFailures.
// Routes are written as "METHOD /path/pattern", e.g. "GET /users/contacts".
func (b *Backend) Fail(route string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, message: message}
}

// ClearFailures removes all injected failures.
func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]failure)
}

// Hits returns how many times route was requested.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// TotalHits returns the number of API requests served.
func (b *Backend) TotalHits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.hits {
		n += v
	}
	return n
}

func pairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

// =============================================================================
// ROUTES
// =============================================================================

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/socket", b.serveSocket)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", b.handle("POST /auth/login", b.login))
		r.Post("/auth/signup", b.handle("POST /auth/signup", b.signup))
		r.Post("/auth/logout", b.handle("POST /auth/logout", b.logout))
		r.Get("/auth/check", b.handle("GET /auth/check", b.authed(b.check)))
		r.Post("/auth/forgotPassword", b.handle("POST /auth/forgotPassword", b.forgotPassword))
		r.Post("/auth/resetPassword/{token}", b.handle("POST /auth/resetPassword/{token}", b.resetPassword))

		r.Get("/users/contacts", b.handle("GET /users/contacts", b.authed(b.contacts)))
		r.Put("/users/contacts/{id}", b.handle("PUT /users/contacts/{id}", b.authed(b.mutateSet("contacts", true))))
		r.Delete("/users/contacts/{id}", b.handle("DELETE /users/contacts/{id}", b.authed(b.mutateSet("contacts", false))))
		r.Put("/users/block/{id}", b.handle("PUT /users/block/{id}", b.authed(b.mutateSet("blocked", true))))
		r.Put("/users/unblock/{id}", b.handle("PUT /users/unblock/{id}", b.authed(b.mutateSet("blocked", false))))
		r.Get("/users/blockedusers", b.handle("GET /users/blockedusers", b.authed(b.blocked)))
		r.Patch("/users/updateUser", b.handle("PATCH /users/updateUser", b.authed(b.updateUser)))
		r.Patch("/users/updateProfilePic", b.handle("PATCH /users/updateProfilePic", b.authed(b.updateProfilePic)))
		r.Patch("/users/updateOnlineStatus", b.handle("PATCH /users/updateOnlineStatus", b.authed(b.updateOnlineStatus)))
		r.Post("/users/setChatWallpaper", b.handle("POST /users/setChatWallpaper", b.authed(b.setWallpaper)))
		r.Get("/users/searchUsers", b.handle("GET /users/searchUsers", b.authed(b.search)))
		r.Get("/users/export", b.handle("GET /users/export", b.authed(b.exportData)))

		r.Get("/messages/{id}", b.handle("GET /messages/{id}", b.authed(b.history)))
		r.Post("/messages/{id}", b.handle("POST /messages/{id}", b.authed(b.send)))
		r.Patch("/messages/deleteMany", b.handle("PATCH /messages/deleteMany", b.authed(b.deleteMany)))
	})
	return r
}

func (b *Backend) handle(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[route]++
		f, failing := b.failures[route]
		b.mu.Unlock()
		if failing {
			writeError(w, f.status, f.message)
			return
		}
		h(w, r)
	}
}

type authedHandler func(w http.ResponseWriter, r *http.Request, me *model.Identity)

func (b *Backend) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(SessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
			return
		}
		b.mu.Lock()
		id, ok := b.sessions[ck.Value]
		me := b.users[id]
		b.mu.Unlock()
		if !ok || me == nil {
			writeError(w, http.StatusUnauthorized, "Session expired.")
			return
		}
		h(w, r, me)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	body := map[string]string{"status": "fail"}
	if message != "" {
		body["message"] = message
	}
	writeJSON(w, status, body)
}

func ok(data any) map[string]any {
	return map[string]any{"status": "success", "data": data}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

func (b *Backend) startSession(w http.ResponseWriter, id string) {
	token := uuid.NewString()
	b.mu.Lock()
	b.sessions[token] = id
	b.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body.")
		return
	}
	b.mu.Lock()
	pw, known := b.passwords[strings.ToLower(creds.Email)]
	var user *model.Identity
	for _, u := range b.users {
		if strings.EqualFold(u.Email, creds.Email) {
			user = u.Clone()
		}
	}
	b.mu.Unlock()
	if !known || pw != creds.Password || user == nil {
		writeError(w, http.StatusUnauthorized, "Incorrect email or password.")
		return
	}
	b.startSession(w, user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "user": user})
}

func (b *Backend) signup(w http.ResponseWriter, r *http.Request) {
	var form model.SignupForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body.")
		return
	}
	b.mu.Lock()
	_, taken := b.passwords[strings.ToLower(form.Email)]
	b.mu.Unlock()
	if taken {
		writeError(w, http.StatusBadRequest, "Email already in use.")
		return
	}
	user := b.AddUser(model.Identity{
		Name:             form.Name,
		Nickname:         form.Nickname,
		Email:            form.Email,
		ShowOnlineStatus: true,
	}, form.Password)
	b.startSession(w, user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "user": user})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(SessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, ck.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) check(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	b.mu.Lock()
	user := me.Clone()
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, ok(map[string]any{"user": user}))
}

func (b *Backend) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	_, known := b.passwords[body.Email]
	b.mu.Unlock()
	if !known {
		writeError(w, http.StatusNotFound, "There is no user with that email address.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Token sent to " + body.Email})
}

func (b *Backend) resetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	var body struct {
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if token != "valid-token" {
		writeError(w, http.StatusBadRequest, "Token is invalid or has expired.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "token": "t", "user": map[string]string{"_id": "reset"}})
}

// =============================================================================
// USER HANDLERS
// =============================================================================

func (b *Backend) peersOf(ids []string) []model.Peer {
	peers := make([]model.Peer, 0, len(ids))
	for _, id := range ids {
		if u, ok := b.users[id]; ok {
			peers = append(peers, model.Peer{ID: u.ID, Name: u.Name, Nickname: u.Nickname, Email: u.Email, ProfilePic: u.ProfilePic})
		}
	}
	return peers
}

func (b *Backend) contacts(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	b.mu.Lock()
	peers := b.peersOf(me.Contacts)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, ok(map[string]any{"users": peers}))
}

func (b *Backend) blocked(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	b.mu.Lock()
	peers := b.peersOf(me.BlockedUsers)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, ok(map[string]any{"users": peers}))
}

func toggle(set []string, id string, add bool) []string {
	out := make([]string, 0, len(set)+1)
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	if add {
		out = append(out, id)
	}
	return out
}

func (b *Backend) mutateSet(which string, add bool) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, me *model.Identity) {
		id := chi.URLParam(r, "id")
		b.mu.Lock()
		if _, exists := b.users[id]; !exists {
			b.mu.Unlock()
			writeError(w, http.StatusNotFound, "No user found with that ID.")
			return
		}
		if which == "contacts" {
			me.Contacts = toggle(me.Contacts, id, add)
		} else {
			me.BlockedUsers = toggle(me.BlockedUsers, id, add)
		}
		user := me.Clone()
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, ok(map[string]any{"user": user}))
	}
}

func (b *Backend) updateUser(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	var upd model.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body.")
		return
	}
	b.mu.Lock()
	if upd.Name != "" {
		me.Name = upd.Name
	}
	if upd.Nickname != "" {
		me.Nickname = upd.Nickname
	}
	if upd.Email != "" {
		me.Email = upd.Email
	}
	user := me.Clone()
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, ok(map[string]any{"user": user}))
}

func (b *Backend) updateProfilePic(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	var body struct {
		ProfilePic string `json:"profilePic"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	me.ProfilePic = "https://cdn.example/avatars/" + me.ID + ".png"
	user := me.Clone()
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, ok(map[string]any{"user": user}))
}

func (b *Backend) updateOnlineStatus(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	var body struct {
		ShowOnlineStatus bool `json:"showOnlineStatus"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	me.ShowOnlineStatus = body.ShowOnlineStatus
	user := me.Clone()
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, ok(map[string]any{"user": user}))
}

func (b *Backend) setWallpaper(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	var body struct {
		Wallpaper string `json:"wallpaper"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	ref := "https://cdn.example/wallpapers/" + me.ID + ".jpg"
	b.mu.Lock()
	b.wallpaper = body.Wallpaper
	me.ChatWallpaper = ref
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, ok(map[string]any{"wallpaper": ref}))
}

// Wallpaper returns the last data URL uploaded through setChatWallpaper.
func (b *Backend) Wallpaper() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wallpaper
}

func (b *Backend) search(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	if b.OnSearch != nil {
		b.OnSearch(r)
		if r.Context().Err() != nil {
			return
		}
	}
	q := strings.ToLower(r.URL.Query().Get("search"))

	b.mu.Lock()
	var matches []model.Peer
	for _, u := range b.users {
		if u.ID == me.ID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Nickname), q) {
			matches = append(matches, model.Peer{ID: u.ID, Name: u.Name, Nickname: u.Nickname, Email: u.Email})
		}
	}
	b.mu.Unlock()
	sort.Slice(matches, func(i, j int) bool { return matches[i].Nickname < matches[j].Nickname })

	total := len(matches)
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page > 0 && limit > 0 {
		start := (page - 1) * limit
		if start > len(matches) {
			start = len(matches)
		}
		end := start + limit
		if end > len(matches) {
			end = len(matches)
		}
		matches = matches[start:end]
	}
	writeJSON(w, http.StatusOK, ok(map[string]any{"users": matches, "totalUsers": total}))
}

func (b *Backend) exportData(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	b.mu.Lock()
	data := b.export
	b.mu.Unlock()
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="chat-export.zip"`)
	_, _ = w.Write(data)
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (b *Backend) history(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	peer := chi.URLParam(r, "id")
	msgs := b.History(me.ID, peer)
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, ok(map[string]any{"messages": msgs}))
}

func (b *Backend) send(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	peer := chi.URLParam(r, "id")
	var body struct {
		Text     string  `json:"text"`
		Image    *string `json:"image"`
		Video    *string `json:"video"`
		Voice    *string `json:"voice"`
		File     *string `json:"file"`
		FileName string  `json:"fileName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body.")
		return
	}
	deref := func(p *string, kind string) string {
		if p == nil || *p == "" {
			return ""
		}
		return "https://cdn.example/" + kind + "/" + uuid.NewString()
	}
	msg := b.AddMessage(model.Message{
		SenderID:   me.ID,
		ReceiverID: peer,
		Text:       body.Text,
		Image:      deref(body.Image, "image"),
		Video:      deref(body.Video, "video"),
		Voice:      deref(body.Voice, "voice"),
		File:       deref(body.File, "file"),
		FileName:   body.FileName,
	})
	writeJSON(w, http.StatusCreated, ok(map[string]any{"message": msg}))
}

func (b *Backend) deleteMany(w http.ResponseWriter, r *http.Request, me *model.Identity) {
	var body struct {
		OnlyForMe bool   `json:"onlyForMe"`
		ForUserID string `json:"forUserId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ForUserID == "" {
		writeError(w, http.StatusBadRequest, "Please provide a user.")
		return
	}
	b.mu.Lock()
	delete(b.messages, pairKey(me.ID, body.ForUserID))
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
