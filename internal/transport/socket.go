// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 64
	maxFrameSize   = 32 << 20 // newMessage frames may carry inline media
)

// Options configures Dial.
type Options struct {
	// Header is sent with the upgrade request (typically the session cookie).
	Header http.Header
	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// Logger overrides the component logger.
	Logger *zerolog.Logger
	// Init runs before the read loop starts, so subscriptions made there
	// see the server's first frames.
	Init func(Conn)
}

// Socket is a websocket-backed Conn.
type Socket struct {
	Registry

	userID string
	ws     *websocket.Conn
	send   chan []byte
	log    zerolog.Logger

	connected atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	errMu sync.Mutex
	err   error
}

var _ Conn = (*Socket)(nil)

// Dial opens a socket for userID.
func Dial(ctx context.Context, socketURL, userID string, opts Options) (*Socket, error) {
	if userID == "" {
		return nil, errors.New("transport: empty user id")
	}
	u, err := url.Parse(socketURL)
	if err != nil {
		return nil, fmt.Errorf("invalid socket url: %w", err)
	}
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	logger := log.With().Str("component", "transport").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &Socket{
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		log:    logger,
		done:   make(chan struct{}),
	}
	s.connected.Store(true)
	if opts.Init != nil {
		opts.Init(s)
	}

	go s.readLoop()
	go s.writeLoop()

	s.log.Debug().Str("host", u.Host).Msg("socket connected")
	return s, nil
}

// UserID returns the identity the socket was opened for.
func (s *Socket) UserID() string { return s.userID }

// Connected reports whether the socket is open.
func (s *Socket) Connected() bool { return s.connected.Load() }

// Done is closed once the socket has shut down for any reason.
func (s *Socket) Done() <-chan struct{} { return s.done }

// Err returns why the socket closed; nil after Close or while open.
func (s *Socket) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Emit queues an event for the writer goroutine.
func (s *Socket) Emit(event string, payload any) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return ErrNotConnected
	default:
		return ErrSendBufferFull
	}
}

// Close shuts the socket down. Safe to call more than once.
func (s *Socket) Close() error {
	s.shutdown(nil)
	return nil
}

func (s *Socket) shutdown(cause error) {
	s.closeOnce.Do(func() {
		s.connected.Store(false)
		s.errMu.Lock()
		s.err = cause
		s.errMu.Unlock()
		close(s.done)

		// WriteControl may run concurrently with the writer goroutine.
		_ = s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.ws.Close()

		if cause != nil {
			s.log.Info().Err(cause).Msg("socket closed")
		} else {
			s.log.Debug().Msg("socket closed")
		}
	})
}

func (s *Socket) readLoop() {
	s.ws.SetReadLimit(maxFrameSize)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Server pings keep the read deadline fresh as well.
	s.ws.SetPingHandler(func(appData string) error {
		_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return s.ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, payload, err := s.ws.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// closed locally
			default:
				s.shutdown(fmt.Errorf("read: %w", err))
			}
			return
		}
		_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))

		var f Frame
		if err := json.Unmarshal(payload, &f); err != nil || f.Event == "" {
			s.log.Debug().Int("bytes", len(payload)).Msg("dropping malformed frame")
			continue
		}
		if n := s.Dispatch(f.Event, f.Data); n == 0 {
			s.log.Trace().Str("event", f.Event).Msg("no subscribers")
		}
	}
}

func (s *Socket) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.shutdown(fmt.Errorf("write: %w", err))
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.shutdown(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}
