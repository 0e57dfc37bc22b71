package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State is the lifecycle state of a connection session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

var ErrSessionNotOpen = errors.New("session is not open")
var ErrSendBufferFull = errors.New("session send buffer full")

// conn is the subset of *websocket.Conn the session uses, abstracted so
// tests can drive a session without a network socket.
type conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Session owns one long-lived duplex connection. Inbound messages are
// handled one at a time to completion; outbound messages go through a
// buffered channel drained by a single writer goroutine, so one slow client
// never blocks the dispatcher or other sessions.
type Session struct {
	id            string
	userID        string
	role          string
	establishedAt time.Time

	conn        conn
	send        chan Outbound
	state       atomic.Int32
	done        chan struct{}
	closeOnce   sync.Once
	onClose     func(*Session)
	idleTimeout time.Duration
	log         zerolog.Logger
}

func newSession(c conn, id, userID, role string, sendBuffer int, idleTimeout time.Duration, onClose func(*Session), log zerolog.Logger) *Session {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	if idleTimeout <= 0 {
		idleTimeout = 90 * time.Second
	}
	s := &Session{
		id:            id,
		userID:        userID,
		role:          role,
		establishedAt: time.Now().UTC(),
		conn:          c,
		send:          make(chan Outbound, sendBuffer),
		done:          make(chan struct{}),
		onClose:       onClose,
		idleTimeout:   idleTimeout,
		log:           log,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }
func (s *Session) Role() string   { return s.role }
func (s *Session) State() State   { return State(s.state.Load()) }

// open transitions the session to Open and queues the welcome message.
func (s *Session) open() {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return
	}
	s.send <- Outbound{Type: TypeConnected, Data: connectedPayload{
		Message:   "connected to tracking service",
		ClientID:  s.id,
		Timestamp: time.Now().UTC(),
	}}
}

// Send queues a message for delivery. It fails when the session is no longer
// open or when the client is too slow to drain its buffer; the caller treats
// either as a per-recipient delivery failure.
func (s *Session) Send(msg Outbound) error {
	if s.State() != StateOpen {
		return ErrSessionNotOpen
	}
	select {
	case s.send <- msg:
		return nil
	case <-s.done:
		return ErrSessionNotOpen
	default:
		return ErrSendBufferFull
	}
}

// writeLoop drains the send channel onto the wire. A write error tears the
// session down.
func (s *Session) writeLoop() {
	for {
		select {
		case msg := <-s.send:
			if err := s.conn.WriteJSON(msg); err != nil {
				s.log.Debug().Err(err).Str("conn", s.id).Msg("write failed, closing session")
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// readLoop reads inbound frames and dispatches each one synchronously, so a
// connection's messages are handled in order, one at a time. It returns when
// the peer disconnects or goes idle past the timeout.
func (s *Session) readLoop(handle func(*Session, Inbound)) {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			// Malformed payloads get a typed error on the same connection
			// and never terminate it.
			_ = s.Send(Outbound{Type: TypeError, Data: errorPayload{
				Error:     "malformed message",
				Timestamp: time.Now().UTC(),
			}})
			continue
		}

		handle(s, msg)
	}
}

// run services the connection until it terminates, then finalizes it.
func (s *Session) run(handle func(*Session, Inbound)) {
	s.open()
	go s.writeLoop()
	s.readLoop(handle)
	s.Close()
}

// Close moves the session through Closing to Closed and fires the onClose
// hook exactly once, regardless of how many paths race into teardown. The
// hook drops all registry subscriptions before Close returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		close(s.done)
		_ = s.conn.Close()
		s.state.Store(int32(StateClosed))
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}
