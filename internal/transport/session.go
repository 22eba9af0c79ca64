// Package transport implements the per-connection state machine described
// in spec.md §4.2: handshake, authentication, the active message dispatch
// table, and graceful teardown. It is wire-agnostic — internal/codec feeds
// raw TCP connections and internal/bridge feeds websocket connections
// through the same Conn interface, grounded on the teacher's
// internal/gateway/server.go Client-per-connection pattern generalized from
// JSON-RPC-over-websocket to this package's framed tagged-union protocol.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// State is one stage of the connection lifecycle (spec.md §4.2).
type State int

const (
	StateAwaitingHandshake State = iota
	StateAwaitingAuth
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// outboundCapacity bounds the server→client buffering per connection
// (spec.md §5); a slow client backpressures instead of growing unbounded.
const outboundCapacity = 100

// idleTimeout disconnects a connection that sends nothing — not even a
// Ping — for this long.
const idleTimeout = 5 * time.Minute

// Conn is the minimal wire abstraction a Session drives: decoded inbound
// tag/payload pairs in, encoded outbound frames out. internal/codec (raw
// TCP) and internal/bridge (websocket) both implement it.
type Conn interface {
	ReadMessage() (tag string, payload interface{}, err error)
	WriteMessage(tag string, payload interface{}) error
	Close() error
}

// Handler reacts to one decoded inbound message, writing zero or more
// replies via Session.Send, and may return a non-nil error to terminate
// the connection.
type Handler func(ctx context.Context, sess *Session, payload interface{}) error

// Session drives one connection's state machine and owns its outbound
// buffering.
type Session struct {
	conn  Conn
	state State
	mu    sync.RWMutex

	UserID    string
	SessionID string

	handlers map[string]Handler
	outbound chan outboundMsg
	done     chan struct{}
	closeOnce sync.Once

	syncMu    sync.Mutex
	SyncMode  string // "" (off), "on_demand", "realtime" — spec.md §3 SUPPLEMENT
	SyncRoot  string
	watcher   io.Closer
	byokEnv   map[string]string
}

type outboundMsg struct {
	tag     string
	payload interface{}
}

// NewSession wraps conn with a fresh AwaitingHandshake session.
func NewSession(conn Conn) *Session {
	return &Session{
		conn:     conn,
		state:    StateAwaitingHandshake,
		handlers: make(map[string]Handler),
		outbound: make(chan outboundMsg, outboundCapacity),
		done:     make(chan struct{}),
	}
}

// On registers the handler invoked for inbound messages tagged tag.
func (s *Session) On(tag string, h Handler) { s.handlers[tag] = h }

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState transitions the session. Callers are responsible for only
// making forward-legal transitions (spec.md §4.2's state diagram).
func (s *Session) SetState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// Send queues an outbound message, dropping the connection if the bounded
// channel is full (a stalled client must not back up the whole process).
func (s *Session) Send(tag string, payload interface{}) error {
	select {
	case s.outbound <- outboundMsg{tag, payload}:
		return nil
	case <-s.done:
		return fmt.Errorf("transport: session closed")
	default:
		s.Close()
		return fmt.Errorf("transport: outbound buffer full, dropping session")
	}
}

// Close tears the connection down exactly once, stopping any realtime sync
// watcher and discarding BYOK env entries (they never outlive the session).
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.SetState(StateClosed)
		close(s.done)
		_ = s.conn.Close()
		s.syncMu.Lock()
		if s.watcher != nil {
			_ = s.watcher.Close()
			s.watcher = nil
		}
		s.byokEnv = nil
		s.syncMu.Unlock()
	})
}

// SetWatcher installs the active realtime-sync watcher, closing any prior
// one first. Pass nil to stop watching.
func (s *Session) SetWatcher(w io.Closer) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.watcher = w
}

// SetBYOKEnv records a batch of client-pushed credential entries, merging
// them into whatever BYOK entries are already tracked for this session.
func (s *Session) SetBYOKEnv(entries [][2]string) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if s.byokEnv == nil {
		s.byokEnv = make(map[string]string, len(entries))
	}
	for _, kv := range entries {
		s.byokEnv[kv[0]] = kv[1]
	}
}

// BYOKEnv returns the session's current BYOK entries as pairs, for merging
// into the next adapter launch's environment.
func (s *Session) BYOKEnv() [][2]string {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	out := make([][2]string, 0, len(s.byokEnv))
	for k, v := range s.byokEnv {
		out = append(out, [2]string{k, v})
	}
	return out
}

// Run drives the session until the context is canceled, the peer
// disconnects, idleTimeout elapses, or a handler errors.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	writeErrs := make(chan error, 1)
	go s.writeLoop(writeErrs)

	readErrs := make(chan struct{ tag string; err error }, 1)
	go s.readLoop(ctx, readErrs)

	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case err := <-writeErrs:
			return err
		case r := <-readErrs:
			if r.err != nil {
				return r.err
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(idleTimeout)
		case <-idle.C:
			slog.Warn("transport: idle timeout", "session", s.SessionID)
			return fmt.Errorf("transport: idle timeout")
		}
	}
}

func (s *Session) writeLoop(errs chan<- error) {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.outbound:
			if err := s.conn.WriteMessage(msg.tag, msg.payload); err != nil {
				errs <- err
				return
			}
		}
	}
}

func (s *Session) readLoop(ctx context.Context, out chan<- struct{ tag string; err error }) {
	for {
		tag, payload, err := s.conn.ReadMessage()
		if err != nil {
			out <- struct{ tag string; err error }{tag, err}
			return
		}
		if err := s.dispatch(ctx, tag, payload); err != nil {
			out <- struct{ tag string; err error }{tag, err}
			return
		}
		out <- struct{ tag string; err error }{tag, nil}
	}
}

func (s *Session) dispatch(ctx context.Context, tag string, payload interface{}) error {
	h, ok := s.handlers[tag]
	if !ok {
		return fmt.Errorf("transport: no handler registered for %q in state %s", tag, s.State())
	}
	return h(ctx, s, payload)
}
