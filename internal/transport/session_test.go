package transport

import (
	"context"
	"fmt"
	"testing"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

// fakeConn is an in-memory Conn for exercising the state machine without a
// real socket: inbound is a scripted queue, outbound is recorded.
type fakeConn struct {
	inbound  []fakeMsg
	idx      int
	outbound []fakeMsg
	closed   bool
}

type fakeMsg struct {
	tag     string
	payload interface{}
}

func (c *fakeConn) ReadMessage() (string, interface{}, error) {
	if c.idx >= len(c.inbound) {
		return "", nil, fmt.Errorf("fakeConn: no more messages")
	}
	m := c.inbound[c.idx]
	c.idx++
	return m.tag, m.payload, nil
}

func (c *fakeConn) WriteMessage(tag string, payload interface{}) error {
	c.outbound = append(c.outbound, fakeMsg{tag, payload})
	return nil
}

func (c *fakeConn) Close() error { c.closed = true; return nil }

// Send only queues replies on sess.outbound; Run's writer goroutine is what
// moves them onto the Conn, so these tests dispatch directly and read the
// queue (Run itself always ends in StateClosed).
func TestHandshakeTransitionsToAwaitingAuth(t *testing.T) {
	conn := &fakeConn{}
	sess := NewSession(conn)
	sess.On(protocol.TagHandshake, handleHandshake(&Deps{}))

	hs := &protocol.Handshake{Version: protocol.ProtocolVersion, ClientID: "c1"}
	if err := sess.dispatch(context.Background(), protocol.TagHandshake, hs); err != nil {
		t.Fatalf("dispatch handshake: %v", err)
	}

	if sess.State() != StateAwaitingAuth {
		t.Fatalf("expected AwaitingAuth after handshake, got %s", sess.State())
	}
	if n := len(sess.outbound); n != 1 {
		t.Fatalf("expected 1 queued reply, got %d", n)
	}
	if msg := <-sess.outbound; msg.tag != protocol.TagHandshakeAck {
		t.Fatalf("expected HandshakeAck reply, got %+v", msg)
	}
}

func TestRequireActiveRejectsPromptBeforeAuth(t *testing.T) {
	conn := &fakeConn{}
	sess := NewSession(conn)
	sess.On(protocol.TagPrompt, requireActive(func(ctx context.Context, s *Session, p interface{}) error {
		t.Fatal("handler should not run before Active")
		return nil
	}))

	err := sess.dispatch(context.Background(), protocol.TagPrompt, &protocol.Prompt{Message: "hi"})
	if err != nil {
		t.Fatalf("requireActive should send an Error reply, not fail dispatch: %v", err)
	}
	if n := len(sess.outbound); n != 1 {
		t.Fatalf("expected 1 queued reply, got %d", n)
	}
	if msg := <-sess.outbound; msg.tag != protocol.TagError {
		t.Fatalf("expected Error reply, got %+v", msg)
	}
}

func TestPingPongRoundTrip(t *testing.T) {
	conn := &fakeConn{}
	sess := NewSession(conn)
	sess.On(protocol.TagPing, handlePing(&Deps{}))

	if err := sess.dispatch(context.Background(), protocol.TagPing, &protocol.Ping{TS: 42}); err != nil {
		t.Fatalf("dispatch ping: %v", err)
	}
	if n := len(sess.outbound); n != 1 {
		t.Fatalf("expected 1 queued reply, got %d", n)
	}
	msg := <-sess.outbound
	if msg.tag != protocol.TagPong {
		t.Fatalf("expected Pong reply, got %+v", msg)
	}
	pong := msg.payload.(protocol.Pong)
	if pong.TS != 42 {
		t.Errorf("expected echoed TS 42, got %d", pong.TS)
	}
}

func TestSendDropsConnectionWhenBufferFull(t *testing.T) {
	conn := &fakeConn{}
	sess := NewSession(conn)
	for i := 0; i < outboundCapacity; i++ {
		if err := sess.Send(protocol.TagPong, protocol.Pong{}); err != nil {
			t.Fatalf("unexpected error filling buffer at %d: %v", i, err)
		}
	}
	if err := sess.Send(protocol.TagPong, protocol.Pong{}); err == nil {
		t.Fatal("expected error when outbound buffer is full")
	}
	if sess.State() != StateClosed {
		t.Fatalf("expected session closed after buffer overflow, got %s", sess.State())
	}
}
