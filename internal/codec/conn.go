package codec

import (
	"fmt"
	"net"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

// TCPConn implements internal/transport.Conn over a raw net.Conn using the
// length-prefixed msgpack wire format (spec.md §4.1) — the primary, native
// transport for polyglotgw-local's TCP/TLS connection to polyglotgw-server.
type TCPConn struct {
	nc     net.Conn
	reader *StreamReader
	isServer bool // selects DecodeClient/EncodeServer vs the reverse
	readBuf  []byte
}

// NewServerConn wraps a server-side accepted connection: it decodes
// client-tagged messages and encodes server-tagged replies.
func NewServerConn(nc net.Conn) *TCPConn {
	return &TCPConn{nc: nc, reader: NewStreamReader(), isServer: true, readBuf: make([]byte, 64*1024)}
}

// NewClientConn wraps a client-side dialed connection: it decodes
// server-tagged messages and encodes client-tagged replies.
func NewClientConn(nc net.Conn) *TCPConn {
	return &TCPConn{nc: nc, reader: NewStreamReader(), isServer: false, readBuf: make([]byte, 64*1024)}
}

// ReadMessage blocks until a complete frame is decoded, reading more bytes
// off the socket as needed.
func (c *TCPConn) ReadMessage() (string, interface{}, error) {
	for {
		payload, ok, err := c.reader.Next()
		if err != nil {
			return "", nil, err
		}
		if ok {
			if c.isServer {
				return protocol.DecodeClient(payload)
			}
			return protocol.DecodeServer(payload)
		}

		n, err := c.nc.Read(c.readBuf)
		if err != nil {
			return "", nil, err
		}
		c.reader.Push(c.readBuf[:n])
	}
}

// WriteMessage encodes and frames a single outbound message.
func (c *TCPConn) WriteMessage(tag string, payload interface{}) error {
	var encoded []byte
	var err error
	if c.isServer {
		encoded, err = protocol.EncodeServer(payload)
	} else {
		encoded, err = protocol.EncodeClient(payload)
	}
	if err != nil {
		return fmt.Errorf("codec: encode %s: %w", tag, err)
	}
	framed, err := Frame(encoded)
	if err != nil {
		return fmt.Errorf("codec: frame %s: %w", tag, err)
	}
	_, err = c.nc.Write(framed)
	return err
}

// Close closes the underlying socket.
func (c *TCPConn) Close() error { return c.nc.Close() }
