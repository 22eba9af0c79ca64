// Package codec implements the length-framed byte-stream layer described in
// SPEC_FULL.md §4.1: a StreamReader accumulates bytes and yields complete
// frames, a StreamWriter encodes outgoing messages into a contiguous,
// length-prefixed buffer. This package is deliberately payload-agnostic —
// it hands complete frame payloads to the caller, which decodes them with
// internal/protocol.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

const lengthPrefixSize = 4

// ErrMessageTooLarge is returned when a declared frame length exceeds
// protocol.MaxMessageSize. The session must close on this error.
var ErrMessageTooLarge = errors.New("codec: message exceeds maximum size")

// StreamReader accumulates bytes pushed from the transport and extracts
// complete LEN||PAYLOAD frames.
type StreamReader struct {
	buf []byte
}

// NewStreamReader returns an empty StreamReader.
func NewStreamReader() *StreamReader {
	return &StreamReader{buf: make([]byte, 0, 4096)}
}

// Push appends newly-received bytes to the internal buffer.
func (r *StreamReader) Push(b []byte) {
	r.buf = append(r.buf, b...)
}

// Next extracts the next complete frame's payload, if any. It returns
// ok=false (and no error) when the buffer holds an incomplete frame —
// callers should Push more bytes and retry. It returns ErrMessageTooLarge
// when the declared length exceeds protocol.MaxMessageSize; no bytes beyond
// the length field are consumed as payload in that case, and the reader
// must not be reused (the session closes).
func (r *StreamReader) Next() (payload []byte, ok bool, err error) {
	if len(r.buf) < lengthPrefixSize {
		return nil, false, nil
	}
	frameLen := binary.BigEndian.Uint32(r.buf[:lengthPrefixSize])
	if frameLen > protocol.MaxMessageSize {
		return nil, false, fmt.Errorf("%w: declared %d bytes, max %d", ErrMessageTooLarge, frameLen, protocol.MaxMessageSize)
	}
	total := lengthPrefixSize + int(frameLen)
	if len(r.buf) < total {
		return nil, false, nil
	}

	// Copy out so the returned slice survives the buffer compaction below
	// (the contract forbids reusing buffer memory after advance).
	out := make([]byte, frameLen)
	copy(out, r.buf[lengthPrefixSize:total])

	remaining := len(r.buf) - total
	next := make([]byte, remaining)
	copy(next, r.buf[total:])
	r.buf = next

	return out, true, nil
}

// Drain repeatedly calls Next, invoking fn for every complete frame found,
// stopping at the first incomplete frame or error.
func (r *StreamReader) Drain(fn func(payload []byte) error) error {
	for {
		payload, ok, err := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(payload); err != nil {
			return err
		}
	}
}

// StreamWriter queues encoded payloads and produces a contiguous,
// length-prefixed byte buffer for transmission.
type StreamWriter struct {
	pending []byte
}

// NewStreamWriter returns an empty StreamWriter.
func NewStreamWriter() *StreamWriter {
	return &StreamWriter{}
}

// Queue frames payload (LEN prefix + payload) and appends it to the pending
// buffer. payload must already be protocol-encoded (see internal/protocol).
func (w *StreamWriter) Queue(payload []byte) error {
	if len(payload) > protocol.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrMessageTooLarge, len(payload), protocol.MaxMessageSize)
	}
	var prefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	w.pending = append(w.pending, prefix[:]...)
	w.pending = append(w.pending, payload...)
	return nil
}

// Take returns the pending bytes and clears the internal buffer.
func (w *StreamWriter) Take() []byte {
	out := w.pending
	w.pending = nil
	return out
}

// Frame is a standalone helper equivalent to Queue+Take for a single
// message, matching original_source's frame_message.
func Frame(payload []byte) ([]byte, error) {
	w := NewStreamWriter()
	if err := w.Queue(payload); err != nil {
		return nil, err
	}
	return w.Take(), nil
}
