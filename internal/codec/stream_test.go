package codec

import (
	"bytes"
	"testing"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

func TestFrameBoundaryArbitrarySplits(t *testing.T) {
	msgs := [][]byte{
		[]byte("first"),
		[]byte("second message, a bit longer"),
		[]byte(""),
	}

	var full []byte
	for _, m := range msgs {
		framed, err := Frame(m)
		if err != nil {
			t.Fatalf("frame: %v", err)
		}
		full = append(full, framed...)
	}

	// Feed the concatenated bytes in arbitrary small chunks.
	r := NewStreamReader()
	var got [][]byte
	chunkSize := 3
	for i := 0; i < len(full); i += chunkSize {
		end := i + chunkSize
		if end > len(full) {
			end = len(full)
		}
		r.Push(full[i:end])
		if err := r.Drain(func(payload []byte) error {
			cp := make([]byte, len(payload))
			copy(cp, payload)
			got = append(got, cp)
			return nil
		}); err != nil {
			t.Fatalf("drain: %v", err)
		}
	}

	if len(got) != len(msgs) {
		t.Fatalf("got %d messages, want %d", len(got), len(msgs))
	}
	for i, m := range msgs {
		if !bytes.Equal(got[i], m) {
			t.Fatalf("message %d = %q, want %q", i, got[i], m)
		}
	}
}

func TestMessageTooLarge(t *testing.T) {
	oversized := make([]byte, protocol.MaxMessageSize+1)
	w := NewStreamWriter()
	if err := w.Queue(oversized); err == nil {
		t.Fatal("expected error queueing oversized payload")
	}

	// Craft a frame header that lies about size without allocating the body.
	r := NewStreamReader()
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF} // huge declared length
	r.Push(header)
	_, ok, err := r.Next()
	if ok {
		t.Fatal("expected not ok for oversized frame")
	}
	if err == nil {
		t.Fatal("expected ErrMessageTooLarge")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload, err := protocol.EncodeClient(protocol.Ping{TS: 12345})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	framed, err := Frame(payload)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}

	r := NewStreamReader()
	r.Push(framed)
	out, ok, err := r.Next()
	if err != nil || !ok {
		t.Fatalf("next: ok=%v err=%v", ok, err)
	}
	tag, decoded, err := protocol.DecodeClient(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != protocol.TagPing {
		t.Fatalf("tag = %q", tag)
	}
	if decoded.(*protocol.Ping).TS != 12345 {
		t.Fatalf("ts mismatch")
	}
}
