package bridge

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

// wsCodec is negotiated from the first frame's websocket message type
// (spec.md §6): a text frame means the connection speaks JSON for its
// entire lifetime; a binary frame means one msgpack envelope per message,
// exactly as produced by internal/protocol.EncodeClient/EncodeServer
// (the websocket message boundary substitutes for the 4-byte length
// prefix, so frames arrive whole with no codec.StreamReader needed here).
type wsCodec int

const (
	codecUnset wsCodec = iota
	codecJSON
	codecMsgpack
)

// wsConn implements internal/transport.Conn over a *websocket.Conn, always
// acting as the server side (decodes client tags, encodes server tags).
type wsConn struct {
	ws    *websocket.Conn
	mu    sync.Mutex
	codec wsCodec
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) ReadMessage() (string, interface{}, error) {
	msgType, data, err := c.ws.ReadMessage()
	if err != nil {
		return "", nil, err
	}

	c.mu.Lock()
	if c.codec == codecUnset {
		if msgType == websocket.TextMessage {
			c.codec = codecJSON
		} else {
			c.codec = codecMsgpack
		}
	}
	codec := c.codec
	c.mu.Unlock()

	if codec == codecJSON {
		return decodeJSONClient(data)
	}
	return protocol.DecodeClient(data)
}

func (c *wsConn) WriteMessage(tag string, payload interface{}) error {
	c.mu.Lock()
	codec := c.codec
	c.mu.Unlock()

	if codec == codecJSON {
		data, err := json.Marshal(jsonEnvelope{Tag: tag, Payload: payload})
		if err != nil {
			return fmt.Errorf("bridge: encode json %s: %w", tag, err)
		}
		return c.ws.WriteMessage(websocket.TextMessage, data)
	}

	data, err := protocol.EncodeServer(payload)
	if err != nil {
		return fmt.Errorf("bridge: encode msgpack %s: %w", tag, err)
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsConn) Close() error { return c.ws.Close() }

type jsonEnvelope struct {
	Tag     string      `json:"tag"`
	Payload interface{} `json:"payload"`
}

func decodeJSONClient(data []byte) (string, interface{}, error) {
	var env struct {
		Tag     string          `json:"tag"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("bridge: decode json envelope: %w", err)
	}

	var target interface{}
	switch env.Tag {
	case protocol.TagHandshake:
		target = &protocol.Handshake{}
	case protocol.TagAuth:
		target = &protocol.Auth{}
	case protocol.TagPrompt:
		target = &protocol.Prompt{}
	case protocol.TagSelectTool:
		target = &protocol.SelectTool{}
	case protocol.TagListTools:
		target = &protocol.ListTools{}
	case protocol.TagUsage:
		target = &protocol.Usage{}
	case protocol.TagCancel:
		target = &protocol.Cancel{}
	case protocol.TagDisconnect:
		target = &protocol.Disconnect{}
	case protocol.TagPing:
		target = &protocol.Ping{}
	case protocol.TagVersionCheck:
		target = &protocol.VersionCheck{}
	case protocol.TagSyncRequest:
		target = &protocol.SyncRequest{}
	case protocol.TagFileChunk:
		target = &protocol.FileChunk{}
	case protocol.TagFileRequest:
		target = &protocol.FileRequest{}
	case protocol.TagResolveConflict:
		target = &protocol.ResolveConflict{}
	case protocol.TagSetEnv:
		target = &protocol.SetEnv{}
	default:
		return "", nil, fmt.Errorf("bridge: unknown json tag %q", env.Tag)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, target); err != nil {
			return "", nil, fmt.Errorf("bridge: decode %s payload: %w", env.Tag, err)
		}
	}
	return env.Tag, target, nil
}
