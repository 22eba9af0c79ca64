package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ProtocolVersion is the wire protocol version this package implements.
const ProtocolVersion uint8 = 1

// MaxMessageSize is the largest payload (post-length-prefix) a StreamReader
// will accept before failing with a framing error.
const MaxMessageSize = 16 * 1024 * 1024

// envelope is the tagged-union wrapper every wire message is encoded as:
// {tag: "<variant>", payload: <msgpack-encoded variant struct>}.
type envelope struct {
	Tag     string          `msgpack:"tag"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// EncodeClient serializes a client→server message variant into its msgpack
// payload bytes (without the length prefix — see codec.StreamWriter for
// framing).
func EncodeClient(msg interface{}) ([]byte, error) {
	tag, err := clientTag(msg)
	if err != nil {
		return nil, err
	}
	return encodeEnvelope(tag, msg)
}

// EncodeServer serializes a server→client message variant.
func EncodeServer(msg interface{}) ([]byte, error) {
	tag, err := serverTag(msg)
	if err != nil {
		return nil, err
	}
	return encodeEnvelope(tag, msg)
}

func encodeEnvelope(tag string, payload interface{}) ([]byte, error) {
	payloadBytes, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode payload: %w", err)
	}
	out, err := msgpack.Marshal(envelope{Tag: tag, Payload: payloadBytes})
	if err != nil {
		return nil, fmt.Errorf("protocol: encode envelope: %w", err)
	}
	return out, nil
}

// DecodeClient decodes a raw payload (already stripped of the length prefix)
// into its client message variant. Returns the tag and the decoded struct
// as interface{} — callers type-switch to dispatch.
func DecodeClient(data []byte) (string, interface{}, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	msg, err := decodeClientPayload(env.Tag, env.Payload)
	if err != nil {
		return env.Tag, nil, err
	}
	return env.Tag, msg, nil
}

// DecodeServer decodes a raw payload into its server message variant.
func DecodeServer(data []byte) (string, interface{}, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	msg, err := decodeServerPayload(env.Tag, env.Payload)
	if err != nil {
		return env.Tag, nil, err
	}
	return env.Tag, msg, nil
}

func clientTag(msg interface{}) (string, error) {
	switch msg.(type) {
	case *Handshake, Handshake:
		return TagHandshake, nil
	case *Auth, Auth:
		return TagAuth, nil
	case *Prompt, Prompt:
		return TagPrompt, nil
	case *SelectTool, SelectTool:
		return TagSelectTool, nil
	case *ListTools, ListTools:
		return TagListTools, nil
	case *Usage, Usage:
		return TagUsage, nil
	case *Cancel, Cancel:
		return TagCancel, nil
	case *Disconnect, Disconnect:
		return TagDisconnect, nil
	case *Ping, Ping:
		return TagPing, nil
	case *VersionCheck, VersionCheck:
		return TagVersionCheck, nil
	case *SyncRequest, SyncRequest:
		return TagSyncRequest, nil
	case *FileChunk, FileChunk:
		return TagFileChunk, nil
	case *FileRequest, FileRequest:
		return TagFileRequest, nil
	case *ResolveConflict, ResolveConflict:
		return TagResolveConflict, nil
	case *SetEnv, SetEnv:
		return TagSetEnv, nil
	default:
		return "", fmt.Errorf("protocol: unknown client message type %T", msg)
	}
}

func serverTag(msg interface{}) (string, error) {
	switch msg.(type) {
	case *HandshakeAck, HandshakeAck:
		return TagHandshakeAck, nil
	case *AuthResult, AuthResult:
		return TagAuthResult, nil
	case *ToolResponse, ToolResponse:
		return TagToolResponse, nil
	case *ToolOutput, ToolOutput:
		return TagToolOutput, nil
	case *ToolSwitched, ToolSwitched:
		return TagToolSwitched, nil
	case *ToolSwitchNotice, ToolSwitchNotice:
		return TagToolSwitchNotice, nil
	case *UsageStats, UsageStats:
		return TagUsageStats, nil
	case *ToolList, ToolList:
		return TagToolList, nil
	case *Error, Error:
		return TagError, nil
	case *Pong, Pong:
		return TagPong, nil
	case *VersionInfo, VersionInfo:
		return TagVersionInfo, nil
	case *ServerShutdown, ServerShutdown:
		return TagServerShutdown, nil
	case *EnvAck, EnvAck:
		return TagEnvAck, nil
	default:
		return "", fmt.Errorf("protocol: unknown server message type %T", msg)
	}
}

func decodeClientPayload(tag string, raw msgpack.RawMessage) (interface{}, error) {
	var target interface{}
	switch tag {
	case TagHandshake:
		target = &Handshake{}
	case TagAuth:
		target = &Auth{}
	case TagPrompt:
		target = &Prompt{}
	case TagSelectTool:
		target = &SelectTool{}
	case TagListTools:
		target = &ListTools{}
	case TagUsage:
		target = &Usage{}
	case TagCancel:
		target = &Cancel{}
	case TagDisconnect:
		target = &Disconnect{}
	case TagPing:
		target = &Ping{}
	case TagVersionCheck:
		target = &VersionCheck{}
	case TagSyncRequest:
		target = &SyncRequest{}
	case TagFileChunk:
		target = &FileChunk{}
	case TagFileRequest:
		target = &FileRequest{}
	case TagResolveConflict:
		target = &ResolveConflict{}
	case TagSetEnv:
		target = &SetEnv{}
	default:
		return nil, fmt.Errorf("protocol: unknown client tag %q", tag)
	}
	if err := msgpack.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("protocol: decode %s payload: %w", tag, err)
	}
	return target, nil
}

func decodeServerPayload(tag string, raw msgpack.RawMessage) (interface{}, error) {
	var target interface{}
	switch tag {
	case TagHandshakeAck:
		target = &HandshakeAck{}
	case TagAuthResult:
		target = &AuthResult{}
	case TagToolResponse:
		target = &ToolResponse{}
	case TagToolOutput:
		target = &ToolOutput{}
	case TagToolSwitched:
		target = &ToolSwitched{}
	case TagToolSwitchNotice:
		target = &ToolSwitchNotice{}
	case TagUsageStats:
		target = &UsageStats{}
	case TagToolList:
		target = &ToolList{}
	case TagError:
		target = &Error{}
	case TagPong:
		target = &Pong{}
	case TagVersionInfo:
		target = &VersionInfo{}
	case TagServerShutdown:
		target = &ServerShutdown{}
	case TagEnvAck:
		target = &EnvAck{}
	default:
		return nil, fmt.Errorf("protocol: unknown server tag %q", tag)
	}
	if err := msgpack.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("protocol: decode %s payload: %w", tag, err)
	}
	return target, nil
}
