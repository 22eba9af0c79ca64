package protocol

import "time"

// Client message tags.
const (
	TagHandshake      = "handshake"
	TagAuth           = "auth"
	TagPrompt         = "prompt"
	TagSelectTool     = "select_tool"
	TagListTools      = "list_tools"
	TagUsage          = "usage"
	TagCancel         = "cancel"
	TagDisconnect     = "disconnect"
	TagPing           = "ping"
	TagVersionCheck   = "version_check"
	TagSyncRequest    = "sync_request"
	TagFileChunk      = "file_chunk"
	TagFileRequest    = "file_request"
	TagResolveConflict = "resolve_conflict"
	TagSetEnv         = "set_env"
)

// Server message tags.
const (
	TagHandshakeAck     = "handshake_ack"
	TagAuthResult       = "auth_result"
	TagToolResponse     = "tool_response"
	TagToolOutput       = "tool_output"
	TagToolSwitched     = "tool_switched"
	TagToolSwitchNotice = "tool_switch_notice"
	TagUsageStats       = "usage_stats"
	TagToolList         = "tool_list"
	TagError            = "error"
	TagPong             = "pong"
	TagVersionInfo      = "version_info"
	TagServerShutdown   = "server_shutdown"
	TagEnvAck           = "env_ack"
)

// -- Client → Server payloads --

type Handshake struct {
	Version  uint8  `msgpack:"version"`
	ClientID string `msgpack:"client_id"`
}

type Auth struct {
	CertFingerprint string `msgpack:"cert_fingerprint"`
}

type Prompt struct {
	Tool       *Tool  `msgpack:"tool,omitempty"`
	Message    string `msgpack:"message"`
	WorkingDir *string `msgpack:"working_dir,omitempty"`
}

type SelectTool struct {
	Tool Tool `msgpack:"tool"`
}

type ListTools struct{}

type Usage struct{}

type Cancel struct{}

type Disconnect struct{}

type Ping struct {
	TS int64 `msgpack:"ts"`
}

type VersionCheck struct{}

type SyncRequest struct {
	Path string `msgpack:"path"`
	Mode string `msgpack:"mode"`
}

type FileChunk struct {
	Path    string `msgpack:"path"`
	Offset  int64  `msgpack:"offset"`
	Data    []byte `msgpack:"data"`
	Final   bool   `msgpack:"final"`
}

type FileRequest struct {
	Path string `msgpack:"path"`
}

type ResolveConflict struct {
	Path     string `msgpack:"path"`
	UseLocal bool   `msgpack:"use_local"`
}

// SetEnv relays short-lived BYOK credential entries to the server for the
// next adapter launch (SPEC_FULL.md §3 SUPPLEMENT, original_source
// protocol.rs's SetEnv variant).
type SetEnv struct {
	Entries [][2]string `msgpack:"entries"`
}

// -- Server → Client payloads --

type HandshakeAck struct {
	Version  uint8  `msgpack:"version"`
	ServerID string `msgpack:"server_id"`
}

type AuthResult struct {
	Success   bool    `msgpack:"success"`
	SessionID *string `msgpack:"session_id,omitempty"`
	User      *string `msgpack:"user,omitempty"`
	Error     *string `msgpack:"error,omitempty"`
}

type ToolResponse struct {
	Tool    Tool    `msgpack:"tool"`
	Content string  `msgpack:"content"`
	Done    bool    `msgpack:"done"`
	Tokens  *uint64 `msgpack:"tokens,omitempty"`
}

type ToolOutput struct {
	Tool       Tool       `msgpack:"tool"`
	OutputType OutputType `msgpack:"output_type"`
	Content    string     `msgpack:"content"`
}

type ToolSwitched struct {
	From   Tool         `msgpack:"from"`
	To     Tool         `msgpack:"to"`
	Reason SwitchReason `msgpack:"reason"`
}

type ToolSwitchNotice struct {
	From     Tool         `msgpack:"from"`
	To       Tool         `msgpack:"to"`
	Reason   SwitchReason `msgpack:"reason"`
	Countdown uint32      `msgpack:"countdown"`
}

type UsageStats struct {
	Stats       []ToolUsage `msgpack:"stats"`
	SessionStart int64      `msgpack:"session_start"`
}

type ToolList struct {
	Tools   []ToolInfo `msgpack:"tools"`
	Current *Tool      `msgpack:"current,omitempty"`
}

type Error struct {
	Code    ErrorCode `msgpack:"code"`
	Message string    `msgpack:"message"`
}

type Pong struct {
	TS         int64 `msgpack:"ts"`
	ServerTime int64 `msgpack:"server_time"`
}

type VersionInfo struct {
	Version         string  `msgpack:"version"`
	Protocol        uint8   `msgpack:"protocol"`
	UpdateAvailable bool    `msgpack:"update_available"`
	LatestVersion   *string `msgpack:"latest_version,omitempty"`
}

type ServerShutdown struct {
	Reason    string `msgpack:"reason"`
	Countdown uint32 `msgpack:"countdown"`
}

type EnvAck struct {
	Applied uint32 `msgpack:"applied"`
}

// ToolUsage mirrors spec.md §3 ToolUsage exactly.
type ToolUsage struct {
	Tool           Tool       `msgpack:"tool"`
	Requests       uint64     `msgpack:"requests"`
	TokensUsed     uint64     `msgpack:"tokens_used"`
	Errors         uint64     `msgpack:"errors"`
	RateLimitHits  uint64     `msgpack:"rate_limit_hits"`
	LastUsed       *time.Time `msgpack:"last_used,omitempty"`
	IsAvailable    bool       `msgpack:"is_available"`
}

// NowMillis is a small helper shared by Ping/Pong handling.
func NowMillis() int64 { return time.Now().UnixMilli() }
