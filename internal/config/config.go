// Package config defines polyglotgw's on-disk configuration shape and its
// converters to the runtime configs each component actually consumes,
// matching the teacher's nested-struct + ToXConfig()-converter idiom
// (internal/config/config.go's SandboxConfig.ToSandboxConfig /
// CronConfig.ToRetryConfig pattern), per SPEC_FULL.md §6.
package config

import (
	"sync"

	"github.com/nextlevelbuilder/polyglotgw/internal/dispatch"
	"github.com/nextlevelbuilder/polyglotgw/internal/sandbox"
)

// Config is the root configuration for a polyglotgw server or local client.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Auth      AuthConfig      `json:"auth"`
	Tools     ToolsConfig     `json:"tools"`
	Storage   StorageConfig   `json:"storage,omitempty"`
	Updates   UpdatesConfig   `json:"updates,omitempty"`
	Sandbox   SandboxConfig   `json:"sandbox,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`

	mu sync.RWMutex
}

// ServerConfig configures the listening surfaces (spec.md §6).
type ServerConfig struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`        // native length-framed TCP port
	BridgePort       int    `json:"bridge_port"` // websocket bridge HTTP port
	TLSCertFile      string `json:"tls_cert_file,omitempty"`
	TLSKeyFile       string `json:"tls_key_file,omitempty"`
	RotationStrategy string `json:"rotation_strategy,omitempty"` // "on_limit" (default), "priority", "round_robin"
	SwitchDelaySec   uint8  `json:"switch_delay_sec,omitempty"`  // advisory countdown before rotation (default 5)
	DefaultTool      string `json:"default_tool,omitempty"`      // default "claude"
}

// ToDispatchRotation converts the configured strategy name, defaulting to
// OnLimit, matching dispatch.RotationStrategy's string enum.
func (sc ServerConfig) ToDispatchRotation() dispatch.RotationStrategy {
	switch sc.RotationStrategy {
	case string(dispatch.RotationPriority):
		return dispatch.RotationPriority
	case string(dispatch.RotationRoundRobin):
		return dispatch.RotationRoundRobin
	default:
		return dispatch.RotationOnLimit
	}
}

// AuthConfig configures certificate-fingerprint auth and invite codes.
// JWTSecret is NEVER read from config.json (secret) — env override only,
// matching the teacher's DatabaseConfig.PostgresDSN pattern.
type AuthConfig struct {
	JWTSecret          string `json:"-"` // from env POLYGLOTGW_JWT_SECRET only
	SessionExpiryHours int    `json:"session_expiry_hours,omitempty"`
	SingleUserMode     bool   `json:"single_user_mode,omitempty"` // skip invite flow, auto-provision first cert
	InviteTTLHours     int    `json:"invite_ttl_hours,omitempty"` // default 24; not read by any command (invite takes its own --ttl-hours)
}

// ToolConfig is the per-tool enable/override block.
type ToolConfig struct {
	Enabled   *bool             `json:"enabled,omitempty"` // default true
	Path      string            `json:"path,omitempty"`    // binary path override (default: looked up on PATH)
	ExtraArgs []string          `json:"extra_args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// IsEnabled reports whether this tool should be registered (nil = enabled).
func (tc *ToolConfig) IsEnabled() bool {
	return tc == nil || tc.Enabled == nil || *tc.Enabled
}

// ToolsConfig configures every registered adapter (spec.md §4.3).
type ToolsConfig struct {
	Claude     *ToolConfig       `json:"claude,omitempty"`
	Gemini     *ToolConfig       `json:"gemini,omitempty"`
	Codex      *ToolConfig       `json:"codex,omitempty"`
	Copilot    *ToolConfig       `json:"copilot,omitempty"`
	Perplexity *ToolConfig       `json:"perplexity,omitempty"`
	Cursor     *ToolConfig       `json:"cursor,omitempty"`
	Ollama     *OllamaToolConfig `json:"ollama,omitempty"`
}

// OllamaToolConfig adds the model selection on top of ToolConfig.
type OllamaToolConfig struct {
	ToolConfig
	Model string `json:"model,omitempty"` // default "codellama"
}

// StorageConfig configures the SQLite-backed persistent store and the
// context manager's session directory.
type StorageConfig struct {
	DatabasePath string `json:"database_path,omitempty"` // default "~/.polyglotgw/polyglotgw.db"
	SessionsDir  string `json:"sessions_dir,omitempty"`  // default "~/.polyglotgw/sessions"
}

// UpdatesConfig configures the `update` CLI subcommand's self-update check.
type UpdatesConfig struct {
	CheckURL string `json:"check_url,omitempty"` // release manifest endpoint
	Channel  string `json:"channel,omitempty"`   // "stable" (default) or "beta"
}

// SandboxConfig mirrors internal/sandbox.Config with JSON tags and defaults
// applied by ToSandboxConfig, matching the teacher's SandboxConfig/
// ToSandboxConfig idiom.
type SandboxConfig struct {
	Enabled           *bool    `json:"enabled,omitempty"` // default true
	Root              string   `json:"root,omitempty"`    // default "~/.polyglotgw/sandbox"
	AllowedReadPaths  []string `json:"allowed_read_paths,omitempty"`
	AllowedWritePaths []string `json:"allowed_write_paths,omitempty"`
	MaxMemoryMB       uint64   `json:"max_memory_mb,omitempty"`
	MaxCPUPercent     uint8    `json:"max_cpu_percent,omitempty"`
	NetworkAccess     string   `json:"network_access,omitempty"` // "deny", "localhost", "allow_all" (default)
	EnvWhitelist      []string `json:"env_whitelist,omitempty"`
}

// ToSandboxConfig converts config.SandboxConfig -> sandbox.Config with
// defaults applied, matching the teacher's ToSandboxConfig converters.
func (sc *SandboxConfig) ToSandboxConfig(root string) *sandbox.Config {
	cfg := sandbox.DefaultConfig(root)
	if sc == nil {
		return cfg
	}
	if sc.Enabled != nil {
		cfg.Enabled = *sc.Enabled
	}
	if len(sc.AllowedReadPaths) > 0 {
		cfg.AllowedReadPaths = sc.AllowedReadPaths
	}
	if len(sc.AllowedWritePaths) > 0 {
		cfg.AllowedWritePaths = sc.AllowedWritePaths
	}
	if sc.MaxMemoryMB > 0 {
		mb := sc.MaxMemoryMB
		cfg.MaxMemoryMB = &mb
	}
	if sc.MaxCPUPercent > 0 {
		pct := sc.MaxCPUPercent
		cfg.MaxCPUPercent = &pct
	}
	switch sc.NetworkAccess {
	case "deny":
		cfg.NetworkAccess = sandbox.NetworkDeny
	case "localhost":
		cfg.NetworkAccess = sandbox.NetworkAllowLocalhost
	case "allow_all":
		cfg.NetworkAccess = sandbox.NetworkAllowAll
	}
	if len(sc.EnvWhitelist) > 0 {
		wl := make(map[string]bool, len(sc.EnvWhitelist))
		for _, k := range sc.EnvWhitelist {
			wl[k] = true
		}
		cfg.EnvWhitelist = wl
	}
	return cfg
}

// TelemetryConfig configures OpenTelemetry OTLP-HTTP export, matching the
// teacher's TelemetryConfig section.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"` // e.g. "localhost:4318"
	Insecure    bool   `json:"insecure,omitempty"`
	ServiceName string `json:"service_name,omitempty"` // default "polyglotgw"
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex,
// matching the teacher's hot-reload idiom.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Server = src.Server
	c.Auth = src.Auth
	c.Tools = src.Tools
	c.Storage = src.Storage
	c.Updates = src.Updates
	c.Sandbox = src.Sandbox
	c.Telemetry = src.Telemetry
}
