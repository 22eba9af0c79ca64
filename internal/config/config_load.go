package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// DefaultAgentID names the implicit tool-agnostic session, kept for
// ResolveDisplayName-style callers; polyglotgw has no per-agent list, so
// this exists only as a stable constant for log lines.
const DefaultAgentID = "default"

// Default returns a Config with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".polyglotgw")
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             18792,
			BridgePort:       18793,
			RotationStrategy: "on_limit",
			SwitchDelaySec:   5,
			DefaultTool:      "claude",
		},
		Auth: AuthConfig{
			SessionExpiryHours: 24,
			InviteTTLHours:     24,
		},
		Tools: ToolsConfig{
			Ollama: &OllamaToolConfig{Model: "codellama"},
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(base, "polyglotgw.db"),
			SessionsDir:  filepath.Join(base, "sessions"),
		},
		Updates: UpdatesConfig{
			Channel: "stable",
		},
		Sandbox: SandboxConfig{
			Root:          filepath.Join(base, "sandbox"),
			NetworkAccess: "allow_all",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "polyglotgw",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error — Default() plus env overrides is used instead,
// matching the teacher's Load() tolerance for a first-run/no-config-yet
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values, and are the ONLY source for secrets.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("POLYGLOTGW_JWT_SECRET", &c.Auth.JWTSecret)
	envStr("POLYGLOTGW_HOST", &c.Server.Host)
	envStr("POLYGLOTGW_DATABASE_PATH", &c.Storage.DatabasePath)
	envStr("POLYGLOTGW_SESSIONS_DIR", &c.Storage.SessionsDir)
	envStr("POLYGLOTGW_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)

	if v := os.Getenv("POLYGLOTGW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("POLYGLOTGW_BRIDGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.BridgePort = port
		}
	}
	if v := os.Getenv("POLYGLOTGW_SINGLE_USER"); v != "" {
		c.Auth.SingleUserMode = v == "true" || v == "1"
	}
	if v := os.Getenv("POLYGLOTGW_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}

	// Per-tool binary path overrides, matching the teacher's per-provider
	// API key override pattern but for adapter executables.
	applyToolEnv := func(envKey string, tc **ToolConfig) {
		if v := os.Getenv(envKey); v != "" {
			if *tc == nil {
				*tc = &ToolConfig{}
			}
			(*tc).Path = v
		}
	}
	applyToolEnv("POLYGLOTGW_CLAUDE_PATH", &c.Tools.Claude)
	applyToolEnv("POLYGLOTGW_GEMINI_PATH", &c.Tools.Gemini)
	applyToolEnv("POLYGLOTGW_CODEX_PATH", &c.Tools.Codex)
	applyToolEnv("POLYGLOTGW_COPILOT_PATH", &c.Tools.Copilot)
	applyToolEnv("POLYGLOTGW_PERPLEXITY_PATH", &c.Tools.Perplexity)
	applyToolEnv("POLYGLOTGW_CURSOR_PATH", &c.Tools.Cursor)
	if v := os.Getenv("POLYGLOTGW_OLLAMA_MODEL"); v != "" {
		if c.Tools.Ollama == nil {
			c.Tools.Ollama = &OllamaToolConfig{}
		}
		c.Tools.Ollama.Model = v
	}
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Hash returns a short SHA-256 hash of the config for optimistic
// concurrency / change detection.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// ApplyEnvOverrides re-applies environment variable overrides onto the
// config. Call this after modifying config to restore runtime secrets.
func (c *Config) ApplyEnvOverrides() {
	c.applyEnvOverrides()
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
