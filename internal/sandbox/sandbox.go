// Package sandbox gates tool-adapter child process launches with an
// env-var whitelist, filesystem scope enforcement, and best-effort resource
// limits, per SPEC_FULL.md §4.6.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
)

// NetworkPolicy is the enforcement stance applied to adapter subprocess
// network access. Enforcement beyond env/firewall hints is out of scope.
type NetworkPolicy string

const (
	NetworkDeny           NetworkPolicy = "deny"
	NetworkAllowLocalhost NetworkPolicy = "localhost"
	NetworkAllowAll       NetworkPolicy = "allow_all"
)

// Config mirrors original_source's local/src/sandbox.rs::SandboxConfig.
type Config struct {
	Enabled          bool
	SandboxRoot      string
	AllowedReadPaths []string
	AllowedWritePaths []string
	MaxMemoryMB      *uint64
	MaxCPUPercent    *uint8
	NetworkAccess    NetworkPolicy
	EnvWhitelist     map[string]bool
}

// DefaultEnvWhitelist is the default set of env vars forwarded into every
// adapter child process.
func DefaultEnvWhitelist() map[string]bool {
	return map[string]bool{
		"PATH": true, "HOME": true, "USER": true,
		"LANG": true, "LC_ALL": true, "TERM": true, "PWD": true,
	}
}

// DefaultConfig builds the default sandbox configuration rooted under
// root (e.g. the user's data directory joined with "polyglotgw/sandbox").
func DefaultConfig(root string) *Config {
	return &Config{
		Enabled:     true,
		SandboxRoot: root,
		AllowedReadPaths: []string{root},
		AllowedWritePaths: []string{
			filepath.Join(root, "workspace"),
			filepath.Join(root, "temp"),
		},
		MaxMemoryMB:   uint64Ptr(4096),
		MaxCPUPercent: uint8Ptr(80),
		NetworkAccess: NetworkAllowAll,
		EnvWhitelist:  DefaultEnvWhitelist(),
	}
}

func uint64Ptr(v uint64) *uint64 { return &v }
func uint8Ptr(v uint8) *uint8    { return &v }

// InitDirectories creates the sandbox root and its workspace/temp/tools/cache
// subdirectories.
func (c *Config) InitDirectories() error {
	for _, dir := range []string{c.SandboxRoot, c.WorkspaceDir(), c.TempDir(), c.ToolsDir(), c.CacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sandbox: create %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) WorkspaceDir() string { return filepath.Join(c.SandboxRoot, "workspace") }
func (c *Config) TempDir() string      { return filepath.Join(c.SandboxRoot, "temp") }
func (c *Config) ToolsDir() string     { return filepath.Join(c.SandboxRoot, "tools") }
func (c *Config) CacheDir() string     { return filepath.Join(c.SandboxRoot, "cache") }

// ValidateRead checks that path is within an allowed read prefix.
func (c *Config) ValidateRead(path string) error {
	return c.validate(path, c.AllowedReadPaths)
}

// ValidateWrite checks that path is within an allowed write prefix.
func (c *Config) ValidateWrite(path string) error {
	return c.validate(path, c.AllowedWritePaths)
}

func (c *Config) validate(path string, allowed []string) error {
	if !c.Enabled {
		return nil
	}
	canonical, err := filepath.Abs(path)
	if err != nil {
		canonical = path
	}
	if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
		canonical = resolved
	}
	for _, prefix := range allowed {
		absPrefix, err := filepath.Abs(prefix)
		if err != nil {
			absPrefix = prefix
		}
		rel, err := filepath.Rel(absPrefix, canonical)
		if err == nil && rel != ".." && !hasDotDotPrefix(rel) {
			return nil
		}
	}
	return fmt.Errorf("sandbox: access denied: path %q is outside sandbox boundaries", path)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

// FilterEnv returns only the entries whose key is in the whitelist.
func (c *Config) FilterEnv(env [][2]string) [][2]string {
	if !c.Enabled {
		return env
	}
	out := make([][2]string, 0, len(env))
	for _, kv := range env {
		if c.EnvWhitelist[kv[0]] {
			out = append(out, kv)
		}
	}
	return out
}

// AddToolEnvVars appends the standard POLYGLOTGW_* environment markers for
// the given tool's launch, per SPEC_FULL.md §4.6.
func (c *Config) AddToolEnvVars(env [][2]string, tool string) [][2]string {
	env = append(env,
		[2]string{"POLYGLOTGW_SANDBOX", "1"},
		[2]string{"POLYGLOTGW_TOOL", tool},
		[2]string{"POLYGLOTGW_WORKSPACE", c.WorkspaceDir()},
		[2]string{"POLYGLOTGW_TOOLS_DIR", c.ToolsDir()},
		[2]string{"POLYGLOTGW_CACHE_DIR", c.CacheDir()},
	)
	if cwd, err := os.Getwd(); err == nil {
		env = append(env, [2]string{"POLYGLOTGW_PROJECT_DIR", cwd})
	}
	env = append(env,
		[2]string{"TMPDIR", c.TempDir()},
		[2]string{"TEMP", c.TempDir()},
		[2]string{"TMP", c.TempDir()},
	)
	return env
}
