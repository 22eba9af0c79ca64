package clilocal

import (
	"fmt"
	"os"
	"strings"

	"github.com/nextlevelbuilder/polyglotgw/internal/config"
	"github.com/nextlevelbuilder/polyglotgw/internal/dispatch"
	"github.com/nextlevelbuilder/polyglotgw/internal/sandbox"
	"github.com/nextlevelbuilder/polyglotgw/internal/toolset"
)

// localRuntime bundles the in-process equivalents of what the server role
// keeps behind a listener: a resolved config, a sandbox, and a dispatch
// Manager driving the same adapter registry. Every clilocal subcommand that
// touches tools builds one of these instead of dialing a server, per
// original_source's LocalToolManager::new (crates/local/src/tools.rs).
type localRuntime struct {
	cfg *config.Config
	sb  *sandbox.Config
	mgr *dispatch.Manager
}

func newLocalRuntime() (*localRuntime, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	sandboxRoot := config.ExpandHome(cfg.Sandbox.Root)
	sb := cfg.Sandbox.ToSandboxConfig(sandboxRoot)
	if cwd, err := os.Getwd(); err == nil {
		sb.AllowedReadPaths = appendUnique(sb.AllowedReadPaths, cwd)
		sb.AllowedWritePaths = appendUnique(sb.AllowedWritePaths, cwd)
	}
	if dir := resolveProjectDir(); dir != "" {
		sb.AllowedReadPaths = appendUnique(sb.AllowedReadPaths, dir)
		sb.AllowedWritePaths = appendUnique(sb.AllowedWritePaths, dir)
	}
	if err := sb.InitDirectories(); err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	adapters := toolset.BuildAdapters(cfg.Tools, sb)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no tool adapters enabled — check the tools section of %s", resolveConfigPath())
	}
	defaultTool := toolset.ResolveDefault(adapters, cfg.Server.DefaultTool)

	mgr := dispatch.NewManager(dispatch.Config{
		Adapters:         adapters,
		RotationStrategy: cfg.Server.ToDispatchRotation(),
		SwitchDelay:      cfg.Server.SwitchDelaySec,
		DefaultTool:      defaultTool,
	})

	return &localRuntime{cfg: cfg, sb: sb, mgr: mgr}, nil
}

func appendUnique(paths []string, add string) []string {
	for _, p := range paths {
		if p == add {
			return paths
		}
	}
	return append(paths, add)
}

// parseEnvEntries turns a list of "KEY=VALUE" strings into the [2]string
// pairs adapter.Request.ExtraEnv expects, rejecting malformed or
// non-shell-safe keys the same way handleSetEnv's isValidEnvKey does on the
// server side.
func parseEnvEntries(args []string) ([][2]string, error) {
	entries := make([][2]string, 0, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || !isValidEnvKey(k) {
			return nil, fmt.Errorf("invalid entry %q, expected KEY=VALUE with an uppercase key", a)
		}
		entries = append(entries, [2]string{k, v})
	}
	return entries, nil
}

func isValidEnvKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
