// Package toolset builds a protocol.Tool-keyed adapter registry from
// config.ToolsConfig, shared by both the server and local roles so that a
// tool's enable flag, binary path, and extra args/env mean the same thing
// whether the dispatch core runs behind a listener or in-process, per
// SPEC_FULL.md §1/§4.3.
package toolset

import (
	"github.com/nextlevelbuilder/polyglotgw/internal/adapter"
	"github.com/nextlevelbuilder/polyglotgw/internal/config"
	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
	"github.com/nextlevelbuilder/polyglotgw/internal/sandbox"
)

// BuildAdapters registers an adapter.Adapter for every tool config.ToolsConfig
// enables, gated by ToolConfig.IsEnabled(), sharing sb across every adapter's
// sandboxed launch.
func BuildAdapters(tc config.ToolsConfig, sb *sandbox.Config) map[protocol.Tool]adapter.Adapter {
	out := make(map[protocol.Tool]adapter.Adapter)

	register := func(tool protocol.Tool, cfg *config.ToolConfig, defaultBin string, build func(adapter.Spec) adapter.Adapter) {
		if !cfg.IsEnabled() {
			return
		}
		out[tool] = build(toSpec(cfg, defaultBin))
	}

	register(protocol.ToolClaude, tc.Claude, "claude", func(s adapter.Spec) adapter.Adapter { return adapter.NewClaude(s, sb) })
	register(protocol.ToolGemini, tc.Gemini, "gemini", func(s adapter.Spec) adapter.Adapter { return adapter.NewGemini(s, sb) })
	register(protocol.ToolCodex, tc.Codex, "codex", func(s adapter.Spec) adapter.Adapter { return adapter.NewCodex(s, sb) })
	register(protocol.ToolCopilot, tc.Copilot, "github-copilot-cli", func(s adapter.Spec) adapter.Adapter { return adapter.NewCopilot(s, sb) })
	register(protocol.ToolPerplexity, tc.Perplexity, "pplx", func(s adapter.Spec) adapter.Adapter { return adapter.NewPerplexity(s, sb) })
	register(protocol.ToolCursor, tc.Cursor, "cursor-agent", func(s adapter.Spec) adapter.Adapter { return adapter.NewCursor(s, sb) })

	ollamaEnabled := tc.Ollama == nil || tc.Ollama.IsEnabled()
	if ollamaEnabled {
		var spec adapter.Spec
		model := ""
		if tc.Ollama != nil {
			spec = toSpec(&tc.Ollama.ToolConfig, "ollama")
			model = tc.Ollama.Model
		} else {
			spec = toSpec(nil, "ollama")
		}
		out[protocol.ToolOllama] = adapter.NewOllama(adapter.OllamaSpec{Spec: spec, Model: model}, sb)
	}

	return out
}

func toSpec(cfg *config.ToolConfig, defaultBin string) adapter.Spec {
	path := defaultBin
	var extra []string
	var env [][2]string
	if cfg != nil {
		if cfg.Path != "" {
			path = cfg.Path
		}
		extra = cfg.ExtraArgs
		for k, v := range cfg.Env {
			env = append(env, [2]string{k, v})
		}
	}
	return adapter.Spec{Path: path, ExtraArgs: extra, Env: env}
}

// Names returns the registered tool identifiers, for logging.
func Names(adapters map[protocol.Tool]adapter.Adapter) []string {
	out := make([]string, 0, len(adapters))
	for t := range adapters {
		out = append(out, string(t))
	}
	return out
}

// ResolveDefault picks cfg's configured default tool if it has a registered
// adapter, else falls back to any one of the registered adapters.
func ResolveDefault(adapters map[protocol.Tool]adapter.Adapter, configured string) protocol.Tool {
	defaultTool := protocol.Tool(configured)
	if _, ok := adapters[defaultTool]; ok {
		return defaultTool
	}
	for t := range adapters {
		return t
	}
	return defaultTool
}
