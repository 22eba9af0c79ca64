package adapter

import (
	"runtime"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
	"github.com/nextlevelbuilder/polyglotgw/internal/sandbox"
)

// Spec is the per-tool construction parameters read from config (§6
// `tools` section: `{enabled, path, priority, args[], env[]}`).
type Spec struct {
	Path      string
	ExtraArgs []string
	Env       [][2]string
}

// NewClaude builds the Claude adapter: `--print <prompt>`.
func NewClaude(spec Spec, sb *sandbox.Config) Adapter {
	build := func(req Request) []string { return []string{"--print", req.Message} }
	return newProcessAdapter(protocol.ToolClaude, spec.Path, spec.ExtraArgs, spec.Env, "--version", build, sb)
}

// NewGemini builds the Gemini adapter: `-p <prompt>`.
func NewGemini(spec Spec, sb *sandbox.Config) Adapter {
	build := func(req Request) []string { return []string{"-p", req.Message} }
	return newProcessAdapter(protocol.ToolGemini, spec.Path, spec.ExtraArgs, spec.Env, "--version", build, sb)
}

// NewCodex builds the Codex adapter: `--query <prompt>`.
func NewCodex(spec Spec, sb *sandbox.Config) Adapter {
	build := func(req Request) []string { return []string{"--query", req.Message} }
	return newProcessAdapter(protocol.ToolCodex, spec.Path, spec.ExtraArgs, spec.Env, "--version", build, sb)
}

// NewCopilot builds the Copilot adapter: `suggest <prompt>`.
func NewCopilot(spec Spec, sb *sandbox.Config) Adapter {
	build := func(req Request) []string { return []string{"suggest", req.Message} }
	return newProcessAdapter(protocol.ToolCopilot, spec.Path, spec.ExtraArgs, spec.Env, "--version", build, sb)
}

// NewPerplexity builds the Perplexity adapter: bare positional argv[1].
func NewPerplexity(spec Spec, sb *sandbox.Config) Adapter {
	build := func(req Request) []string { return []string{req.Message} }
	return newProcessAdapter(protocol.ToolPerplexity, spec.Path, spec.ExtraArgs, spec.Env, "--version", build, sb)
}

// NewCursor builds the Cursor adapter: `-p <prompt>`, wrapped as
// `wsl cursor-agent -p <prompt>` on Windows hosts (spec.md §4.3,
// original_source's cursor.rs::for_current_platform).
func NewCursor(spec Spec, sb *sandbox.Config) Adapter {
	path := spec.Path
	extra := spec.ExtraArgs
	if runtime.GOOS == "windows" {
		extra = append([]string{path}, extra...)
		path = "wsl"
	}
	build := func(req Request) []string { return []string{"-p", req.Message} }
	return newProcessAdapter(protocol.ToolCursor, path, extra, spec.Env, "--version", build, sb)
}

// OllamaSpec extends Spec with the model name (SPEC_FULL.md §4.3
// supplement: preflight list-models / 5s countdown / pull).
type OllamaSpec struct {
	Spec
	Model string
}

// NewOllama builds the Ollama adapter: `run <model> <prompt>`, with the
// model-presence preflight in `ollamaAdapter.ensureModel`.
func NewOllama(spec OllamaSpec, sb *sandbox.Config) Adapter {
	model := spec.Model
	if model == "" {
		model = "codellama"
	}
	return newOllamaAdapter(spec.Spec, model, sb)
}
