package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
	"github.com/nextlevelbuilder/polyglotgw/internal/sandbox"
)

// modelPullCountdown is the advisory delay emitted before `ollama pull`
// kicks off for a model that hasn't been confirmed local yet (SPEC_FULL.md
// §4.3 supplement — Ollama is the one adapter that can silently download
// gigabytes before producing output, so the caller gets a status line first).
const modelPullCountdown = 5 * time.Second

// ollamaAdapter wraps a processAdapter with a model-presence preflight:
// `ollama list` is checked once per process lifetime, and a missing model
// triggers a status advisory before `ollama pull` runs.
type ollamaAdapter struct {
	*processAdapter
	model string

	mu             sync.Mutex
	modelConfirmed bool
}

func newOllamaAdapter(spec Spec, model string, sb *sandbox.Config) *ollamaAdapter {
	o := &ollamaAdapter{model: model}
	build := func(req Request) []string { return []string{"run", o.model, req.Message} }
	o.processAdapter = newProcessAdapter(protocol.ToolOllama, spec.Path, spec.ExtraArgs, spec.Env, "--version", build, sb)
	return o
}

func (o *ollamaAdapter) Execute(ctx context.Context, req Request, sink Sink) error {
	if err := o.ensureModel(ctx, sink); err != nil {
		return err
	}
	return o.processAdapter.Execute(ctx, req, sink)
}

// ensureModel checks `ollama list` for the configured model and, if absent,
// emits a status advisory, waits modelPullCountdown, then runs `ollama pull`.
// Confirmed presence is cached so repeat executions skip the list/pull probe.
func (o *ollamaAdapter) ensureModel(ctx context.Context, sink Sink) error {
	o.mu.Lock()
	confirmed := o.modelConfirmed
	o.mu.Unlock()
	if confirmed {
		return nil
	}

	listCtx, cancel := context.WithTimeout(ctx, availabilityProbeTimeout)
	defer cancel()
	var out bytes.Buffer
	list := exec.CommandContext(listCtx, o.path, "list")
	list.Stdout = &out
	if err := list.Run(); err != nil {
		return fmt.Errorf("ollama: list models: %w", err)
	}
	if strings.Contains(out.String(), o.model) {
		o.mu.Lock()
		o.modelConfirmed = true
		o.mu.Unlock()
		return nil
	}

	sink(Output{Kind: KindStatus, Line: fmt.Sprintf("model %q not found locally, pulling (this may take a while)...", o.model)})
	select {
	case <-time.After(modelPullCountdown):
	case <-ctx.Done():
		return ctx.Err()
	}

	pull := exec.CommandContext(ctx, o.path, "pull", o.model)
	var pullErr bytes.Buffer
	pull.Stderr = &pullErr
	if err := pull.Run(); err != nil {
		return fmt.Errorf("ollama: pull model %q: %w (%s)", o.model, err, pullErr.String())
	}

	o.mu.Lock()
	o.modelConfirmed = true
	o.mu.Unlock()
	return nil
}
