// Package dispatch implements the tool rotation/dispatch engine described in
// SPEC_FULL.md §4.4: adapter registry, usage accounting, rate-limit-driven
// rotation, and the forwarding monitor goroutine, grounded on
// original_source's crates/server/src/tools/manager.rs.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/polyglotgw/internal/adapter"
	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

var tracer = otel.Tracer("polyglotgw/dispatch")

// probeInterval bounds how often a single tool's IsAvailable is re-run; a
// flapping adapter returns its last known result in between, so a burst of
// ListTools/GetNextTool calls can't hammer a slow or hung CLI.
const probeInterval = 10 * time.Second

// RotationStrategy selects how GetNextTool picks a replacement tool.
type RotationStrategy string

const (
	RotationOnLimit    RotationStrategy = "on_limit"
	RotationPriority   RotationStrategy = "priority"
	RotationRoundRobin RotationStrategy = "round_robin"
)

// ErrToolNotAvailable is returned when a requested tool has no registered
// adapter.
var ErrToolNotAvailable = errors.New("dispatch: tool not available")

// ErrRateLimited is returned by Execute when the run was cut short by the
// rate-limit heuristic.
var ErrRateLimited = errors.New("dispatch: rate limited")

// Manager owns the adapter registry and per-tool usage counters. It is safe
// for concurrent use.
type Manager struct {
	adapters         map[protocol.Tool]adapter.Adapter
	mu               sync.RWMutex
	usage            map[protocol.Tool]*protocol.ToolUsage
	rotationStrategy RotationStrategy
	switchDelay      uint8
	currentMu        sync.RWMutex
	currentTool      protocol.Tool
	store            *UsageStore // optional SQLite mirror, nil disables persistence

	probeMu       sync.Mutex
	probeLimiters map[protocol.Tool]*rate.Limiter
	lastProbe     map[protocol.Tool]bool
}

// Config configures a new Manager.
type Config struct {
	Adapters         map[protocol.Tool]adapter.Adapter
	RotationStrategy RotationStrategy
	SwitchDelay      uint8
	DefaultTool      protocol.Tool
	Store            *UsageStore
}

// NewManager builds a Manager from a pre-built adapter registry (callers
// assemble adapters via internal/adapter's per-tool constructors, skipping
// any the config disables).
func NewManager(cfg Config) *Manager {
	usage := make(map[protocol.Tool]*protocol.ToolUsage, len(cfg.Adapters))
	for tool := range cfg.Adapters {
		usage[tool] = &protocol.ToolUsage{Tool: tool, IsAvailable: true}
	}
	strategy := cfg.RotationStrategy
	if strategy == "" {
		strategy = RotationOnLimit
	}
	probeLimiters := make(map[protocol.Tool]*rate.Limiter, len(cfg.Adapters))
	for tool := range cfg.Adapters {
		probeLimiters[tool] = rate.NewLimiter(rate.Every(probeInterval), 1)
	}
	return &Manager{
		adapters:         cfg.Adapters,
		usage:            usage,
		rotationStrategy: strategy,
		switchDelay:      cfg.SwitchDelay,
		currentTool:      cfg.DefaultTool,
		store:            cfg.Store,
		probeLimiters:    probeLimiters,
		lastProbe:        make(map[protocol.Tool]bool, len(cfg.Adapters)),
	}
}

// probe runs a's IsAvailable, rate-limited per tool so a burst of ListTools/
// GetNextTool calls can't re-probe a slow CLI more than once per
// probeInterval; in between it returns the cached last result.
func (m *Manager) probe(ctx context.Context, tool protocol.Tool, a adapter.Adapter) bool {
	m.probeMu.Lock()
	limiter := m.probeLimiters[tool]
	m.probeMu.Unlock()
	if limiter != nil && !limiter.Allow() {
		m.probeMu.Lock()
		cached := m.lastProbe[tool]
		m.probeMu.Unlock()
		return cached
	}
	ok := a.IsAvailable(ctx)
	m.probeMu.Lock()
	m.lastProbe[tool] = ok
	m.probeMu.Unlock()
	return ok
}

// AvailableTools probes every registered adapter's IsAvailable concurrently
// and returns the ones that respond.
func (m *Manager) AvailableTools(ctx context.Context) []protocol.Tool {
	type result struct {
		tool protocol.Tool
		ok   bool
	}
	results := make(chan result, len(m.adapters))
	for tool, a := range m.adapters {
		tool, a := tool, a
		go func() {
			results <- result{tool, m.probe(ctx, tool, a)}
		}()
	}
	available := make([]protocol.Tool, 0, len(m.adapters))
	for range m.adapters {
		r := <-results
		if r.ok {
			available = append(available, r.tool)
		}
	}
	return available
}

// CurrentTool returns the tool a bare Prompt (no explicit Tool) resolves to.
func (m *Manager) CurrentTool() protocol.Tool {
	m.currentMu.RLock()
	defer m.currentMu.RUnlock()
	return m.currentTool
}

// SetCurrentTool changes the default tool, failing if it has no adapter.
func (m *Manager) SetCurrentTool(tool protocol.Tool) error {
	m.mu.RLock()
	_, ok := m.adapters[tool]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrToolNotAvailable, tool)
	}
	m.currentMu.Lock()
	m.currentTool = tool
	m.currentMu.Unlock()
	return nil
}

// GetUsage returns a snapshot of every tool's usage counters.
func (m *Manager) GetUsage() []protocol.ToolUsage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]protocol.ToolUsage, 0, len(m.usage))
	for _, u := range m.usage {
		out = append(out, *u)
	}
	return out
}

// SwitchDelay is the advisory countdown (seconds) clients display before a
// rotation takes effect.
func (m *Manager) SwitchDelay() uint8 { return m.switchDelay }

// ListToolInfo reports each registered adapter's availability for ListTools.
func (m *Manager) ListToolInfo(ctx context.Context) []protocol.ToolInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]protocol.ToolInfo, 0, len(m.adapters))
	for i, tool := range protocol.AllTools {
		a, ok := m.adapters[tool]
		if !ok {
			continue
		}
		out = append(out, protocol.ToolInfo{
			Tool:      tool,
			Enabled:   true,
			Available: m.probe(ctx, tool, a),
			Priority:  i,
		})
	}
	return out
}

// Execute runs a request against the given tool (or the current default),
// forwarding every adapter.Output onto emit, and updates usage counters as
// output arrives — mirroring the monitor-goroutine split in
// original_source's ToolManager::execute.
func (m *Manager) Execute(ctx context.Context, tool *protocol.Tool, req adapter.Request, emit func(adapter.Output)) (protocol.Tool, error) {
	ctx, span := tracer.Start(ctx, "dispatch.execute")
	defer span.End()

	target := m.CurrentTool()
	if tool != nil {
		target = *tool
	}
	span.SetAttributes(attribute.String("tool", string(target)))

	m.mu.RLock()
	a, ok := m.adapters[target]
	m.mu.RUnlock()
	if !ok {
		return target, fmt.Errorf("%w: %s", ErrToolNotAvailable, target)
	}

	now := time.Now()
	m.mu.Lock()
	if stats, ok := m.usage[target]; ok {
		stats.Requests++
		stats.LastUsed = &now
	}
	m.mu.Unlock()

	var rateLimited bool
	wrapped := func(out adapter.Output) {
		switch out.Kind {
		case adapter.KindRateLimited:
			rateLimited = true
			m.mu.Lock()
			if stats, ok := m.usage[target]; ok {
				stats.RateLimitHits++
				stats.IsAvailable = false
			}
			m.mu.Unlock()
			if m.store != nil {
				m.store.RecordRateLimit(target)
			}
		case adapter.KindError:
			m.mu.Lock()
			if stats, ok := m.usage[target]; ok {
				stats.Errors++
			}
			m.mu.Unlock()
		case adapter.KindDone:
			if out.Tokens != nil {
				m.mu.Lock()
				if stats, ok := m.usage[target]; ok {
					stats.TokensUsed += *out.Tokens
				}
				m.mu.Unlock()
			}
		}
		emit(out)
	}

	execErr := a.Execute(ctx, req, wrapped)

	if m.store != nil {
		m.store.RecordRequest(target, execErr == nil)
	}

	if rateLimited {
		span.SetAttributes(attribute.String("rotation_outcome", "rate_limited"))
		span.SetStatus(codes.Error, "rate limited")
		return target, ErrRateLimited
	}
	if execErr != nil {
		span.SetAttributes(attribute.String("rotation_outcome", "error"))
		span.SetStatus(codes.Error, execErr.Error())
		return target, execErr
	}
	span.SetAttributes(attribute.String("rotation_outcome", "ok"))
	return target, nil
}

// GetNextTool picks a rotation target per the configured strategy. OnLimit
// and Priority both walk the fixed priority list skipping current; RoundRobin
// starts scanning one past current's index. Ollama is excluded from rotation
// (protocol.PriorityTools).
func (m *Manager) GetNextTool(ctx context.Context, current protocol.Tool) (protocol.Tool, bool) {
	available := m.AvailableTools(ctx)
	availableSet := make(map[protocol.Tool]bool, len(available))
	for _, t := range available {
		availableSet[t] = true
	}

	switch m.rotationStrategy {
	case RotationRoundRobin:
		idx := 0
		for i, t := range protocol.PriorityTools {
			if t == current {
				idx = i
				break
			}
		}
		for i := 1; i <= len(protocol.PriorityTools); i++ {
			next := protocol.PriorityTools[(idx+i)%len(protocol.PriorityTools)]
			if !availableSet[next] {
				continue
			}
			m.mu.RLock()
			stats, ok := m.usage[next]
			m.mu.RUnlock()
			if ok && stats.IsAvailable {
				return next, true
			}
		}
	default: // OnLimit, Priority
		for _, t := range protocol.PriorityTools {
			if t == current || !availableSet[t] {
				continue
			}
			m.mu.RLock()
			stats, ok := m.usage[t]
			m.mu.RUnlock()
			if ok && stats.IsAvailable {
				return t, true
			}
		}
	}
	return "", false
}

// CancelAll cancels every registered adapter's in-flight execution.
func (m *Manager) CancelAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.adapters {
		_ = a.Cancel()
	}
}

// ResetAvailability clears every tool's rate-limited flag, run periodically
// by the caller (e.g. hourly) so a rotated-away tool becomes eligible again.
func (m *Manager) ResetAvailability() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stats := range m.usage {
		stats.IsAvailable = true
	}
}
