package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/nextlevelbuilder/polyglotgw/internal/adapter"
	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

// fakeAdapter is a minimal in-memory adapter.Adapter for manager tests.
type fakeAdapter struct {
	tool      protocol.Tool
	available bool
	outputs   []adapter.Output
	execErr   error
	canceled  bool
}

func (f *fakeAdapter) Tool() protocol.Tool                  { return f.tool }
func (f *fakeAdapter) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeAdapter) GetCommand(req adapter.Request) string { return string(f.tool) }
func (f *fakeAdapter) Cancel() error                          { f.canceled = true; return nil }
func (f *fakeAdapter) Execute(ctx context.Context, req adapter.Request, sink adapter.Sink) error {
	for _, o := range f.outputs {
		sink(o)
	}
	return f.execErr
}

func newTestManager(strategy RotationStrategy) (*Manager, map[protocol.Tool]*fakeAdapter) {
	fakes := map[protocol.Tool]*fakeAdapter{
		protocol.ToolClaude: {tool: protocol.ToolClaude, available: true},
		protocol.ToolGemini: {tool: protocol.ToolGemini, available: true},
		protocol.ToolCodex:  {tool: protocol.ToolCodex, available: true},
	}
	adapters := make(map[protocol.Tool]adapter.Adapter, len(fakes))
	for t, f := range fakes {
		adapters[t] = f
	}
	m := NewManager(Config{
		Adapters:         adapters,
		RotationStrategy: strategy,
		DefaultTool:      protocol.ToolClaude,
	})
	return m, fakes
}

func TestExecuteUpdatesUsageCounters(t *testing.T) {
	m, fakes := newTestManager(RotationOnLimit)
	tokens := uint64(42)
	fakes[protocol.ToolClaude].outputs = []adapter.Output{
		{Kind: adapter.KindStdout, Line: "hi"},
		{Kind: adapter.KindDone, Tokens: &tokens},
	}

	var events []adapter.Output
	tool, err := m.Execute(context.Background(), nil, adapter.Request{Message: "hello"}, func(o adapter.Output) {
		events = append(events, o)
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if tool != protocol.ToolClaude {
		t.Fatalf("expected claude, got %s", tool)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 forwarded events, got %d", len(events))
	}

	usage := m.GetUsage()
	for _, u := range usage {
		if u.Tool == protocol.ToolClaude {
			if u.Requests != 1 {
				t.Errorf("expected 1 request, got %d", u.Requests)
			}
			if u.TokensUsed != 42 {
				t.Errorf("expected 42 tokens, got %d", u.TokensUsed)
			}
		}
	}
}

func TestExecuteRateLimitMarksUnavailable(t *testing.T) {
	m, fakes := newTestManager(RotationOnLimit)
	fakes[protocol.ToolClaude].outputs = []adapter.Output{{Kind: adapter.KindRateLimited}}

	_, err := m.Execute(context.Background(), nil, adapter.Request{Message: "hi"}, func(adapter.Output) {})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	next, ok := m.GetNextTool(context.Background(), protocol.ToolClaude)
	if !ok {
		t.Fatal("expected a next tool after rate limit")
	}
	if next == protocol.ToolClaude {
		t.Fatal("rotation must not return the just-rate-limited tool")
	}
}

func TestGetNextToolRoundRobinSkipsCurrent(t *testing.T) {
	m, _ := newTestManager(RotationRoundRobin)
	for i := 0; i < 10; i++ {
		next, ok := m.GetNextTool(context.Background(), protocol.ToolClaude)
		if !ok {
			t.Fatal("expected a next tool")
		}
		if next == protocol.ToolClaude {
			t.Fatal("round robin must never return current as next")
		}
	}
}

func TestGetNextToolRoundRobinSkipsRateLimited(t *testing.T) {
	m, _ := newTestManager(RotationRoundRobin)
	m.mu.Lock()
	m.usage[protocol.ToolGemini].IsAvailable = false
	m.mu.Unlock()

	for i := 0; i < 10; i++ {
		next, ok := m.GetNextTool(context.Background(), protocol.ToolClaude)
		if !ok {
			t.Fatal("expected a next tool")
		}
		if next == protocol.ToolGemini {
			t.Fatal("round robin must not return a rate-limited tool")
		}
	}
}

func TestSetCurrentToolRejectsUnregistered(t *testing.T) {
	m, _ := newTestManager(RotationOnLimit)
	if err := m.SetCurrentTool(protocol.ToolOllama); !errors.Is(err, ErrToolNotAvailable) {
		t.Fatalf("expected ErrToolNotAvailable, got %v", err)
	}
}

func TestCancelAllCancelsEveryAdapter(t *testing.T) {
	m, fakes := newTestManager(RotationOnLimit)
	m.CancelAll()
	for tool, f := range fakes {
		if !f.canceled {
			t.Errorf("adapter %s was not canceled", tool)
		}
	}
}
