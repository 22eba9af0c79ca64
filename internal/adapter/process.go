package adapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
	"github.com/nextlevelbuilder/polyglotgw/internal/sandbox"
)

var tracer = otel.Tracer("polyglotgw/adapter")

// availabilityProbeTimeout bounds is_available() probes (SPEC_FULL.md §5).
const availabilityProbeTimeout = 5 * time.Second

// argBuilder assembles the tool-specific argv (after ExtraArgs) for a
// request, per the table in spec.md §4.3.
type argBuilder func(req Request) []string

// processAdapter is the shared subprocess-launch implementation every
// concrete tool adapter embeds, grounded on original_source's cursor.rs
// (PID tracking, two-reader-goroutine streaming, rate-limit-once-per-
// execution flag) generalized to a table-driven argument builder instead of
// one bespoke struct per tool.
type processAdapter struct {
	tool        protocol.Tool
	path        string
	extraArgs   []string
	env         [][2]string
	versionFlag string
	buildArgs   argBuilder
	sandboxCfg  *sandbox.Config

	mu  sync.Mutex
	pid int
}

func newProcessAdapter(tool protocol.Tool, path string, extraArgs []string, env [][2]string, versionFlag string, build argBuilder, sb *sandbox.Config) *processAdapter {
	if versionFlag == "" {
		versionFlag = "--version"
	}
	return &processAdapter{
		tool:        tool,
		path:        path,
		extraArgs:   extraArgs,
		env:         env,
		versionFlag: versionFlag,
		buildArgs:   build,
		sandboxCfg:  sb,
	}
}

func (p *processAdapter) Tool() protocol.Tool { return p.tool }

func (p *processAdapter) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityProbeTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, p.path, p.versionFlag)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run() == nil
}

func (p *processAdapter) GetCommand(req Request) string {
	args := append(append([]string{}, p.extraArgs...), p.buildArgs(req)...)
	msg := req.Message
	if len(msg) > 50 {
		msg = msg[:50] + "..."
	}
	return fmt.Sprintf("%s %v (message: %q)", p.path, args, msg)
}

func (p *processAdapter) Cancel() error {
	p.mu.Lock()
	pid := p.pid
	p.pid = 0
	p.mu.Unlock()
	if pid == 0 {
		return nil
	}
	return killPID(pid)
}

// Execute launches the child, streams stdout/stderr line by line, and
// applies the rate-limit heuristic to stderr. When the heuristic fires, the
// run emits one RateLimited event (further output lines may follow) and
// returns errRateLimited with no terminal event; otherwise it ends with a
// terminal Done or Error event.
func (p *processAdapter) Execute(ctx context.Context, req Request, sink Sink) error {
	ctx, span := tracer.Start(ctx, "adapter.execute")
	defer span.End()
	span.SetAttributes(attribute.String("tool", string(p.tool)))

	args := append(append([]string{}, p.extraArgs...), p.buildArgs(req)...)
	cmd := exec.CommandContext(ctx, p.path, args...)
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	cmd.Env = buildEnv(append(append([][2]string{}, p.env...), req.ExtraEnv...), p.sandboxCfg, string(p.tool))
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("adapter %s: stdout pipe: %w", p.tool, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("adapter %s: stderr pipe: %w", p.tool, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("adapter %s: start: %w", p.tool, err)
	}
	if p.sandboxCfg != nil {
		sandbox.ApplyResourceLimits(cmd, p.sandboxCfg)
	}
	p.mu.Lock()
	p.pid = cmd.Process.Pid
	p.mu.Unlock()

	var rateLimited bool
	var rlMu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		streamLines(stdout, func(line string) {
			sink(Output{Kind: KindStdout, Line: line})
		})
	}()

	go func() {
		defer wg.Done()
		streamLines(stderr, func(line string) {
			sink(Output{Kind: KindStderr, Line: line})
			if IsRateLimitMessage(line) {
				rlMu.Lock()
				already := rateLimited
				rateLimited = true
				rlMu.Unlock()
				if !already {
					sink(Output{Kind: KindRateLimited})
				}
			}
		})
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	p.mu.Lock()
	p.pid = 0
	p.mu.Unlock()

	rlMu.Lock()
	wasRateLimited := rateLimited
	rlMu.Unlock()

	if wasRateLimited {
		span.SetStatus(codes.Error, "rate limited")
		return errRateLimited
	}
	if waitErr != nil {
		sink(Output{Kind: KindError, ErrText: fmt.Sprintf("%s exited with code %d", p.tool, exitCode(waitErr))})
		span.SetStatus(codes.Error, waitErr.Error())
		return waitErr
	}
	sink(Output{Kind: KindDone})
	return nil
}

func streamLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
}

func buildEnv(extra [][2]string, sb *sandbox.Config, tool string) []string {
	env := osEnvPairs()
	env = append(env, extra...)
	if sb != nil {
		env = sb.FilterEnv(env)
		env = sb.AddToolEnvVars(env, tool)
	}
	out := make([]string, 0, len(env))
	for _, kv := range env {
		out = append(out, kv[0]+"="+kv[1])
	}
	return out
}

func osEnvPairs() [][2]string {
	raw := os.Environ()
	pairs := make([][2]string, 0, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		pairs = append(pairs, [2]string{k, v})
	}
	return pairs
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
