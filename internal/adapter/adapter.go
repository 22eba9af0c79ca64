// Package adapter implements the per-tool subprocess adapters described in
// SPEC_FULL.md §4.3: availability probing, argument assembly, streamed
// stdout/stderr, cancellation, and the rate-limit heuristic.
package adapter

import (
	"context"
	"strings"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

// Request carries the parameters for a single adapter invocation.
type Request struct {
	Message      string
	WorkingDir   string
	ContextFiles []string
	ExtraEnv     [][2]string // session BYOK entries, merged in ahead of the sandbox whitelist
}

// OutputKind tags an Output event.
type OutputKind int

const (
	KindStdout OutputKind = iota
	KindStderr
	KindDone
	KindError
	KindRateLimited
	KindStatus // advisory line not sourced from the child process (e.g. Ollama's pull countdown)
)

// Output is one in-process streaming event from an adapter execution.
type Output struct {
	Kind    OutputKind
	Line    string  // populated for KindStdout/KindStderr
	Tokens  *uint64 // populated for KindDone, nil when unknown
	ErrText string  // populated for KindError
}

// Sink receives Output events as they're produced. Implementations must not
// block indefinitely — the dispatch engine forwards each event onto a
// bounded channel (SPEC_FULL.md §5).
type Sink func(Output)

// Adapter is the capability set every tool adapter satisfies (spec.md §4.3).
type Adapter interface {
	Tool() protocol.Tool
	IsAvailable(ctx context.Context) bool
	Execute(ctx context.Context, req Request, sink Sink) error
	Cancel() error
	GetCommand(req Request) string
}

// rateLimitPhrases is the exact, case-insensitive substring list from
// spec.md §4.3 / original_source's tools/mod.rs::is_rate_limit_message.
var rateLimitPhrases = []string{
	"rate limit",
	"too many requests",
	"quota exceeded",
	"429",
	"throttled",
	"try again later",
	"limit reached",
	"exceeded your",
}

// IsRateLimitMessage reports whether line matches the rate-limit heuristic.
func IsRateLimitMessage(line string) bool {
	lower := strings.ToLower(line)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ParseTokenCount scans output for the run of digits immediately preceding
// the first "tokens" (optionally separated by spaces), matching
// original_source's parse_token_count. Returns
// (0, false) when no such pattern is found — callers must not fabricate a
// count (SPEC_FULL.md §9).
func ParseTokenCount(output string) (uint64, bool) {
	lower := strings.ToLower(output)
	idx := strings.Index(lower, "tokens")
	if idx < 0 {
		return 0, false
	}
	// Scan backward from "tokens" over whitespace, then collect a digit run
	// (handles "1234 tokens" — the common self-reporting shape).
	i := idx - 1
	for i >= 0 && output[i] == ' ' {
		i--
	}
	end := i + 1
	for i >= 0 && output[i] >= '0' && output[i] <= '9' {
		i--
	}
	start := i + 1
	if start >= end {
		return 0, false
	}
	var n uint64
	for _, c := range output[start:end] {
		n = n*10 + uint64(c-'0')
	}
	return n, true
}
