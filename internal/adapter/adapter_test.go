package adapter

import (
	"strings"
	"testing"
)

func TestIsRateLimitMessageCaseInsensitive(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"Error: Rate limit exceeded", true},
		{"429 Too Many Requests", true},
		{"QUOTA EXCEEDED for this month", true},
		{"please try again later", true},
		{"daily limit reached", true},
		{"you have exceeded your plan", true},
		{"request throttled by upstream", true},
		{"hello world", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsRateLimitMessage(c.line); got != c.want {
			t.Errorf("IsRateLimitMessage(%q) = %v, want %v", c.line, got, c.want)
		}
	}
}

func TestParseTokenCountNeverFabricates(t *testing.T) {
	cases := []struct {
		in        string
		wantCount uint64
		wantOK    bool
	}{
		{"Used 1234 tokens", 1234, true},
		{"Completed. tokens_used=9", 0, false}, // no digit run immediately before "tokens"
		{"no mention here", 0, false},
		{"tokens", 0, false},
		{"42tokens", 42, true},
	}
	for _, c := range cases {
		n, ok := ParseTokenCount(c.in)
		if ok != c.wantOK || (ok && n != c.wantCount) {
			t.Errorf("ParseTokenCount(%q) = (%d, %v), want (%d, %v)", c.in, n, ok, c.wantCount, c.wantOK)
		}
	}
}

func TestGetCommandTruncatesLongMessages(t *testing.T) {
	build := func(req Request) []string { return []string{"--print", req.Message} }
	a := newProcessAdapter("claude", "claude", nil, nil, "", build, nil)
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	cmd := a.GetCommand(Request{Message: string(long)})
	if len(cmd) == 0 {
		t.Fatal("expected non-empty command string")
	}
	if want := `(message: "` + string(long[:50]) + `...")`; !strings.Contains(cmd, want) {
		t.Errorf("expected message truncated to 50 chars plus ..., got %q", cmd)
	}
}

func TestCancelWithoutRunningProcessIsNoop(t *testing.T) {
	build := func(req Request) []string { return []string{req.Message} }
	a := newProcessAdapter("claude", "claude", nil, nil, "", build, nil)
	if err := a.Cancel(); err != nil {
		t.Fatalf("Cancel on idle adapter should be a no-op, got %v", err)
	}
}
