package chatcontext

import (
	"os"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

func TestGenerateTitleShortFallsBack(t *testing.T) {
	if got := GenerateTitle("hi"); got != "Chat Session" {
		t.Errorf("expected fallback title, got %q", got)
	}
}

func TestGenerateTitleTruncatesAtFifty(t *testing.T) {
	long := strings.Repeat("a", 80)
	got := GenerateTitle(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated title to end with ..., got %q", got)
	}
	if len([]rune(strings.TrimSuffix(got, "..."))) != 50 {
		t.Errorf("expected 50 rune prefix, got %d", len([]rune(strings.TrimSuffix(got, "..."))))
	}
}

func TestGenerateTitleStopsAtFirstSentence(t *testing.T) {
	got := GenerateTitle("Fix the login bug. Also update docs.")
	if got != "Fix the login bug" {
		t.Errorf("expected sentence-bounded title, got %q", got)
	}
}

func TestTruncateSmartPrefersSentenceBoundary(t *testing.T) {
	content := "This is one. This is two. This is three and it keeps going on for a while longer."
	got := TruncateSmart(content, 30)
	if strings.HasSuffix(got, "...") {
		t.Errorf("expected a clean sentence cut, got %q", got)
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("expected sentence-terminated truncation, got %q", got)
	}
}

func TestTruncateSmartHardCutAppendsEllipsis(t *testing.T) {
	content := strings.Repeat("x", 100)
	got := TruncateSmart(content, 10)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis on hard cut, got %q", got)
	}
}

func TestNeedsSummarizationThreshold(t *testing.T) {
	cfg := DefaultSummarizerConfig()
	s := NewChatSession(protocol.ToolClaude, "")
	if s.NeedsSummarization(cfg) {
		t.Fatal("empty session should not need summarization")
	}
	s.AddMessage(NewMessage(RoleUser, strings.Repeat("word ", cfg.SummarizeThreshold)))
	if !s.NeedsSummarization(cfg) {
		t.Fatal("session past threshold should need summarization")
	}
}

func TestMaybeSummarizeKeepsRecentMessages(t *testing.T) {
	cfg := DefaultSummarizerConfig()
	s := NewChatSession(protocol.ToolClaude, "")
	for i := 0; i < 20; i++ {
		s.AddMessage(NewMessage(RoleUser, strings.Repeat("word ", 500)))
	}
	if !s.MaybeSummarize(cfg) {
		t.Fatal("expected summarization to trigger")
	}
	if len(s.Messages) != cfg.KeepRecentMessages {
		t.Errorf("expected %d retained messages, got %d", cfg.KeepRecentMessages, len(s.Messages))
	}
	if s.Summary == "" {
		t.Error("expected non-empty summary after summarization")
	}
	if !strings.Contains(s.Summary, "Topic:") {
		t.Errorf("expected summary to contain Topic:, got %q", s.Summary)
	}
}

func TestExtractKeyInfoFindsFilePathsAndLanguage(t *testing.T) {
	keyInfo := ExtractKeyInfo("fix the bug in\n```go\ncode\n```\nsee internal/adapter/process.go for details")
	if !containsString(keyInfo, "Code: go") {
		t.Errorf("expected Code: go, got %v", keyInfo)
	}
	if !containsString(keyInfo, "File: internal/adapter/process.go") {
		t.Errorf("expected file path extraction, got %v", keyInfo)
	}
	if !containsString(keyInfo, "Bug fix") {
		t.Errorf("expected action label 'Bug fix', got %v", keyInfo)
	}
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func TestCreateTransferContextIncludesCurrentQuestion(t *testing.T) {
	cfg := DefaultSummarizerConfig()
	s := NewChatSession(protocol.ToolClaude, "/proj")
	s.AddMessage(NewMessage(RoleUser, "implement the parser"))
	s.AddMessage(NewMessage(RoleAssistant, "done"))
	s.AddMessage(NewMessage(RoleUser, "now add tests"))

	tc := s.CreateTransferContext(cfg)
	if tc.CurrentQuestion != "now add tests" {
		t.Errorf("expected last user message as current question, got %q", tc.CurrentQuestion)
	}
	if tc.ProjectPath != "/proj" {
		t.Errorf("expected project path carried over, got %q", tc.ProjectPath)
	}
	prefix := tc.AsPromptPrefix()
	if !strings.Contains(prefix, "now add tests") {
		t.Errorf("expected prompt prefix to contain current question: %q", prefix)
	}
	if !strings.Contains(prefix, "[Project: /proj]") {
		t.Errorf("expected prompt prefix to contain the project section: %q", prefix)
	}
}

func TestAsPromptPrefixReturnsQuestionVerbatimWhenNoSections(t *testing.T) {
	tc := TransferContext{CurrentQuestion: "how do I add error handling?"}
	if got := tc.AsPromptPrefix(); got != "how do I add error handling?" {
		t.Errorf("expected verbatim question with no sections, got %q", got)
	}
}

func TestStoreSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultSummarizerConfig()

	store, err := NewStore(dir, cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sess := NewChatSession(protocol.ToolGemini, "/proj")
	if err := store.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.AddMessage(sess.ID, NewMessage(RoleUser, "hello there")); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	if _, err := os.Stat(dir + "/index.json"); err != nil {
		t.Errorf("expected index.json to be written: %v", err)
	}

	reloaded, err := NewStore(dir, cfg)
	if err != nil {
		t.Fatalf("reload NewStore: %v", err)
	}
	got, ok := reloaded.Get(sess.ID)
	if !ok {
		t.Fatal("expected reloaded session to be found")
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hello there" {
		t.Errorf("expected reloaded message content to match, got %+v", got.Messages)
	}
}

func TestStoreListCapsAtMaxHistorySessions(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultSummarizerConfig()
	cfg.MaxHistorySessions = 2

	store, err := NewStore(dir, cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for i := 0; i < 5; i++ {
		sess := NewChatSession(protocol.ToolClaude, "")
		if err := store.Create(sess); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if got := len(store.List()); got != 2 {
		t.Errorf("expected List capped at 2, got %d", got)
	}
}
