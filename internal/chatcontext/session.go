// Package chatcontext implements the token-budgeted Context Manager
// described in SPEC_FULL.md §4.5: chat sessions, lazy auto-summarization,
// smart truncation, key-info extraction, and transfer-context bundling for
// tool switches, grounded verbatim on original_source's
// crates/common/src/context.rs.
package chatcontext

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

// MessageRole is the speaker of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one turn in a ChatSession.
type Message struct {
	ID            string      `json:"id"`
	Role          MessageRole `json:"role"`
	Content       string      `json:"content"`
	Timestamp     time.Time   `json:"timestamp"`
	TokenEstimate int         `json:"token_estimate"`
}

// NewMessage builds a Message, estimating its token count at char/4 (matches
// original_source's estimate_tokens — no tokenizer dependency, a rough
// approximation good enough to drive summarization thresholds).
func NewMessage(role MessageRole, content string) Message {
	return Message{
		ID:            uuid.NewString(),
		Role:          role,
		Content:       content,
		Timestamp:     time.Now(),
		TokenEstimate: EstimateTokens(content),
	}
}

// EstimateTokens approximates token count as len(content)/4, rounded up.
func EstimateTokens(content string) int {
	n := len(content)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// CodeReference is a file/snippet pointer extracted from conversation text.
type CodeReference struct {
	FilePath  string `json:"file_path"`
	Language  string `json:"language"`
	Snippet   string `json:"snippet"`
	LineRange string `json:"line_range,omitempty"`
}

// ChatSession is one conversation with a tool, matching
// original_source's ChatSession exactly (fields, derived title, summary).
type ChatSession struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	ProjectPath   string        `json:"project_path,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Tool          protocol.Tool `json:"tool"`
	Messages      []Message     `json:"messages"`
	Summary       string        `json:"summary,omitempty"`
	KeyReferences []CodeReference `json:"key_references,omitempty"`
	TotalTokens   int           `json:"total_tokens"`
}

// NewChatSession creates an empty session for the given tool.
func NewChatSession(tool protocol.Tool, projectPath string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:          uuid.NewString(),
		Title:       "Chat Session",
		ProjectPath: projectPath,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tool:        tool,
		Messages:    []Message{},
	}
}

// AutoTitle sets the session title from the first user message if one
// hasn't been set explicitly yet.
func (s *ChatSession) AutoTitle() {
	if s.Title != "Chat Session" {
		return
	}
	if msg, ok := s.firstUserMessage(); ok {
		s.Title = GenerateTitle(msg.Content)
	}
}

// SetTitle overrides the session title explicitly.
func (s *ChatSession) SetTitle(title string) {
	s.Title = title
	s.UpdatedAt = time.Now()
}

// DisplayTitle returns the title, or "Untitled" if empty.
func (s *ChatSession) DisplayTitle() string {
	if s.Title == "" {
		return "Untitled"
	}
	return s.Title
}

// AddMessage appends a message, updates total tokens/timestamp, and derives
// the title on the first user message.
func (s *ChatSession) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.TotalTokens += msg.TokenEstimate
	s.UpdatedAt = time.Now()
	s.AutoTitle()
}

// LastMessages returns up to n most recent messages, oldest first.
func (s *ChatSession) LastMessages(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if n >= len(s.Messages) {
		out := make([]Message, len(s.Messages))
		copy(out, s.Messages)
		return out
	}
	out := make([]Message, n)
	copy(out, s.Messages[len(s.Messages)-n:])
	return out
}

// LastUserMessage returns the most recent user-authored message, if any.
func (s *ChatSession) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

func (s *ChatSession) firstUserMessage() (Message, bool) {
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			return m, true
		}
	}
	return Message{}, false
}

// IsProject reports whether this session is scoped to a project directory.
func (s *ChatSession) IsProject() bool { return s.ProjectPath != "" }

// NeedsSummarization reports whether TotalTokens exceeds cfg's threshold.
func (s *ChatSession) NeedsSummarization(cfg SummarizerConfig) bool {
	return s.TotalTokens > cfg.SummarizeThreshold
}

// HistoryEntry is a lightweight session descriptor for history listings.
type HistoryEntry struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	ProjectPath  string        `json:"project_path,omitempty"`
	Tool         protocol.Tool `json:"tool"`
	MessageCount int           `json:"message_count"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewHistoryEntry builds a HistoryEntry from a session (From<&ChatSession>).
func NewHistoryEntry(s *ChatSession) HistoryEntry {
	return HistoryEntry{
		ID:           s.ID,
		Title:        s.DisplayTitle(),
		ProjectPath:  s.ProjectPath,
		Tool:         s.Tool,
		MessageCount: len(s.Messages),
		UpdatedAt:    s.UpdatedAt,
	}
}

// MatchesSearch reports whether query matches the entry's title or project
// path, case-insensitively.
func (h HistoryEntry) MatchesSearch(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(h.Title), q) ||
		strings.Contains(strings.ToLower(h.ProjectPath), q)
}
