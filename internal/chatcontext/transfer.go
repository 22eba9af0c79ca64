package chatcontext

import (
	"fmt"
	"strings"
)

// TransferContext bundles what a new tool needs to pick up a conversation
// after a switch: a summary of prior turns, the question that triggered the
// switch, extracted key points, and referenced code, matching
// original_source's TransferContext exactly.
type TransferContext struct {
	Summary         string          `json:"summary"`
	CurrentQuestion string          `json:"current_question"`
	KeyPoints       []string        `json:"key_points"`
	CodeContext     []CodeReference `json:"code_context"`
	ProjectPath     string          `json:"project_path,omitempty"`
	TokenEstimate   int             `json:"token_estimate"`
}

// AsPromptPrefix renders the transfer context as a prefix to prepend to the
// next tool's prompt: any present sections in order ([Project: …],
// [Context: …], [Key decisions: a; b; c], code-reference fenced blocks),
// followed by two newlines and the current question. If no sections are
// present, returns the current question verbatim.
func (t TransferContext) AsPromptPrefix() string {
	var parts []string

	if t.ProjectPath != "" {
		parts = append(parts, fmt.Sprintf("[Project: %s]", t.ProjectPath))
	}
	if t.Summary != "" {
		parts = append(parts, fmt.Sprintf("[Context: %s]", t.Summary))
	}
	if len(t.KeyPoints) > 0 {
		parts = append(parts, fmt.Sprintf("[Key decisions: %s]", strings.Join(t.KeyPoints, "; ")))
	}
	for _, ref := range t.CodeContext {
		if ref.Snippet == "" {
			continue
		}
		lang := ref.Language
		if lang == "" {
			lang = "code"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s]\n```%s\n%s\n```", ref.FilePath, ref.LineRange, lang, ref.Snippet))
	}

	if len(parts) == 0 {
		return t.CurrentQuestion
	}
	return strings.Join(parts, "\n") + "\n\n" + t.CurrentQuestion
}

// Minimal returns a TransferContext carrying only the current question,
// used when the sending session is too short to warrant a summary.
func Minimal(question, projectPath string) TransferContext {
	return TransferContext{
		CurrentQuestion: question,
		ProjectPath:     projectPath,
		TokenEstimate:   EstimateTokens(question),
	}
}

// CreateTransferContext builds the handoff bundle for switching s to a new
// tool: messages beyond cfg.KeepRecentMessages are summarized (unless the
// session already has a summary), the most recent cfg.KeepRecentMessages
// (including the triggering question) contribute key points, and the
// session's own KeyReferences carry over as code context.
func (s *ChatSession) CreateTransferContext(cfg SummarizerConfig) TransferContext {
	if len(s.Messages) == 0 {
		return Minimal("", s.ProjectPath)
	}

	question, _ := s.LastUserMessage()

	older := s.Messages
	if n := cfg.KeepRecentMessages; n > 0 && len(older) > n {
		older = older[:len(older)-n]
	} else {
		older = nil
	}

	summary := s.Summary
	if summary == "" && len(older) > 0 {
		summary = SummarizeMessages(older, cfg)
	}

	var keyPoints []string
	for _, m := range s.LastMessages(cfg.KeepRecentMessages) {
		keyPoints = append(keyPoints, ExtractKeyInfo(m.Content)...)
		if len(keyPoints) >= 5 {
			break
		}
	}
	if len(keyPoints) > 5 {
		keyPoints = keyPoints[:5]
	}

	tc := TransferContext{
		Summary:         summary,
		CurrentQuestion: question.Content,
		KeyPoints:       keyPoints,
		CodeContext:     s.KeyReferences,
		ProjectPath:     s.ProjectPath,
	}
	tc.TokenEstimate = EstimateTokens(tc.AsPromptPrefix())
	return tc
}

// MaybeSummarize collapses older messages into s.Summary if the session has
// crossed cfg.SummarizeThreshold, keeping only the most recent
// cfg.KeepRecentMessages in full. Lazy: callers invoke it after AddMessage,
// not on a timer.
func (s *ChatSession) MaybeSummarize(cfg SummarizerConfig) bool {
	if !s.NeedsSummarization(cfg) {
		return false
	}
	keep := cfg.KeepRecentMessages
	if keep < 0 {
		keep = 0
	}
	if len(s.Messages) <= keep {
		return false
	}
	older := s.Messages[:len(s.Messages)-keep]
	recent := s.Messages[len(s.Messages)-keep:]

	newSummary := SummarizeMessages(older, cfg)
	if s.Summary != "" {
		s.Summary = TruncateSmart(s.Summary+" "+newSummary, cfg.MaxSummaryTokens*4)
	} else {
		s.Summary = newSummary
	}

	s.Messages = append([]Message{}, recent...)
	s.TotalTokens = EstimateTokens(s.Summary)
	for _, m := range s.Messages {
		s.TotalTokens += m.TokenEstimate
	}
	return true
}
