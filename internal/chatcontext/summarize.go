package chatcontext

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// SummarizerConfig tunes auto-summarization and truncation thresholds.
// Defaults match original_source's SummarizerConfig::default() exactly.
type SummarizerConfig struct {
	MaxSummaryTokens   int
	SummarizeThreshold int
	KeepRecentMessages int
	MaxSnippetLength   int
	MaxHistorySessions int
}

// DefaultSummarizerConfig returns the original's default tuning.
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{
		MaxSummaryTokens:   500,
		SummarizeThreshold: 4000,
		KeepRecentMessages: 4,
		MaxSnippetLength:   500,
		MaxHistorySessions: 100,
	}
}

// GenerateTitle derives a short session title from a message's first line.
// It takes the first line, then the first sentence within that line (split
// on '.', '?', '!'), strips control characters, and caps at 50 runes —
// appending "..." only when the text was actually truncated to exactly 50.
// Inputs shorter than 5 runes fall back to "Chat Session".
func GenerateTitle(content string) string {
	firstLine := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		firstLine = content[:idx]
	}

	sentence := firstLine
	if idx := strings.IndexAny(firstLine, ".?!"); idx >= 0 {
		sentence = firstLine[:idx]
	}

	var clean strings.Builder
	for _, r := range sentence {
		if unicode.IsControl(r) {
			continue
		}
		clean.WriteRune(r)
	}
	title := strings.TrimSpace(clean.String())

	runes := []rune(title)
	if len(runes) < 5 {
		return "Chat Session"
	}
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	if len(runes) == 50 {
		return title + "..."
	}
	return title
}

// TruncateSmart shortens content longer than maxLen runes, preferring to cut
// just after the last sentence terminator that lies in the second half of
// the first maxLen runes, then at the last space in that half (with "..."
// appended), then a hard cut at maxLen with "..." appended. The result is
// at most maxLen+3 runes; content within maxLen is returned unchanged.
func TruncateSmart(content string, maxLen int) string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}

	window := string(runes[:maxLen])

	if idx := lastIndexAny(window, ".!?"); idx >= maxLen/2 {
		return window[:idx+1]
	}
	if idx := strings.LastIndexByte(window, ' '); idx >= maxLen/2 {
		return window[:idx] + "..."
	}
	return window + "..."
}

func lastIndexAny(s string, chars string) int {
	best := -1
	for i, r := range s {
		if strings.ContainsRune(chars, r) {
			best = i
		}
	}
	return best
}

// actionPatterns is the ordered list of (substring, label) pairs scanned
// case-insensitively over the whole message; the first pattern that occurs
// anywhere in the content wins.
var actionPatterns = []struct {
	pattern string
	label   string
}{
	{"implement", "Implementation"},
	{"fix", "Bug fix"},
	{"add", "Addition"},
	{"remove", "Removal"},
	{"refactor", "Refactoring"},
	{"create", "Creation"},
	{"update", "Update"},
	{"debug", "Debugging"},
}

var sourceExtensions = []string{".rs", ".py", ".js", ".ts", ".go"}

func hasSourceExtension(token string) bool {
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(token, ext) && len(token) > len(ext) {
			return true
		}
	}
	return false
}

// ExtractKeyInfo pulls lightweight structural hints out of message content
// as a flat list of labels: "Code: <lang>" for each code-fence language tag,
// "File: <path>" for each token that contains a "/" and ends in a known
// source extension, and at most one action label (the first entry of
// actionPatterns whose pattern occurs anywhere in the content).
func ExtractKeyInfo(content string) []string {
	var keyInfo []string

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "```") {
			lang := strings.TrimPrefix(line, "```")
			if lang != "" {
				keyInfo = append(keyInfo, "Code: "+lang)
			}
		}
	}

	for _, word := range strings.Fields(content) {
		if strings.Contains(word, "/") && hasSourceExtension(word) {
			path := strings.TrimFunc(word, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '/' && r != '.' && r != '_'
			})
			if path != "" && len(path) < 100 {
				keyInfo = append(keyInfo, "File: "+path)
			}
		}
	}

	lower := strings.ToLower(content)
	for _, p := range actionPatterns {
		if strings.Contains(lower, p.pattern) {
			keyInfo = append(keyInfo, p.label)
			break
		}
	}

	return keyInfo
}

// SummarizeMessages collapses a run of older messages into a four-part
// summary — Topic, Involved, exchange count, Last response — joined with
// " | " and bounded by cfg.MaxSummaryTokens, matching original_source's
// summarize_messages exactly.
func SummarizeMessages(messages []Message, cfg SummarizerConfig) string {
	if len(messages) == 0 {
		return ""
	}

	var userCount, assistantCount int
	var firstUser, lastAssistant *Message
	for i := range messages {
		m := &messages[i]
		switch m.Role {
		case RoleUser:
			userCount++
			if firstUser == nil {
				firstUser = m
			}
		case RoleAssistant:
			assistantCount++
			lastAssistant = m
		}
	}

	var parts []string
	if firstUser != nil {
		parts = append(parts, "Topic: "+TruncateSmart(firstUser.Content, 150))
	}

	var allKeyInfo []string
	seen := map[string]bool{}
	for _, m := range messages {
		for _, info := range ExtractKeyInfo(m.Content) {
			if !seen[info] {
				seen[info] = true
				allKeyInfo = append(allKeyInfo, info)
			}
		}
	}
	sort.Strings(allKeyInfo)
	if len(allKeyInfo) > 5 {
		allKeyInfo = allKeyInfo[:5]
	}
	if len(allKeyInfo) > 0 {
		parts = append(parts, "Involved: "+strings.Join(allKeyInfo, ", "))
	}

	exchanges := userCount
	if assistantCount < exchanges {
		exchanges = assistantCount
	}
	parts = append(parts, fmt.Sprintf("(%d exchanges)", exchanges))

	if lastAssistant != nil {
		parts = append(parts, "Last response: "+TruncateSmart(lastAssistant.Content, 200))
	}

	return TruncateSmart(strings.Join(parts, " | "), cfg.MaxSummaryTokens*4)
}
