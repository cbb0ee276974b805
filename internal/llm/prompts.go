package llm

import (
	"fmt"
	"strings"
	"time"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

const (
	historySnippetEntries = 10
	historySnippetWindow  = 5 * time.Minute
)

// PromptConfig supplies user-overridable prompt material.
type PromptConfig interface {
	// Prompt returns the override for a per-context field
	// ("system_prompt" or "instructions"), or "" when unset.
	Prompt(contextType domain.ContextType, field string) string
	BasePrompt() string
	BaseInstructions() string
}

var contextPromptSuffix = map[domain.ContextType]string{
	domain.ContextCodeWindow:    "You format text for direct insertion into code editors or IDEs, keeping it concise and code-appropriate.",
	domain.ContextCodingAgent:   "You focus on technical communication with coding assistants, maintaining technical accuracy whilst improving clarity.",
	domain.ContextSlack:         "You format text for Slack messages, keeping them concise and team-friendly.",
	domain.ContextWhatsApp:      "You format text for WhatsApp messages, keeping them casual and conversational.",
	domain.ContextFormalEmail:   "You format text for formal business emails using proper British English etiquette.",
	domain.ContextCasualEmail:   "You format text for casual emails, maintaining a friendly but professional tone.",
	domain.ContextCasualMessage: "You format text for casual messages, keeping them natural and conversational.",
}

var contextInstructions = map[domain.ContextType]string{
	domain.ContextCodeWindow: `- Keep text concise and editor-appropriate
- Remove all dictation-specific phrases
- Focus on content that belongs in code editors
- Maintain technical accuracy if applicable
- Remove context indicators like 'I'm in a code window'`,
	domain.ContextCodingAgent: `- Keep technical terms precise and accurate
- Maintain clarity for coding-related requests
- Use proper technical vocabulary
- Structure requests logically for AI assistants`,
	domain.ContextSlack: `- Keep it concise and team-friendly
- Use appropriate Slack conventions
- Maintain casual but clear communication
- Remove excessive formality`,
	domain.ContextWhatsApp: `- Keep it casual and conversational
- Use natural, friendly language
- Remove excessive formality
- Maintain personal tone`,
	domain.ContextFormalEmail: `- Use formal British English conventions
- Structure with proper email etiquette
- Maintain professional tone throughout
- Use appropriate formal vocabulary`,
	domain.ContextCasualEmail: `- Use friendly but professional tone
- Structure clearly but not overly formal
- Maintain approachable language
- Balance casualness with clarity`,
	domain.ContextCasualMessage: `- Keep natural and conversational
- Maintain friendly tone
- Remove excessive formality
- Focus on clear communication`,
}

// systemPrompt builds the system message: user override first, else the
// base prompt plus the per-context suffix.
func systemPrompt(cfg PromptConfig, contextType domain.ContextType) string {
	if custom := cfg.Prompt(contextType, "system_prompt"); custom != "" {
		return custom
	}
	suffix, ok := contextPromptSuffix[contextType]
	if !ok {
		suffix = contextPromptSuffix[domain.ContextCasualMessage]
	}
	return cfg.BasePrompt() + " " + suffix
}

// userPrompt builds the cleaning request: instructions, a best-effort
// recent-history snippet for continuity, and the raw text.
func userPrompt(cfg PromptConfig, history ports.HistoryStore, rawText string, contextType domain.ContextType, now time.Time) string {
	instructions := cfg.Prompt(contextType, "instructions")
	if instructions == "" {
		extra, ok := contextInstructions[contextType]
		if !ok {
			extra = contextInstructions[domain.ContextCasualMessage]
		}
		instructions = cfg.BaseInstructions() + "\n" + extra
	}

	recentBlock := ""
	if snippet := recentHistorySnippet(history, now); snippet != "" {
		recentBlock = fmt.Sprintf("Recent conversation snippets (last 5 minutes):\n%s\n\n", snippet)
	}

	contextLabel := strings.ReplaceAll(string(contextType), "_", " ")
	return fmt.Sprintf(`Please clean up the dictated text for %s context.

%sInstructions:
%s

Raw dictated text:
"%s"

Cleaned text:`, contextLabel, recentBlock, instructions, rawText)
}

// recentHistorySnippet renders recent transcriptions oldest first,
// numbered, for natural reading order. Best effort: any failure yields
// an empty snippet, never an error.
func recentHistorySnippet(history ports.HistoryStore, now time.Time) string {
	if history == nil {
		return ""
	}
	entries, err := history.Recent(historySnippetEntries)
	if err != nil {
		return ""
	}

	cutoff := now.Add(-historySnippetWindow)
	var recent []string
	for _, e := range entries {
		if e.Timestamp.After(cutoff) || e.Timestamp.Equal(cutoff) {
			recent = append(recent, e.Text)
		}
	}
	if len(recent) == 0 {
		return ""
	}

	// Recent() is newest first; flip for chronological flow.
	var lines []string
	for i := len(recent) - 1; i >= 0; i-- {
		lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, recent[i]))
	}
	return strings.Join(lines, "\n")
}
