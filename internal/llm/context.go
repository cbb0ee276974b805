package llm

import (
	"regexp"
	"strings"

	"voxkey/internal/domain"
)

// Explicit instruction patterns, checked before any heuristic. The
// matched phrase is stripped from the text and the named context wins
// outright.
var explicitPatterns = []struct {
	context  domain.ContextType
	patterns []*regexp.Regexp
}{
	{domain.ContextCodeWindow, compileAll(
		`this is (a )?(code|coding|text) (window|editor|message)`,
		`send (this )?as (a )?(code|coding) (window|message)`,
		`context:\s*code`,
	)},
	{domain.ContextCodingAgent, compileAll(
		`this is (a )?coding agent (request|message)`,
		`send (this )?to (the )?coding agent`,
		`context:\s*coding agent`,
	)},
	{domain.ContextSlack, compileAll(
		`this is (a )?slack message`,
		`send (this )?as (a )?slack message`,
		`context:\s*slack`,
	)},
	{domain.ContextWhatsApp, compileAll(
		`this is (a )?whatsapp message`,
		`send (this )?as (a )?whatsapp message`,
		`context:\s*whatsapp`,
	)},
	{domain.ContextFormalEmail, compileAll(
		`this is (a )?formal email`,
		`send (this )?as (a )?formal email`,
		`context:\s*formal email`,
	)},
	{domain.ContextCasualEmail, compileAll(
		`this is (a )?casual email`,
		`send (this )?as (a )?casual email`,
		`context:\s*casual email`,
	)},
	{domain.ContextCasualMessage, compileAll(
		`this is (a )?casual message`,
		`send (this )?as (a )?casual message`,
		`context:\s*casual message`,
	)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// heuristicRules are applied in order after the explicit scan; the
// first matching rule decides. Order matters: code-window phrasing has
// to beat the generic "code" keyword, and formal salutations have to
// beat the email-keyword rule.
var heuristicRules = []struct {
	context domain.ContextType
	match   func(lower string) bool
}{
	{domain.ContextCodeWindow, containsAny(
		"code window", "coding window", "in a code", "in code", "im in a code", "i'm in a code",
		"text editor", "in a text editor", "i'm in a text editor", "editor window", "code editor",
	)},
	{domain.ContextCodingAgent, containsAny(
		"cursor", "code", "coding", "agent", "programming", "debug", "function", "variable",
	)},
	{domain.ContextSlack, containsAny("slack", "channel", "thread")},
	{domain.ContextWhatsApp, containsAny("whatsapp", "chat", "message")},
	{domain.ContextFormalEmail, containsAny(
		"dear sir", "dear madam", "to whom it may concern", "yours faithfully", "yours sincerely",
	)},
	{domain.ContextFormalEmail, func(lower string) bool {
		return containsAny("email", "mail")(lower) &&
			containsAny("meeting", "proposal", "contract", "business")(lower)
	}},
	{domain.ContextCasualEmail, containsAny("hi", "hello", "hey", "cheers", "thanks")},
}

func containsAny(phrases ...string) func(string) bool {
	return func(lower string) bool {
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}
}

var formalConnectives = containsAny("please", "kindly", "regarding", "furthermore", "however")

// DetectContext resolves the communication context of dictated text.
// Explicit instructions override heuristics and are stripped from the
// returned text; otherwise heuristics apply in order, and length plus
// formality decide the fallback.
func DetectContext(text string) (string, domain.ContextType) {
	stripped, explicit := extractExplicitContext(text)
	if explicit != "" {
		if stripped == "" {
			stripped = text
		}
		return stripped, explicit
	}
	return text, detectHeuristic(text)
}

// extractExplicitContext scans for an instruction phrase. The match is
// located on the lowercased text but removed from the original so
// casing outside the phrase survives.
func extractExplicitContext(text string) (string, domain.ContextType) {
	lowered := strings.ToLower(text)
	for _, group := range explicitPatterns {
		for _, pattern := range group.patterns {
			loc := pattern.FindStringIndex(lowered)
			if loc == nil {
				continue
			}
			cleaned := strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
			return cleaned, group.context
		}
	}
	return text, ""
}

func detectHeuristic(text string) domain.ContextType {
	lower := strings.ToLower(text)

	for _, rule := range heuristicRules {
		if rule.match(lower) {
			return rule.context
		}
	}

	// Longer texts tend to be emails; formal connectives tip them into
	// formal territory. Short texts default to casual messages.
	if len(strings.Fields(text)) > 50 {
		if formalConnectives(lower) {
			return domain.ContextFormalEmail
		}
		return domain.ContextCasualEmail
	}
	return domain.ContextCasualMessage
}
