package llm

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dgallion1/docpress/internal/textutil"
)

var (
	// ErrEmptyOutput is returned when the model answers with no text.
	ErrEmptyOutput = errors.New("llm returned empty summary")
	// ErrExpansion is returned when the summary is not shorter than its source.
	ErrExpansion = errors.New("llm summary is not shorter than its source")
	// ErrInjection is returned when the summary carries instruction-like text
	// that the source did not.
	ErrInjection = errors.New("llm summary contains injected instructions")
)

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

var preamblePattern = regexp.MustCompile(`(?i)^(here\s+is|here's)\s+(a|the)\s+[^:\n]*summary[^:\n]*:\s*`)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:\\w+)?\\s*(.*?)\\s*```$")

// ValidateSummary rejects model output that is empty, not shorter than the
// source, or echoes prompt-injection phrases absent from the source.
func ValidateSummary(summary, source string) error {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return ErrEmptyOutput
	}
	if n := textutil.WordCount(source); n > 0 && textutil.WordCount(summary) >= n {
		return ErrExpansion
	}
	if injectionPattern.MatchString(summary) && !injectionPattern.MatchString(source) {
		return ErrInjection
	}
	return nil
}

// cleanOutput strips code fences and a leading "Here is a summary:" line.
func cleanOutput(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	s = preamblePattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
