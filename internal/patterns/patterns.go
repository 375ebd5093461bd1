// Package patterns holds the classification regexes shared by the loader,
// chunker and summarizer. Every table is compiled once at package init and
// never modified afterwards.
package patterns

import (
	"regexp"
	"strings"
	"unicode"
)

// Flag predicates set on chunks.
var (
	Number        = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	Date          = regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s*\d{4}\b`)
	Exception     = regexp.MustCompile(`(?i)\bEXCEPTION|EXCEPTION:|unless|only if|however\b`)
	Risk          = regexp.MustCompile(`(?i)\bRISK|WARNING|ALERT|CAUTION|DANGER\b`)
	Contradiction = regexp.MustCompile(`(?i)\bCONTRADICTION|CONFLICT|vs\.|versus\b`)
)

// Header patterns. Both capture the section identifier in group 1.
var (
	SectionHeader    = regexp.MustCompile(`(?i)^(?:SECTION|APPENDIX|CHAPTER)\s+(\d+)`)
	SubsectionHeader = regexp.MustCompile(`^(\d+\.\d+)\s+`)
)

// Paragraph boundaries: blank lines, or a line starting with a structural marker.
var (
	blankLine        = regexp.MustCompile(`\n\s*\n`)
	structuralMarker = regexp.MustCompile(`^(?:SECTION|APPENDIX|CHAPTER|\d+\.\d+)`)
)

// Salience is one named pattern used to weight sentences and pull critical
// snippets out of a chunk.
type Salience struct {
	Name    string
	Pattern *regexp.Regexp
}

// SaliencePatterns is ordered; snippet extraction walks it front to back.
var SaliencePatterns = []Salience{
	{"number", regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:days?|hours?|minutes?|years?|\$|€|£|%|GB|MB|TB)?\b`)},
	{"date", regexp.MustCompile(`(?i)\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s*\d{4}`)},
	{"exception", regexp.MustCompile(`(?i)\b(?:EXCEPTION|unless|except|only if|however|but|although)\b`)},
	{"risk", regexp.MustCompile(`(?i)\b(?:RISK|WARNING|ALERT|CAUTION|DANGER|MUST|REQUIRED|PROHIBITED)\b`)},
	{"threshold", regexp.MustCompile(`(?i)\b(?:minimum|maximum|threshold|limit|at least|at most|no more than|no less than)\b`)},
	{"contradiction", Contradiction},
}

// QuantityMention finds numbers with an optional unit for explainability.
var QuantityMention = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:days?|hours?|years?|%)?\b`)

// Loader patterns used by per-line structure analysis.
var (
	LoaderHeader        = regexp.MustCompile(`(?i)^(SECTION|APPENDIX|CHAPTER)\s+\d+[:.\s]`)
	LoaderSubheader     = regexp.MustCompile(`^\d+\.\d+\s+`)
	LoaderException     = regexp.MustCompile(`(?i)\bEXCEPTION[:\s]`)
	LoaderRisk          = regexp.MustCompile(`(?i)\bRISK|WARNING|ALERT|CAUTION[:\s]`)
	LoaderContradiction = regexp.MustCompile(`(?i)\bCONTRADICTION|CONFLICT`)
	LoaderThreshold     = regexp.MustCompile(`(?i)\b(minimum|maximum|threshold|limit)\b.*\d+`)
	LongDate            = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}\b`)
	CrossReference      = regexp.MustCompile(`(?i)(?:Section|Appendix|Chapter)\s+(\d+(?:\.\d+)*)`)
)

var digit = regexp.MustCompile(`\d`)

// HasSalience reports whether any salience pattern matches s.
func HasSalience(s string) bool {
	for _, p := range SaliencePatterns {
		if p.Pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// IsCritical is the critical-content predicate: a keyword hit, more than
// 15 words, and at least one concrete specific.
func IsCritical(text string) bool {
	keyword := Exception.MatchString(text) || Risk.MatchString(text) || Contradiction.MatchString(text)
	if !keyword || len(strings.Fields(text)) <= 15 {
		return false
	}
	if digit.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range []string{"unless", "only if", "must", "required", "mandatory"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsUpper reports whether s has at least one cased letter and no lowercase
// letters.
func IsUpper(s string) bool {
	cased := false
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			return false
		case unicode.IsUpper(r):
			cased = true
		}
	}
	return cased
}

// HeaderLevel classifies a paragraph as a header. It returns level 0 for
// body text. The id is empty unless the header names its section.
func HeaderLevel(para string) (level int, id string) {
	if m := SectionHeader.FindStringSubmatch(para); m != nil {
		return 1, m[1]
	}
	if m := SubsectionHeader.FindStringSubmatch(para); m != nil {
		return 2, m[1]
	}
	n := len(para)
	if IsUpper(para) && n > 10 && n < 150 && len(strings.Fields(para)) < 15 {
		return 2, ""
	}
	if n < 150 {
		switch {
		case strings.HasPrefix(para, "# "):
			return 2, ""
		case strings.HasPrefix(para, "## "):
			return 3, ""
		}
	}
	return 0, ""
}

// SplitParagraphs splits page text on blank lines and ahead of lines that
// open with a structural marker. Paragraphs of 10 characters or fewer are
// dropped.
func SplitParagraphs(text string) []string {
	var out []string
	for _, block := range blankLine.Split(text, -1) {
		var cur []string
		flush := func() {
			p := strings.TrimSpace(strings.Join(cur, "\n"))
			if len(p) > 10 {
				out = append(out, p)
			}
			cur = cur[:0]
		}
		for i, line := range strings.Split(block, "\n") {
			if i > 0 && structuralMarker.MatchString(line) {
				flush()
			}
			cur = append(cur, line)
		}
		flush()
	}
	return out
}
