package summarizer

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docpress/internal/chunker"
	"github.com/dgallion1/docpress/internal/patterns"
	"github.com/dgallion1/docpress/internal/textutil"
)

// Priority ranks how strongly an item must survive compression.
type Priority string

const (
	PriorityStandard Priority = "standard"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Explainability records why an item was kept and what was cut. Chunk
// records fill the first block; aggregate records fill the second.
type Explainability struct {
	InclusionReason      string   `json:"inclusion_reason"`
	StructuralRole       string   `json:"structural_role"`
	PreservationPriority Priority `json:"preservation_priority"`
	CriticalContentFound []string `json:"critical_content_found"`
	SectionContext       string   `json:"section_context,omitempty"`
	StrategyReason       string   `json:"strategy_reason,omitempty"`
	Note                 string   `json:"note,omitempty"`
	CompressionApplied   *bool    `json:"compression_applied,omitempty"`
	WordsRemoved         *int     `json:"words_removed,omitempty"`
	RemovalPercentage    string   `json:"removal_percentage,omitempty"`
	ContentRemoved       []string `json:"content_removed,omitempty"`

	ChildSummaryCount      *int     `json:"child_summary_count,omitempty"`
	ChildSummariesIncluded []int    `json:"child_summaries_included,omitempty"`
	SectionsCovered        []string `json:"sections_covered,omitempty"`
	TotalCriticalPreserved *int     `json:"total_critical_preserved,omitempty"`
	AvgConfidence          *float64 `json:"avg_confidence,omitempty"`
	CompressionNote        string   `json:"compression_note,omitempty"`
}

// explain builds the pre-compression record for c.
func explain(c chunker.Chunk) Explainability {
	e := Explainability{CriticalContentFound: []string{}}

	switch c.HeaderLevel {
	case 1:
		e.StructuralRole = "Section header"
	case 2:
		e.StructuralRole = "Subsection header"
	default:
		e.StructuralRole = "Content body"
	}

	switch {
	case c.Type == chunker.Critical:
		e.InclusionReason = "Contains decision-critical information that cannot be lost"
		e.PreservationPriority = PriorityCritical
	case c.Type == chunker.Header:
		e.InclusionReason = "Provides structural context and navigation reference"
		e.PreservationPriority = PriorityHigh
	case c.ContainsNumbers && c.ContainsDates:
		e.InclusionReason = "Contains temporal and quantitative data relevant to decisions"
		e.PreservationPriority = PriorityHigh
	case c.ContainsExceptions:
		e.InclusionReason = "Contains policy exceptions that modify standard rules"
		e.PreservationPriority = PriorityCritical
	case c.ContainsRisks:
		e.InclusionReason = "Contains risk warnings or compliance alerts"
		e.PreservationPriority = PriorityCritical
	default:
		e.InclusionReason = "Standard content providing context and supporting information"
		e.PreservationPriority = PriorityStandard
	}

	if c.ContainsNumbers {
		for _, n := range firstN(patterns.QuantityMention.FindAllString(c.Text, -1), 3) {
			e.CriticalContentFound = append(e.CriticalContentFound, "Number: "+n)
		}
	}
	if c.ContainsDates {
		for _, d := range firstN(patterns.Date.FindAllString(c.Text, -1), 2) {
			e.CriticalContentFound = append(e.CriticalContentFound, "Date: "+d)
		}
	}
	if c.ContainsExceptions {
		e.CriticalContentFound = append(e.CriticalContentFound, "Exception clause detected")
	}
	if c.ContainsRisks {
		e.CriticalContentFound = append(e.CriticalContentFound, "Risk alert detected")
	}
	if c.ContainsContradictions {
		e.CriticalContentFound = append(e.CriticalContentFound, "Contradiction detected (requires human review)")
	}

	if c.SectionID != "" && c.SectionID != "uncategorized" {
		e.SectionContext = fmt.Sprintf("Part of Section %s", c.SectionID)
	}
	return e
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// RemovedContent labels the kinds of material a summary dropped.
func RemovedContent(original, summary string) []string {
	var removed []string
	lo, ls := strings.ToLower(original), strings.ToLower(summary)

	if strings.Contains(lo, "example") && !strings.Contains(ls, "example") {
		removed = append(removed, "Detailed examples and case studies")
	}
	if strings.Count(original, ".")+1 > (strings.Count(summary, ".")+1)*2 {
		removed = append(removed, "Elaborative explanations and context")
	}
	words := strings.Fields(lo)
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	if float64(len(unique)) < float64(len(words))*0.7 {
		removed = append(removed, "Redundant and repetitive statements")
	}
	if len(original) > len(summary)*3 {
		removed = append(removed, "Narrative background and historical context")
	}

	if len(removed) == 0 {
		return []string{"Non-critical supporting details"}
	}
	return removed
}

// CriticalSnippets captures text around every salience match, 50 characters
// either side of the match start, de-duplicated and capped at 10.
func CriticalSnippets(text string) []string {
	const (
		radius = 50
		limit  = 10
	)
	out := []string{}
	seen := make(map[string]bool)
	for _, p := range patterns.SaliencePatterns {
		for _, loc := range p.Pattern.FindAllStringIndex(text, -1) {
			snip := textutil.Context(text, loc[0], loc[0], radius)
			if snip == "" || seen[snip] {
				continue
			}
			seen[snip] = true
			out = append(out, snip)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// Confidence scores a summary from its compression ratio and how many
// critical snippets kept their numbers.
func Confidence(original, summary string, critical []string) float64 {
	conf := 0.5

	orig := textutil.WordCount(original)
	ratio := 0.0
	if orig > 0 {
		ratio = float64(textutil.WordCount(summary)) / float64(orig)
	}
	switch {
	case ratio >= 0.15 && ratio <= 0.4:
		conf += 0.3
	case ratio > 0.5:
		conf -= 0.2
	case ratio < 0.1:
		conf += 0.1
	}

	if len(critical) > 0 {
		preserved := 0
		for _, snip := range critical {
			for _, tok := range patterns.Number.FindAllString(snip, -1) {
				if strings.Contains(summary, tok) {
					preserved++
					break
				}
			}
		}
		conf += float64(preserved) / float64(len(critical)) * 0.3
	}

	return clamp01(conf)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
