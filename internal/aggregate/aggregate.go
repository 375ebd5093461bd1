// Package aggregate folds chunk summaries into section summaries and
// section summaries into one length-bounded document summary.
package aggregate

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dgallion1/docpress/internal/chunker"
	"github.com/dgallion1/docpress/internal/summarizer"
	"github.com/dgallion1/docpress/internal/textutil"
)

// Uncategorized is the section bucket for chunks with no section id.
const Uncategorized = "uncategorized"

const (
	// DefaultDocMaxLength bounds the document summary, in words.
	DefaultDocMaxLength = 300

	documentConfidence = 0.85
	minRatio           = 0.10
	maxRatio           = 0.30
	ratioMargin        = 10

	expandBelowWords = 150
	expandStopWords  = 200
	expandStopMargin = 50
	expandAddMargin  = 20

	ellipsis = "..."
)

// Aggregator builds the upper levels of the hierarchy.
type Aggregator struct {
	sum    *summarizer.Summarizer
	docMax int
}

// New returns an Aggregator. docMaxLength <= 0 uses DefaultDocMaxLength.
func New(sum *summarizer.Summarizer, docMaxLength int) *Aggregator {
	if docMaxLength <= 0 {
		docMaxLength = DefaultDocMaxLength
	}
	return &Aggregator{sum: sum, docMax: docMaxLength}
}

// DocMaxLength returns the configured document word bound.
func (a *Aggregator) DocMaxLength() int { return a.docMax }

// SectionOf resolves the section a chunk summary belongs to.
func SectionOf(set *chunker.Set, r summarizer.Result) string {
	if len(r.SourceChunks) == 0 {
		return Uncategorized
	}
	c, ok := set.ByID(r.SourceChunks[0])
	if !ok || c.SectionID == "" {
		return Uncategorized
	}
	return c.SectionID
}

// Sections groups chunk summaries by section in order of first appearance.
// A lone member is reused verbatim; several are concatenated and
// re-summarized.
func (a *Aggregator) Sections(ctx context.Context, set *chunker.Set, chunks []summarizer.Result) []summarizer.Result {
	var order []string
	groups := make(map[string][]summarizer.Result)
	for _, r := range chunks {
		id := SectionOf(set, r)
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], r)
	}

	out := make([]summarizer.Result, 0, len(order))
	for _, id := range order {
		members := groups[id]
		if len(members) == 1 {
			out = append(out, relabel(members[0], id))
			continue
		}
		out = append(out, a.mergeSection(ctx, id, members))
	}
	return out
}

func relabel(r summarizer.Result, section string) summarizer.Result {
	r.SourceChunks = slices.Clone(r.SourceChunks)
	r.SourcePages = slices.Clone(r.SourcePages)
	r.PreservedCritical = slices.Clone(r.PreservedCritical)
	r.Explainability.CriticalContentFound = slices.Clone(r.Explainability.CriticalContentFound)
	r.Explainability.ContentRemoved = slices.Clone(r.Explainability.ContentRemoved)
	r.SectionID = section
	r.Level = summarizer.LevelSection
	return r
}

func (a *Aggregator) mergeSection(ctx context.Context, id string, members []summarizer.Result) summarizer.Result {
	texts := make([]string, len(members))
	for i, m := range members {
		texts[i] = m.SummaryText
	}
	res := a.sum.SummarizeText(ctx, strings.Join(texts, " "), firstPage(members))

	exp := aggregateExplain(members, summarizer.LevelSection)
	exp.WordsRemoved = res.Explainability.WordsRemoved
	exp.RemovalPercentage = res.Explainability.RemovalPercentage
	exp.Note = res.Explainability.Note

	res.Level = summarizer.LevelSection
	res.SectionID = id
	res.SourceChunks = firstChunks(members)
	res.SourcePages = unionPages(members)
	res.Explainability = exp
	return res
}

// DocumentInfo describes how the document summary was produced.
type DocumentInfo struct {
	CombinedWords int
	Ratio         float64 // extraction ratio; 0 when the text passed through
	PassThrough   bool
	Truncated     bool
	Expanded      bool
}

// Document combines section summaries into one summary of at most
// DocMaxLength words.
func (a *Aggregator) Document(sections []summarizer.Result) (summarizer.Result, DocumentInfo) {
	texts := make([]string, len(sections))
	for i, s := range sections {
		texts[i] = s.SummaryText
	}
	combined := strings.Join(texts, " ")
	n := textutil.WordCount(combined)
	info := DocumentInfo{CombinedWords: n}
	exp := aggregateExplain(sections, summarizer.LevelDocument)

	var text string
	if n <= a.docMax {
		text = combined
		info.PassThrough = true
		exp.CompressionNote = fmt.Sprintf("No summarization applied, already under %d words", a.docMax)
	} else {
		info.Ratio = clamp((float64(a.docMax)-ratioMargin)/float64(n), minRatio, maxRatio)
		text = a.sum.Extractive().Summarize(combined, info.Ratio)
		words := textutil.WordCount(text)
		switch {
		case words > a.docMax:
			text = truncate(text, a.docMax)
			info.Truncated = true
		case words < expandBelowWords && words < a.docMax:
			text, info.Expanded = a.expand(text, sections)
		}
		if textutil.WordCount(text) > a.docMax {
			text = truncate(text, a.docMax)
			info.Truncated = true
		}
		exp.CompressionNote = fmt.Sprintf("Extractive summarization (%.0f%% ratio) applied to %d words, max %d words",
			info.Ratio*100, n, a.docMax)
	}

	words := textutil.WordCount(text)
	ratio := 1.0
	if n > 0 {
		ratio = float64(words) / float64(n)
	}
	return summarizer.Result{
		SummaryText:       text,
		OriginalWords:     n,
		SummaryWords:      words,
		CompressionRatio:  ratio,
		Strategy:          summarizer.NameExtractive,
		SourceChunks:      firstChunks(sections),
		SourcePages:       unionPages(sections),
		Confidence:        documentConfidence,
		PreservedCritical: []string{},
		Level:             summarizer.LevelDocument,
		Explainability:    exp,
	}, info
}

// expand appends the first sentence of section summaries the text, including
// sentences already appended, does not yet contain, staying inside the
// budget margins.
func (a *Aggregator) expand(text string, sections []summarizer.Result) (string, bool) {
	count := textutil.WordCount(text)
	parts := []string{text}
	added := false
	for _, s := range sections {
		if count >= expandStopWords || count >= a.docMax-expandStopMargin {
			break
		}
		sents := textutil.Sentences(s.SummaryText)
		if len(sents) == 0 {
			continue
		}
		sent := strings.TrimSpace(sents[0])
		if len(sent) <= 20 || strings.Contains(strings.Join(parts, " "), sent) {
			continue
		}
		w := textutil.WordCount(sent)
		if count+w > a.docMax-expandAddMargin {
			continue
		}
		if !strings.HasSuffix(sent, ".") && !strings.HasSuffix(sent, "!") && !strings.HasSuffix(sent, "?") {
			sent += "."
		}
		parts = append(parts, sent)
		count += w
		added = true
	}
	return strings.TrimSpace(strings.Join(parts, " ")), added
}

func truncate(text string, n int) string {
	return textutil.TruncateWords(text, n) + ellipsis
}

func aggregateExplain(children []summarizer.Result, level summarizer.Level) summarizer.Explainability {
	count := len(children)
	critical := 0
	conf := 0.0
	sections := make(map[string]bool)
	for _, c := range children {
		critical += len(c.PreservedCritical)
		conf += c.Confidence
		if c.SectionID != "" {
			sections[c.SectionID] = true
		}
	}
	avg := 0.0
	if count > 0 {
		avg = conf / float64(count)
	}
	covered := make([]string, 0, len(sections))
	for id := range sections {
		covered = append(covered, id)
	}
	slices.Sort(covered)

	role := "Section level overview"
	if level == summarizer.LevelDocument {
		role = "Document level overview"
	}
	return summarizer.Explainability{
		InclusionReason:        fmt.Sprintf("Aggregated summary of %d sub-sections", count),
		StructuralRole:         role,
		PreservationPriority:   summarizer.PriorityHigh,
		CriticalContentFound:   []string{},
		ChildSummaryCount:      &count,
		ChildSummariesIncluded: firstChunks(children),
		SectionsCovered:        covered,
		TotalCriticalPreserved: &critical,
		AvgConfidence:          &avg,
	}
}

func firstChunks(rs []summarizer.Result) []int {
	out := []int{}
	for _, r := range rs {
		if len(r.SourceChunks) > 0 {
			out = append(out, r.SourceChunks[0])
		}
	}
	return out
}

func unionPages(rs []summarizer.Result) []int {
	out := []int{}
	for _, r := range rs {
		out = append(out, r.SourcePages...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func firstPage(rs []summarizer.Result) int {
	if len(rs) > 0 && len(rs[0].SourcePages) > 0 {
		return rs[0].SourcePages[0]
	}
	return 0
}

func clamp(f, lo, hi float64) float64 {
	return max(lo, min(hi, f))
}
