// Package summarizer turns one chunk into a scored, explained summary.
package summarizer

import (
	"context"
	"fmt"
	"time"

	"github.com/dgallion1/docpress/internal/chunker"
	"github.com/dgallion1/docpress/internal/events"
	"github.com/dgallion1/docpress/internal/extractive"
	"github.com/dgallion1/docpress/internal/textutil"
)

const (
	passThroughWords = 50
	shortTextWords   = 200

	defaultRatio       = 0.35
	criticalRatio      = 0.4
	criticalRetryRatio = 0.3
	criticalCeiling    = 0.8
	hybridPreRatio     = 0.5
	safetyRatio        = 0.25

	maxInjectedSnippets = 3
)

// Level is a tier of the summary hierarchy.
type Level string

const (
	LevelChunk    Level = "chunk"
	LevelSection  Level = "section"
	LevelDocument Level = "document"
)

// Result is the summary of one chunk, section or document.
type Result struct {
	SummaryText       string         `json:"summary_text"`
	OriginalWords     int            `json:"original_words"`
	SummaryWords      int            `json:"summary_words"`
	CompressionRatio  float64        `json:"compression_ratio"`
	Strategy          StrategyName   `json:"strategy"`
	ProcessingTime    time.Duration  `json:"processing_time"`
	SourceChunks      []int          `json:"source_chunks"`
	SourcePages       []int          `json:"source_pages"`
	Confidence        float64        `json:"confidence"`
	PreservedCritical []string       `json:"preserved_critical"`
	Level             Level          `json:"level"`
	SectionID         string         `json:"section_id,omitempty"`
	Explainability    Explainability `json:"explainability"`
}

// Options configures a Summarizer.
type Options struct {
	// Default is the strategy used when chunk properties do not force one.
	Default StrategyName
	// Generator backs the abstractive and hybrid strategies. Optional.
	Generator Generator
	// Observer is told about generator fallbacks. Optional.
	Observer events.Observer
}

// Summarizer summarizes chunks. It is safe for concurrent use when its
// Generator and Observer are.
type Summarizer struct {
	engine   *extractive.Engine
	def      StrategyName
	gen      Generator
	observer events.Observer
}

// New builds a Summarizer.
func New(opts Options) *Summarizer {
	s := &Summarizer{
		engine:   extractive.New(),
		def:      opts.Default,
		gen:      opts.Generator,
		observer: opts.Observer,
	}
	if s.def == "" {
		s.def = NameExtractive
	}
	if s.observer == nil {
		s.observer = events.Nop
	}
	return s
}

// Extractive exposes the underlying sentence extractor.
func (s *Summarizer) Extractive() *extractive.Engine { return s.engine }

// Summarize produces the chunk-level summary of c. It never fails: a
// generator error degrades to extractive output.
func (s *Summarizer) Summarize(ctx context.Context, c chunker.Chunk) Result {
	return s.summarize(ctx, c, s.def)
}

func (s *Summarizer) summarize(ctx context.Context, c chunker.Chunk, def StrategyName) Result {
	start := time.Now()
	words := textutil.WordCount(c.Text)
	exp := explain(c)

	res := Result{
		OriginalWords: words,
		SourceChunks:  []int{c.ID},
		SourcePages:   []int{c.PageNumber},
		Level:         LevelChunk,
		SectionID:     c.SectionID,
	}

	d := Select(c, def)
	if d.PassThrough {
		applied := false
		exp.CompressionApplied = &applied
		res.SummaryText = c.Text
		res.SummaryWords = words
		res.CompressionRatio = 1.0
		res.Strategy = NameExtractive
		res.Confidence = 1.0
		res.PreservedCritical = []string{}
		res.Explainability = exp
		return res
	}

	critical := CriticalSnippets(c.Text)
	exp.StrategyReason = d.Reason

	r := &run{s: s, text: c.Text, words: words, critical: critical}
	summary := d.Strategy.apply(ctx, r)
	if r.fallback != nil {
		s.observer.Observe(events.Event{
			Stage:    events.StageSummarize,
			Kind:     events.KindFallback,
			ChunkID:  c.ID,
			Strategy: string(d.Strategy.Name()),
			Err:      r.fallback,
		})
	}

	if textutil.WordCount(summary) >= words {
		summary = s.engine.Summarize(c.Text, safetyRatio)
		r.used = NameExtractive
		exp.Note = "Expansion prevented - forced stricter compression"
	}
	summaryWords := textutil.WordCount(summary)

	applied := true
	removed := max(0, words-summaryWords)
	exp.CompressionApplied = &applied
	exp.WordsRemoved = &removed
	exp.RemovalPercentage = fmt.Sprintf("%.1f%%", float64(removed)/float64(words)*100)
	exp.ContentRemoved = RemovedContent(c.Text, summary)

	res.SummaryText = summary
	res.SummaryWords = summaryWords
	res.CompressionRatio = float64(summaryWords) / float64(words)
	res.Strategy = r.used
	res.ProcessingTime = time.Since(start)
	res.Confidence = Confidence(c.Text, summary, critical)
	res.PreservedCritical = critical
	res.Explainability = exp
	return res
}

// SummarizeText runs the chunk pipeline over free text as a synthetic
// standard chunk with no flags, always extractively. Aggregation uses it to
// re-summarize concatenated summaries.
func (s *Summarizer) SummarizeText(ctx context.Context, text string, page int) Result {
	c := chunker.Chunk{
		ID:         -1,
		Text:       text,
		PageNumber: page,
		WordCount:  textutil.WordCount(text),
		Type:       chunker.Standard,
	}
	return s.summarize(ctx, c, NameExtractive)
}
