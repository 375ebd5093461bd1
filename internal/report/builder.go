package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dgallion1/docpress/internal/chunker"
	"github.com/dgallion1/docpress/internal/document"
	"github.com/dgallion1/docpress/internal/summarizer"
)

const (
	preservedConfidence = 0.3

	lossRatioWeight      = 0.3
	lossConfidenceWeight = 0.4
	lossCriticalWeight   = 0.3
)

// Input is everything a run produced. ChunkSummaries pairs by index with
// Chunks.All().
type Input struct {
	Document        *document.Document
	Chunks          *chunker.Set
	ChunkSummaries  []summarizer.Result
	Sections        []summarizer.Result
	DocumentSummary summarizer.Result
	DocMaxLength    int
}

// Builder assembles reports. The clock is injectable for tests.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a Builder. A nil clock uses time.Now.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// Build assembles the report for one run.
func (b *Builder) Build(in Input) (*Report, error) {
	if in.Document == nil {
		return nil, fmt.Errorf("report: nil document")
	}
	if in.Chunks == nil {
		in.Chunks = chunker.NewSet(nil)
	}
	chunks := in.Chunks.All()
	if len(chunks) != len(in.ChunkSummaries) {
		return nil, fmt.Errorf("report: %d chunk summaries for %d chunks", len(in.ChunkSummaries), len(chunks))
	}

	stats := OriginalStats{
		Pages:              in.Document.Stats.TotalPages,
		Words:              in.Document.Stats.TotalWords,
		StructuralElements: in.Document.Stats.StructuralElements,
	}
	facts := CriticalFacts(chunks, in.ChunkSummaries)

	r := &Report{
		DocumentName:    filepath.Base(in.Document.Name),
		CompressionDate: b.now().UTC(),
		OriginalStats:   stats,
		CriticalFacts:   facts,
	}

	chunkLevel := chunkLevel(in.Chunks, in.ChunkSummaries, stats.Words)
	sectionLevel := sectionLevel(in.Sections, chunkLevel.TotalWords)
	r.Levels = []LevelStat{
		{
			LevelName:        LevelRaw,
			ItemCount:        len(in.Document.Pages),
			TotalWords:       stats.Words,
			CompressionRatio: 1.0,
		},
		chunkLevel,
		sectionLevel,
		documentLevel(in.DocumentSummary, sectionLevel.TotalWords),
	}

	rate := PreservationRate(chunks, in.ChunkSummaries)
	r.QualityMetrics = QualityMetrics{
		InformationLossScore:     InformationLoss(in.DocumentSummary.SummaryWords, stats.Words, in.ChunkSummaries, rate),
		CriticalPreservationRate: rate,
		ContradictionCount:       Contradictions(in.Document, chunks),
	}
	r.Decisions = decisions(in, chunks, facts)
	return r, nil
}

func chunkLevel(set *chunker.Set, sums []summarizer.Result, rawWords int) LevelStat {
	chunks := set.All()
	l := LevelStat{LevelName: LevelChunk, ItemCount: len(sums), Items: make([]Item, len(sums))}
	for i, s := range sums {
		c := chunks[i]
		l.TotalWords += s.SummaryWords

		id := c.ID
		page := c.PageNumber
		rng := c.SourceRange
		section := c.SectionID
		if section == "" {
			section = Uncategorized
		}
		l.Items[i] = Item{
			ChunkID:        &id,
			SectionID:      section,
			Summary:        s.SummaryText,
			Confidence:     s.Confidence,
			Explainability: s.Explainability,
			SourceRange:    &rng,
			PageNumber:     &page,
		}
		if parent, ok := set.Parent(c); ok {
			pid := parent.ID
			l.Items[i].ParentChunkID = &pid
		}
	}
	l.CompressionRatio = ratio(l.TotalWords, rawWords)
	return l
}

func sectionLevel(sections []summarizer.Result, chunkWords int) LevelStat {
	l := LevelStat{LevelName: LevelSection, ItemCount: len(sections), Items: make([]Item, len(sections))}
	for i, s := range sections {
		l.TotalWords += s.SummaryWords
		section := s.SectionID
		if section == "" {
			section = UnknownSection
		}
		l.Items[i] = Item{
			SectionID:      section,
			Summary:        s.SummaryText,
			Confidence:     s.Confidence,
			Explainability: s.Explainability,
		}
	}
	l.CompressionRatio = ratio(l.TotalWords, chunkWords)
	return l
}

func documentLevel(doc summarizer.Result, sectionWords int) LevelStat {
	return LevelStat{
		LevelName:        LevelDocument,
		ItemCount:        1,
		TotalWords:       doc.SummaryWords,
		CompressionRatio: ratio(doc.SummaryWords, sectionWords),
		Items: []Item{{
			Summary:        doc.SummaryText,
			Confidence:     doc.Confidence,
			Explainability: doc.Explainability,
		}},
	}
}

// CriticalFacts emits one fact per chunk that is critical or flagged for
// risks or exceptions, in chunk order.
func CriticalFacts(chunks []chunker.Chunk, sums []summarizer.Result) []CriticalFact {
	facts := []CriticalFact{}
	for i, c := range chunks {
		if !c.IsCriticalFact() {
			continue
		}
		section := c.SectionID
		if section == "" {
			section = UnknownSection
		}
		facts = append(facts, CriticalFact{
			Section: section,
			Page:    c.PageNumber,
			Type:    "critical",
			Summary: sums[i].SummaryText,
			Details: FactDetails{
				HasException:     c.ContainsExceptions,
				HasRisk:          c.ContainsRisks,
				HasContradiction: c.ContainsContradictions,
				HasNumbers:       c.ContainsNumbers,
			},
			SourceRange: c.SourceRange,
			ChunkID:     c.ID,
		})
	}
	return facts
}

// PreservationRate is the share of critical chunks whose summary confidence
// reached the preservation floor. It is 1.0 when nothing was critical.
func PreservationRate(chunks []chunker.Chunk, sums []summarizer.Result) float64 {
	total, preserved := 0, 0
	for i, c := range chunks {
		if !c.IsCriticalContent() {
			continue
		}
		total++
		if sums[i].Confidence >= preservedConfidence {
			preserved++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(preserved) / float64(total)
}

// InformationLoss combines final compression, mean chunk confidence and
// critical preservation into a score in [0,1]. An empty run scores 0.
func InformationLoss(docWords, totalWords int, sums []summarizer.Result, rate float64) float64 {
	meanConf := 1.0
	if len(sums) > 0 {
		sum := 0.0
		for _, s := range sums {
			sum += s.Confidence
		}
		meanConf = sum / float64(len(sums))
	}
	loss := (1-ratio(docWords, totalWords))*lossRatioWeight +
		(1-meanConf)*lossConfidenceWeight +
		(1-rate)*lossCriticalWeight
	return max(0, min(1, loss))
}

// Contradictions counts structure elements typed contradiction plus chunks
// flagged for contradictions. Overlap is counted twice.
func Contradictions(doc *document.Document, chunks []chunker.Chunk) int {
	n := doc.CountElements(document.Contradiction)
	for _, c := range chunks {
		if c.ContainsContradictions {
			n++
		}
	}
	return n
}

func decisions(in Input, chunks []chunker.Chunk, facts []CriticalFact) []Decision {
	docMax := in.DocMaxLength
	if docMax <= 0 {
		docMax = 300
	}
	return []Decision{
		{
			Decision: "Chunking",
			Rationale: fmt.Sprintf("%d semantic chunks with structural awareness (avg %d words/chunk)",
				len(chunks), in.Chunks.AverageWords()),
		},
		{
			Decision:  "Summarization",
			Rationale: strategyRationale(in.ChunkSummaries),
		},
		{
			Decision: "Critical Content",
			Rationale: fmt.Sprintf("%d critical chunks preserved with %d critical facts extracted",
				in.Chunks.CountType(chunker.Critical), len(facts)),
		},
		{
			Decision:  "Per-Item Explainability",
			Rationale: "Each chunk includes inclusion reason, priority, content removed, and preservation details",
		},
		{
			Decision: "Document Length Optimization",
			Rationale: fmt.Sprintf("Ensured %d words for readable document summary (target: 200-%d words)",
				in.DocumentSummary.SummaryWords, docMax),
		},
		{
			Decision:  "Section Tracking",
			Rationale: fmt.Sprintf("Preserved %d unique section identifiers for traceability", len(in.Chunks.Sections())),
		},
	}
}

func strategyRationale(sums []summarizer.Result) string {
	if len(sums) == 0 {
		return "No chunks to summarize"
	}
	counts := make(map[summarizer.StrategyName]int)
	for _, s := range sums {
		counts[s.Strategy]++
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, string(n))
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%d", n, counts[summarizer.StrategyName(n)])
	}
	return "Per-chunk strategy selection (critical content preserved, short text extractive): " + strings.Join(parts, ", ")
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 1.0
	}
	return float64(num) / float64(den)
}
