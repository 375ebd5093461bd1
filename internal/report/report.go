// Package report assembles the compression hierarchy, critical facts and
// quality metrics into the serialized report.
package report

import (
	"encoding/json"
	"time"

	"github.com/dgallion1/docpress/internal/summarizer"
)

// Level names, in report order.
const (
	LevelRaw      = "raw"
	LevelChunk    = "chunk"
	LevelSection  = "section"
	LevelDocument = "document"
)

// Section sentinels.
const (
	Uncategorized  = "uncategorized"
	UnknownSection = "unknown"
)

// Report is the result of one compression run. It is built once and not
// modified afterwards.
type Report struct {
	DocumentName    string         `json:"document_name"`
	CompressionDate time.Time      `json:"compression_date"`
	OriginalStats   OriginalStats  `json:"original_stats"`
	Levels          []LevelStat    `json:"levels"`
	QualityMetrics  QualityMetrics `json:"quality_metrics"`
	CriticalFacts   []CriticalFact `json:"critical_facts_summary"`
	Decisions       []Decision     `json:"compression_decisions"`
}

// OriginalStats summarizes the uncompressed document.
type OriginalStats struct {
	Pages              int `json:"pages"`
	Words              int `json:"words"`
	StructuralElements int `json:"structural_elements"`
}

// LevelStat describes one tier of the hierarchy.
type LevelStat struct {
	LevelName        string  `json:"level_name"`
	ItemCount        int     `json:"item_count"`
	TotalWords       int     `json:"total_words"`
	CompressionRatio float64 `json:"compression_ratio"`
	Items            []Item  `json:"items"`
}

// MarshalJSON always writes items, empty or not, except on the raw level,
// which has none.
func (l LevelStat) MarshalJSON() ([]byte, error) {
	type level LevelStat
	if l.LevelName == LevelRaw {
		return json.Marshal(struct {
			level
			Items []Item `json:"items,omitempty"`
		}{level: level(l), Items: l.Items})
	}
	if l.Items == nil {
		l.Items = []Item{}
	}
	return json.Marshal(level(l))
}

// Item is one summary within a level. Chunk items fill every field; section
// items add only SectionID; the document item has neither.
type Item struct {
	ChunkID        *int                      `json:"chunk_id,omitempty"`
	SectionID      string                    `json:"section_id,omitempty"`
	Summary        string                    `json:"summary"`
	Confidence     float64                   `json:"confidence"`
	Explainability summarizer.Explainability `json:"explainability"`
	SourceRange    *[2]int                   `json:"source_range,omitempty"`
	PageNumber     *int                      `json:"page_number,omitempty"`
	// ParentChunkID is the header chunk a chunk item sits under.
	ParentChunkID *int `json:"parent_chunk_id,omitempty"`
}

// QualityMetrics scores the run as a whole.
type QualityMetrics struct {
	InformationLossScore     float64 `json:"information_loss_score"`
	CriticalPreservationRate float64 `json:"critical_preservation_rate"`
	ContradictionCount       int     `json:"contradiction_count"`
}

// CriticalFact is a chunk that must survive review, paired with its summary.
type CriticalFact struct {
	Section     string      `json:"section"`
	Page        int         `json:"page"`
	Type        string      `json:"type"`
	Summary     string      `json:"summary"`
	Details     FactDetails `json:"details"`
	SourceRange [2]int      `json:"source_range"`
	ChunkID     int         `json:"chunk_id"`
}

// FactDetails carries the flags that made a chunk critical.
type FactDetails struct {
	HasException     bool `json:"has_exception"`
	HasRisk          bool `json:"has_risk"`
	HasContradiction bool `json:"has_contradiction"`
	HasNumbers       bool `json:"has_numbers"`
}

// Decision is one entry of the run's rationale.
type Decision struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
}

// Level returns the named level.
func (r *Report) Level(name string) (LevelStat, bool) {
	for _, l := range r.Levels {
		if l.LevelName == name {
			return l, true
		}
	}
	return LevelStat{}, false
}

// DocumentSummary returns the text of the document-level summary.
func (r *Report) DocumentSummary() string {
	l, ok := r.Level(LevelDocument)
	if !ok || len(l.Items) == 0 {
		return ""
	}
	return l.Items[0].Summary
}

// FinalRatio is the document summary length over the original word count.
func (r *Report) FinalRatio() float64 {
	l, ok := r.Level(LevelDocument)
	if !ok {
		return 1.0
	}
	return ratio(l.TotalWords, r.OriginalStats.Words)
}
