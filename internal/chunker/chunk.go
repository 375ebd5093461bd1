package chunker

import (
	"strings"

	"github.com/dgallion1/docpress/internal/patterns"
	"github.com/dgallion1/docpress/internal/textutil"
)

// Type classifies a chunk.
type Type string

const (
	Standard  Type = "standard"
	Critical  Type = "critical"
	Header    Type = "header"
	Reference Type = "reference"
)

// Chunk is a bounded span of document text summarized as one unit.
// Chunks are values; nothing modifies one after Split returns it.
type Chunk struct {
	ID         int    `json:"chunk_id"`
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
	WordCount  int    `json:"word_count"`
	Type       Type   `json:"chunk_type"`
	SectionID  string `json:"section_id,omitempty"`
	// ParentID is the id of the header chunk this chunk belongs under.
	ParentID *int `json:"parent_chunk_id"`

	ContainsNumbers        bool `json:"contains_numbers"`
	ContainsDates          bool `json:"contains_dates"`
	ContainsExceptions     bool `json:"contains_exceptions"`
	ContainsRisks          bool `json:"contains_risks"`
	ContainsContradictions bool `json:"contains_contradictions"`

	HeaderLevel int    `json:"header_level"`
	SourceRange [2]int `json:"source_range"`
}

// New builds a classified chunk. start is the global character offset of
// text within the document.
func New(id int, text string, page int, section string, start, headerLevel int) Chunk {
	trimmed := strings.TrimSpace(text)
	words := textutil.WordCount(trimmed)

	typ := Standard
	switch {
	case headerLevel > 0:
		typ = Header
	case words > criticalMinWords && patterns.IsCritical(trimmed):
		typ = Critical
	}

	return Chunk{
		ID:                     id,
		Text:                   trimmed,
		PageNumber:             page,
		WordCount:              words,
		Type:                   typ,
		SectionID:              section,
		HeaderLevel:            headerLevel,
		SourceRange:            [2]int{start, start + len(text)},
		ContainsNumbers:        patterns.Number.MatchString(trimmed),
		ContainsDates:          patterns.Date.MatchString(trimmed),
		ContainsExceptions:     patterns.Exception.MatchString(trimmed),
		ContainsRisks:          patterns.Risk.MatchString(trimmed),
		ContainsContradictions: patterns.Contradiction.MatchString(trimmed),
	}
}

// IsCriticalContent reports whether the chunk counts toward critical
// preservation: typed critical, or flagged for exceptions, risks or
// contradictions.
func (c Chunk) IsCriticalContent() bool {
	return c.Type == Critical || c.ContainsExceptions || c.ContainsRisks || c.ContainsContradictions
}

// IsCriticalFact reports whether the chunk yields a critical fact.
func (c Chunk) IsCriticalFact() bool {
	return c.Type == Critical || c.ContainsRisks || c.ContainsExceptions
}

// Set is an id-indexed arena over the chunks of one run. Parent links are
// resolved through it, never through pointers between chunks.
type Set struct {
	chunks []Chunk
	index  map[int]int
}

// NewSet copies chunks into a new arena.
func NewSet(chunks []Chunk) *Set {
	s := &Set{
		chunks: make([]Chunk, len(chunks)),
		index:  make(map[int]int, len(chunks)),
	}
	copy(s.chunks, chunks)
	for i, c := range s.chunks {
		s.index[c.ID] = i
	}
	return s
}

// Len returns the number of chunks.
func (s *Set) Len() int { return len(s.chunks) }

// All returns the chunks in emission order.
func (s *Set) All() []Chunk {
	out := make([]Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// ByID looks up a chunk.
func (s *Set) ByID(id int) (Chunk, bool) {
	i, ok := s.index[id]
	if !ok {
		return Chunk{}, false
	}
	return s.chunks[i], true
}

// Parent returns the header chunk c is linked under.
func (s *Set) Parent(c Chunk) (Chunk, bool) {
	if c.ParentID == nil {
		return Chunk{}, false
	}
	return s.ByID(*c.ParentID)
}

// Sections returns distinct non-empty section ids in first-appearance order.
func (s *Set) Sections() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.chunks {
		if c.SectionID != "" && !seen[c.SectionID] {
			seen[c.SectionID] = true
			out = append(out, c.SectionID)
		}
	}
	return out
}

// CountType counts chunks of the given type.
func (s *Set) CountType(t Type) int {
	n := 0
	for _, c := range s.chunks {
		if c.Type == t {
			n++
		}
	}
	return n
}

// AverageWords is the mean chunk length, truncated; 0 for an empty set.
func (s *Set) AverageWords() int {
	if len(s.chunks) == 0 {
		return 0
	}
	total := 0
	for _, c := range s.chunks {
		total += c.WordCount
	}
	return total / len(s.chunks)
}
