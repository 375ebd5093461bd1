// Package document is the page and structure model the compression engine
// consumes. Parsers build it; every later stage only reads it.
package document

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docpress/internal/patterns"
	"github.com/dgallion1/docpress/internal/textutil"
)

// ElementType classifies one line of page text.
type ElementType string

const (
	Header        ElementType = "header"
	Paragraph     ElementType = "paragraph"
	Exception     ElementType = "exception"
	Risk          ElementType = "risk"
	Contradiction ElementType = "contradiction"
	Threshold     ElementType = "threshold"
)

func (t ElementType) valid() bool {
	switch t {
	case Header, Paragraph, Exception, Risk, Contradiction, Threshold:
		return true
	}
	return false
}

// Block is a structural unit reported by a parser (a heading, a paragraph,
// a table row batch). Blocks are informational; chunking reads page text.
type Block struct {
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Level int    `json:"level,omitempty"`
}

// Page is one page of extracted text.
type Page struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	WordCount  int     `json:"word_count"`
	Blocks     []Block `json:"blocks,omitempty"`
}

// NewPage builds a page, deriving its word count from text.
func NewPage(number int, text string, blocks []Block) (Page, error) {
	if number < 1 {
		return Page{}, fmt.Errorf("page number must be >= 1, got %d", number)
	}
	text = strings.TrimSpace(text)
	return Page{
		PageNumber: number,
		Text:       text,
		WordCount:  textutil.WordCount(text),
		Blocks:     blocks,
	}, nil
}

// ElementMeta carries per-line facts gathered during structure analysis.
type ElementMeta struct {
	LineNumber int  `json:"line_number"`
	HasNumbers bool `json:"has_numbers"`
	WordCount  int  `json:"word_count"`
}

// StructureElement is one classified line of a page.
type StructureElement struct {
	ElementType ElementType `json:"element_type"`
	Content     string      `json:"content"`
	Level       int         `json:"level"`
	PageNumber  int         `json:"page_number"`
	Metadata    ElementMeta `json:"metadata"`
}

// NewStructureElement validates and builds a structure element.
func NewStructureElement(typ ElementType, content string, level, page int, meta ElementMeta) (StructureElement, error) {
	if !typ.valid() {
		return StructureElement{}, fmt.Errorf("unknown element type %q", typ)
	}
	if level < 0 {
		return StructureElement{}, fmt.Errorf("element level must be >= 0, got %d", level)
	}
	if page < 1 {
		return StructureElement{}, fmt.Errorf("element page must be >= 1, got %d", page)
	}
	return StructureElement{
		ElementType: typ,
		Content:     content,
		Level:       level,
		PageNumber:  page,
		Metadata:    meta,
	}, nil
}

// CrossReference is an internal pointer like "see Section 4.2".
type CrossReference struct {
	Type    string `json:"type"`
	Target  string `json:"target"`
	Context string `json:"context"`
}

// Metadata describes the source file.
type Metadata struct {
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Creator   string `json:"creator,omitempty"`
	Producer  string `json:"producer,omitempty"`
	Format    string `json:"format,omitempty"`
	PageCount int    `json:"page_count"` // physical pages; parsers may report more than len(Pages)
	FileSize  int64  `json:"file_size"`
}

// Stats summarizes the loaded document.
type Stats struct {
	TotalPages         int `json:"total_pages"`
	TotalWords         int `json:"total_words"`
	StructuralElements int `json:"structural_elements"`
}

// Document is the full page/structure model for one source file.
type Document struct {
	Name            string             `json:"name"`
	Metadata        Metadata           `json:"metadata"`
	Pages           []Page             `json:"pages"`
	Structure       []StructureElement `json:"structure"`
	CrossReferences []CrossReference   `json:"cross_references"`
	Stats           Stats              `json:"stats"`
}

// New assembles a document from parsed pages. Page numbers must be strictly
// increasing. Structure, cross references and stats are derived here.
func New(name string, meta Metadata, pages []Page) (*Document, error) {
	if name == "" {
		return nil, fmt.Errorf("document name is required")
	}
	prev := 0
	for _, p := range pages {
		if p.PageNumber <= prev {
			return nil, fmt.Errorf("page %d out of order after page %d", p.PageNumber, prev)
		}
		prev = p.PageNumber
	}

	d := &Document{
		Name:     name,
		Metadata: meta,
		Pages:    pages,
	}
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		elems, err := AnalyzeStructure(p.Text, p.PageNumber)
		if err != nil {
			return nil, fmt.Errorf("page %d structure: %w", p.PageNumber, err)
		}
		d.Structure = append(d.Structure, elems...)
		d.Stats.TotalWords += p.WordCount
		texts = append(texts, p.Text)
	}
	d.CrossReferences = DetectCrossReferences(strings.Join(texts, "\n"))
	d.Stats.TotalPages = len(pages)
	d.Stats.StructuralElements = len(d.Structure)
	if d.Metadata.PageCount == 0 {
		d.Metadata.PageCount = len(pages)
	}
	return d, nil
}

// AnalyzeStructure classifies each non-trivial line of a page.
func AnalyzeStructure(text string, page int) ([]StructureElement, error) {
	var out []StructureElement
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 {
			continue
		}
		typ, level := classifyLine(line)
		e, err := NewStructureElement(typ, line, level, page, ElementMeta{
			LineNumber: i,
			HasNumbers: strings.ContainsAny(line, "0123456789"),
			WordCount:  textutil.WordCount(line),
		})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func classifyLine(line string) (ElementType, int) {
	switch {
	case patterns.LoaderHeader.MatchString(line):
		return Header, 1
	case patterns.LoaderSubheader.MatchString(line):
		return Header, 2
	case patterns.IsUpper(line) && len(line) > 10 && len(line) < 100:
		return Header, 2
	case patterns.LoaderException.MatchString(line):
		return Exception, 0
	case patterns.LoaderRisk.MatchString(line):
		return Risk, 0
	case patterns.LoaderContradiction.MatchString(line):
		return Contradiction, 0
	case patterns.LoaderThreshold.MatchString(line):
		return Threshold, 0
	}
	return Paragraph, 0
}

// DetectCrossReferences returns each distinct section target in order of
// first mention.
func DetectCrossReferences(text string) []CrossReference {
	seen := make(map[string]bool)
	var refs []CrossReference
	for _, m := range patterns.CrossReference.FindAllStringSubmatch(text, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		refs = append(refs, CrossReference{Type: "section_reference", Target: m[1], Context: "internal"})
	}
	return refs
}

// CountElements counts structure elements of the given type.
func (d *Document) CountElements(typ ElementType) int {
	n := 0
	for _, e := range d.Structure {
		if e.ElementType == typ {
			n++
		}
	}
	return n
}

// Text joins page texts with blank lines.
func (d *Document) Text() string {
	texts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n\n")
}
