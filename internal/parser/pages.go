package parser

import (
	"strings"

	"github.com/dgallion1/docpress/internal/document"
	"github.com/dgallion1/docpress/internal/patterns"
)

// pageWriter accumulates one page of text from structural blocks.
// Paragraphs are separated by blank lines so the chunker sees the same
// boundaries the source format had.
type pageWriter struct {
	paras  []string
	blocks []document.Block
}

// heading writes a heading paragraph. Headings that already carry a
// SECTION or n.n marker are written bare; others get a markdown prefix.
func (w *pageWriter) heading(level int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	line := text
	if !patterns.SectionHeader.MatchString(text) && !patterns.SubsectionHeader.MatchString(text) {
		if level <= 1 {
			line = "# " + text
		} else {
			line = "## " + text
		}
	}
	w.paras = append(w.paras, line)
	w.blocks = append(w.blocks, document.Block{Kind: "heading", Text: text, Level: level})
}

func (w *pageWriter) paragraph(kind, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	w.paras = append(w.paras, text)
	w.blocks = append(w.blocks, document.Block{Kind: kind, Text: text})
}

func (w *pageWriter) empty() bool { return len(w.paras) == 0 }

func (w *pageWriter) page(number int) (document.Page, error) {
	return document.NewPage(number, strings.Join(w.paras, "\n\n"), w.blocks)
}

// single builds a one-page document, or an empty one when w has no text.
func single(filename string, meta document.Metadata, w *pageWriter) (*document.Document, error) {
	var pages []document.Page
	if !w.empty() {
		p, err := w.page(1)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return document.New(filename, meta, pages)
}
