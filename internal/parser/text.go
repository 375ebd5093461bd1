package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docpress/internal/document"
)

// TextParser handles plain text files. Form feeds separate pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var pages []document.Page
	for i, raw := range strings.Split(string(src), "\f") {
		w, err := textParagraphs(raw)
		if err != nil {
			return nil, err
		}
		if w.empty() {
			continue
		}
		page, err := w.page(i + 1)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	meta := document.Metadata{Title: titleOf(filename), Format: formatOf(filename)}
	return document.New(filename, meta, pages)
}

// textParagraphs groups lines into blank-line separated paragraphs.
func textParagraphs(raw string) (*pageWriter, error) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	w := &pageWriter{}
	var current strings.Builder
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				w.paragraph("paragraph", current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		w.paragraph("paragraph", current.String())
	}
	return w, scanner.Err()
}
