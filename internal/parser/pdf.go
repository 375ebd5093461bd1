package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/docpress/internal/document"
	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if available. Page numbers follow the PDF;
// pages without text are skipped.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "docpress-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	meta := document.Metadata{Title: titleOf(filename), Format: "pdf"}
	texts, err := extractPDFPages(tmpPath, &meta)
	if err != nil && p.FallbackPdftotext {
		var text string
		text, err = extractPdftotext(tmpPath)
		texts = strings.Split(text, "\f")
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	// The page tree count includes image-only pages the text pass skips.
	meta.PageCount = len(texts)
	if n, err := pdfPageCount(tmpPath); err == nil && n > 0 {
		meta.PageCount = n
	}

	var pages []document.Page
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		page, err := document.NewPage(i+1, text, nil)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return document.New(filename, meta, pages)
}

// extractPDFPages returns one string per page, in page order, and fills
// meta from the document info dictionary.
func extractPDFPages(path string, meta *document.Metadata) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if info := reader.Trailer().Key("Info"); !info.IsNull() {
		if t := strings.TrimSpace(info.Key("Title").Text()); t != "" {
			meta.Title = t
		}
		meta.Author = strings.TrimSpace(info.Key("Author").Text())
		meta.Subject = strings.TrimSpace(info.Key("Subject").Text())
		meta.Creator = strings.TrimSpace(info.Key("Creator").Text())
		meta.Producer = strings.TrimSpace(info.Key("Producer").Text())
	}

	numPages := reader.NumPage()
	pages := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}

func pdfPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return api.PageCount(f, nil)
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return strings.TrimSuffix(string(out), "\f"), nil
}
