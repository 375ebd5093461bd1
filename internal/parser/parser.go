package parser

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docpress/internal/document"
)

// Parser converts raw document bytes into the page/structure model.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Document, error)
}

// Options tunes parser behavior.
type Options struct {
	// FallbackPdftotext shells out to pdftotext when the Go PDF reader fails.
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// LoadFile parses the file at path. A missing file yields an error matching
// document.ErrNotFound; anything else that goes wrong is a
// *document.LoadError.
func LoadFile(path string, opts Options) (*document.Document, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, document.ErrNotFound)
	}
	if err != nil {
		return nil, &document.LoadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &document.LoadError{Path: path, Err: errors.New("is a directory")}
	}

	p, err := ForFile(path, opts)
	if err != nil {
		return nil, &document.LoadError{Path: path, Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &document.LoadError{Path: path, Err: err}
	}
	defer f.Close()

	doc, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, &document.LoadError{Path: path, Err: err}
	}
	doc.Metadata.FileSize = info.Size()
	return doc, nil
}

// Parse parses r with the parser registered for filename's extension.
func Parse(r io.Reader, filename string, opts Options) (*document.Document, error) {
	p, err := ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	return p.Parse(r, filename)
}

func formatOf(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func titleOf(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}
