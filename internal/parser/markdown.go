package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/docpress/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. The whole file is
// one page; headings become header paragraphs.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	meta := document.Metadata{Title: titleOf(filename), Format: "markdown"}
	titled := false
	w := &pageWriter{}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := extractText(node, src)
			if node.Level == 1 && !titled && title != "" {
				meta.Title = title
				titled = true
			}
			w.heading(node.Level, title)
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				w.paragraph("list_item", extractText(item, src))
			}
		default:
			w.paragraph(strings.ToLower(n.Kind().String()), extractText(n, src))
		}
	}

	return single(filename, meta, w)
}

// extractText gets the text content of a goldmark AST node. Inline
// children carry the text of container blocks; only leaf blocks such as
// code fences are read from their source lines.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	writeText(&buf, n, src)
	return strings.TrimSpace(buf.String())
}

func writeText(buf *bytes.Buffer, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *ast.Text:
		buf.Write(node.Segment.Value(src))
		switch {
		case node.HardLineBreak():
			buf.WriteByte('\n')
		case node.SoftLineBreak():
			buf.WriteByte(' ')
		}
		return
	case *ast.String:
		buf.Write(node.Value)
		return
	}

	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		writeText(buf, c, src)
		if c.Type() == ast.TypeBlock && c.NextSibling() != nil {
			buf.WriteByte('\n')
		}
	}
}
