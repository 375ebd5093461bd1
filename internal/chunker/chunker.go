package chunker

import (
	"strings"

	"github.com/dgallion1/docpress/internal/document"
	"github.com/dgallion1/docpress/internal/patterns"
	"github.com/dgallion1/docpress/internal/textutil"
)

const (
	// pageFlushWords is the smallest remainder flushed at a page boundary.
	pageFlushWords = 30
	// standaloneHeaderWords is the length past which a header is emitted
	// as its own chunk.
	standaloneHeaderWords = 20
	// criticalMinWords is the length a chunk needs to be typed critical.
	criticalMinWords = 20
)

// Config controls chunking behavior.
type Config struct {
	MinWords     int // Smallest buffer flushed when a header arrives.
	MaxWords     int // Buffer size that forces a split of non-critical text.
	OverlapWords int // Words carried from a flushed chunk into the next buffer.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinWords:     75,
		MaxWords:     300,
		OverlapWords: 20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinWords <= 0 {
		c.MinWords = d.MinWords
	}
	if c.MaxWords <= 0 {
		c.MaxWords = d.MaxWords
	}
	if c.OverlapWords < 0 {
		c.OverlapWords = d.OverlapWords
	}
	return c
}

// Split walks the pages of doc and produces typed chunks in emission order.
// The result depends only on doc and cfg.
func Split(doc *document.Document, cfg Config) []Chunk {
	if doc == nil {
		return nil
	}
	b := &builder{cfg: cfg.withDefaults()}
	offset := 0
	for _, page := range doc.Pages {
		b.page(page, offset)
		offset += len(page.Text) + 1
	}
	link(b.chunks)
	return b.chunks
}

// builder holds the running state of one Split call.
type builder struct {
	cfg     Config
	chunks  []Chunk
	nextID  int
	section string

	buf      string
	bufStart int
	bufLevel int
}

func (b *builder) page(page document.Page, offset int) {
	b.buf, b.bufStart, b.bufLevel = "", offset, 0

	cursor := 0
	for _, para := range patterns.SplitParagraphs(page.Text) {
		pos := offset + cursor
		if idx := strings.Index(page.Text[cursor:], para); idx >= 0 {
			pos = offset + cursor + idx
			cursor += idx + len(para)
		}

		if level, id := patterns.HeaderLevel(para); level > 0 {
			b.header(para, pos, level, id, page.PageNumber)
			continue
		}
		b.body(para, pos, page.PageNumber)
	}

	if b.buf != "" && textutil.WordCount(b.buf) >= pageFlushWords {
		b.emit(b.buf, b.bufStart, b.bufLevel, page.PageNumber)
	}
	b.buf = ""
}

// header flushes the buffer under the section it was collected in, then
// opens the new section.
func (b *builder) header(para string, pos, level int, id string, page int) {
	if b.buf != "" && textutil.WordCount(b.buf) >= b.cfg.MinWords {
		b.emit(b.buf, b.bufStart, b.bufLevel, page)
	}
	if id != "" {
		b.section = id
	}
	b.buf, b.bufStart, b.bufLevel = para, pos, level

	if textutil.WordCount(para) > standaloneHeaderWords {
		b.emit(para, pos, level, page)
		b.buf, b.bufStart, b.bufLevel = "", pos+len(para), 0
	}
}

func (b *builder) body(para string, pos, page int) {
	candidate := para
	if b.buf != "" {
		candidate = b.buf + "\n" + para
	}

	if b.buf != "" && textutil.WordCount(candidate) > b.cfg.MaxWords && !patterns.IsCritical(para) {
		b.emit(b.buf, b.bufStart, b.bufLevel, page)
		b.bufLevel = 0
		if overlap := textutil.LastWords(b.buf, b.cfg.OverlapWords); overlap != "" {
			b.buf = overlap + "\n" + para
			b.bufStart = max(0, pos-len(overlap))
		} else {
			b.buf, b.bufStart = para, pos
		}
		return
	}

	if b.buf == "" {
		b.bufStart = pos
	}
	b.buf = candidate
}

func (b *builder) emit(text string, start, level, page int) {
	b.chunks = append(b.chunks, New(b.nextID, text, page, b.section, start, level))
	b.nextID++
}

// link points every body chunk at the latest header chunk of its section.
func link(chunks []Chunk) {
	header := make(map[string]int)
	for i := range chunks {
		c := &chunks[i]
		if c.SectionID == "" {
			continue
		}
		if c.Type == Header {
			header[c.SectionID] = c.ID
			continue
		}
		if id, ok := header[c.SectionID]; ok && c.HeaderLevel == 0 {
			parent := id
			c.ParentID = &parent
		}
	}
}
