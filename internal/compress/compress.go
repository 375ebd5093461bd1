// Package compress runs the full hierarchy: chunk, summarize, aggregate
// and report.
package compress

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docpress/internal/aggregate"
	"github.com/dgallion1/docpress/internal/chunker"
	"github.com/dgallion1/docpress/internal/document"
	"github.com/dgallion1/docpress/internal/events"
	"github.com/dgallion1/docpress/internal/parser"
	"github.com/dgallion1/docpress/internal/report"
	"github.com/dgallion1/docpress/internal/summarizer"
)

// Config controls one compression run.
type Config struct {
	Chunking     chunker.Config
	DocMaxLength int
	Strategy     summarizer.StrategyName
	// Workers bounds parallel chunk summarization. 1 runs sequentially.
	Workers int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Chunking:     chunker.DefaultConfig(),
		DocMaxLength: aggregate.DefaultDocMaxLength,
		Strategy:     summarizer.NameExtractive,
		Workers:      4,
	}
}

// Validate checks ranges. Zero values are filled from DefaultConfig first.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Chunking.MinWords > c.Chunking.MaxWords {
		return fmt.Errorf("min_words (%d) must not exceed max_words (%d)", c.Chunking.MinWords, c.Chunking.MaxWords)
	}
	if c.Chunking.OverlapWords >= c.Chunking.MaxWords {
		return fmt.Errorf("overlap_words (%d) must be less than max_words (%d)", c.Chunking.OverlapWords, c.Chunking.MaxWords)
	}
	if c.DocMaxLength < 50 {
		return fmt.Errorf("doc_max_length must be at least 50, got %d", c.DocMaxLength)
	}
	if _, err := summarizer.ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Chunking.MinWords <= 0 {
		c.Chunking.MinWords = d.Chunking.MinWords
	}
	if c.Chunking.MaxWords <= 0 {
		c.Chunking.MaxWords = d.Chunking.MaxWords
	}
	if c.Chunking.OverlapWords < 0 {
		c.Chunking.OverlapWords = d.Chunking.OverlapWords
	}
	if c.DocMaxLength <= 0 {
		c.DocMaxLength = d.DocMaxLength
	}
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}

// Run holds every artifact of one compression.
type Run struct {
	Document        *document.Document
	Chunks          *chunker.Set
	ChunkSummaries  []summarizer.Result
	Sections        []summarizer.Result
	DocumentSummary summarizer.Result
	Report          *report.Report
}

// Engine compresses documents. It holds no per-run state and is safe for
// concurrent use when its generator and observer are.
type Engine struct {
	cfg      Config
	gen      summarizer.Generator
	observer events.Observer
	builder  *report.Builder
	parse    parser.Options
}

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator backs the abstractive and hybrid strategies.
func WithGenerator(g summarizer.Generator) Option {
	return func(e *Engine) { e.gen = g }
}

// WithObserver receives stage events.
func WithObserver(o events.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock sets the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.builder = report.NewBuilder(now) }
}

// WithParserOptions configures file loading for CompressFile.
func WithParserOptions(o parser.Options) Option {
	return func(e *Engine) { e.parse = o }
}

// New builds an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid compression config: %w", err)
	}
	e := &Engine{
		cfg:      cfg.withDefaults(),
		observer: events.Nop,
		builder:  report.NewBuilder(nil),
	}
	for _, o := range opts {
		o(e)
	}
	if e.observer == nil {
		e.observer = events.Nop
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// With returns a copy of e that uses cfg.
func (e *Engine) With(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid compression config: %w", err)
	}
	cp := *e
	cp.cfg = cfg.withDefaults()
	return &cp, nil
}

// ParserOptions returns the file loading options.
func (e *Engine) ParserOptions() parser.Options { return e.parse }

// Observed returns a copy of e that also reports to o.
func (e *Engine) Observed(o events.Observer) *Engine {
	cp := *e
	cp.observer = events.Multi{e.observer, o}
	return &cp
}

// CompressFile loads path and compresses it.
func (e *Engine) CompressFile(ctx context.Context, path string) (*Run, error) {
	obs := e.observer
	start := time.Now()
	obs.Observe(events.Event{Stage: events.StageLoad, Kind: events.KindStarted, Document: path})
	doc, err := parser.LoadFile(path, e.parse)
	if err != nil {
		return nil, err
	}
	obs.Observe(events.Event{
		Stage:    events.StageLoad,
		Kind:     events.KindCompleted,
		Document: doc.Name,
		Count:    len(doc.Pages),
		Words:    doc.Stats.TotalWords,
		Duration: time.Since(start),
	})
	return e.Compress(ctx, doc)
}

// Compress runs every stage over doc. An empty document is not an error.
func (e *Engine) Compress(ctx context.Context, doc *document.Document) (*Run, error) {
	if doc == nil {
		return nil, fmt.Errorf("compress: nil document")
	}
	obs := named(e.observer, doc.Name)
	sum := summarizer.New(summarizer.Options{Default: e.cfg.Strategy, Generator: e.gen, Observer: obs})
	agg := aggregate.New(sum, e.cfg.DocMaxLength)
	run := &Run{Document: doc}

	if err := stage(ctx, obs, events.StageChunk, func() (int, int, error) {
		run.Chunks = chunker.NewSet(chunker.Split(doc, e.cfg.Chunking))
		return run.Chunks.Len(), words(run.Chunks.All()), nil
	}); err != nil {
		return nil, err
	}

	if err := stage(ctx, obs, events.StageSummarize, func() (int, int, error) {
		results, err := e.summarizeChunks(ctx, sum, run.Chunks.All(), obs)
		run.ChunkSummaries = results
		return len(results), summaryWords(results), err
	}); err != nil {
		return nil, err
	}

	if err := stage(ctx, obs, events.StageSection, func() (int, int, error) {
		run.Sections = agg.Sections(ctx, run.Chunks, run.ChunkSummaries)
		return len(run.Sections), summaryWords(run.Sections), nil
	}); err != nil {
		return nil, err
	}

	if err := stage(ctx, obs, events.StageDocument, func() (int, int, error) {
		var info aggregate.DocumentInfo
		run.DocumentSummary, info = agg.Document(run.Sections)
		if info.Truncated {
			obs.Observe(events.Event{
				Stage: events.StageDocument,
				Kind:  events.KindTruncated,
				Words: run.DocumentSummary.SummaryWords,
			})
		}
		return 1, run.DocumentSummary.SummaryWords, nil
	}); err != nil {
		return nil, err
	}

	if err := stage(ctx, obs, events.StageReport, func() (int, int, error) {
		r, err := e.builder.Build(report.Input{
			Document:        doc,
			Chunks:          run.Chunks,
			ChunkSummaries:  run.ChunkSummaries,
			Sections:        run.Sections,
			DocumentSummary: run.DocumentSummary,
			DocMaxLength:    agg.DocMaxLength(),
		})
		if err != nil {
			return 0, 0, err
		}
		run.Report = r
		return len(r.CriticalFacts), 0, nil
	}); err != nil {
		return nil, err
	}
	return run, nil
}

// summarizeChunks fans chunks out to a bounded worker group. Each goroutine
// writes only its own slot, so results stay in chunk order.
func (e *Engine) summarizeChunks(ctx context.Context, sum *summarizer.Summarizer, chunks []chunker.Chunk, obs events.Observer) ([]summarizer.Result, error) {
	results := make([]summarizer.Result, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = sum.Summarize(gctx, c)
			obs.Observe(events.Event{
				Stage:     events.StageSummarize,
				Kind:      events.KindChunkSummarized,
				ChunkID:   c.ID,
				ChunkType: string(c.Type),
				Strategy:  string(results[i].Strategy),
				Words:     results[i].SummaryWords,
				Duration:  results[i].ProcessingTime,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// stage runs fn between started and completed events. Cancellation is
// checked before the stage begins.
func stage(ctx context.Context, obs events.Observer, s events.Stage, fn func() (count, words int, err error)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}
	start := time.Now()
	obs.Observe(events.Event{Stage: s, Kind: events.KindStarted})
	count, w, err := fn()
	if err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}
	obs.Observe(events.Event{Stage: s, Kind: events.KindCompleted, Count: count, Words: w, Duration: time.Since(start)})
	return nil
}

// named stamps the document name on events that lack one.
func named(o events.Observer, name string) events.Observer {
	return events.ObserverFunc(func(ev events.Event) {
		if ev.Document == "" {
			ev.Document = name
		}
		o.Observe(ev)
	})
}

func words(chunks []chunker.Chunk) int {
	n := 0
	for _, c := range chunks {
		n += c.WordCount
	}
	return n
}

func summaryWords(rs []summarizer.Result) int {
	n := 0
	for _, r := range rs {
		n += r.SummaryWords
	}
	return n
}
