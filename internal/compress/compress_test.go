package compress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docpress/internal/chunker"
	"github.com/dgallion1/docpress/internal/document"
	"github.com/dgallion1/docpress/internal/events"
	"github.com/dgallion1/docpress/internal/report"
	"github.com/dgallion1/docpress/internal/summarizer"
)

var clock = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

var (
	teams = []string{"north", "south", "east", "west", "harbor", "summit", "valley", "river"}
	plans = []string{"hiring", "travel", "training", "facilities", "vendor", "onboarding"}
)

// paragraph is five 14-word sentences with no flag keywords.
func paragraph(seed int) string {
	sents := make([]string, 5)
	for i := range sents {
		team := teams[(seed+i)%len(teams)]
		plan := plans[(seed*5+i)%len(plans)]
		sents[i] = fmt.Sprintf("The %s team reviewed the %s plan and shared notes with the wider group.", team, plan)
	}
	return strings.Join(sents, " ")
}

func section(n int) string {
	parts := []string{fmt.Sprintf("SECTION %d: Operations", n)}
	for i := 0; i < 3; i++ {
		parts = append(parts, paragraph(n*3+i))
	}
	return strings.Join(parts, "\n\n")
}

const riskParagraph = "RISK: operators must keep audit logs for a minimum of 30 days and escalate to security when the nightly retention job fails twice."

func fixture(t *testing.T) *document.Document {
	t.Helper()
	p1, err := document.NewPage(1, section(1), nil)
	require.NoError(t, err)
	p2, err := document.NewPage(2, section(2)+"\n\n"+riskParagraph, nil)
	require.NoError(t, err)
	p3, err := document.NewPage(3, section(3), nil)
	require.NoError(t, err)
	doc, err := document.New("ops.pdf", document.Metadata{Format: "pdf"}, []document.Page{p1, p2, p3})
	require.NoError(t, err)
	return doc
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Observe(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds(k events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

type failingGen struct{}

func (failingGen) Generate(context.Context, string, int) (string, error) {
	return "", errors.New("model offline")
}

func TestCompress_EndToEnd(t *testing.T) {
	e, err := New(DefaultConfig(), WithClock(clock))
	require.NoError(t, err)

	run, err := e.Compress(context.Background(), fixture(t))
	require.NoError(t, err)

	require.Equal(t, 3, run.Chunks.Len())
	require.Len(t, run.ChunkSummaries, 3)
	for i, r := range run.ChunkSummaries {
		assert.Equal(t, []int{i}, r.SourceChunks, "results keep chunk order")
		assert.LessOrEqual(t, r.SummaryWords, r.OriginalWords)
	}
	assert.Len(t, run.Sections, 3)
	assert.LessOrEqual(t, run.DocumentSummary.SummaryWords, 300)

	b, err := json.Marshal(run.Report)
	require.NoError(t, err)
	require.NoError(t, report.Validate(b))
	assert.Len(t, run.Report.CriticalFacts, 1)
	assert.Equal(t, "2", run.Report.CriticalFacts[0].Section)
}

func TestCompress_DeterministicAcrossWorkers(t *testing.T) {
	var out [][]byte
	for _, workers := range []int{1, 8} {
		cfg := DefaultConfig()
		cfg.Workers = workers
		e, err := New(cfg, WithClock(clock))
		require.NoError(t, err)
		run, err := e.Compress(context.Background(), fixture(t))
		require.NoError(t, err)
		b, err := json.Marshal(run.Report)
		require.NoError(t, err)
		out = append(out, b)
	}
	assert.JSONEq(t, string(out[0]), string(out[1]))
}

func TestCompress_Events(t *testing.T) {
	rec := &recorder{}
	e, err := New(DefaultConfig(), WithObserver(rec))
	require.NoError(t, err)
	_, err = e.Compress(context.Background(), fixture(t))
	require.NoError(t, err)

	var stages []events.Stage
	for _, ev := range rec.kinds(events.KindCompleted) {
		stages = append(stages, ev.Stage)
		assert.Equal(t, "ops.pdf", ev.Document)
	}
	assert.Equal(t, []events.Stage{
		events.StageChunk, events.StageSummarize, events.StageSection, events.StageDocument, events.StageReport,
	}, stages)
	assert.Len(t, rec.kinds(events.KindChunkSummarized), 3)
}

func TestCompress_GeneratorFallback(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.Strategy = summarizer.NameAbstractive
	e, err := New(cfg, WithGenerator(failingGen{}), WithObserver(rec))
	require.NoError(t, err)

	run, err := e.Compress(context.Background(), fixture(t))
	require.NoError(t, err, "generator failures never fail the run")

	fallbacks := rec.kinds(events.KindFallback)
	assert.NotEmpty(t, fallbacks)
	for _, ev := range fallbacks {
		assert.Equal(t, "ops.pdf", ev.Document)
	}
	for _, r := range run.ChunkSummaries {
		assert.NotEqual(t, summarizer.NameAbstractive, r.Strategy)
	}
}

func TestCompress_Cancelled(t *testing.T) {
	e, err := New(DefaultConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Compress(ctx, fixture(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompress_EmptyDocument(t *testing.T) {
	doc, err := document.New("blank.txt", document.Metadata{}, nil)
	require.NoError(t, err)
	e, err := New(DefaultConfig(), WithClock(clock))
	require.NoError(t, err)

	run, err := e.Compress(context.Background(), doc)
	require.NoError(t, err)
	assert.Zero(t, run.Chunks.Len())
	assert.Equal(t, 1.0, run.Report.QualityMetrics.CriticalPreservationRate)
	assert.Equal(t, 0.0, run.Report.QualityMetrics.InformationLossScore)
}

func TestCompressFile(t *testing.T) {
	e, err := New(DefaultConfig())
	require.NoError(t, err)

	_, err = e.CompressFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, document.ErrNotFound)

	path := filepath.Join(t.TempDir(), "ops.txt")
	require.NoError(t, os.WriteFile(path, []byte(section(1)+"\f"+section(2)), 0o644))
	run, err := e.CompressFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "ops.txt", run.Report.DocumentName)
	assert.Equal(t, 2, run.Report.OriginalStats.Pages)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero values use defaults", func(c *Config) { *c = Config{} }, false},
		{"min above max", func(c *Config) { c.Chunking = chunker.Config{MinWords: 400, MaxWords: 300} }, true},
		{"overlap too large", func(c *Config) { c.Chunking.OverlapWords = 300 }, true},
		{"doc max too small", func(c *Config) { c.DocMaxLength = 20 }, true},
		{"unknown strategy", func(c *Config) { c.Strategy = "neural" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEngine_With(t *testing.T) {
	e, err := New(DefaultConfig())
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.DocMaxLength = 120
	e2, err := e.With(cfg)
	require.NoError(t, err)
	assert.Equal(t, 120, e2.Config().DocMaxLength)
	assert.Equal(t, 300, e.Config().DocMaxLength)

	cfg.Strategy = "bogus"
	_, err = e.With(cfg)
	assert.Error(t, err)
}
