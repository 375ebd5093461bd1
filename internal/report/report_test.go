package report

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docpress/internal/aggregate"
	"github.com/dgallion1/docpress/internal/chunker"
	"github.com/dgallion1/docpress/internal/document"
	"github.com/dgallion1/docpress/internal/summarizer"
)

var fixedClock = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

const pageOne = `SECTION 1: Access Policy

Access to production systems is granted to on-call engineers through the central identity provider. Each request records the engineer, the system and the business reason so reviewers can trace every session back to a ticket.

RISK: operators must maintain minimum 30 days of audit logs for every production system, and the security team reviews the retention job output every week.`

const pageTwo = `SECTION 2: Vendor Terms

CONFLICT: the master agreement versus the annex

The master agreement sets a notice period of 60 days while the annex signed later in the year states 90 days for the same services. Legal has been asked to confirm which clause governs renewals before the next billing cycle begins.`

func buildInput(t *testing.T) Input {
	t.Helper()
	p1, err := document.NewPage(1, pageOne, nil)
	require.NoError(t, err)
	p2, err := document.NewPage(2, pageTwo, nil)
	require.NoError(t, err)
	doc, err := document.New("/tmp/uploads/policy.pdf", document.Metadata{Format: "pdf"}, []document.Page{p1, p2})
	require.NoError(t, err)

	set := chunker.NewSet(chunker.Split(doc, chunker.DefaultConfig()))
	sum := summarizer.New(summarizer.Options{})
	results := make([]summarizer.Result, set.Len())
	for i, c := range set.All() {
		results[i] = sum.Summarize(context.Background(), c)
	}
	agg := aggregate.New(sum, 300)
	sections := agg.Sections(context.Background(), set, results)
	docSum, _ := agg.Document(sections)

	return Input{
		Document:        doc,
		Chunks:          set,
		ChunkSummaries:  results,
		Sections:        sections,
		DocumentSummary: docSum,
		DocMaxLength:    300,
	}
}

func TestBuild(t *testing.T) {
	in := buildInput(t)
	require.Positive(t, in.Chunks.Len())

	r, err := NewBuilder(fixedClock).Build(in)
	require.NoError(t, err)

	assert.Equal(t, "policy.pdf", r.DocumentName)
	assert.Equal(t, fixedClock(), r.CompressionDate)
	assert.Equal(t, 2, r.OriginalStats.Pages)
	assert.Equal(t, in.Document.Stats.TotalWords, r.OriginalStats.Words)

	names := make([]string, len(r.Levels))
	for i, l := range r.Levels {
		names[i] = l.LevelName
	}
	assert.Equal(t, []string{LevelRaw, LevelChunk, LevelSection, LevelDocument}, names)

	raw := r.Levels[0]
	assert.Equal(t, 2, raw.ItemCount)
	assert.Equal(t, 1.0, raw.CompressionRatio)
	assert.Empty(t, raw.Items)

	chunk := r.Levels[1]
	assert.Equal(t, in.Chunks.Len(), chunk.ItemCount)
	for _, it := range chunk.Items {
		require.NotNil(t, it.ChunkID)
		require.NotNil(t, it.PageNumber)
		require.NotNil(t, it.SourceRange)
		assert.NotEmpty(t, it.SectionID)
	}

	doc := r.Levels[3]
	assert.Equal(t, 1, doc.ItemCount)
	assert.Equal(t, in.DocumentSummary.SummaryText, r.DocumentSummary())
	assert.Nil(t, doc.Items[0].ChunkID)

	wantFacts := 0
	for _, c := range in.Chunks.All() {
		if c.IsCriticalFact() {
			wantFacts++
		}
	}
	assert.Len(t, r.CriticalFacts, wantFacts)
	assert.Positive(t, wantFacts)
	for _, f := range r.CriticalFacts {
		assert.Equal(t, "critical", f.Type)
		assert.NotEmpty(t, f.Section)
	}

	assert.GreaterOrEqual(t, r.QualityMetrics.ContradictionCount, 2)
	assert.GreaterOrEqual(t, r.QualityMetrics.InformationLossScore, 0.0)
	assert.LessOrEqual(t, r.QualityMetrics.InformationLossScore, 1.0)

	require.Len(t, r.Decisions, 6)
	var decisions []string
	for _, d := range r.Decisions {
		decisions = append(decisions, d.Decision)
		assert.NotEmpty(t, d.Rationale)
	}
	assert.Equal(t, []string{
		"Chunking", "Summarization", "Critical Content",
		"Per-Item Explainability", "Document Length Optimization", "Section Tracking",
	}, decisions)
	assert.Equal(t, "Preserved 2 unique section identifiers for traceability", r.Decisions[5].Rationale)
}

func TestBuild_RoundTripAndSchema(t *testing.T) {
	r, err := NewBuilder(fixedClock).Build(buildInput(t))
	require.NoError(t, err)

	first, err := json.Marshal(r)
	require.NoError(t, err)
	require.NoError(t, Validate(first))

	var back Report
	require.NoError(t, json.Unmarshal(first, &back))
	second, err := json.Marshal(&back)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, r.CompressionDate, back.CompressionDate)
	assert.Equal(t, r.QualityMetrics, back.QualityMetrics)
	assert.Equal(t, r.CriticalFacts, back.CriticalFacts)
}

func TestBuild_EmptyDocument(t *testing.T) {
	doc, err := document.New("empty.txt", document.Metadata{}, nil)
	require.NoError(t, err)
	agg := aggregate.New(summarizer.New(summarizer.Options{}), 0)
	docSum, _ := agg.Document(nil)

	r, err := NewBuilder(fixedClock).Build(Input{Document: doc, DocumentSummary: docSum})
	require.NoError(t, err)

	assert.Equal(t, 1.0, r.QualityMetrics.CriticalPreservationRate)
	assert.Equal(t, 0.0, r.QualityMetrics.InformationLossScore)
	assert.Zero(t, r.QualityMetrics.ContradictionCount)
	assert.NotNil(t, r.CriticalFacts)
	assert.Equal(t, 1.0, r.FinalRatio())

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NoError(t, Validate(b))

	var out struct {
		Levels []map[string]json.RawMessage `json:"levels"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	require.Len(t, out.Levels, 4)
	assert.NotContains(t, out.Levels[0], "items")
	assert.JSONEq(t, `[]`, string(out.Levels[1]["items"]))
	assert.JSONEq(t, `[]`, string(out.Levels[2]["items"]))
	assert.Contains(t, out.Levels[3], "items")
}

func TestLevelStat_ItemsAlwaysWritten(t *testing.T) {
	for _, name := range []string{LevelChunk, LevelSection, LevelDocument} {
		b, err := json.Marshal(LevelStat{LevelName: name})
		require.NoError(t, err)
		assert.Contains(t, string(b), `"items":[]`, name)
	}
	b, err := json.Marshal(LevelStat{LevelName: LevelRaw, ItemCount: 2})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "items")
}

func TestBuild_ChunkItemsCarryParent(t *testing.T) {
	p, err := document.NewPage(1, "SECTION 4: Backups\n\nNightly backups run at midnight.", nil)
	require.NoError(t, err)
	doc, err := document.New("backups.txt", document.Metadata{}, []document.Page{p})
	require.NoError(t, err)

	head := chunker.New(0, "SECTION 4: Backups", 1, "4", 0, 1)
	body := chunker.New(1, "Nightly backups run at midnight.", 1, "4", 20, 0)
	pid := head.ID
	body.ParentID = &pid
	set := chunker.NewSet([]chunker.Chunk{head, body})
	sums := []summarizer.Result{{SummaryText: head.Text}, {SummaryText: body.Text}}

	r, err := NewBuilder(fixedClock).Build(Input{Document: doc, Chunks: set, ChunkSummaries: sums})
	require.NoError(t, err)

	l, ok := r.Level(LevelChunk)
	require.True(t, ok)
	require.Len(t, l.Items, 2)
	assert.Nil(t, l.Items[0].ParentChunkID)
	require.NotNil(t, l.Items[1].ParentChunkID)
	assert.Equal(t, 0, *l.Items[1].ParentChunkID)
}

func TestBuild_MismatchedSummaries(t *testing.T) {
	in := buildInput(t)
	in.ChunkSummaries = in.ChunkSummaries[:0]
	_, err := NewBuilder(fixedClock).Build(in)
	assert.Error(t, err)
}

func TestPreservationRate(t *testing.T) {
	chunks := []chunker.Chunk{
		chunker.New(0, "WARNING: the vault must stay locked unless 2 officers are present.", 1, "1", 0, 0),
		chunker.New(1, "plain narrative text", 1, "1", 70, 0),
		chunker.New(2, "A conflict exists between the two annexes.", 1, "1", 95, 0),
	}
	sums := []summarizer.Result{{Confidence: 0.3}, {Confidence: 0.1}, {Confidence: 0.2}}
	assert.InDelta(t, 0.5, PreservationRate(chunks, sums), 1e-9)

	assert.Equal(t, 1.0, PreservationRate(chunks[1:2], sums[1:2]))
}

func TestInformationLoss(t *testing.T) {
	sums := []summarizer.Result{{Confidence: 0.8}, {Confidence: 0.6}}
	// (1-100/1000)*0.3 + (1-0.7)*0.4 + (1-0.5)*0.3
	assert.InDelta(t, 0.27+0.12+0.15, InformationLoss(100, 1000, sums, 0.5), 1e-9)
	assert.Equal(t, 0.0, InformationLoss(0, 0, nil, 1.0))
}

func TestContradictions(t *testing.T) {
	p, err := document.NewPage(1, "CONFLICT: the annex versus the agreement\nplain line of text", nil)
	require.NoError(t, err)
	doc, err := document.New("a.txt", document.Metadata{}, []document.Page{p})
	require.NoError(t, err)
	chunks := []chunker.Chunk{
		chunker.New(0, "CONFLICT: the annex versus the agreement", 1, "", 0, 0),
		chunker.New(1, "no flags here at all", 1, "", 50, 0),
	}
	assert.Equal(t, 2, Contradictions(doc, chunks))
}

func TestValidate_Rejects(t *testing.T) {
	assert.Error(t, Validate([]byte(`{"document_name": ""}`)))
	assert.Error(t, Validate([]byte(`not json`)))

	r, err := NewBuilder(fixedClock).Build(buildInput(t))
	require.NoError(t, err)
	r.Levels[0], r.Levels[1] = r.Levels[1], r.Levels[0]
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Error(t, Validate(b))
}
