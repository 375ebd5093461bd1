package document

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	p, err := NewPage(1, "  one two three  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "one two three", p.Text)
	assert.Equal(t, 3, p.WordCount)

	_, err = NewPage(0, "x", nil)
	assert.Error(t, err)
}

func TestNewStructureElementValidates(t *testing.T) {
	_, err := NewStructureElement("bogus", "x", 0, 1, ElementMeta{})
	assert.Error(t, err)
	_, err = NewStructureElement(Risk, "x", -1, 1, ElementMeta{})
	assert.Error(t, err)
	_, err = NewStructureElement(Risk, "x", 0, 0, ElementMeta{})
	assert.Error(t, err)
	e, err := NewStructureElement(Risk, "x", 0, 2, ElementMeta{WordCount: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, e.PageNumber)
}

func TestAnalyzeStructure(t *testing.T) {
	text := "SECTION 1: Scope\n1.1 Purpose of this policy\nEXCEPTION: weekends are exempt\nWARNING about outages\nConflict between teams\nminimum retention is 30 days\nplain text line\nab"
	got, err := AnalyzeStructure(text, 3)
	require.NoError(t, err)
	require.Len(t, got, 7)

	want := []struct {
		typ   ElementType
		level int
	}{
		{Header, 1}, {Header, 2}, {Exception, 0}, {Risk, 0}, {Contradiction, 0}, {Threshold, 0}, {Paragraph, 0},
	}
	for i, w := range want {
		assert.Equal(t, w.typ, got[i].ElementType, got[i].Content)
		assert.Equal(t, w.level, got[i].Level, got[i].Content)
		assert.Equal(t, 3, got[i].PageNumber)
		assert.Equal(t, i, got[i].Metadata.LineNumber)
	}
	assert.True(t, got[5].Metadata.HasNumbers)
	assert.False(t, got[6].Metadata.HasNumbers)

	_, err = AnalyzeStructure(text, 0)
	assert.ErrorContains(t, err, "element page must be >= 1")
}

func TestNewDerivesStats(t *testing.T) {
	p1, _ := NewPage(1, "SECTION 1 Intro\nSee Section 2.1 for details.", nil)
	p2, _ := NewPage(2, "Refer to Appendix 3 and Section 2.1 again.", nil)
	d, err := New("policy.pdf", Metadata{Format: "pdf"}, []Page{p1, p2})
	require.NoError(t, err)

	assert.Equal(t, 2, d.Stats.TotalPages)
	assert.Equal(t, p1.WordCount+p2.WordCount, d.Stats.TotalWords)
	assert.Equal(t, len(d.Structure), d.Stats.StructuralElements)
	assert.Equal(t, 2, d.Metadata.PageCount)

	var targets []string
	for _, r := range d.CrossReferences {
		targets = append(targets, r.Target)
	}
	assert.Equal(t, []string{"1", "2.1", "3"}, targets)
}

func TestNewRejectsBadInput(t *testing.T) {
	p, _ := NewPage(2, "text", nil)
	q, _ := NewPage(1, "text", nil)
	_, err := New("x", Metadata{}, []Page{p, q})
	assert.Error(t, err)

	_, err = New("", Metadata{}, nil)
	assert.Error(t, err)
}

func TestNewEmpty(t *testing.T) {
	d, err := New("empty.txt", Metadata{}, nil)
	require.NoError(t, err)
	assert.Zero(t, d.Stats.TotalWords)
	assert.Empty(t, d.Structure)
}

func TestCountElements(t *testing.T) {
	p, _ := NewPage(1, "EXCEPTION: holidays\nregular line here\nCONFLICT with policy", nil)
	d, err := New("x.txt", Metadata{}, []Page{p})
	require.NoError(t, err)
	assert.Equal(t, 1, d.CountElements(Exception))
	assert.Equal(t, 1, d.CountElements(Contradiction))
	assert.Equal(t, 1, d.CountElements(Paragraph))
}

func TestLoadErrorUnwrap(t *testing.T) {
	inner := errors.New("bad xref table")
	err := fmt.Errorf("parse: %w", &LoadError{Path: "a.pdf", Err: inner})

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "a.pdf", le.Path)
	assert.True(t, errors.Is(err, inner))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestText(t *testing.T) {
	p1, _ := NewPage(1, "first page", nil)
	p3, _ := NewPage(3, "third page", nil)
	d, err := New("a.txt", Metadata{}, []Page{p1, p3})
	require.NoError(t, err)
	assert.Equal(t, "first page\n\nthird page", d.Text())

	empty, err := New("b.txt", Metadata{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", empty.Text())
}
