package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docpress/internal/report"
)

var base = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(id, hash string, offset time.Duration) Record {
	return Record{
		ID:           id,
		DocID:        "doc-" + id,
		ContentHash:  hash,
		DocumentName: id + ".pdf",
		CreatedAt:    base.Add(offset),
		JSON:         json.RawMessage(`{"document_name":"` + id + `.pdf"}`),
	}
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, rec("a", "h1", 0)))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "doc-a", got.DocID)
	assert.Equal(t, "h1", got.ContentHash)
	assert.Equal(t, "a.pdf", got.DocumentName)
	assert.Equal(t, base, got.CreatedAt)
	assert.JSONEq(t, `{"document_name":"a.pdf"}`, string(got.JSON))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPut_Replaces(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, rec("a", "h1", 0)))
	r := rec("a", "h2", time.Minute)
	require.NoError(t, s.Put(ctx, r))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.ContentHash)
}

func TestPut_RequiresIDAndJSON(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	assert.Error(t, s.Put(ctx, Record{JSON: json.RawMessage(`{}`)}))
	assert.Error(t, s.Put(ctx, Record{ID: "x"}))
}

func TestList_NewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, rec("old", "h1", 0)))
	require.NoError(t, s.Put(ctx, rec("new", "h2", 2*time.Hour)))
	require.NoError(t, s.Put(ctx, rec("mid", "h3", time.Hour)))

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Nil(t, list[0].JSON, "list omits report bodies")

	list, err = s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestList_Empty(t *testing.T) {
	list, err := openTemp(t).List(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestFindByHash(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, rec("first", "same", 0)))
	require.NoError(t, s.Put(ctx, rec("second", "same", time.Hour)))

	got, err := s.FindByHash(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, "second", got.ID)

	_, err = s.FindByHash(ctx, "other")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDelete(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, rec("a", "h1", 0)))
	require.NoError(t, s.Delete(ctx, "a"))
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "a"), ErrNotFound)
}

func TestPutReport_RoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	r := &report.Report{
		DocumentName:    "policy.pdf",
		CompressionDate: base,
		CriticalFacts:   []report.CriticalFact{{Section: "2", Page: 3, Type: "critical", Summary: "Keep logs 30 days.", ChunkID: 4}},
	}
	stored, err := s.PutReport(ctx, "r1", "d1", "hash", r)
	require.NoError(t, err)
	assert.Equal(t, "policy.pdf", stored.DocumentName)

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	back, err := got.Report()
	require.NoError(t, err)
	assert.Equal(t, r.DocumentName, back.DocumentName)
	assert.Equal(t, r.CriticalFacts, back.CriticalFacts)
	assert.True(t, r.CompressionDate.Equal(back.CompressionDate))
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Put(context.Background(), rec("m", "h", 0)))
	_, err = s.Get(context.Background(), "m")
	assert.NoError(t, err)
}
