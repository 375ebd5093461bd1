// Package reportstore archives finished compression reports in SQLite.
package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/docpress/internal/report"
)

// ErrNotFound is returned when no report matches.
var ErrNotFound = errors.New("report not found")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id            TEXT PRIMARY KEY,
	doc_id        TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	document_name TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	json          BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_hash ON reports(content_hash);
CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at DESC);
`

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// Record is one archived report. JSON is the serialized report.Report.
type Record struct {
	ID           string          `json:"id"`
	DocID        string          `json:"doc_id"`
	ContentHash  string          `json:"content_hash"`
	DocumentName string          `json:"document_name"`
	CreatedAt    time.Time       `json:"created_at"`
	JSON         json.RawMessage `json:"report,omitempty"`
}

// Report decodes the stored JSON.
func (r *Record) Report() (*report.Report, error) {
	var rep report.Report
	if err := json.Unmarshal(r.JSON, &rep); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", r.ID, err)
	}
	return &rep, nil
}

// Store is a SQLite-backed report archive.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. Parent directories are
// created. ":memory:" gives a private in-process store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("reportstore: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("reportstore: open: %w", err)
	}
	if path == ":memory:" {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("reportstore: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("reportstore: schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("reportstore: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Put inserts or replaces a record.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("reportstore: record id required")
	}
	if len(rec.JSON) == 0 {
		return errors.New("reportstore: record json required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (id, doc_id, content_hash, document_name, created_at, json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocID, rec.ContentHash, rec.DocumentName, rec.CreatedAt.UTC().UnixMilli(), []byte(rec.JSON))
	if err != nil {
		return fmt.Errorf("put report %s: %w", rec.ID, err)
	}
	return nil
}

// PutReport serializes r and stores it under id.
func (s *Store) PutReport(ctx context.Context, id, docID, contentHash string, r *report.Report) (Record, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return Record{}, fmt.Errorf("encode report: %w", err)
	}
	rec := Record{
		ID:           id,
		DocID:        docID,
		ContentHash:  contentHash,
		DocumentName: r.DocumentName,
		CreatedAt:    r.CompressionDate,
		JSON:         b,
	}
	return rec, s.Put(ctx, rec)
}

// Get returns the record with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, doc_id, content_hash, document_name, created_at, json FROM reports WHERE id = ?`, id)
	return scanRecord(row, true)
}

// FindByHash returns the newest record with the content hash, or ErrNotFound.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, doc_id, content_hash, document_name, created_at, json FROM reports
		 WHERE content_hash = ? ORDER BY created_at DESC LIMIT 1`, hash)
	return scanRecord(row, true)
}

// List returns records newest first, without their JSON. limit <= 0 means 100.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, content_hash, document_name, created_at FROM reports
		 ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

// Delete removes the record with id, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner, withJSON bool) (*Record, error) {
	var (
		rec     Record
		created int64
		raw     []byte
	)
	dest := []any{&rec.ID, &rec.DocID, &rec.ContentHash, &rec.DocumentName, &created}
	if withJSON {
		dest = append(dest, &raw)
	}
	if err := sc.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	if withJSON {
		rec.JSON = raw
	}
	return &rec, nil
}
