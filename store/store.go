// Package store keeps a SQLite history of converted exports.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS imports (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	output     TEXT NOT NULL,
	header     TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	leftover   INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS import_rows (
	import_id TEXT NOT NULL REFERENCES imports(id),
	row_num   INTEGER NOT NULL,
	line      TEXT NOT NULL,
	PRIMARY KEY (import_id, row_num)
);`

// Import is one conversion run.
type Import struct {
	ID        string    `db:"id" json:"id"`
	Source    string    `db:"source" json:"source"`
	Output    string    `db:"output" json:"output"`
	Header    string    `db:"header" json:"header"`
	RowCount  int       `db:"row_count" json:"row_count"`
	Leftover  int       `db:"leftover" json:"leftover"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveImport records imp and its CSV rows in one transaction. An empty ID
// gets a fresh uuid and a zero CreatedAt is set to now; the stored Import
// is returned.
func (s *Store) SaveImport(ctx context.Context, imp Import, rows []string) (Import, error) {
	if imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	if imp.CreatedAt.IsZero() {
		imp.CreatedAt = time.Now().UTC()
	}
	imp.RowCount = len(rows)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return imp, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const insImport = `INSERT INTO imports (id, source, output, header, row_count, leftover, created_at)
		VALUES (:id, :source, :output, :header, :row_count, :leftover, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insImport, imp); err != nil {
		return imp, fmt.Errorf("insert import: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO import_rows (import_id, row_num, line) VALUES (?, ?, ?)`)
	if err != nil {
		return imp, fmt.Errorf("prepare rows: %w", err)
	}
	defer stmt.Close()
	for i, line := range rows {
		if _, err := stmt.ExecContext(ctx, imp.ID, i+1, line); err != nil {
			return imp, fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return imp, fmt.Errorf("commit: %w", err)
	}
	return imp, nil
}

// ListImports returns the most recent imports first. limit <= 0 means all.
func (s *Store) ListImports(ctx context.Context, limit int) ([]Import, error) {
	q := `SELECT id, source, output, header, row_count, leftover, created_at
		FROM imports ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	out := []Import{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return out, nil
}

// Rows returns the CSV rows stored for an import, in order.
func (s *Store) Rows(ctx context.Context, importID string) ([]string, error) {
	var out []string
	err := s.db.SelectContext(ctx, &out,
		`SELECT line FROM import_rows WHERE import_id = ? ORDER BY row_num`, importID)
	if err != nil {
		return nil, fmt.Errorf("rows for %s: %w", importID, err)
	}
	return out, nil
}
