// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists finished conversions to a SQLite database so
// the web front-end can list and re-download recent results.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/mdscan/pkg/types"
)

const dbFile = "history.db"

// Store manages the conversion history database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the history database at dir/history.db and
// creates the schema if missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS conversions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		markdown_file TEXT NOT NULL,
		zip_file TEXT,
		image_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Add records a finished conversion and returns the record with its
// assigned ID and timestamp filled in.
func (s *Store) Add(ctx context.Context, rec types.ConversionRecord) (types.ConversionRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (title, markdown_file, zip_file, image_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Title, rec.MarkdownFile, rec.ZipFile, rec.ImageCount,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return types.ConversionRecord{}, fmt.Errorf("inserting record: %w", err)
	}

	rec.ID, err = res.LastInsertId()
	if err != nil {
		return types.ConversionRecord{}, fmt.Errorf("reading insert id: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit records, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]types.ConversionRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, markdown_file, zip_file, image_count, created_at
		 FROM conversions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []types.ConversionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id int64) (types.ConversionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, markdown_file, zip_file, image_count, created_at
		 FROM conversions WHERE id = ?`, id)
	return scanRecord(row)
}

// Trim deletes all but the newest keep records.
func (s *Store) Trim(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversions WHERE id NOT IN
		 (SELECT id FROM conversions ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (types.ConversionRecord, error) {
	var rec types.ConversionRecord
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.Title, &rec.MarkdownFile, &rec.ZipFile,
		&rec.ImageCount, &createdAt); err != nil {
		return types.ConversionRecord{}, fmt.Errorf("scanning record: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}
