// Package duckdb records truncation runs in DuckDB and caches filtered
// annotation tables on disk.
// Run outputs are stored in DuckDB (queryable, append-only).
// Filtered tables are cached as gob files (fast, pure Go).
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding run history and trimmed records.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id BIGINT PRIMARY KEY,
			input_path VARCHAR,
			input_size BIGINT,
			input_modtime TIMESTAMP,
			mode VARCHAR,
			five_prime BIGINT,
			three_prime BIGINT,
			biotype VARCHAR,
			longest BOOLEAN,
			output_rows BIGINT,
			removed_exons BIGINT,
			excluded_transcripts BIGINT,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			run_id BIGINT,
			row_num BIGINT,
			seqname VARCHAR,
			source VARCHAR,
			feature VARCHAR,
			start BIGINT,
			end_ BIGINT,
			score VARCHAR,
			strand VARCHAR,
			frame VARCHAR,
			gene_id VARCHAR,
			transcript_id VARCHAR,
			exon_number VARCHAR,
			attributes VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS skipped_transcripts (
			run_id BIGINT,
			gene_id VARCHAR,
			transcript_id VARCHAR,
			kind VARCHAR,
			message VARCHAR
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
