package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/gtftrim/internal/gtf"
)

// Run describes one truncation run.
type Run struct {
	ID                  int64
	Input               FileFingerprint
	Mode                string // cascade or fixed
	FivePrime           int64
	ThreePrime          int64
	Biotype             string
	Longest             bool
	OutputRows          int64
	RemovedExons        int64
	ExcludedTranscripts int64
	CreatedAt           time.Time
}

// SkippedTranscript is a per-transcript failure recorded for a run.
type SkippedTranscript struct {
	GeneID       string
	TranscriptID string
	Kind         string
	Message      string
}

// WriteRun stores a run, its output table and its failures, and returns the
// assigned run id. Records are batch-inserted with the Appender API.
func (s *Store) WriteRun(run *Run, table gtf.Table, failures []*gtf.TranscriptError) (int64, error) {
	var id int64
	if err := s.db.QueryRow("SELECT COALESCE(MAX(run_id), 0) + 1 FROM runs").Scan(&id); err != nil {
		return 0, fmt.Errorf("next run id: %w", err)
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.ID = id
	run.OutputRows = int64(len(table))

	if _, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Input.Path, run.Input.Size, run.Input.ModTime.UTC(), run.Mode,
		run.FivePrime, run.ThreePrime, run.Biotype, run.Longest,
		run.OutputRows, run.RemovedExons, run.ExcludedTranscripts, run.CreatedAt,
	); err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	if err := s.appendRows("records", func(a *goduckdb.Appender) error {
		for i, r := range table {
			if err := a.AppendRow(
				id, int64(i), r.Seqname, r.Source, r.Feature, r.Start, r.End,
				r.Score, r.StrandSymbol(), r.Frame,
				r.Attributes.GeneID, r.Attributes.TranscriptID, r.Attributes.ExonNumber, r.Raw,
			); err != nil {
				return fmt.Errorf("append record: %w", err)
			}
		}
		return nil
	}); err != nil {
		return 0, err
	}

	if err := s.appendRows("skipped_transcripts", func(a *goduckdb.Appender) error {
		for _, f := range failures {
			if err := a.AppendRow(id, f.GeneID, f.TranscriptID, f.Kind(), f.Err.Error()); err != nil {
				return fmt.Errorf("append skipped transcript: %w", err)
			}
		}
		return nil
	}); err != nil {
		return 0, err
	}

	return id, nil
}

// appendRows runs fn with an appender on the named table and flushes it.
func (s *Store) appendRows(table string, fn func(*goduckdb.Appender) error) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// Runs returns every recorded run, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT
		run_id, input_path, input_size, input_modtime, mode,
		five_prime, three_prime, biotype, longest,
		output_rows, removed_exons, excluded_transcripts, created_at
		FROM runs
		ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.Input.Path, &r.Input.Size, &r.Input.ModTime, &r.Mode,
			&r.FivePrime, &r.ThreePrime, &r.Biotype, &r.Longest,
			&r.OutputRows, &r.RemovedExons, &r.ExcludedTranscripts, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RecordCount returns the number of output rows stored for a run.
func (s *Store) RecordCount(runID int64) (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM records WHERE run_id=?", runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// LookupTranscript returns the stored output rows of one transcript in file
// order.
func (s *Store) LookupTranscript(runID int64, transcriptID string) (gtf.Table, error) {
	rows, err := s.db.Query(`SELECT
		seqname, source, feature, start, end_, score, strand, frame, attributes
		FROM records
		WHERE run_id=? AND transcript_id=?
		ORDER BY row_num`, runID, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var table gtf.Table
	for rows.Next() {
		var r gtf.Record
		if err := rows.Scan(
			&r.Seqname, &r.Source, &r.Feature, &r.Start, &r.End,
			&r.Score, &r.RawStrand, &r.Frame, &r.Raw,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Strand = gtf.ParseStrand(r.RawStrand)
		r.Attributes = gtf.NewAttributes(r.Raw)
		table = append(table, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return table, nil
}

// SkippedTranscripts returns the failures recorded for a run.
func (s *Store) SkippedTranscripts(runID int64) ([]SkippedTranscript, error) {
	rows, err := s.db.Query(`SELECT gene_id, transcript_id, kind, message
		FROM skipped_transcripts
		WHERE run_id=?
		ORDER BY transcript_id, gene_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query skipped transcripts: %w", err)
	}
	defer rows.Close()

	var skipped []SkippedTranscript
	for rows.Next() {
		var st SkippedTranscript
		if err := rows.Scan(&st.GeneID, &st.TranscriptID, &st.Kind, &st.Message); err != nil {
			return nil, fmt.Errorf("scan skipped transcript: %w", err)
		}
		skipped = append(skipped, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skipped transcripts: %w", err)
	}
	return skipped, nil
}

// ClearRuns removes all stored runs.
func (s *Store) ClearRuns() error {
	for _, table := range []string{"records", "skipped_transcripts", "runs"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	return nil
}
