package truncate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/gtftrim/internal/gtf"
)

// Request is the number of nucleotides to trim from each transcript end.
// Zero leaves that end untouched.
type Request struct {
	FivePrime  int64
	ThreePrime int64
}

// Validate checks that both amounts are non-negative.
func (r Request) Validate() error {
	if r.FivePrime < 0 || r.ThreePrime < 0 {
		return fmt.Errorf("trim amounts must be non-negative, got 5'=%d 3'=%d", r.FivePrime, r.ThreePrime)
	}
	return nil
}

// Report summarizes a truncation run.
type Report struct {
	Transcripts         int                    // Transcripts seen, with or without a transcript row
	EditedExons         int                    // Exons with a moved coordinate
	RemovedExons        int                    // Exhausted exons deleted
	ExcludedTranscripts int                    // Transcripts dropped on failure
	ExcludedRows        int                    // Rows of excluded transcripts
	UnstrandedRows      int                    // Fixed mode: first exons left untouched
	Failures            []*gtf.TranscriptError // Per-transcript failures
}

// FailedIDs returns the transcript (or gene) ids of every failure.
func (r *Report) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		if f.TranscriptID != "" {
			ids = append(ids, f.TranscriptID)
		} else {
			ids = append(ids, f.GeneID)
		}
	}
	return ids
}

// Outcome is the trimmed table with its report.
type Outcome struct {
	Table  gtf.Table
	Report Report
}

// edit is a new interval for a table row.
type edit struct {
	pos        int
	start, end int64
}

// blockResult is the outcome of trimming one transcript block. Positions are
// table indices.
type blockResult struct {
	edits     []edit
	exhausted []int
	err       *gtf.TranscriptError
}

// Truncator trims both ends of every transcript, cascading across exons.
type Truncator struct {
	req     Request
	workers int
	logger  *zap.Logger
}

// NewTruncator creates a truncator for the given request.
func NewTruncator(req Request) *Truncator {
	return &Truncator{
		req:    req,
		logger: zap.NewNop(),
	}
}

// SetWorkers sets the number of block workers. Zero or less uses all CPUs.
func (tr *Truncator) SetWorkers(n int) {
	tr.workers = n
}

// SetLogger sets the logger for warning and info messages.
func (tr *Truncator) SetLogger(l *zap.Logger) {
	tr.logger = l
}

// Run trims every transcript block of t. The input table is not modified.
//
// Blocks are trimmed independently on private copies of their exons; the
// resulting edits and exhausted positions are gathered in file order and
// applied in a single pass once every block is done. A transcript that fails
// is excluded from the output and recorded in the report. Only file-level
// problems (non-contiguous transcripts, invalid request) return an error.
func (tr *Truncator) Run(t gtf.Table) (*Outcome, error) {
	if err := tr.req.Validate(); err != nil {
		return nil, err
	}

	segments, err := Partition(t)
	if err != nil {
		return nil, err
	}

	var report Report
	edits := make(map[int]edit)
	deleted := make(map[int]struct{})

	var blocks []*Block
	orphaned := make(map[string]bool)
	for _, s := range segments {
		switch {
		case s.Block != nil:
			blocks = append(blocks, s.Block)
		case s.Orphan != "":
			for i := s.Start; i < s.End; i++ {
				deleted[i] = struct{}{}
			}
			report.ExcludedRows += s.End - s.Start
			if orphaned[s.Orphan] {
				continue
			}
			orphaned[s.Orphan] = true
			f := &gtf.TranscriptError{
				GeneID:       t[s.Start].Attributes.GeneID,
				TranscriptID: s.Orphan,
				Err:          gtf.ErrMissingTranscript,
			}
			report.Failures = append(report.Failures, f)
			report.ExcludedTranscripts++
			tr.logger.Warn("transcript excluded",
				zap.String("transcript_id", f.TranscriptID),
				zap.String("gene_id", f.GeneID),
				zap.Error(f.Err))
		}
	}
	report.Transcripts = len(blocks) + len(orphaned)

	results := Parallel(feed(blocks), tr.workers, func(b *Block) blockResult {
		return trimBlock(b, tr.req)
	})

	if err := OrderedCollect(results, func(r WorkResult[blockResult]) error {
		res := r.Value
		b := blocks[r.Seq]

		if res.err != nil {
			report.Failures = append(report.Failures, res.err)
			report.ExcludedTranscripts++
			report.ExcludedRows += len(b.Rows)
			for i := range b.Rows {
				deleted[b.Offset+i] = struct{}{}
			}
			tr.logger.Warn("transcript excluded",
				zap.String("transcript_id", res.err.TranscriptID),
				zap.String("gene_id", res.err.GeneID),
				zap.Error(res.err.Err))
			return nil
		}

		for _, e := range res.edits {
			edits[e.pos] = e
		}
		for _, pos := range res.exhausted {
			deleted[pos] = struct{}{}
		}
		report.EditedExons += len(res.edits)
		report.RemovedExons += len(res.exhausted)
		return nil
	}); err != nil {
		return nil, err
	}

	out := applyEdits(t, edits, deleted)

	tr.logger.Info("truncation complete",
		zap.Int("transcripts", report.Transcripts),
		zap.Int("edited_exons", report.EditedExons),
		zap.Int("removed_exons", report.RemovedExons),
		zap.Int("excluded_transcripts", report.ExcludedTranscripts))

	return &Outcome{Table: out, Report: report}, nil
}

// trimBlock scans one block and applies both trims to a private copy of its
// exons.
func trimBlock(b *Block, req Request) blockResult {
	fail := func(err error) blockResult {
		return blockResult{err: &gtf.TranscriptError{
			GeneID:       b.GeneID(),
			TranscriptID: b.TranscriptID(),
			Err:          err,
		}}
	}

	tb, err := Scan(b)
	if err != nil {
		return fail(err)
	}

	if _, err := tb.Cascade(FivePrime, req.FivePrime); err != nil {
		return fail(err)
	}
	if _, err := tb.Cascade(ThreePrime, req.ThreePrime); err != nil {
		return fail(err)
	}

	var res blockResult
	for i := range tb.exons {
		e := &tb.exons[i]
		pos := b.Offset + e.Row
		orig := b.Rows[e.Row]
		switch {
		case e.Exhausted:
			res.exhausted = append(res.exhausted, pos)
		case e.Start != orig.Start || e.End != orig.End:
			res.edits = append(res.edits, edit{pos: pos, start: e.Start, end: e.End})
		}
	}
	return res
}

// applyEdits builds the output table in one pass: deleted positions are
// skipped and edited rows are copied with their new interval.
func applyEdits(t gtf.Table, edits map[int]edit, deleted map[int]struct{}) gtf.Table {
	out := make(gtf.Table, 0, len(t)-len(deleted))
	for i, r := range t {
		if _, ok := deleted[i]; ok {
			continue
		}
		if e, ok := edits[i]; ok {
			r = r.Clone()
			r.Start, r.End = e.start, e.end
		}
		out = append(out, r)
	}
	return out
}
