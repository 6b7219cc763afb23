package truncate

import (
	"errors"
	"runtime"

	"github.com/biogo/biogo/feat"
	"go.uber.org/zap"

	"github.com/inodb/gtftrim/internal/gtf"
)

// ErrFixedThreePrime is returned when a 3' trim is requested in fixed mode.
var ErrFixedThreePrime = errors.New("fixed-trim mode only trims the 5' end")

// FixedTrimmer trims a flat amount from the 5' end of every first exon
// (exon_number "1") without cascading. A first exon too short for the trim is
// deleted. Each row's outcome depends only on that row, so the table is split
// into arbitrary row chunks processed by a worker pool.
//
// FixedTrimmer must not be used for cascading trims: chunk boundaries do not
// respect transcript blocks.
type FixedTrimmer struct {
	req     Request
	chunks  int
	workers int
	logger  *zap.Logger
}

// NewFixedTrimmer creates a fixed-mode trimmer.
func NewFixedTrimmer(req Request) *FixedTrimmer {
	return &FixedTrimmer{
		req:    req,
		logger: zap.NewNop(),
	}
}

// SetWorkers sets the number of chunk workers. Zero or less uses all CPUs.
func (f *FixedTrimmer) SetWorkers(n int) {
	f.workers = n
}

// SetChunks sets the number of row chunks. Zero or less uses one chunk per
// worker.
func (f *FixedTrimmer) SetChunks(n int) {
	f.chunks = n
}

// SetLogger sets the logger for warning and info messages.
func (f *FixedTrimmer) SetLogger(l *zap.Logger) {
	f.logger = l
}

// fixedChunk is the trimmed rows of one chunk plus its counters.
type fixedChunk struct {
	rows       gtf.Table
	edited     int
	removed    int
	unstranded int
}

// Run trims t chunk by chunk and reassembles the chunks in order. The input
// table is not modified.
func (f *FixedTrimmer) Run(t gtf.Table) (*Outcome, error) {
	if err := f.req.Validate(); err != nil {
		return nil, err
	}
	if f.req.ThreePrime > 0 {
		return nil, ErrFixedThreePrime
	}

	workers := f.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	n := f.chunks
	if n <= 0 {
		n = workers
	}

	amount := f.req.FivePrime
	results := Parallel(feed(SplitChunks(t, n)), workers, func(chunk gtf.Table) fixedChunk {
		return trimChunk(chunk, amount)
	})

	out := make(gtf.Table, 0, len(t))
	var report Report
	if err := OrderedCollect(results, func(r WorkResult[fixedChunk]) error {
		out = append(out, r.Value.rows...)
		report.EditedExons += r.Value.edited
		report.RemovedExons += r.Value.removed
		report.UnstrandedRows += r.Value.unstranded
		return nil
	}); err != nil {
		return nil, err
	}
	report.Transcripts = t.Count(gtf.FeatureTranscript)

	f.logger.Info("fixed trim complete",
		zap.Int("chunks", n),
		zap.Int("edited_exons", report.EditedExons),
		zap.Int("removed_exons", report.RemovedExons),
		zap.Int("unstranded_rows", report.UnstrandedRows))

	return &Outcome{Table: out, Report: report}, nil
}

// SplitChunks splits t into n contiguous chunks whose sizes differ by at most
// one row. Fewer chunks are returned when t has fewer than n rows.
func SplitChunks(t gtf.Table, n int) []gtf.Table {
	if n <= 0 {
		n = 1
	}
	if n > len(t) {
		n = len(t)
	}

	chunks := make([]gtf.Table, 0, n)
	size, extra := len(t)/max(n, 1), len(t)%max(n, 1)
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunks = append(chunks, t[start:end])
		start = end
	}
	return chunks
}

// trimChunk applies the fixed trim to each row of a chunk.
func trimChunk(chunk gtf.Table, amount int64) fixedChunk {
	res := fixedChunk{rows: make(gtf.Table, 0, len(chunk))}
	for _, r := range chunk {
		if !r.IsExon() || r.Attributes.ExonNumber != "1" {
			res.rows = append(res.rows, r)
			continue
		}

		switch r.Strand {
		case feat.Forward:
			// Kept only while Start+amount <= End
			if amount > r.End-r.Start {
				res.removed++
				continue
			}
			if amount > 0 {
				r = r.Clone()
				r.Start += amount
				res.edited++
			}
		case feat.Reverse:
			if amount > r.End-r.Start {
				res.removed++
				continue
			}
			if amount > 0 {
				r = r.Clone()
				r.End -= amount
				res.edited++
			}
		default:
			res.unstranded++
		}
		res.rows = append(res.rows, r)
	}
	return res
}
