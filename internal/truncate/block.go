// Package truncate trims the terminal exons of transcripts in a GTF table.
package truncate

import (
	"fmt"

	"github.com/inodb/gtftrim/internal/gtf"
)

// ErrNotContiguous is returned when the rows of one transcript are split
// across the table. It wraps gtf.ErrMalformedInput.
var ErrNotContiguous = fmt.Errorf("%w: transcript rows are not contiguous", gtf.ErrMalformedInput)

// Block is the contiguous range of rows belonging to one transcript, starting
// with its transcript row.
type Block struct {
	Offset int       // Table index of the transcript row
	Rows   gtf.Table // Rows of the block, shared with the table
}

// TranscriptID returns the id of the transcript the block describes.
func (b *Block) TranscriptID() string {
	return b.Rows[0].Attributes.TranscriptID
}

// GeneID returns the gene id of the transcript.
func (b *Block) GeneID() string {
	return b.Rows[0].Attributes.GeneID
}

// Segment is a run of table rows [Start, End). Block is nil for rows outside
// any transcript; gene rows and rows without a transcript_id pass through
// untouched. Orphan names the transcript of rows whose transcript record is
// missing from the table.
type Segment struct {
	Start, End int
	Block      *Block
	Orphan     string
}

// Partition splits a table into transcript blocks and pass-through runs in
// file order. A block opens at a transcript row and extends over the
// following rows with the same transcript_id; it closes at the next gene or
// transcript row, or at a row of another transcript.
//
// The table is invalid when a transcript's rows resume after its block
// closed, or when rows of a transcript precede its transcript row. Rows
// naming a transcript that has no transcript row at all are returned as
// orphan segments.
func Partition(t gtf.Table) ([]Segment, error) {
	var segments []Segment
	seen := make(map[string]bool)
	orphans := make(map[string]int) // transcript_id -> first orphan row
	open := -1                      // index in segments of the open transcript block

	emitPassThrough := func(i int, orphan string) {
		open = -1
		if n := len(segments); n > 0 {
			last := &segments[n-1]
			if last.Block == nil && last.Orphan == orphan && last.End == i {
				last.End = i + 1
				return
			}
		}
		segments = append(segments, Segment{Start: i, End: i + 1, Orphan: orphan})
	}

	for i, r := range t {
		id := r.Attributes.TranscriptID

		switch {
		case r.Feature == gtf.FeatureTranscript:
			if id == "" {
				emitPassThrough(i, "")
				continue
			}
			if seen[id] {
				return nil, fmt.Errorf("%w: transcript %s reappears at row %d", ErrNotContiguous, id, i+1)
			}
			if first, ok := orphans[id]; ok {
				return nil, fmt.Errorf("%w: row %d of transcript %s precedes its transcript record at row %d",
					ErrNotContiguous, first+1, id, i+1)
			}
			seen[id] = true
			segments = append(segments, Segment{Start: i, End: i + 1, Block: &Block{Offset: i}})
			open = len(segments) - 1

		case r.Feature == gtf.FeatureGene:
			emitPassThrough(i, "")

		case open >= 0 && id == t[segments[open].Start].Attributes.TranscriptID:
			segments[open].End = i + 1

		case seen[id]:
			return nil, fmt.Errorf("%w: %s row of transcript %s at row %d is outside its block",
				ErrNotContiguous, r.Feature, id, i+1)

		case id != "":
			if _, ok := orphans[id]; !ok {
				orphans[id] = i
			}
			emitPassThrough(i, id)

		default:
			emitPassThrough(i, "")
		}
	}

	for _, s := range segments {
		if s.Block != nil {
			s.Block.Rows = t[s.Start:s.End]
		}
	}

	return segments, nil
}
