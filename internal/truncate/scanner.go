package truncate

import (
	"fmt"
	"sort"

	"github.com/biogo/biogo/feat"

	"github.com/inodb/gtftrim/internal/gtf"
)

// End names a transcript end.
type End int

const (
	FivePrime End = iota
	ThreePrime
)

func (e End) String() string {
	if e == FivePrime {
		return "5'"
	}
	return "3'"
}

// Exon is a private working copy of one exon row of a transcript block.
type Exon struct {
	Row       int   // Index of the row within the block
	Start     int64 // Current start (1-based)
	End       int64 // Current end (1-based, inclusive)
	Exhausted bool  // Fully consumed by a trim
}

// Len returns the current length of the exon.
func (e *Exon) Len() int64 {
	return e.End - e.Start + 1
}

// TranscriptBlock is the scanned view of a Block: its strand and its exons
// ordered from the 5' end to the 3' end of the transcript.
type TranscriptBlock struct {
	block  *Block
	strand feat.Orientation
	exons  []Exon
}

// Scan locates the exons of a transcript block and orders them by
// transcription direction. The 5' exon of a forward-strand transcript has the
// lowest coordinate; on the reverse strand it has the highest. File order of
// the exon rows does not matter.
func Scan(b *Block) (*TranscriptBlock, error) {
	tr := b.Rows[0]
	if tr.Strand == feat.NotOriented {
		return nil, fmt.Errorf("%w: strand %q", gtf.ErrStrandAmbiguity, tr.StrandSymbol())
	}

	var exons []Exon
	for i, r := range b.Rows {
		if !r.IsExon() {
			continue
		}
		if r.Strand != tr.Strand {
			return nil, fmt.Errorf("%w: exon at %d-%d on strand %q, transcript on %q",
				gtf.ErrStrandAmbiguity, r.Start, r.End, r.StrandSymbol(), tr.StrandSymbol())
		}
		exons = append(exons, Exon{Row: i, Start: r.Start, End: r.End})
	}

	if len(exons) == 0 {
		return nil, gtf.ErrNoExon
	}

	sort.SliceStable(exons, func(i, j int) bool {
		if tr.Strand == feat.Reverse {
			return exons[i].Start > exons[j].Start
		}
		return exons[i].Start < exons[j].Start
	})

	return &TranscriptBlock{block: b, strand: tr.Strand, exons: exons}, nil
}

// Strand returns the transcript strand.
func (tb *TranscriptBlock) Strand() feat.Orientation {
	return tb.strand
}

// Len returns the number of exons in the block.
func (tb *TranscriptBlock) Len() int {
	return len(tb.exons)
}

// Exon returns the exon at cursor i (0 is the 5'-most exon).
func (tb *TranscriptBlock) Exon(i int) *Exon {
	return &tb.exons[i]
}

// FirstExon returns the cursor of the 5'-most exon not yet exhausted, or -1.
func (tb *TranscriptBlock) FirstExon() int {
	return tb.NextExon(-1, FivePrime)
}

// LastExon returns the cursor of the 3'-most exon not yet exhausted, or -1.
func (tb *TranscriptBlock) LastExon() int {
	return tb.NextExon(len(tb.exons), ThreePrime)
}

// NextExon returns the cursor of the next live exon moving away from the
// given end, or -1 when the block is exhausted in that direction.
func (tb *TranscriptBlock) NextExon(cursor int, from End) int {
	step := 1
	if from == ThreePrime {
		step = -1
	}
	for i := cursor + step; i >= 0 && i < len(tb.exons); i += step {
		if !tb.exons[i].Exhausted {
			return i
		}
	}
	return -1
}

// Remaining returns the number of exons not yet exhausted.
func (tb *TranscriptBlock) Remaining() int {
	n := 0
	for i := range tb.exons {
		if !tb.exons[i].Exhausted {
			n++
		}
	}
	return n
}
