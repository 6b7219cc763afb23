package truncate

import (
	"fmt"

	"github.com/biogo/biogo/feat"

	"github.com/inodb/gtftrim/internal/gtf"
)

// Cascade removes amount nucleotides from one end of the transcript. Exons no
// longer than the remaining amount are marked exhausted and the remainder
// carries over to the next exon; the first exon longer than the remainder has
// its coordinate moved in place. It returns the number of exons exhausted.
//
// The block must keep at least one nucleotide; otherwise the error wraps
// gtf.ErrTrimExceedsTranscript and the block is left partially trimmed.
func (tb *TranscriptBlock) Cascade(from End, amount int64) (int, error) {
	if amount <= 0 {
		return 0, nil
	}

	cursor := tb.FirstExon()
	if from == ThreePrime {
		cursor = tb.LastExon()
	}

	exhausted := 0
	remaining := amount
	for remaining > 0 {
		if cursor < 0 {
			return exhausted, fmt.Errorf("%w: %s trim of %d leaves %d untrimmed",
				gtf.ErrTrimExceedsTranscript, from, amount, remaining)
		}

		e := &tb.exons[cursor]
		if e.Len() > remaining {
			tb.shift(e, from, remaining)
			break
		}

		remaining -= e.Len()
		e.Exhausted = true
		exhausted++
		cursor = tb.NextExon(cursor, from)
	}

	if tb.Remaining() == 0 {
		return exhausted, fmt.Errorf("%w: %s trim of %d consumes every exon",
			gtf.ErrTrimExceedsTranscript, from, amount)
	}

	return exhausted, nil
}

// shift moves the coordinate of e facing the trimmed end by k.
func (tb *TranscriptBlock) shift(e *Exon, from End, k int64) {
	// The 5' end of a forward transcript and the 3' end of a reverse one are
	// at the low coordinate.
	if (from == FivePrime) == (tb.strand == feat.Forward) {
		e.Start += k
	} else {
		e.End -= k
	}
}
