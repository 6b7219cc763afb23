package filter

import (
	"github.com/inodb/gtftrim/internal/gtf"
)

// Longest keeps, for each gene block, only the transcript with the largest
// coding span and drops the rows of every other isoform.
//
// A gene block is a maximal contiguous run of rows sharing a gene_id. The
// coding span of a transcript is the summed length of its CDS rows, or the
// span of its transcript row if it has none. Ties go to the first transcript
// in file order. Gene blocks without any transcript row are dropped and
// reported with gtf.ErrNoTranscript.
func Longest(t gtf.Table) (gtf.Table, []*gtf.TranscriptError) {
	out := make(gtf.Table, 0, len(t))
	var failures []*gtf.TranscriptError

	for start := 0; start < len(t); {
		geneID := t[start].Attributes.GeneID
		end := start + 1
		for end < len(t) && t[end].Attributes.GeneID == geneID {
			end++
		}
		block := t[start:end]
		start = end

		if geneID == "" {
			out = append(out, block...)
			continue
		}

		winner, ok := longestTranscript(block)
		if !ok {
			failures = append(failures, &gtf.TranscriptError{GeneID: geneID, Err: gtf.ErrNoTranscript})
			continue
		}

		for _, r := range block {
			id := r.Attributes.TranscriptID
			if id == "" || id == winner {
				out = append(out, r)
			}
		}
	}

	return out, failures
}

// longestTranscript returns the id of the transcript with the largest coding
// span in a gene block.
func longestTranscript(block gtf.Table) (string, bool) {
	cds := make(map[string]int64)
	for _, r := range block {
		if r.Feature == gtf.FeatureCDS {
			cds[r.Attributes.TranscriptID] += r.Len()
		}
	}

	var (
		best     string
		bestSpan int64 = -1
	)
	for _, r := range block {
		if r.Feature != gtf.FeatureTranscript {
			continue
		}
		span, ok := cds[r.Attributes.TranscriptID]
		if !ok {
			span = r.Len()
		}
		if span > bestSpan {
			best, bestSpan = r.Attributes.TranscriptID, span
		}
	}

	return best, bestSpan >= 0
}
