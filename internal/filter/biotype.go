// Package filter provides row-removing stages that run before truncation.
package filter

import (
	"strings"

	"github.com/inodb/gtftrim/internal/gtf"
)

// DefaultBiotype is the biotype label retained by default.
const DefaultBiotype = "protein_coding"

// Biotype returns a new table containing only rows whose attribute column
// contains label. Row order is preserved, so the contiguity of transcript
// blocks survives filtering.
func Biotype(t gtf.Table, label string) gtf.Table {
	if label == "" {
		label = DefaultBiotype
	}

	out := make(gtf.Table, 0, len(t))
	for _, r := range t {
		if strings.Contains(r.Raw, label) {
			out = append(out, r)
		}
	}
	return out
}
